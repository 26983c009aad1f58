package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/z8n24/codexmonitor-go/internal/cron"
)

var autofetchCmd = &cobra.Command{
	Use:   "autofetch",
	Short: "Manage periodic background fetches",
	Long: `Manage periodic "git fetch" jobs. Jobs run inside the daemon; a running
daemon picks up changes on its next start.`,
}

func openScheduler() (*app, *cron.Scheduler, error) {
	a, err := openApp()
	if err != nil {
		return nil, nil, err
	}
	return a, cron.NewScheduler(a.paths.AutoFetchFile(), a.commands), nil
}

var autofetchAddCmd = &cobra.Command{
	Use:   "add <workspace-id>",
	Short: "Fetch a workspace on a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, s, err := openScheduler()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.workspaces.Get(cmd.Context(), args[0]); err != nil {
			return err
		}
		every, _ := cmd.Flags().GetString("every")
		if every == "" {
			every = a.store.Get().Git.AutoFetch.Every
		}
		job := &cron.Job{WorkspaceID: args[0], Schedule: every, Enabled: true}
		if err := s.AddJob(job); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added auto-fetch job %s (%s)\n", job.ID, job.Schedule)
		return nil
	},
}

var autofetchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List auto-fetch jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, s, err := openScheduler()
		if err != nil {
			return err
		}
		defer a.Close()

		jobs := s.ListJobs(true)
		if len(jobs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No auto-fetch jobs.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWORKSPACE\tSCHEDULE\tENABLED\tNEXT RUN\tLAST RUN\tRESULT")
		for _, j := range jobs {
			next, last := "-", "-"
			if j.NextRunAt != nil {
				next = j.NextRunAt.Format(time.RFC3339)
			}
			if j.LastRunAt != nil {
				last = j.LastRunAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\t%s\n", j.ID, j.WorkspaceID, j.Schedule, j.Enabled, next, last, j.LastResult)
		}
		return w.Flush()
	},
}

var autofetchRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Delete an auto-fetch job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, s, err := openScheduler()
		if err != nil {
			return err
		}
		defer a.Close()
		return s.RemoveJob(args[0])
	},
}

func setEnabled(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, s, err := openScheduler()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := s.UpdateJob(args[0], nil, &enabled); err != nil {
			return err
		}
		job, _ := s.GetJob(args[0])
		state := "disabled"
		if job.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s %s (%s)\n", job.ID, state, job.Schedule)
		return nil
	}
}

var autofetchEnableCmd = &cobra.Command{
	Use:   "enable <job-id>",
	Short: "Resume an auto-fetch job",
	Args:  cobra.ExactArgs(1),
	RunE:  setEnabled(true),
}

var autofetchDisableCmd = &cobra.Command{
	Use:   "disable <job-id>",
	Short: "Pause an auto-fetch job",
	Args:  cobra.ExactArgs(1),
	RunE:  setEnabled(false),
}

var autofetchRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Fetch now, using the current backend mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := callContext(cmd)
		if err != nil {
			return err
		}
		a, s, err := openScheduler()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := s.RunJob(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	autofetchAddCmd.Flags().String("every", "", `schedule, e.g. "@every 5m" or "0 */10 * * * *" (default from git.autoFetch.every)`)

	autofetchCmd.AddCommand(autofetchAddCmd, autofetchListCmd, autofetchRemoveCmd,
		autofetchEnableCmd, autofetchDisableCmd, autofetchRunCmd)
	rootCmd.AddCommand(autofetchCmd)
}
