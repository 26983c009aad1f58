package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/z8n24/codexmonitor-go/internal/commands"
)

var workspaceFlag string

var gitCmd = &cobra.Command{
	Use:   "git",
	Short: "Run git and GitHub operations on a workspace",
	Long: `Run git and GitHub operations on a registered workspace.

The workspace is selected with --workspace or $CODEXMONITOR_WORKSPACE.
Results are printed as JSON; operations without a result print "ok".`,
}

// gitAction is the body of one git subcommand.
type gitAction func(ctx context.Context, c *commands.Commands, workspaceID string, args []string) (any, error)

// unitResult marks actions that have no payload.
type unitResult struct{}

func runGit(action gitAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		workspaceID := workspaceFlag
		if workspaceID == "" {
			workspaceID = os.Getenv("CODEXMONITOR_WORKSPACE")
		}
		if workspaceID == "" {
			return errors.New("no workspace selected: pass --workspace or set CODEXMONITOR_WORKSPACE")
		}
		ctx, err := callContext(cmd)
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := action(ctx, a.commands, workspaceID, args)
		if err != nil {
			return err
		}
		if _, ok := result.(unitResult); ok {
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		}
		if s, ok := result.(string); ok {
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		}
		return printJSON(cmd.OutOrStdout(), result)
	}
}

func unit(err error) (any, error) {
	return unitResult{}, err
}

func parsePR(arg string) (uint64, error) {
	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pull request number %q", arg)
	}
	return n, nil
}

func optionalUint32(cmd *cobra.Command, name string) *uint32 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetUint32(name)
	return &v
}

func optionalString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func optionalBool(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}

func init() {
	gitCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "workspace id")
	rootCmd.AddCommand(gitCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
			return c.GetGitStatus(ctx, ws)
		}),
	}

	initCmd := &cobra.Command{
		Use:   "init <branch>",
		Short: "Initialize a repository in the workspace",
		Args:  cobra.ExactArgs(1),
	}
	initCmd.Flags().Bool("force", false, "initialize even if the directory is not empty")
	initCmd.RunE = runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
		return c.InitGitRepo(ctx, ws, args[0], optionalBool(initCmd, "force"))
	})

	createRepoCmd := &cobra.Command{
		Use:   "create-repo <owner/name> <public|private|internal>",
		Short: "Create a GitHub repository for the workspace",
		Args:  cobra.ExactArgs(2),
	}
	createRepoCmd.Flags().String("branch", "", "rename the current branch before pushing")
	createRepoCmd.RunE = runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
		return c.CreateGitHubRepo(ctx, ws, args[0], args[1], optionalString(createRepoCmd, "branch"))
	})

	stageCmd := &cobra.Command{
		Use:   "stage [path]",
		Short: "Stage a file, or everything when no path is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
			if len(args) == 0 {
				return unit(c.StageGitAll(ctx, ws))
			}
			return unit(c.StageGitFile(ctx, ws, args[0]))
		}),
	}

	unstageCmd := &cobra.Command{
		Use:   "unstage <path>",
		Short: "Unstage a file",
		Args:  cobra.ExactArgs(1),
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
			return unit(c.UnstageGitFile(ctx, ws, args[0]))
		}),
	}

	revertCmd := &cobra.Command{
		Use:   "revert [path]",
		Short: "Discard changes to a file, or all changes when no path is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
			if len(args) == 0 {
				return unit(c.RevertGitAll(ctx, ws))
			}
			return unit(c.RevertGitFile(ctx, ws, args[0]))
		}),
	}

	commitCmd := &cobra.Command{
		Use:   "commit <message>",
		Short: "Commit staged changes",
		Args:  cobra.ExactArgs(1),
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
			return unit(c.CommitGit(ctx, ws, args[0]))
		}),
	}

	pushCmd := &cobra.Command{
		Use:   "push",
		Short: "Push the current branch",
		Args:  cobra.NoArgs,
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
			return unit(c.PushGit(ctx, ws))
		}),
	}

	pullCmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull the current branch",
		Args:  cobra.NoArgs,
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
			return unit(c.PullGit(ctx, ws))
		}),
	}

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and prune remotes",
		Args:  cobra.NoArgs,
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
			return unit(c.FetchGit(ctx, ws))
		}),
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull then push",
		Args:  cobra.NoArgs,
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
			return unit(c.SyncGit(ctx, ws))
		}),
	}

	rootsCmd := &cobra.Command{
		Use:   "roots",
		Short: "List nested git repositories",
		Args:  cobra.NoArgs,
	}
	rootsCmd.Flags().Uint32("depth", 2, "directory depth to scan")
	rootsCmd.RunE = runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
		return c.ListGitRoots(ctx, ws, optionalUint32(rootsCmd, "depth"))
	})

	diffsCmd := &cobra.Command{
		Use:   "diffs",
		Short: "Show per-file diffs of the working tree",
		Args:  cobra.NoArgs,
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
			return c.GetGitDiffs(ctx, ws)
		}),
	}

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent commits and upstream divergence",
		Args:  cobra.NoArgs,
	}
	logCmd.Flags().Uint32("limit", 40, "number of commits")
	logCmd.RunE = runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
		return c.GetGitLog(ctx, ws, optionalUint32(logCmd, "limit"))
	})

	showCmd := &cobra.Command{
		Use:   "show <sha>",
		Short: "Show the per-file diff of a commit",
		Args:  cobra.ExactArgs(1),
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
			return c.GetGitCommitDiff(ctx, ws, args[0])
		}),
	}

	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "Print the remote URL",
		Args:  cobra.NoArgs,
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
			return c.GetGitRemote(ctx, ws)
		}),
	}

	issuesCmd := &cobra.Command{
		Use:   "issues",
		Short: "List open GitHub issues",
		Args:  cobra.NoArgs,
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
			return c.GetGitHubIssues(ctx, ws)
		}),
	}

	prsCmd := &cobra.Command{
		Use:   "prs",
		Short: "List open GitHub pull requests",
		Args:  cobra.NoArgs,
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
			return c.GetGitHubPullRequests(ctx, ws)
		}),
	}

	prDiffCmd := &cobra.Command{
		Use:   "pr-diff <number>",
		Short: "Show the per-file diff of a pull request",
		Args:  cobra.ExactArgs(1),
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
			pr, err := parsePR(args[0])
			if err != nil {
				return nil, err
			}
			return c.GetGitHubPullRequestDiff(ctx, ws, pr)
		}),
	}

	prCommentsCmd := &cobra.Command{
		Use:   "pr-comments <number>",
		Short: "List pull request comments",
		Args:  cobra.ExactArgs(1),
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
			pr, err := parsePR(args[0])
			if err != nil {
				return nil, err
			}
			return c.GetGitHubPullRequestComments(ctx, ws, pr)
		}),
	}

	prCheckoutCmd := &cobra.Command{
		Use:   "pr-checkout <number>",
		Short: "Check out a pull request branch",
		Args:  cobra.ExactArgs(1),
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
			pr, err := parsePR(args[0])
			if err != nil {
				return nil, err
			}
			return unit(c.CheckoutGitHubPullRequest(ctx, ws, pr))
		}),
	}

	branchesCmd := &cobra.Command{
		Use:   "branches",
		Short: "List local branches",
		Args:  cobra.NoArgs,
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
			return c.ListGitBranches(ctx, ws)
		}),
	}

	checkoutCmd := &cobra.Command{
		Use:   "checkout <branch>",
		Short: "Switch branches",
		Args:  cobra.ExactArgs(1),
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
			return unit(c.CheckoutGitBranch(ctx, ws, args[0]))
		}),
	}

	branchCmd := &cobra.Command{
		Use:   "branch <name>",
		Short: "Create and switch to a new branch",
		Args:  cobra.ExactArgs(1),
		RunE: runGit(func(ctx context.Context, c *commands.Commands, ws string, args []string) (any, error) {
			return unit(c.CreateGitBranch(ctx, ws, args[0]))
		}),
	}

	commitMessageCmd := &cobra.Command{
		Use:   "commit-message",
		Short: "Suggest a commit message for the current changes",
		Args:  cobra.NoArgs,
	}
	commitMessageCmd.Flags().String("model", "", "model id used to generate the message")
	commitMessageCmd.RunE = runGit(func(ctx context.Context, c *commands.Commands, ws string, _ []string) (any, error) {
		return c.GenerateCommitMessage(ctx, ws, optionalString(commitMessageCmd, "model"))
	})

	gitCmd.AddCommand(
		statusCmd, initCmd, createRepoCmd, stageCmd, unstageCmd, revertCmd,
		commitCmd, pushCmd, pullCmd, fetchCmd, syncCmd, rootsCmd, diffsCmd,
		logCmd, showCmd, remoteCmd, issuesCmd, prsCmd, prDiffCmd,
		prCommentsCmd, prCheckoutCmd, branchesCmd, checkoutCmd, branchCmd,
		commitMessageCmd,
	)
}
