package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/z8n24/codexmonitor-go/internal/config"
)

var modeCmd = &cobra.Command{
	Use:   "mode [local|remote]",
	Short: "Show or set the backend mode",
	Long: `Show or set where git commands execute.

In "remote" mode every command is forwarded to the daemon at backend.remoteUrl.
A running daemon or UI watching the config file picks up the change without a
restart.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{config.ModeLocal, config.ModeRemote},
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := config.NewPaths(homeDir)
		store := config.NewStore(configPath(paths))
		cfg, err := store.Load()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Backend.Mode)
			return nil
		}

		url, _ := cmd.Flags().GetString("url")
		token, _ := cmd.Flags().GetString("token")
		next, err := store.Update(func(c *config.Config) {
			c.Backend.Mode = args[0]
			if url != "" {
				c.Backend.RemoteURL = url
			}
			if cmd.Flags().Changed("token") {
				c.Backend.Token = token
			}
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backend mode set to %s\n", next.Backend.Mode)
		if next.Backend.Remote() {
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon: %s\n", next.Backend.RemoteURL)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := config.NewPaths(homeDir)
		store := config.NewStore(configPath(paths))
		cfg, err := store.Load()
		if err != nil {
			return err
		}
		shown := *cfg
		if shown.Backend.Token != "" {
			shown.Backend.Token = "********"
		}
		if shown.Daemon.Token != "" {
			shown.Daemon.Token = "********"
		}
		return printJSON(cmd.OutOrStdout(), shown)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print file locations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := config.NewPaths(homeDir)
		store := config.NewStore(configPath(paths))
		cfg, err := store.Load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Home:       %s\n", paths.Root)
		fmt.Fprintf(out, "Config:     %s\n", store.Path())
		fmt.Fprintf(out, "Workspaces: %s\n", paths.WorkspacesDB(cfg))
		fmt.Fprintf(out, "Auto-fetch: %s\n", paths.AutoFetchFile())
		fmt.Fprintf(out, "CODEX_HOME: %s\n", config.ResolveCodexHome(cfg))
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the connection to the configured daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if a.transport == nil {
			return errors.New("backend.remoteUrl is not set; use `codexmonitor mode remote --url ...`")
		}

		start := time.Now()
		if err := a.transport.Connect(cmd.Context()); err != nil {
			return err
		}
		hello := a.transport.Hello()
		if hello == nil {
			return errors.New("connection closed during handshake")
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Daemon:   %s (version %s, protocol %d)\n", a.store.Get().Backend.RemoteURL, hello.Server.Version, hello.Protocol)
		if hello.Server.Host != "" {
			fmt.Fprintf(out, "Host:     %s\n", hello.Server.Host)
		}
		fmt.Fprintf(out, "Methods:  %d\n", len(hello.Features.Methods))
		fmt.Fprintf(out, "Latency:  %s\n", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func configPath(paths *config.Paths) string {
	if cfgFile != "" {
		return cfgFile
	}
	return paths.ConfigFile()
}

func init() {
	modeCmd.Flags().String("url", "", "daemon WebSocket URL, e.g. ws://host:4732/ws")
	modeCmd.Flags().String("token", "", "daemon token")

	configCmd.AddCommand(configShowCmd, configPathCmd)
	rootCmd.AddCommand(modeCmd, configCmd, pingCmd)
}
