package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/z8n24/codexmonitor-go/internal/commands"
	"github.com/z8n24/codexmonitor-go/internal/config"
	"github.com/z8n24/codexmonitor-go/internal/gateway"
	"github.com/z8n24/codexmonitor-go/internal/gateway/protocol"
	"github.com/z8n24/codexmonitor-go/internal/gitcore"
	"github.com/z8n24/codexmonitor-go/internal/remote"
	"github.com/z8n24/codexmonitor-go/internal/workspace"
)

var (
	cfgFile  string
	homeDir  string
	verbose  bool
	modeFlag string

	cliVersion = "dev"
	cliCommit  = "unknown"
	cliDate    = "unknown"
)

// SetVersionInfo is called from main with ldflags values.
func SetVersionInfo(version, commit, date string) {
	cliVersion = version
	cliCommit = commit
	cliDate = date
}

var rootCmd = &cobra.Command{
	Use:   "codexmonitor",
	Short: "CodexMonitor - git workspace commands, local or through a daemon",
	Long: `CodexMonitor runs git and GitHub operations on registered workspaces.
Each command executes in-process, or is forwarded to a codexmonitor daemon
when the backend mode is "remote".`,
	SilenceUsage: true,
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.codexmonitor/config.json)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "app home directory (default $CODEXMONITOR_HOME or ~/.codexmonitor)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "override backend mode for this invocation (local|remote)")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// app wires the collaborators one invocation needs.
type app struct {
	paths      *config.Paths
	store      *config.Store
	workspaces *workspace.Store
	service    *gitcore.Service
	transport  *remote.Client
	commands   *commands.Commands
}

func openApp() (*app, error) {
	paths := config.NewPaths(homeDir)
	store := config.NewStore(configPath(paths))
	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}

	ws, err := workspace.Open(paths.WorkspacesDB(cfg))
	if err != nil {
		return nil, err
	}
	service := gitcore.NewService(ws, config.ResolveCodexHome(cfg))
	service.SetDefaults(gitcore.Defaults{LogLimit: cfg.Git.LogLimit, RootsDepth: cfg.Git.RootsDepth})
	a := &app{
		paths:      paths,
		store:      store,
		workspaces: ws,
		service:    service,
	}
	if cfg.Backend.RemoteURL != "" {
		a.transport = remote.New(remote.Options{
			URL:         cfg.Backend.RemoteURL,
			Token:       cfg.Backend.Token,
			DialTimeout: cfg.Backend.DialTimeout(),
			Version:     cliVersion,
		})
	}

	var transport commands.Transport
	if a.transport != nil {
		transport = a.transport
	}
	a.commands = commands.New(a.service, transport, commands.ConfigMode(store))
	return a, nil
}

func (a *app) Close() {
	if a.transport != nil {
		a.transport.Close()
	}
	a.workspaces.Close()
}

// callContext returns cmd's context with the --mode override applied.
func callContext(cmd *cobra.Command) (context.Context, error) {
	ctx := cmd.Context()
	switch modeFlag {
	case "":
		return ctx, nil
	case config.ModeLocal:
		return commands.WithMode(ctx, commands.ModeLocal), nil
	case config.ModeRemote:
		return commands.WithMode(ctx, commands.ModeRemote), nil
	default:
		return nil, fmt.Errorf("--mode must be %q or %q", config.ModeLocal, config.ModeRemote)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "codexmonitor version %s\n", cliVersion)
		fmt.Fprintf(out, "Daemon version: %s\n", gateway.Version)
		fmt.Fprintf(out, "Protocol version: %d\n", protocol.ProtocolVersion)
		if cliCommit != "unknown" {
			fmt.Fprintf(out, "Commit: %s\n", cliCommit)
		}
		if cliDate != "unknown" {
			fmt.Fprintf(out, "Built: %s\n", cliDate)
		}
	},
}
