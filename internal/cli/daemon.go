package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"

	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/z8n24/codexmonitor-go/internal/commands"
	"github.com/z8n24/codexmonitor-go/internal/config"
	"github.com/z8n24/codexmonitor-go/internal/cron"
	"github.com/z8n24/codexmonitor-go/internal/gateway"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the codexmonitor daemon",
	Long: `Run the daemon that executes git commands for remote clients.

Clients connect over WebSocket at /ws. One-shot calls can be POSTed to
/api/rpc as {"method": ..., "params": ...}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := *a.store.Get()
		if cmd.Flags().Changed("port") {
			cfg.Daemon.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Daemon.Bind, _ = cmd.Flags().GetString("bind")
		}
		if cmd.Flags().Changed("token") {
			cfg.Daemon.Token, _ = cmd.Flags().GetString("token")
		}
		if cfg.Daemon.Token == "" && !isLoopback(cfg.Daemon.Bind) {
			log.Warn().Str("bind", cfg.Daemon.Bind).Msg("Daemon listens beyond loopback without a token")
		}

		server := gateway.NewServer(cfg.Daemon, gateway.NewDispatcher(a.service))

		// The daemon always fetches in-process.
		local := commands.New(a.service, nil, commands.ModeFunc(func() commands.Mode { return commands.ModeLocal }))
		scheduler := cron.NewScheduler(a.paths.AutoFetchFile(), local)
		if cfg.Git.AutoFetch.Enabled {
			ensureAutoFetchJobs(cmd.Context(), a, scheduler, cfg.Git.AutoFetch.Every)
		}
		server.AddStatus("autoFetch", func() any { return scheduler.Status() })

		if showQR, _ := cmd.Flags().GetBool("qr"); showQR {
			printConnectQR(cmd.OutOrStdout(), cfg.Daemon)
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			return server.Run(ctx)
		})
		g.Go(func() error {
			scheduler.Start()
			<-ctx.Done()
			scheduler.Stop()
			return nil
		})
		g.Go(func() error {
			a.store.OnChange(func(c *config.Config) {
				if c.Daemon.Token != cfg.Daemon.Token || c.Daemon.Addr() != cfg.Daemon.Addr() {
					log.Warn().Msg("Daemon address or token changed; restart the daemon to apply")
				}
			})
			if err := a.store.Watch(ctx.Done()); err != nil {
				log.Warn().Err(err).Msg("Config watcher unavailable")
			}
			return nil
		})

		err = g.Wait()
		log.Info().Msg("Daemon stopped")
		return err
	},
}

// ensureAutoFetchJobs adds a job for every workspace that has none.
func ensureAutoFetchJobs(ctx context.Context, a *app, s *cron.Scheduler, every string) {
	entries, err := a.workspaces.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot list workspaces for auto-fetch")
		return
	}
	covered := make(map[string]bool)
	for _, j := range s.ListJobs(true) {
		covered[j.WorkspaceID] = true
	}
	for _, e := range entries {
		if covered[e.ID] {
			continue
		}
		if err := s.AddJob(&cron.Job{WorkspaceID: e.ID, Schedule: every, Enabled: true}); err != nil {
			log.Warn().Err(err).Str("workspaceId", e.ID).Msg("Cannot add auto-fetch job")
		}
	}
}

// connectURI is what a companion client scans to pair with this daemon.
func connectURI(d config.DaemonConfig) string {
	host := d.Bind
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = outboundIP()
	}
	ws := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(d.Port)), Path: "/ws"}
	q := url.Values{}
	q.Set("url", ws.String())
	if d.Token != "" {
		q.Set("token", d.Token)
	}
	return "codexmonitor://connect?" + q.Encode()
}

func printConnectQR(w io.Writer, d config.DaemonConfig) {
	uri := connectURI(d)
	fmt.Fprintln(w, "Scan to connect:")
	qrterminal.GenerateHalfBlock(uri, qrterminal.L, w)
	fmt.Fprintln(w, uri)
}

func outboundIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func init() {
	daemonCmd.Flags().IntP("port", "p", 0, "listen port (default from daemon.port)")
	daemonCmd.Flags().String("bind", "", "bind address (default from daemon.bind)")
	daemonCmd.Flags().String("token", "", "require this token from clients")
	daemonCmd.Flags().Bool("qr", false, "print a QR code with the connect URL")
	rootCmd.AddCommand(daemonCmd)
}
