// Nostrboard daemon - serves the statistics API and keeps relay-wide
// views warm in the background.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/nostrboard/internal/api"
	"github.com/quantumlife/nostrboard/internal/app"
	"github.com/quantumlife/nostrboard/internal/config"
	"github.com/quantumlife/nostrboard/internal/logging"
	"github.com/quantumlife/nostrboard/internal/scheduler"
)

var (
	configPath string
	dataDir    string
	port       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "nostrboard",
		Short:        "Nostrboard daemon - Nostr activity statistics over HTTP",
		RunE:         runDaemon,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default ~/.nostrboard/config.yaml)")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if err := logging.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}

	logging.Info("starting nostrboard (data dir %s)", cfg.DataDir)

	a, err := app.Open(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	logging.WithField("relays", len(a.Pool.Relays())).Info("relay pool ready")

	sched, err := scheduler.NewScheduler(scheduler.DefaultConfig())
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	server := api.New(api.Config{
		Addr:        cfg.Addr(),
		Dashboard:   a.Dashboard,
		Sessions:    a.Sessions,
		Scheduler:   sched,
		Database:    a.DB,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	if err := registerRefreshTasks(sched, cfg, a, server); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		sched.Stop()
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop()
	return server.Stop(shutdownCtx)
}

// registerRefreshTasks keeps the explore feed and relay statistics fresh and
// pushes each refreshed view to websocket clients.
func registerRefreshTasks(sched *scheduler.Scheduler, cfg *config.Config, a *app.App, server *api.Server) error {
	tasks := []struct {
		id, name, spec string
		run            func(ctx context.Context) error
	}{
		{
			id:   "explore",
			name: "Explore feed refresh",
			spec: cfg.Refresh.Explore,
			run: func(ctx context.Context) error {
				if err := a.Dashboard.RefreshExplore(ctx); err != nil {
					return err
				}
				feed, err := a.Dashboard.Explore(ctx)
				if err != nil {
					return err
				}
				server.Broadcast("explore", feed)
				return nil
			},
		},
		{
			id:   "relay-stats",
			name: "Relay statistics refresh",
			spec: cfg.Refresh.RelayStats,
			run: func(ctx context.Context) error {
				if err := a.Dashboard.RefreshRelayStats(ctx); err != nil {
					return err
				}
				rs, err := a.Dashboard.RelayStats(ctx)
				if err != nil {
					return err
				}
				server.Broadcast("relay_stats", rs)
				return nil
			},
		},
	}

	for _, t := range tasks {
		if t.spec == "" {
			logging.WithField("task", t.id).Info("refresh disabled")
			continue
		}
		schedule, err := scheduler.ParseSchedule(t.spec)
		if err != nil {
			return fmt.Errorf("refresh.%s: %w", t.id, err)
		}
		if err := sched.Register(scheduler.ScheduledTask(t.id, t.name, schedule, cfg.Refresh.Timeout, t.run)); err != nil {
			return err
		}
	}
	return nil
}
