package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/driving-alerts/internal/httpserver"
	"github.com/PratikDhanave/driving-alerts/internal/logging"
	"github.com/PratikDhanave/driving-alerts/internal/scheduler"
	"github.com/PratikDhanave/driving-alerts/internal/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the evaluation scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := logging.WithComponent("main")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sched := scheduler.New(a.engine, scheduler.Config{
			Interval:      cfg.Engine.Interval,
			MaxConcurrent: cfg.Engine.MaxConcurrent,
		})
		// Runs after the tree has stopped, so in-flight event cycles finish
		// before the store is closed.
		defer sched.Stop()

		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           httpserver.NewRouter(a.store, sched, httpserver.Options{}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		tree := supervisor.NewTree(supervisor.TreeConfig{})
		tree.AddEngineService(sched)
		tree.AddAPIService(httpserver.NewService(server, 10*time.Second))

		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("backend", cfg.Storage.Backend).
			Dur("window", a.engine.Window()).
			Dur("interval", cfg.Engine.Interval).
			Msg("server started")

		if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info().Msg("shutdown complete")
		return nil
	},
}
