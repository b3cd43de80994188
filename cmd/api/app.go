package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/driving-alerts/internal/config"
	"github.com/PratikDhanave/driving-alerts/internal/engine"
	"github.com/PratikDhanave/driving-alerts/internal/logging"
	"github.com/PratikDhanave/driving-alerts/internal/rules"
	"github.com/PratikDhanave/driving-alerts/internal/store"
)

// app is the wiring shared by every subcommand.
type app struct {
	cfg    config.Config
	store  *store.BreakerStore
	engine *engine.Engine
}

// loadConfig reads configuration and initializes logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, nil
}

// newApp connects the configured store and builds the rule engine on top.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	backend, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st := store.NewBreakerStore(backend, store.BreakerConfig{
		Name:                cfg.Storage.Backend,
		ConsecutiveFailures: cfg.Breaker.Failures,
		Cooldown:            cfg.Breaker.Cooldown,
	})

	catalog, err := rules.NewCatalog(cfg.Rules)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("rule catalog: %w", err)
	}

	eng := engine.New(catalog, st, st, engine.Config{
		Window:       cfg.Engine.Window,
		StoreTimeout: cfg.Engine.StoreTimeout,
	})

	return &app{cfg: cfg, store: st, engine: eng}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	log := logging.WithComponent("storage")

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		// Ensure required tables/indexes exist so a fresh database works on first boot.
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		return db, nil

	case config.BackendBolt:
		db, err := store.NewBoltStore(cfg.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Storage.BoltPath).Msg("opened bolt store")
		return db, nil

	case config.BackendMemory:
		log.Warn().Msg("using in-memory store; events and alerts are lost on restart")
		return store.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
