package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/database"
	"github.com/iliyamo/flight-seat-reservation/internal/handler"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// backend is a store that can be loaded from a seed file.
type backend interface {
	repository.Store
	Apply(ctx context.Context, seed *repository.Seed, now time.Time) error
}

type openedStore struct {
	store  backend
	checks map[string]handler.Check
	close  func()
}

// openStore opens the configured store backend and applies the seed file
// when one is configured.
func openStore(ctx context.Context, cfg config.Config, clock clockwork.Clock, log *slog.Logger) (*openedStore, error) {
	out := &openedStore{checks: map[string]handler.Check{}, close: func() {}}

	switch cfg.Store {
	case config.BackendMemory:
		log.Warn("using the in-memory store; state is lost on restart and not shared between instances")
		out.store = repository.NewMemoryStore()
	case config.BackendMySQL:
		db, err := database.Open(database.Options{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort,
			Name: cfg.DBName, MaxConns: cfg.DBMaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		if cfg.DBAutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		out.store = repository.NewSQLStore(db)
		out.checks["mysql"] = db.PingContext
		out.close = func() { _ = db.Close() }
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}

	if cfg.SeedFile != "" {
		seed, err := repository.LoadSeedFile(cfg.SeedFile)
		if err == nil {
			err = out.store.Apply(ctx, seed, clock.Now().UTC())
		}
		if err != nil {
			out.close()
			return nil, fmt.Errorf("seed: %w", err)
		}
		log.Info("seed applied", "file", cfg.SeedFile, "flights", len(seed.Flights), "routes", len(seed.Routes))
	}
	return out, nil
}
