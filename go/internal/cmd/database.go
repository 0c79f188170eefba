package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/arjunamarcelino/velobid/go/internal/dbconfig"
	"github.com/arjunamarcelino/velobid/go/internal/snapshotstore/postgres"
)

func setupDatabase(ctx context.Context, cfg dbconfig.Config) (*postgres.Store, func(), error) {
	pool, err := postgres.NewPool(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	store := postgres.New(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info().
		Str("user", cfg.User).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return store, pool.Close, nil
}
