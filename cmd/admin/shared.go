package main

import (
	"context"
	"fmt"

	"brightsteps/internal/config"
	"brightsteps/internal/database"
	"brightsteps/internal/logger"
)

type env struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB
}

// openEnv loads config, opens the database and brings the schema up to date
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if _, err := db.RunMigrations(ctx, cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) Close() {
	e.db.Close()
	e.log.Sync()
}
