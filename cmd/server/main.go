package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brightsteps/internal/catalog"
	"brightsteps/internal/config"
	"brightsteps/internal/database"
	"brightsteps/internal/handlers"
	"brightsteps/internal/logger"
	"brightsteps/internal/metrics"
	"brightsteps/internal/progress"
	"brightsteps/internal/ratelimit"
	"brightsteps/internal/repository"
	"brightsteps/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close()

	log.Info("Database connection established", "type", cfg.DatabaseType)

	// Run migrations
	applied, err := db.RunMigrations(ctx, cfg.MigrationsPath)
	if err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}
	log.Info("Migrations completed successfully", "applied", applied)

	seedCatalog(ctx, db, cfg.CatalogPath, log)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	notifications, err := service.NewNotificationService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, log)
	if err != nil {
		log.Fatal("Failed to initialize notification service", "error", err)
	}
	if !notifications.IsEnabled() {
		log.Info("Reward notifications disabled, SES_FROM_EMAIL is not set")
	}

	opts := progress.Options{
		Location:    cfg.Location,
		WeekStart:   cfg.WeekStart,
		TrendWindow: cfg.TrendWindow,
	}

	// Initialize repositories and services
	progressService := service.NewProgressService(
		repository.NewChildRepository(db),
		repository.NewCompletionRepository(db),
		repository.NewCatalogRepository(db),
		repository.NewTraitRepository(db),
		notifications,
		opts,
		log,
		m,
	)

	limiter := ratelimit.New(cfg.RateLimitPerMinute, time.Minute)
	go limiter.Run(ctx, time.Hour)

	// Initialize handlers
	api := handlers.NewAPIHandler(progressService, db, log)
	handler := handlers.NewRouter(api, handlers.NewMiddleware(log, m, limiter), m)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
}

// seedCatalog upserts the bundled challenge catalog when the file exists
func seedCatalog(ctx context.Context, db *database.DB, path string, log *logger.Logger) {
	if _, err := os.Stat(path); err != nil {
		log.Warn("Catalog file not found, skipping seed", "path", path)
		return
	}
	c, err := catalog.LoadFile(path)
	if err != nil {
		log.Fatal("Failed to load catalog", "path", path, "error", err)
	}
	stats, err := catalog.Seed(ctx, db, c)
	if err != nil {
		log.Fatal("Failed to seed catalog", "error", err)
	}
	log.Info("Catalog seeded",
		"pillars", stats.Pillars,
		"traits", stats.Traits,
		"challenges", stats.Challenges,
		"rewards", stats.Rewards)
}
