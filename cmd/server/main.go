package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erenuysaldev/Erotify/internal/app"
	"github.com/erenuysaldev/Erotify/internal/catalog"
	"github.com/erenuysaldev/Erotify/internal/config"
	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/credentials"
	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/gateway"
	httpapp "github.com/erenuysaldev/Erotify/internal/http"
	"github.com/erenuysaldev/Erotify/internal/logger"
	"github.com/erenuysaldev/Erotify/internal/metrics"
	"github.com/erenuysaldev/Erotify/internal/reconciler"
	"github.com/erenuysaldev/Erotify/internal/registry"
	"github.com/erenuysaldev/Erotify/internal/spotify"
	"github.com/erenuysaldev/Erotify/internal/storage"
	"github.com/erenuysaldev/Erotify/internal/store"
	"github.com/erenuysaldev/Erotify/internal/worker"
)

func main() {
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	if err := storage.EnsureDir(cfg.OutputDir); err != nil {
		appLogger.Error("Failed to create output directory", "dir", cfg.OutputDir, "error", err)
		os.Exit(1)
	}

	// Initialize DB
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if purged, err := db.PurgeExpiredCache(); err != nil {
		appLogger.Warn("Failed to purge expired cache entries", "error", err)
	} else if purged > 0 {
		appLogger.Info("Purged expired cache entries", "count", purged)
	}

	// Env credentials are the defaults; a pair saved at runtime wins.
	settingsRepo := store.NewSettingsRepo(db)
	credStore, err := credentials.NewStore(domain.Credentials{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
	}, settingsRepo, appLogger)
	if err != nil {
		appLogger.Error("Failed to load credentials", "error", err)
		os.Exit(1)
	}

	spotifyClient := spotify.NewClient(cfg.SpotifyAuthURL, cfg.SpotifyAPIURL, credStore, appLogger)
	searcher := spotify.NewCachedSearcher(spotifyClient, db, cfg.SearchCacheTTL)

	runner := gateway.NewRunner(appLogger,
		gateway.WithBinary(cfg.SpotDLPath),
		gateway.WithTimeout(cfg.DownloadTimeout),
	)
	if !runner.Available() {
		appLogger.Warn("Download tool not found, downloads will fail until it is installed", "binary", runner.Binary())
	}

	// Initialize Worker Pool
	pool := worker.NewPool(cfg.Workers, appLogger)
	pool.Start()
	if err := metrics.RegisterPoolGauges(pool.Pending, pool.Active); err != nil {
		appLogger.Warn("Failed to register pool metrics", "error", err)
	}

	// Initialize Services
	jobs := registry.New()
	forwarder := catalog.NewForwarder(cfg.CatalogURL, cfg.CatalogTimeout, appLogger)
	jobService := app.NewJobService(app.Deps{
		Registry:    jobs,
		Pool:        pool,
		Downloader:  runner,
		Scanner:     reconciler.New(appLogger),
		Forwarder:   forwarder,
		Credentials: credStore,
		Logger:      appLogger,
		OutputDir:   cfg.OutputDir,
		ScanWindow:  cfg.ScanWindow,
	})

	// Routes
	h := httpapp.NewHandler(jobService, searcher, credStore, spotifyClient, runner, appLogger)
	r := httpapp.NewRouter(h, cfg.CORSOrigins)

	// Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr, "output_dir", cfg.OutputDir, "workers", cfg.Workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}
	if err := jobService.Shutdown(ctx); err != nil {
		appLogger.Error("Worker pool did not stop in time", "error", err)
	}

	stats := forwarder.Stats()
	counts := jobs.Counts()
	appLogger.Info("Server exiting",
		"completed", counts[domain.JobStatusCompleted],
		"failed", counts[domain.JobStatusFailed],
		"cancelled", counts[domain.JobStatusCancelled],
		"catalog_forwarded", stats.Forwarded,
		"catalog_failed", stats.Failed,
	)
}
