package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/progression-engine/internal/api"
	"github.com/terra-clan/progression-engine/internal/catalog"
	"github.com/terra-clan/progression-engine/internal/events"
	"github.com/terra-clan/progression-engine/internal/health"
	"github.com/terra-clan/progression-engine/internal/matching"
	"github.com/terra-clan/progression-engine/internal/progression"
	"github.com/terra-clan/progression-engine/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	logger.Info("starting progression-engine",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"driver", cfg.Database.Driver,
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
	})
	if err != nil {
		// Tracing is optional; keep serving without it
		logger.Warn("failed to set up tracing", "error", err)
	}

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	defer initCancel()

	repo, err := openStore(initCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.Info("database connected successfully")

	if cfg.Catalog.Seed {
		loader := catalog.NewLoader(logger)
		if err := loader.LoadFromDir(cfg.Catalog.Dir); err != nil {
			logger.Warn("failed to load catalog from dir", "dir", cfg.Catalog.Dir, "error", err)
		} else if _, err := loader.Seed(initCtx, repo); err != nil {
			return err
		}
	}

	registry := health.NewRegistry(2 * time.Second)
	registry.Register("database", repo)

	var bus events.Bus
	if cfg.Redis.Enabled {
		redisBus, err := events.NewRedisBus(initCtx, events.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return err
		}
		registry.Register("redis", redisBus)
		bus = redisBus
	} else {
		bus = events.NewMemoryBus()
	}
	defer bus.Close()

	matcher := matching.NewService(repo, logger)

	recorder := progression.NewRecorder(repo, repo, bus, logger)
	recorder.SetCompletionObserver(matcher)
	assembler := progression.NewAssembler(repo, repo, logger)

	// Create context with cancellation
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Matching.RefreshInterval > 0 {
		matching.NewRefresher(matcher, cfg.Matching.RefreshInterval).Start(runCtx)
	}

	server := api.NewServer(cfg.Server, api.Deps{
		Courses:  assembler,
		Progress: recorder,
		Matches:  matcher,
		Events:   bus,
		Clients:  repo,
		Health:   registry,
		Logger:   logger,
	})
	httpServer := server.HTTPServer()

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		return err
	}

	logger.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
	}

	logger.Info("progression-engine stopped")
	return nil
}
