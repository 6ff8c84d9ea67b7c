package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terra-clan/progression-engine/internal/config"
	"github.com/terra-clan/progression-engine/internal/storage"
)

// version is set at build time via -ldflags
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "progression-engine",
	Short:         "Candidate course progression and unlocking service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and installs the default logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Log))
	return cfg, nil
}

// newLogger builds the structured logger from config
func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "progression-engine")
}

// openStore connects to the configured database and applies migrations
func openStore(ctx context.Context, cfg config.DatabaseConfig) (*storage.SQLRepository, error) {
	var (
		repo *storage.SQLRepository
		err  error
	)

	switch cfg.Driver {
	case config.DriverSQLite:
		repo, err = storage.NewSQLiteRepository(ctx, storage.SQLiteConfig{
			DSN:          cfg.DSN,
			MaxOpenConns: cfg.MaxOpenConns,
		})
	default:
		repo, err = storage.NewPostgresRepository(ctx, storage.PostgresConfig{
			DSN:          cfg.DSN,
			MaxOpenConns: int32(cfg.MaxOpenConns),
			MaxIdleConns: int32(cfg.MaxIdleConns),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Driver, err)
	}

	slog.Info("running database migrations", "driver", cfg.Driver, "dir", cfg.MigrationsDir)
	if err := repo.Migrate(ctx, cfg.MigrationsDir); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}
