package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/terra-clan/progression-engine/internal/catalog"
	"github.com/terra-clan/progression-engine/internal/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		repo, err := openStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer repo.Close()

		slog.Info("migrations applied")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [dir]",
	Short: "Load course and role YAML files into the database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dir := cfg.Catalog.Dir
		if len(args) == 1 {
			dir = args[0]
		}

		loader := catalog.NewLoader(slog.Default())
		if err := loader.LoadFromDir(dir); err != nil {
			return err
		}

		repo, err := openStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer repo.Close()

		res, err := loader.Seed(cmd.Context(), repo)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "courses created: %d, skipped: %d, roles: %d\n",
			res.CoursesCreated, res.CoursesSkipped, res.RolesUpserted)
		return nil
	},
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage API clients",
}

var clientCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an API client and print its key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		perms, _ := cmd.Flags().GetStringSlice("permission")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		repo, err := openStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer repo.Close()

		client, err := createClient(cmd.Context(), repo, args[0], perms)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "client: %s\napi key: %s\npermissions: %v\n",
			client.Name, client.ApiKey, client.Permissions)
		return nil
	},
}

func init() {
	clientCreateCmd.Flags().StringSlice("permission", []string{
		models.PermCoursesRead,
		models.PermProgressWrite,
	}, "permission to grant (repeatable)")
	clientCmd.AddCommand(clientCreateCmd)
}

type clientCreator interface {
	CreateClient(ctx context.Context, c *models.ApiClient) error
}

// createClient provisions an active client with a random "pk_" key
func createClient(ctx context.Context, store clientCreator, name string, perms []string) (*models.ApiClient, error) {
	client := &models.ApiClient{
		ID:          uuid.New().String(),
		Name:        name,
		ApiKey:      newAPIKey(),
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		Permissions: perms,
	}
	if err := store.CreateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func newAPIKey() string {
	return "pk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
