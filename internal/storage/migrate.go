package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed migrations
var embeddedMigrations embed.FS

// Migrate applies pending migrations for the repository's dialect.
// An empty dir uses the migrations embedded in the binary.
func (r *SQLRepository) Migrate(ctx context.Context, dir string) error {
	var fsys fs.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embeddedMigrations, path.Join("migrations", r.dialect))
		if err != nil {
			return fmt.Errorf("failed to open embedded migrations: %w", err)
		}
		fsys = sub
	}
	return r.runMigrations(ctx, fsys)
}

func (r *SQLRepository) runMigrations(ctx context.Context, fsys fs.FS) error {
	// Ensure migrations table exists
	if err := r.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := r.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	// Filter and sort .sql files
	var migrations []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".sql") {
			migrations = append(migrations, f.Name())
		}
	}
	sort.Strings(migrations)

	for _, migration := range migrations {
		if applied[migration] {
			slog.Debug("migration already applied", "migration", migration)
			continue
		}

		slog.Info("applying migration", "migration", migration, "dialect", r.dialect)

		content, err := fs.ReadFile(fsys, migration)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", migration, err)
		}

		err = r.withTx(ctx, func(q querier) error {
			if _, err := q.exec(ctx, string(content)); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", migration, err)
			}
			if _, err := q.exec(ctx, `INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2)`, migration, r.now().UTC()); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", migration, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		slog.Info("migration applied successfully", "migration", migration)
	}

	return nil
}

func (r *SQLRepository) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`
	_, err := r.db.exec(ctx, query)
	return err
}

// getAppliedMigrations returns a set of applied migration names
func (r *SQLRepository) getAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}

	return applied, rows.Err()
}
