package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteConfig holds SQLite connection configuration
type SQLiteConfig struct {
	// DSN is a file path or ":memory:"
	DSN          string
	MaxOpenConns int
}

// NewSQLiteRepository opens a SQLite database for local runs and tests
func NewSQLiteRepository(ctx context.Context, cfg SQLiteConfig) (*SQLRepository, error) {
	db, err := sql.Open("sqlite", withPragmaParams(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// In-memory databases live per connection.
	if cfg.DSN == ":memory:" || cfg.MaxOpenConns <= 0 {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := applyPragmas(ctx, db, cfg.DSN == ":memory:"); err != nil {
		db.Close()
		return nil, err
	}

	return newSQLRepository(newSQLDatabase(db), "sqlite"), nil
}

func applyPragmas(ctx context.Context, db *sql.DB, inMemory bool) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if !inMemory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// withPragmaParams carries the pragmas on the DSN so every pooled
// connection gets them, not only the first one.
func withPragmaParams(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
