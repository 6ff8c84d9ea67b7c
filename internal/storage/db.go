package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint
var ErrDuplicate = errors.New("duplicate record")

// rows is the subset of pgx.Rows / *sql.Rows the repository reads through
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

type row interface {
	Scan(dest ...any) error
}

// querier runs statements against a pool, a connection or a transaction.
// Queries are written with $N placeholders.
type querier interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, args ...any) (rows, error)
	queryRow(ctx context.Context, query string, args ...any) row
}

// database owns the connection lifecycle of a querier
type database interface {
	querier
	begin(ctx context.Context) (tx, error)
	ping(ctx context.Context) error
	close()
	isDuplicate(err error) bool
}

type tx interface {
	querier
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

// --- pgx ---

type pgxQueryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxQuerier struct {
	q pgxQueryable
}

func (p pgxQuerier) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := p.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p pgxQuerier) query(ctx context.Context, query string, args ...any) (rows, error) {
	return p.q.Query(ctx, query, args...)
}

func (p pgxQuerier) queryRow(ctx context.Context, query string, args ...any) row {
	return p.q.QueryRow(ctx, query, args...)
}

type pgxDatabase struct {
	pgxQuerier
	pool *pgxpool.Pool
}

func newPgxDatabase(pool *pgxpool.Pool) *pgxDatabase {
	return &pgxDatabase{pgxQuerier: pgxQuerier{q: pool}, pool: pool}
}

func (d *pgxDatabase) begin(ctx context.Context) (tx, error) {
	t, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{pgxQuerier: pgxQuerier{q: t}, tx: t}, nil
}

func (d *pgxDatabase) ping(ctx context.Context) error { return d.pool.Ping(ctx) }

func (d *pgxDatabase) close() { d.pool.Close() }

func (d *pgxDatabase) isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type pgxTx struct {
	pgxQuerier
	tx pgx.Tx
}

func (t *pgxTx) commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxTx) rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// --- database/sql (sqlite) ---

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders into SQLite's ?N form
func rebind(query string) string {
	return placeholderRe.ReplaceAllString(query, "?$1")
}

type sqlQueryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlQuerier struct {
	q sqlQueryable
}

func (s sqlQuerier) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s sqlQuerier) query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := s.q.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

func (s sqlQuerier) queryRow(ctx context.Context, query string, args ...any) row {
	return s.q.QueryRowContext(ctx, rebind(query), args...)
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

type sqlDatabase struct {
	sqlQuerier
	db *sql.DB
}

func newSQLDatabase(db *sql.DB) *sqlDatabase {
	return &sqlDatabase{sqlQuerier: sqlQuerier{q: db}, db: db}
}

func (d *sqlDatabase) begin(ctx context.Context) (tx, error) {
	t, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{sqlQuerier: sqlQuerier{q: t}, tx: t}, nil
}

func (d *sqlDatabase) ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *sqlDatabase) close() { _ = d.db.Close() }

func (d *sqlDatabase) isDuplicate(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
}

type sqlTx struct {
	sqlQuerier
	tx *sql.Tx
}

func (t *sqlTx) commit(context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) rollback(context.Context) error { return t.tx.Rollback() }

// isNoRows matches both driver flavours of "no rows in result set"
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// Helper functions for nullable values

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
