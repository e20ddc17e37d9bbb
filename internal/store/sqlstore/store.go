package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"armory/internal/db"
	"armory/internal/progression"
)

// Store implements progression.Store over database/sql. The same queries run
// on Postgres (pgx stdlib) and SQLite (modernc); Dialect covers the gaps.
type Store struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect Dialect
	log     *slog.Logger
}

func New(conn *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: conn, dialect: dialect, log: logger}
}

// OpenSQLite opens dsn and applies the schema.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	conn, err := db.OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := New(conn, SQLite, logger)
	if err := s.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Open connects to the database named by driver without touching the schema.
// dsn is a Postgres URL or a SQLite DSN.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	d, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	if d == SQLite {
		conn, err := db.OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return New(conn, SQLite, logger), nil
	}
	conn, pool, err := db.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := New(conn, Postgres, logger)
	s.pool = pool
	return s, nil
}

func (s *Store) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) InTx(ctx context.Context, fn func(tx progression.Tx) error) error {
	return s.withTx(ctx, func(sqlTx *sql.Tx) error {
		return fn(&tx{tx: sqlTx, d: s.dialect})
	})
}

// withTx runs fn in a transaction and retries it on serialization failures
// with a doubling backoff.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !s.isRetryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		s.log.Debug("retrying transaction", "attempt", attempt+1, "error", err)
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return progression.ErrTxConflict
}

func (s *Store) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, s.dialect.txOptions())
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// translate turns unique-key violations into progression.ErrConflict and
// leaves everything else untouched, serialization failures included.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", progression.ErrConflict, pgErr.ConstraintName)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %s", progression.ErrConflict, liteErr.Error())
		}
	}
	return err
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
