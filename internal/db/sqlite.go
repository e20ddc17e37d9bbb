package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteParams are applied by the driver to every pooled connection, so they
// travel in the DSN rather than as one-off PRAGMA statements.
var sqliteParams = []struct{ key, value, marker string }{
	{key: "_pragma", value: "foreign_keys(1)", marker: "foreign_keys"},
	{key: "_pragma", value: "busy_timeout(5000)", marker: "busy_timeout"},
	{key: "_txlock", value: "immediate", marker: "_txlock"},
}

// SQLiteDSN appends the connection parameters dsn does not already set.
func SQLiteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	lower := strings.ToLower(dsn)
	for _, p := range sqliteParams {
		if strings.Contains(lower, p.marker) {
			continue
		}
		b.WriteString(sep)
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
		sep = "&"
	}
	return b.String()
}

// OpenSQLite opens a modernc sqlite database. In-memory databases are pinned
// to one connection so every caller sees the same data.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", SQLiteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		conn.SetMaxOpenConns(1)
		conn.SetConnMaxLifetime(0)
		conn.SetConnMaxIdleTime(0)
	} else {
		conn.SetMaxOpenConns(8)
		conn.SetConnMaxIdleTime(10 * time.Minute)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return conn, nil
}
