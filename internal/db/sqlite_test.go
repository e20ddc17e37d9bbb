package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{
			dsn:  "armory.db",
			want: "armory.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate",
		},
		{
			dsn:  "file:armory.db?mode=rwc",
			want: "file:armory.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate",
		},
		{
			dsn:  "file:armory.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate",
			want: "file:armory.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate",
		},
		{
			dsn:  "x.db?_pragma=foreign_keys(0)",
			want: "x.db?_pragma=foreign_keys(0)&_pragma=busy_timeout(5000)&_txlock=immediate",
		},
	}
	for _, tc := range tests {
		if got := SQLiteDSN(tc.dsn); got != tc.want {
			t.Fatalf("dsn=%q got=%q want=%q", tc.dsn, got, tc.want)
		}
	}
}

func TestOpenSQLiteEnablesForeignKeysOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	conn, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "fk.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	held := make([]*sql.Conn, 0, 4)
	defer func() {
		for _, c := range held {
			c.Close()
		}
	}()
	for i := 0; i < 4; i++ {
		c, err := conn.Conn(ctx)
		if err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		held = append(held, c)
		var on int
		if err := c.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&on); err != nil {
			t.Fatalf("conn %d pragma: %v", i, err)
		}
		if on != 1 {
			t.Fatalf("conn %d foreign_keys=%d", i, on)
		}
	}
}
