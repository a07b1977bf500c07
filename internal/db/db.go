// Package db manages the embedded SQLite database and its schema.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/juba-labs/hornwatch/internal/config"
)

// Open opens the SQLite database file and brings the schema up to date.
// WAL journaling and the busy timeout come from the DSN pragmas; the
// connection pool is pinned to a single connection because the store has
// exactly one writer.
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	slog.Info("database opened", "path", cfg.Path)

	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: migrations: %w", err)
	}

	return conn, nil
}

// migrate creates the base tables, then applies additive column migrations.
// Schema version is implicit in column presence: a column already there is
// skipped, so the same binary can open databases created by any prior
// release.
func migrate(ctx context.Context, conn *sql.DB) error {
	for _, ddl := range baseSchema {
		if _, err := conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	applied := 0
	for _, m := range columnMigrations {
		ok, err := hasColumn(ctx, conn, m.table, m.column)
		if err != nil {
			return fmt.Errorf("check column %s.%s: %w", m.table, m.column, err)
		}
		if ok {
			continue
		}
		slog.Info("adding column", "table", m.table, "column", m.column)
		if _, err := conn.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("add column %s.%s: %w", m.table, m.column, err)
		}
		applied++
	}

	for _, ddl := range indexSchema {
		if _, err := conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	slog.Info("migrations complete", "added_columns", applied)
	return nil
}

func hasColumn(ctx context.Context, conn *sql.DB, table, column string) (bool, error) {
	var n int
	err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
