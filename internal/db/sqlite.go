package db

import (
	"context"
	"database/sql"
	"fmt"

	"schemachain/internal/backend"
)

type SQLiteAdapter struct {
	db *sql.DB
}

func (s *SQLiteAdapter) Backend() backend.ID { return backend.SQLite }

func (s *SQLiteAdapter) Close() error { return s.db.Close() }

func (s *SQLiteAdapter) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteAdapter) TransactionalDDL() bool { return true }

func (s *SQLiteAdapter) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Lock is a no-op: SQLite's own file lock serializes writers, and the
// adapter holds a single connection anyway.
func (s *SQLiteAdapter) Lock(ctx context.Context) error { return nil }

func (s *SQLiteAdapter) Unlock(ctx context.Context) error { return nil }

func (s *SQLiteAdapter) ExecScript(ctx context.Context, ex Executor, script string) error {
	return execScript(ctx, ex, script)
}

func (s *SQLiteAdapter) EnsureLedger(ctx context.Context, table string) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s ("name" TEXT NOT NULL PRIMARY KEY) STRICT`, quoteIdent(table))
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *SQLiteAdapter) AppliedNames(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT "name" FROM %s ORDER BY rowid`, quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	return scanNames(rows)
}

func (s *SQLiteAdapter) InsertApplied(ctx context.Context, ex Executor, table, name string) error {
	if ex == nil {
		ex = s.db
	}
	_, err := ex.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s ("name") VALUES (?)`, quoteIdent(table)), name)
	return err
}

func (s *SQLiteAdapter) RemoveApplied(ctx context.Context, ex Executor, table, name string) error {
	if ex == nil {
		ex = s.db
	}
	_, err := ex.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE "name" = ?`, quoteIdent(table)), name)
	return err
}
