package db

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	"schemachain/internal/backend"
)

type PostgresAdapter struct {
	db *sql.DB
	// lockConn pins the advisory lock to one session; pg releases the
	// lock when that session ends.
	lockConn *sql.Conn
}

func (p *PostgresAdapter) Backend() backend.ID { return backend.Postgres }

func (p *PostgresAdapter) Close() error { return p.db.Close() }

func (p *PostgresAdapter) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresAdapter) TransactionalDDL() bool { return true }

func (p *PostgresAdapter) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return p.db.BeginTx(ctx, nil)
}

func (p *PostgresAdapter) Lock(ctx context.Context) error {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("lock connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, advisoryKey()); err != nil {
		conn.Close()
		return fmt.Errorf("advisory lock: %w", err)
	}
	p.lockConn = conn
	return nil
}

func (p *PostgresAdapter) Unlock(ctx context.Context) error {
	if p.lockConn == nil {
		return nil
	}
	_, err := p.lockConn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, advisoryKey())
	closeErr := p.lockConn.Close()
	p.lockConn = nil
	if err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return closeErr
}

func (p *PostgresAdapter) ExecScript(ctx context.Context, ex Executor, script string) error {
	return execScript(ctx, ex, script)
}

func (p *PostgresAdapter) EnsureLedger(ctx context.Context, table string) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s ("name" TEXT NOT NULL PRIMARY KEY)`, quoteIdent(table))
	_, err := p.db.ExecContext(ctx, stmt)
	return err
}

func (p *PostgresAdapter) AppliedNames(ctx context.Context, table string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT "name" FROM %s`, quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	return scanNames(rows)
}

func (p *PostgresAdapter) InsertApplied(ctx context.Context, ex Executor, table, name string) error {
	if ex == nil {
		ex = p.db
	}
	_, err := ex.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s ("name") VALUES ($1)`, quoteIdent(table)), name)
	return err
}

func (p *PostgresAdapter) RemoveApplied(ctx context.Context, ex Executor, table, name string) error {
	if ex == nil {
		ex = p.db
	}
	_, err := ex.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE "name" = $1`, quoteIdent(table)), name)
	return err
}

func advisoryKey() int64 {
	h := fnv.New64a()
	h.Write([]byte("schemachain"))
	return int64(h.Sum64())
}
