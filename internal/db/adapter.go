package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"schemachain/internal/backend"
)

// Executor is satisfied by both *sql.DB and *sql.Tx, so ledger writes
// can ride in the same transaction as the DDL they record.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Adapter abstracts backend-specific behavior: connection handling,
// advisory locking, the applied-state ledger, and script execution.
type Adapter interface {
	Backend() backend.ID
	Close() error
	Ping(ctx context.Context) error

	// Lock takes an exclusive advisory lock so only one migration run
	// touches this database at a time. Unlock releases it.
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error

	// TransactionalDDL reports whether DDL commits atomically with
	// the transaction it runs in.
	TransactionalDDL() bool
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// ExecScript runs a multi-statement script on the given executor.
	ExecScript(ctx context.Context, ex Executor, script string) error

	// Ledger operations. The ledger is a single-column table of
	// applied migration names, living in the target database. A nil
	// executor means the adapter's own pool, outside any transaction.
	EnsureLedger(ctx context.Context, table string) error
	AppliedNames(ctx context.Context, table string) ([]string, error)
	InsertApplied(ctx context.Context, ex Executor, table, name string) error
	RemoveApplied(ctx context.Context, ex Executor, table, name string) error
}

// Open builds an adapter for the given backend and DSN.
func Open(id backend.ID, dsn string) (Adapter, error) {
	switch id {
	case backend.Postgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(5)
		return &PostgresAdapter{db: db}, nil
	case backend.SQLite:
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// One connection: migration runs are serial, and in-memory
		// databases are per-connection.
		db.SetMaxOpenConns(1)
		return &SQLiteAdapter{db: db}, nil
	case backend.MySQL:
		// Validate DSN early to provide actionable errors.
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(5)
		return &MySQLAdapter{db: db}, nil
	default:
		return nil, fmt.Errorf("unsupported backend %s", id)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// splitStatements breaks a script into single statements to avoid
// driver differences around multi-statement execution.
func splitStatements(sqlText string) []string {
	var (
		out      []string
		current  strings.Builder
		inSingle bool
		inDouble bool
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			out = append(out, stmt)
		}
		current.Reset()
	}

	for _, r := range sqlText {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case ';':
			if !inSingle && !inDouble {
				flush()
				continue
			}
		}
		current.WriteRune(r)
	}
	flush()
	return out
}

func execScript(ctx context.Context, ex Executor, script string) error {
	for _, stmt := range splitStatements(script) {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}

func scanNames(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
