package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"schemachain/internal/backend"
)

type MySQLAdapter struct {
	db       *sql.DB
	lockConn *sql.Conn
}

const mysqlLockName = "schemachain:migrate"

func (m *MySQLAdapter) Backend() backend.ID { return backend.MySQL }

func (m *MySQLAdapter) Close() error { return m.db.Close() }

func (m *MySQLAdapter) Ping(ctx context.Context) error { return m.db.PingContext(ctx) }

// TransactionalDDL is false: MySQL commits implicitly around DDL, so
// ledger updates happen right after each step instead of inside its
// transaction.
func (m *MySQLAdapter) TransactionalDDL() bool { return false }

func (m *MySQLAdapter) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return m.db.BeginTx(ctx, nil)
}

func (m *MySQLAdapter) Lock(ctx context.Context) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("lock connection: %w", err)
	}
	var got int
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 10)`, mysqlLockName).Scan(&got); err != nil {
		conn.Close()
		return fmt.Errorf("get lock: %w", err)
	}
	if got != 1 {
		conn.Close()
		return errors.New("could not acquire migration lock")
	}
	m.lockConn = conn
	return nil
}

func (m *MySQLAdapter) Unlock(ctx context.Context) error {
	if m.lockConn == nil {
		return nil
	}
	_, err := m.lockConn.ExecContext(ctx, `SELECT RELEASE_LOCK(?)`, mysqlLockName)
	closeErr := m.lockConn.Close()
	m.lockConn = nil
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return closeErr
}

func (m *MySQLAdapter) ExecScript(ctx context.Context, ex Executor, script string) error {
	return execScript(ctx, ex, script)
}

func (m *MySQLAdapter) EnsureLedger(ctx context.Context, table string) error {
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` (`name` VARCHAR(255) NOT NULL PRIMARY KEY)", table)
	_, err := m.db.ExecContext(ctx, stmt)
	return err
}

func (m *MySQLAdapter) AppliedNames(ctx context.Context, table string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("SELECT `name` FROM `%s`", table))
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	return scanNames(rows)
}

func (m *MySQLAdapter) InsertApplied(ctx context.Context, ex Executor, table, name string) error {
	if ex == nil {
		ex = m.db
	}
	_, err := ex.ExecContext(ctx, fmt.Sprintf("INSERT INTO `%s` (`name`) VALUES (?)", table), name)
	return err
}

func (m *MySQLAdapter) RemoveApplied(ctx context.Context, ex Executor, table, name string) error {
	if ex == nil {
		ex = m.db
	}
	_, err := ex.ExecContext(ctx, fmt.Sprintf("DELETE FROM `%s` WHERE `name` = ?", table), name)
	return err
}
