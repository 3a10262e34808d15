// Package engine applies and reverts migration chains against a
// target database, one transaction per step, keeping the applied-state
// ledger in lockstep with what actually committed.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"schemachain/internal/db"
	"schemachain/internal/migration"
)

type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Engine drives one migration set against target databases.
type Engine struct {
	set         *migration.Set
	ledgerTable string
	logger      Logger
}

// DefaultLedgerTable is the applied-state ledger table name used when
// the configuration does not override it.
const DefaultLedgerTable = "schemachain_migrations"

func New(set *migration.Set, ledgerTable string, logger Logger) *Engine {
	if ledgerTable == "" {
		ledgerTable = DefaultLedgerTable
	}
	return &Engine{set: set, ledgerTable: ledgerTable, logger: logger}
}

// Set exposes the engine's migration set for read-only listing.
func (e *Engine) Set() *migration.Set { return e.set }

// Step records one migration applied or reverted during a run.
type Step struct {
	Name      string              `json:"name"`
	Direction migration.Direction `json:"direction"`
}

// Result summarizes a migration run.
type Result struct {
	RunID  uuid.UUID `json:"run_id"`
	Target string    `json:"target"`
	Steps  []Step    `json:"steps"`
}

// ExecError reports that the backend failed running one step's text.
// Steps already applied in the same run stay applied; the ledger
// reflects exactly what committed, so a retry resumes at this step.
type ExecError struct {
	Migration string
	Direction migration.Direction
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("migration %s %s failed: %v", e.Migration, e.Direction, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Migrate moves the target database to the named migration, forward or
// backward as needed. An empty target means the set's latest. All
// chain and format errors surface before any database mutation; an
// execution failure stops the run with earlier steps committed.
func (e *Engine) Migrate(ctx context.Context, adapter db.Adapter, target string) (*Result, error) {
	if target == "" {
		latest, err := e.set.LatestRecord()
		if err != nil {
			return nil, err
		}
		target = latest.Name
	} else if _, err := e.set.Get(target); err != nil {
		return nil, err
	}

	if err := adapter.EnsureLedger(ctx, e.ledgerTable); err != nil {
		return nil, fmt.Errorf("ensure ledger: %w", err)
	}
	if err := adapter.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := adapter.Unlock(ctx); err != nil {
			e.logger.Error("release migration lock", "error", err)
		}
	}()

	position, err := e.position(ctx, adapter)
	if err != nil {
		return nil, err
	}
	records, dir, err := e.set.Path(position, target)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: uuid.New(), Target: target}
	e.logger.Info("migration run starting",
		"run_id", result.RunID,
		"backend", adapter.Backend(),
		"position", position,
		"target", target,
		"steps", len(records),
		"direction", dir,
	)

	for _, rec := range records {
		if err := e.applyStep(ctx, adapter, rec, dir); err != nil {
			e.logger.Error("migration step failed",
				"run_id", result.RunID, "migration", rec.Name, "direction", dir, "error", err)
			return result, err
		}
		result.Steps = append(result.Steps, Step{Name: rec.Name, Direction: dir})
		e.logger.Info("migration step applied",
			"run_id", result.RunID, "migration", rec.Name, "direction", dir)
	}
	return result, nil
}

// applyStep runs one migration in its own transaction. The ledger
// update joins that transaction when the backend's DDL is
// transactional; otherwise it follows immediately after commit, which
// leaves the narrow crash window documented on the adapter.
func (e *Engine) applyStep(ctx context.Context, adapter db.Adapter, rec *migration.Record, dir migration.Direction) error {
	text, err := rec.SQL(dir, adapter.Backend())
	if err != nil {
		return err
	}

	tx, err := adapter.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := adapter.ExecScript(ctx, tx, text); err != nil {
		return &ExecError{Migration: rec.Name, Direction: dir, Err: err}
	}

	if adapter.TransactionalDDL() {
		if err := e.updateLedger(ctx, adapter, tx, rec.Name, dir); err != nil {
			return &ExecError{Migration: rec.Name, Direction: dir, Err: err}
		}
		if err := tx.Commit(); err != nil {
			return &ExecError{Migration: rec.Name, Direction: dir, Err: err}
		}
		return nil
	}

	if err := tx.Commit(); err != nil {
		return &ExecError{Migration: rec.Name, Direction: dir, Err: err}
	}
	if err := e.updateLedger(ctx, adapter, nil, rec.Name, dir); err != nil {
		return fmt.Errorf("migration %s committed but ledger update failed, reconcile manually: %w", rec.Name, err)
	}
	return nil
}

func (e *Engine) updateLedger(ctx context.Context, adapter db.Adapter, ex db.Executor, name string, dir migration.Direction) error {
	if dir == migration.Up {
		return adapter.InsertApplied(ctx, ex, e.ledgerTable, name)
	}
	return adapter.RemoveApplied(ctx, ex, e.ledgerTable, name)
}

// position resolves the ledger's most recently applied migration: the
// applied name deepest in the chain. Ledger entries unknown to the set
// are ignored with a warning.
func (e *Engine) position(ctx context.Context, adapter db.Adapter) (string, error) {
	applied, err := adapter.AppliedNames(ctx, e.ledgerTable)
	if err != nil {
		return "", err
	}
	best := ""
	bestDepth := 0
	for _, name := range applied {
		if _, ok := e.set.Migrations[name]; !ok {
			e.logger.Info("ledger entry not in migration set, ignoring", "name", name)
			continue
		}
		depth, err := e.set.Depth(name)
		if err != nil {
			return "", err
		}
		if depth > bestDepth {
			best = name
			bestDepth = depth
		}
	}
	return best, nil
}

// Status describes where a target database sits on the chain.
type Status struct {
	Backend  string   `json:"backend"`
	Position string   `json:"position,omitempty"`
	Applied  []string `json:"applied"`
	Pending  []string `json:"pending"`
}

// Status reports applied names, the resolved position, and the steps
// remaining to reach the set's latest migration.
func (e *Engine) Status(ctx context.Context, adapter db.Adapter) (*Status, error) {
	if err := adapter.EnsureLedger(ctx, e.ledgerTable); err != nil {
		return nil, fmt.Errorf("ensure ledger: %w", err)
	}
	applied, err := adapter.AppliedNames(ctx, e.ledgerTable)
	if err != nil {
		return nil, err
	}
	position, err := e.position(ctx, adapter)
	if err != nil {
		return nil, err
	}
	st := &Status{
		Backend:  string(adapter.Backend()),
		Position: position,
		Applied:  applied,
	}
	if e.set.Latest != "" {
		pending, _, err := e.set.Path(position, e.set.Latest)
		if err != nil {
			return nil, err
		}
		for _, rec := range pending {
			st.Pending = append(st.Pending, rec.Name)
		}
	}
	return st, nil
}
