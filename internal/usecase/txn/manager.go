// Package txn implements the nested-transaction manager described in §4.4:
// a single outer *sql.Tx per Manager, with nested scopes realized as named
// SAVEPOINTs. Cross-system compensation (undoing a vector-store write when
// a later SQL step fails) is a separate concern handled by Saga, not this
// Manager — see saga.go.
package txn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"memkernel/internal/domain"
)

// Manager enforces "one outer transaction at a time" via its own mutex; it
// is intended to be constructed once per graph store and shared across the
// ingest and recovery paths (§5: "Transaction Manager is singleton with
// mutex-enforced single outer transaction").
type Manager struct {
	db *sql.DB

	mu     sync.Mutex
	active *sql.Tx
	depth  int
}

// New constructs a Manager bound to db.
func New(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Begin opens the outer transaction. Calling Begin while one is already
// active returns a domain.ConcurrencyError (domain.ErrTxActive) instead of
// blocking — callers that want nesting use Savepoint, not a second Begin.
func (m *Manager) Begin(ctx context.Context) (*sql.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, domain.NewConcurrencyError("txn", "Begin", domain.ErrTxActive, "commit or roll back the active transaction before starting another")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewDatabaseError("txn", "Begin", err, "")
	}
	m.active = tx
	m.depth = 1
	return tx, nil
}

// Savepoint opens a named nested scope within the active outer transaction
// and returns its name (sp_<depth>_<unix-nanos>) for a matching
// Release/RollbackTo call.
func (m *Manager) Savepoint(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.active == nil {
		m.mu.Unlock()
		return "", domain.NewConcurrencyError("txn", "Savepoint", domain.ErrValidation, "no active transaction to nest within")
	}
	m.depth++
	name := savepointName(m.depth)
	tx := m.active
	m.mu.Unlock()

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		m.mu.Lock()
		m.depth--
		m.mu.Unlock()
		return "", domain.NewDatabaseError("txn", "Savepoint", err, "")
	}
	return name, nil
}

// ReleaseSavepoint commits a nested scope opened by Savepoint.
func (m *Manager) ReleaseSavepoint(ctx context.Context, name string) error {
	m.mu.Lock()
	tx := m.active
	m.mu.Unlock()
	if tx == nil {
		return domain.NewConcurrencyError("txn", "ReleaseSavepoint", domain.ErrValidation, "no active transaction")
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return domain.NewDatabaseError("txn", "ReleaseSavepoint", err, "")
	}
	m.mu.Lock()
	m.depth--
	m.mu.Unlock()
	return nil
}

// RollbackToSavepoint undoes everything since the matching Savepoint call,
// leaving the outer transaction (and any shallower savepoints) intact.
func (m *Manager) RollbackToSavepoint(ctx context.Context, name string) error {
	m.mu.Lock()
	tx := m.active
	m.mu.Unlock()
	if tx == nil {
		return domain.NewConcurrencyError("txn", "RollbackToSavepoint", domain.ErrValidation, "no active transaction")
	}

	if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return domain.NewDatabaseError("txn", "RollbackToSavepoint", err, "")
	}
	m.mu.Lock()
	m.depth--
	m.mu.Unlock()
	return nil
}

// Commit commits the outer transaction.
func (m *Manager) Commit(ctx context.Context) error {
	m.mu.Lock()
	tx := m.active
	m.active = nil
	m.depth = 0
	m.mu.Unlock()

	if tx == nil {
		return domain.NewConcurrencyError("txn", "Commit", domain.ErrValidation, "no active transaction")
	}
	if err := tx.Commit(); err != nil {
		return domain.NewDatabaseError("txn", "Commit", err, "")
	}
	return nil
}

// Rollback rolls back the outer transaction.
func (m *Manager) Rollback(ctx context.Context) error {
	m.mu.Lock()
	tx := m.active
	m.active = nil
	m.depth = 0
	m.mu.Unlock()

	if tx == nil {
		return nil
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return domain.NewDatabaseError("txn", "Rollback", err, "")
	}
	return nil
}

// Run is the common-case helper: begin (or nest into) a transaction, invoke
// fn, and commit or roll back based on its result.
func (m *Manager) Run(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	m.mu.Lock()
	nested := m.active != nil
	m.mu.Unlock()

	if !nested {
		tx, err := m.Begin(ctx)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx); err != nil {
			if rerr := m.Rollback(ctx); rerr != nil {
				// §7: compensation/rollback failures never mask the
				// original error — fn's error is still the one returned.
				return fmt.Errorf("%w (rollback also failed: %v)", err, rerr)
			}
			return err
		}
		return m.Commit(ctx)
	}

	name, err := m.Savepoint(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	tx := m.active
	m.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		if rerr := m.RollbackToSavepoint(ctx, name); rerr != nil {
			return fmt.Errorf("%w (rollback to savepoint also failed: %v)", err, rerr)
		}
		return err
	}
	return m.ReleaseSavepoint(ctx, name)
}

func savepointName(depth int) string {
	return fmt.Sprintf("sp_%d_%d", depth, time.Now().UnixNano())
}
