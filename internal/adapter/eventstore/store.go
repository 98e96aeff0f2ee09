// Package eventstore persists the append-only MemoryEvent audit trail (§3):
// rows are never updated once written and are retained indefinitely. It is
// the Memory Manager's exclusively-owned resource for MEMORY_ADDED_FAST,
// MEMORY_READY, MEMORY_FAILED, and RECOVERY_SWEPT entries.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite"

	"memkernel/internal/domain"
)

// Store is the event store's connection handle. Construct with New.
type Store struct {
	db *sql.DB
}

// New opens (creating if absent) the SQLite database at path and applies the
// schema migration.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.NewDatabaseError("eventstore", "New", err, "check the store path is writable")
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, domain.NewDatabaseError("eventstore", "New", err, "check the schema migration succeeded")
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Append records ev. Rows in memory_events are never updated once written.
func (s *Store) Append(ctx context.Context, ev domain.MemoryEvent) error {
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return domain.NewValidationError("eventstore", "Append", err, "metadata must be JSON-serializable")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_events (id, type, description, metadata, tenant, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Type, ev.Description, string(meta), ev.Tenant, ev.CreatedAt)
	if err != nil {
		return domain.NewDatabaseError("eventstore", "Append", err, "")
	}
	return nil
}

// ListByTenant returns a tenant's audit trail newest-first, capped at limit.
func (s *Store) ListByTenant(ctx context.Context, tenant string, limit int) ([]domain.MemoryEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, description, metadata, tenant, created_at
		FROM memory_events WHERE tenant = ? ORDER BY created_at DESC LIMIT ?`, tenant, limit)
	if err != nil {
		return nil, domain.NewDatabaseError("eventstore", "ListByTenant", err, "")
	}
	defer rows.Close()

	var out []domain.MemoryEvent
	for rows.Next() {
		var ev domain.MemoryEvent
		var meta string
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Description, &meta, &ev.Tenant, &ev.CreatedAt); err != nil {
			return nil, domain.NewDatabaseError("eventstore", "ListByTenant", err, "")
		}
		if meta != "" {
			_ = json.Unmarshal([]byte(meta), &ev.Metadata)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewDatabaseError("eventstore", "ListByTenant", err, "")
	}
	return out, nil
}
