package eventstore

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS memory_events (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	tenant      TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_events_tenant ON memory_events(tenant);
CREATE INDEX IF NOT EXISTS idx_memory_events_created_at ON memory_events(created_at);
`

// migrate applies the event store schema. It is safe to call repeatedly.
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
