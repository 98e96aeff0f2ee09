package graphstore

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	type         TEXT NOT NULL DEFAULT 'concept',
	content      TEXT NOT NULL DEFAULT '',
	tenant       TEXT NOT NULL,
	embedding_id TEXT NOT NULL DEFAULT '',
	metadata     TEXT NOT NULL DEFAULT '{}',
	status       TEXT NOT NULL DEFAULT 'PENDING',
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	UNIQUE(name, tenant)
);

CREATE TABLE IF NOT EXISTS edges (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id  INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	target_id  INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	type       TEXT NOT NULL DEFAULT 'related_to',
	weight     REAL NOT NULL DEFAULT 1.0,
	tenant     TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_tenant ON nodes(tenant);
CREATE INDEX IF NOT EXISTS idx_nodes_tenant_status ON nodes(tenant, status);
CREATE INDEX IF NOT EXISTS idx_edges_tenant ON edges(tenant);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
`

// migrate applies the graph store schema. It is safe to call repeatedly.
func migrate(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return err
	}
	_, err := db.Exec(schema)
	return err
}
