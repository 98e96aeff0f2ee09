package vectorstore

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS vectors (
	id        TEXT PRIMARY KEY,
	vector    BLOB NOT NULL,
	text      TEXT NOT NULL,
	tenant    TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	node_name TEXT NOT NULL,
	metadata  TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_vectors_tenant ON vectors(tenant);
CREATE INDEX IF NOT EXISTS idx_vectors_tenant_timestamp ON vectors(tenant, timestamp);
`

func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
