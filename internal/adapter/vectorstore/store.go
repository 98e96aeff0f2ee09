// Package vectorstore implements domain.VectorStore over SQLite: a typed
// vectors table for durability plus an in-memory cosine-similarity index for
// k-NN search (§3, §6).
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"sync"

	_ "modernc.org/sqlite"

	"memkernel/internal/domain"
)

// Store persists domain.VectorRecord rows and serves k-NN search from an
// in-memory index lazily hydrated from the table.
type Store struct {
	db  *sql.DB
	idx *memIndex

	loadOnce sync.Once
	loadErr  error
}

// New opens (creating if absent) the SQLite database at path and applies the
// schema migration.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.NewDatabaseError("vectorstore", "New", err, "check the store path is writable")
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, domain.NewDatabaseError("vectorstore", "New", err, "check the schema migration succeeded")
	}

	return &Store{db: db, idx: newMemIndex()}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// ensureLoaded hydrates the in-memory index from the table exactly once.
func (s *Store) ensureLoaded(ctx context.Context) error {
	s.loadOnce.Do(func() {
		rows, err := s.db.QueryContext(ctx, `SELECT id, vector, text, tenant, timestamp, node_name, metadata FROM vectors`)
		if err != nil {
			s.loadErr = domain.NewDatabaseError("vectorstore", "ensureLoaded", err, "")
			return
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				s.loadErr = err
				return
			}
			s.idx.put(rec)
		}
		if err := rows.Err(); err != nil {
			s.loadErr = domain.NewDatabaseError("vectorstore", "ensureLoaded", err, "")
		}
	})
	return s.loadErr
}

// Upsert implements domain.VectorStore.
func (s *Store) Upsert(ctx context.Context, rec domain.VectorRecord) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return domain.NewValidationError("vectorstore", "Upsert", err, "metadata must be JSON-serializable")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vectors (id, vector, text, tenant, timestamp, node_name, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vector = excluded.vector, text = excluded.text, tenant = excluded.tenant,
			timestamp = excluded.timestamp, node_name = excluded.node_name, metadata = excluded.metadata`,
		rec.ID, encodeVector(rec.Vector), rec.Text, rec.Tenant, rec.Timestamp, rec.NodeName, string(meta))
	if err != nil {
		return domain.NewDatabaseError("vectorstore", "Upsert", err, "")
	}

	s.idx.put(rec)
	return nil
}

// Search implements domain.VectorStore: cosine k-NN within tenant.
func (s *Store) Search(ctx context.Context, tenant string, query []float32, k int) ([]domain.VectorHit, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.idx.search(tenant, query, k), nil
}

// DeleteBatch implements domain.VectorStore: removes every id in ids. Used
// both for explicit deletes and as the compensating action the saga
// executor runs when a background ingest fails after the vector write but
// before the promoting transaction commits (§4.6, §9).
func (s *Store) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	placeholders := ""
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM vectors WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return domain.NewDatabaseError("vectorstore", "DeleteBatch", err, "")
	}

	s.idx.remove(ids)
	return nil
}

// Get implements domain.VectorStore.
func (s *Store) Get(ctx context.Context, id string) (*domain.VectorRecord, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	rec, ok := s.idx.get(id)
	if !ok {
		return nil, domain.NewNotFoundError("vectorstore", "Get", domain.ErrNotFound, "no vector record with that id")
	}
	return &rec, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func scanRecord(rows *sql.Rows) (domain.VectorRecord, error) {
	var rec domain.VectorRecord
	var vecBytes []byte
	var meta string
	if err := rows.Scan(&rec.ID, &vecBytes, &rec.Text, &rec.Tenant, &rec.Timestamp, &rec.NodeName, &meta); err != nil {
		return domain.VectorRecord{}, domain.NewDatabaseError("vectorstore", "scanRecord", err, "")
	}
	rec.Vector = decodeVector(vecBytes)
	if meta != "" {
		_ = json.Unmarshal([]byte(meta), &rec.Metadata)
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.VectorStore = (*Store)(nil)
