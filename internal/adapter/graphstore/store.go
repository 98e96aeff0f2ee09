// Package graphstore is the relational persistence layer for Node/Edge
// (§3, §6): SQLite via modernc.org/sqlite, CGo-free, with recursive CTEs and
// named SAVEPOINTs available to callers that need nested transactions (the
// transaction manager in internal/usecase/txn).
package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"memkernel/internal/domain"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, letting every method on
// Store run either against the pooled connection directly or inside a
// transaction/savepoint owned by the caller (internal/usecase/txn).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the graph store's connection handle. Construct with New.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (creating if absent) the SQLite database at path and applies the
// schema migration.
func New(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.NewDatabaseError("graphstore", "New", err, "check the store path is writable")
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn

	if err := migrate(db); err != nil {
		db.Close()
		return nil, domain.NewDatabaseError("graphstore", "New", err, "check the schema migration succeeded")
	}

	return &Store{db: db, logger: logger}, nil
}

// DB returns the underlying *sql.DB so the transaction manager can BEGIN
// transactions directly against it.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateNode inserts a new node, returning it with its assigned ID and
// timestamps populated. Violates the (name, tenant) unique index with
// domain.ErrNodeDuplicate wrapped in a domain.NotFoundError-shaped
// DatabaseError when the row already exists.
func (s *Store) CreateNode(ctx context.Context, q Querier, n domain.Node) (domain.Node, error) {
	if n.Type == "" {
		n.Type = domain.DefaultNodeType
	}
	if n.Status == "" {
		n.Status = domain.NodeStatusPending
	}
	meta, err := marshalMetadata(n.Metadata)
	if err != nil {
		return domain.Node{}, domain.NewValidationError("graphstore", "CreateNode", err, "metadata must be JSON-serializable")
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO nodes (name, type, content, tenant, embedding_id, metadata, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Name, n.Type, n.Content, n.Tenant, n.EmbeddingID, meta, string(n.Status), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return domain.Node{}, domain.NewDatabaseError("graphstore", "CreateNode", err, "check the name is unique for this tenant").
			WithDetail("name", n.Name).WithDetail("tenant", n.Tenant)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Node{}, domain.NewDatabaseError("graphstore", "CreateNode", err, "")
	}
	n.ID = id
	return n, nil
}

// GetNodeByName fetches a node by its (name, tenant) unique key.
func (s *Store) GetNodeByName(ctx context.Context, q Querier, tenant, name string) (domain.Node, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, type, content, tenant, embedding_id, metadata, status, created_at, updated_at
		FROM nodes WHERE tenant = ? AND name = ?`, tenant, name)
	return scanNode(row)
}

// GetNodeByID fetches a node by primary key, scoped to tenant.
func (s *Store) GetNodeByID(ctx context.Context, q Querier, tenant string, id int64) (domain.Node, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, type, content, tenant, embedding_id, metadata, status, created_at, updated_at
		FROM nodes WHERE tenant = ? AND id = ?`, tenant, id)
	return scanNode(row)
}

// GetNodeByEmbeddingID fetches a node by its vector-store handle, tenant-
// scoped. Used by search-result hydration (§4.6 step 3): a hit's embedding
// id may not yet (or ever) resolve to a node if the background processor
// hasn't completed or failed outright.
func (s *Store) GetNodeByEmbeddingID(ctx context.Context, q Querier, tenant, embeddingID string) (domain.Node, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, type, content, tenant, embedding_id, metadata, status, created_at, updated_at
		FROM nodes WHERE tenant = ? AND embedding_id = ?`, tenant, embeddingID)
	return scanNode(row)
}

// UpdateNodeStatus transitions a node's status (and optionally merges
// metadata keys), bumping updated_at. Used by the ingest background path
// (PENDING -> READY) and the recovery worker (PENDING -> FAILED).
func (s *Store) UpdateNodeStatus(ctx context.Context, q Querier, tenant string, id int64, status domain.NodeStatus, metadata map[string]string, updatedAt int64) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return domain.NewValidationError("graphstore", "UpdateNodeStatus", err, "metadata must be JSON-serializable")
	}
	res, err := q.ExecContext(ctx, `
		UPDATE nodes SET status = ?, metadata = ?, updated_at = ?
		WHERE tenant = ? AND id = ?`, string(status), meta, updatedAt, tenant, id)
	if err != nil {
		return domain.NewDatabaseError("graphstore", "UpdateNodeStatus", err, "")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.NewDatabaseError("graphstore", "UpdateNodeStatus", err, "")
	}
	if n == 0 {
		return domain.NewNotFoundError("graphstore", "UpdateNodeStatus", domain.ErrNotFound, "no node with that id for this tenant")
	}
	return nil
}

// SetNodeEmbeddingID records the vector store id once embedding succeeds.
func (s *Store) SetNodeEmbeddingID(ctx context.Context, q Querier, tenant string, id int64, embeddingID string, updatedAt int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE nodes SET embedding_id = ?, updated_at = ?
		WHERE tenant = ? AND id = ?`, embeddingID, updatedAt, tenant, id)
	if err != nil {
		return domain.NewDatabaseError("graphstore", "SetNodeEmbeddingID", err, "")
	}
	return nil
}

// ListStalePending returns PENDING nodes last updated before cutoff, across
// all tenants, for the recovery worker's sweep (§4.7).
func (s *Store) ListStalePending(ctx context.Context, q Querier, cutoff int64) ([]domain.Node, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, type, content, tenant, embedding_id, metadata, status, created_at, updated_at
		FROM nodes WHERE status = ? AND updated_at < ?`, string(domain.NodeStatusPending), cutoff)
	if err != nil {
		return nil, domain.NewDatabaseError("graphstore", "ListStalePending", err, "")
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CreateEdge inserts a directed edge between two existing nodes.
// source_id == target_id is rejected by the caller (internal/validate /
// usecase layer); the store itself does not re-check business invariants.
func (s *Store) CreateEdge(ctx context.Context, q Querier, e domain.Edge) (domain.Edge, error) {
	if e.Type == "" {
		e.Type = domain.DefaultEdgeType
	}
	if e.Weight == 0 {
		e.Weight = domain.DefaultEdgeWeight
	}
	if e.SourceID == e.TargetID {
		return domain.Edge{}, domain.NewValidationError("graphstore", "CreateEdge", domain.ErrSelfLoop, "source_id and target_id must differ")
	}
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return domain.Edge{}, domain.NewValidationError("graphstore", "CreateEdge", err, "metadata must be JSON-serializable")
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO edges (source_id, target_id, type, weight, tenant, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SourceID, e.TargetID, e.Type, e.Weight, e.Tenant, meta, e.CreatedAt)
	if err != nil {
		return domain.Edge{}, domain.NewDatabaseError("graphstore", "CreateEdge", err, "check both endpoints exist")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Edge{}, domain.NewDatabaseError("graphstore", "CreateEdge", err, "")
	}
	e.ID = id
	return e, nil
}

// EdgesFrom returns the outgoing edges of a node, tenant-scoped.
func (s *Store) EdgesFrom(ctx context.Context, q Querier, tenant string, nodeID int64) ([]domain.Edge, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, source_id, target_id, type, weight, tenant, metadata, created_at
		FROM edges WHERE tenant = ? AND source_id = ?`, tenant, nodeID)
	if err != nil {
		return nil, domain.NewDatabaseError("graphstore", "EdgesFrom", err, "")
	}
	defer rows.Close()
	return scanEdges(rows)
}

// EdgesTo returns the incoming edges of a node, tenant-scoped (used by the
// bidirectional deep-context traversal, §4.5).
func (s *Store) EdgesTo(ctx context.Context, q Querier, tenant string, nodeID int64) ([]domain.Edge, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, source_id, target_id, type, weight, tenant, metadata, created_at
		FROM edges WHERE tenant = ? AND target_id = ?`, tenant, nodeID)
	if err != nil {
		return nil, domain.NewDatabaseError("graphstore", "EdgesTo", err, "")
	}
	defer rows.Close()
	return scanEdges(rows)
}

// SearchNodesByNameLike performs a bounded LIKE scan over a node's name,
// content, and type within a tenant, capped at 50 results and returned with
// the edges connecting the hit set, per spec.md §4.5.
func (s *Store) SearchNodesByNameLike(ctx context.Context, q Querier, tenant, pattern string) (domain.Graph, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, type, content, tenant, embedding_id, metadata, status, created_at, updated_at
		FROM nodes
		WHERE tenant = ? AND (name LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\' OR type LIKE ? ESCAPE '\')
		ORDER BY name LIMIT 50`, tenant, pattern, pattern, pattern)
	if err != nil {
		return domain.Graph{}, domain.NewDatabaseError("graphstore", "SearchNodesByNameLike", err, "")
	}
	nodes, err := scanNodes(rows)
	rows.Close()
	if err != nil {
		return domain.Graph{}, err
	}
	if len(nodes) == 0 {
		return domain.Graph{Nodes: nodes}, nil
	}

	edges, err := s.edgesTouchingNodes(ctx, q, tenant, nodes)
	if err != nil {
		return domain.Graph{}, err
	}
	return domain.Graph{Nodes: nodes, Edges: edges}, nil
}

// ReadGraph returns a tenant's nodes page (limit/offset) plus every edge
// touching a node in that page, for §4.5's read_graph operation.
func (s *Store) ReadGraph(ctx context.Context, q Querier, tenant string, limit, offset int) (domain.Graph, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, type, content, tenant, embedding_id, metadata, status, created_at, updated_at
		FROM nodes WHERE tenant = ? ORDER BY id LIMIT ? OFFSET ?`, tenant, limit, offset)
	if err != nil {
		return domain.Graph{}, domain.NewDatabaseError("graphstore", "ReadGraph", err, "")
	}
	nodes, err := scanNodes(rows)
	rows.Close()
	if err != nil {
		return domain.Graph{}, err
	}
	if len(nodes) == 0 {
		return domain.Graph{Nodes: nodes}, nil
	}

	edges, err := s.edgesTouchingNodes(ctx, q, tenant, nodes)
	if err != nil {
		return domain.Graph{}, err
	}
	return domain.Graph{Nodes: nodes, Edges: edges}, nil
}

// edgesTouchingNodes fetches every edge with either endpoint in nodes,
// tenant-scoped. Shared by ReadGraph and SearchNodesByNameLike, both of
// which return a node page plus its connecting edges.
func (s *Store) edgesTouchingNodes(ctx context.Context, q Querier, tenant string, nodes []domain.Node) ([]domain.Edge, error) {
	placeholders := ""
	ids := make([]any, len(nodes))
	for i, n := range nodes {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		ids[i] = n.ID
	}
	args := make([]any, 0, 1+2*len(ids))
	args = append(args, tenant)
	args = append(args, ids...)
	args = append(args, ids...)

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, source_id, target_id, type, weight, tenant, metadata, created_at
		FROM edges WHERE tenant = ? AND (source_id IN (%s) OR target_id IN (%s))`, placeholders, placeholders),
		args...)
	if err != nil {
		return nil, domain.NewDatabaseError("graphstore", "edgesTouchingNodes", err, "")
	}
	defer rows.Close()
	return scanEdges(rows)
}

func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMetadata(s string) map[string]string {
	if s == "" {
		return map[string]string{}
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]string{}
	}
	return m
}

func scanNode(row *sql.Row) (domain.Node, error) {
	var n domain.Node
	var status, meta string
	err := row.Scan(&n.ID, &n.Name, &n.Type, &n.Content, &n.Tenant, &n.EmbeddingID, &meta, &status, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.Node{}, domain.NewNotFoundError("graphstore", "scanNode", domain.ErrNotFound, "no such node")
	}
	if err != nil {
		return domain.Node{}, domain.NewDatabaseError("graphstore", "scanNode", err, "")
	}
	n.Status = domain.NodeStatus(status)
	n.Metadata = unmarshalMetadata(meta)
	return n, nil
}

func scanNodes(rows *sql.Rows) ([]domain.Node, error) {
	var out []domain.Node
	for rows.Next() {
		var n domain.Node
		var status, meta string
		if err := rows.Scan(&n.ID, &n.Name, &n.Type, &n.Content, &n.Tenant, &n.EmbeddingID, &meta, &status, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, domain.NewDatabaseError("graphstore", "scanNodes", err, "")
		}
		n.Status = domain.NodeStatus(status)
		n.Metadata = unmarshalMetadata(meta)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewDatabaseError("graphstore", "scanNodes", err, "")
	}
	return out, nil
}

func scanEdges(rows *sql.Rows) ([]domain.Edge, error) {
	var out []domain.Edge
	for rows.Next() {
		var e domain.Edge
		var meta string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Type, &e.Weight, &e.Tenant, &meta, &e.CreatedAt); err != nil {
			return nil, domain.NewDatabaseError("graphstore", "scanEdges", err, "")
		}
		e.Metadata = unmarshalMetadata(meta)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewDatabaseError("graphstore", "scanEdges", err, "")
	}
	return out, nil
}
