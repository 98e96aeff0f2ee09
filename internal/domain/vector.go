package domain

import "context"

// VectorRecord is a typed vector-store row. Every embedding_id referenced by
// a READY node refers to exactly one VectorRecord in the same tenant.
type VectorRecord struct {
	ID        string            `json:"id"`
	Vector    []float32         `json:"vector"`
	Text      string            `json:"text"`
	Tenant    string            `json:"tenant"`
	Timestamp int64             `json:"timestamp"`
	NodeName  string            `json:"node_name"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// VectorHit pairs a stored record with its similarity score against a query.
type VectorHit struct {
	Record     VectorRecord
	Similarity float32
}

// VectorStore is the contract a vector backend must satisfy (§6): typed
// records, per-tenant k-NN with an optional timestamp range post-filter,
// and delete-by-id-set.
type VectorStore interface {
	Upsert(ctx context.Context, rec VectorRecord) error
	Search(ctx context.Context, tenant string, query []float32, k int) ([]VectorHit, error)
	DeleteBatch(ctx context.Context, ids []string) error
	Get(ctx context.Context, id string) (*VectorRecord, error)
}

// EmbeddingProvider is the interface for text embedding backends (§6). Two
// shapes are expected in practice: a local model (dimension 384) and a
// remote HTTP model (dimension 1536); selection is configuration-driven.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}
