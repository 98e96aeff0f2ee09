package vectorstore

import (
	"math"
	"sync"

	"memkernel/internal/domain"
)

// memIndex is an in-memory brute-force cosine-similarity index, lazily
// hydrated from the SQLite table on first use and kept in sync by every
// Upsert/DeleteBatch. Brute force is adequate at the scale this store
// targets (single-tenant-process memory graphs, not a web-scale ANN index).
type memIndex struct {
	mu      sync.RWMutex
	loaded  bool
	records map[string]domain.VectorRecord
}

func newMemIndex() *memIndex {
	return &memIndex{records: make(map[string]domain.VectorRecord)}
}

func (idx *memIndex) put(rec domain.VectorRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.records[rec.ID] = rec
}

func (idx *memIndex) remove(ids []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		delete(idx.records, id)
	}
}

func (idx *memIndex) get(id string) (domain.VectorRecord, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	rec, ok := idx.records[id]
	return rec, ok
}

// search returns the k records in tenant with the highest cosine similarity
// to query, sorted descending.
func (idx *memIndex) search(tenant string, query []float32, k int) []domain.VectorHit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]domain.VectorHit, 0, len(idx.records))
	for _, rec := range idx.records {
		if rec.Tenant != tenant {
			continue
		}
		hits = append(hits, domain.VectorHit{Record: rec, Similarity: cosineSimilarity(query, rec.Vector)})
	}

	sortHitsDescending(hits)
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func sortHitsDescending(hits []domain.VectorHit) {
	// Insertion sort: k-NN result sets are small (default k=5), so an O(n^2)
	// sort over the candidate set costs nothing compared to the O(n) scan
	// that built it.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Similarity > hits[j-1].Similarity; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
