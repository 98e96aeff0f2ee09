package embedding

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"memkernel/internal/domain"
)

// MockProvider generates deterministic-shaped but random vectors via a
// cryptographically secure RNG. It exists only for tests and local
// development; it must never be selected as the production embedding
// collaborator. Callers wire it explicitly (e.g. from a CLI --mock flag or
// a test's provider construction) rather than it being a config default.
type MockProvider struct {
	dims int
	name string
}

// NewMockProvider returns a MockProvider producing vectors of the given
// dimensionality.
func NewMockProvider(dims int) *MockProvider {
	return &MockProvider{dims: dims, name: "mock"}
}

// Embed implements domain.EmbeddingProvider, filling each vector from
// crypto/rand so tests get realistic-shaped, non-repeating embeddings
// without calling out to a real model.
func (m *MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.dims)
		buf := make([]byte, 4*m.dims)
		if _, err := rand.Read(buf); err != nil {
			return nil, domain.NewExternalServiceError("embedding-mock", "Embed", err, "retry; the system RNG is unavailable")
		}
		for j := range vec {
			bits := binary.LittleEndian.Uint32(buf[j*4 : j*4+4])
			// Map to [-1, 1) so cosine similarity math behaves like a real
			// normalized embedding space.
			vec[j] = float32(bits)/float32(1<<31) - 1
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions implements domain.EmbeddingProvider.
func (m *MockProvider) Dimensions() int { return m.dims }

// Name implements domain.EmbeddingProvider.
func (m *MockProvider) Name() string { return m.name }

// Compile-time interface check.
var _ domain.EmbeddingProvider = (*MockProvider)(nil)
