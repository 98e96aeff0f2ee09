package toolsurface

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memkernel/internal/adapter/graphstore"
	"memkernel/internal/adapter/vectorstore"
	"memkernel/internal/domain"
	"memkernel/internal/usecase/graphquery"
	"memkernel/internal/usecase/memory"
	"memkernel/internal/usecase/quota"
	"memkernel/internal/usecase/txn"
)

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, f.dims)
		for j := range vec {
			vec[j] = float32(len(t)+j) / 100
		}
		out[i] = vec
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) Name() string    { return "fake" }

type fakeExtractor struct{ extraction domain.Extraction }

func (f *fakeExtractor) Extract(ctx context.Context, content string) (domain.Extraction, error) {
	return f.extraction, nil
}

type fakeSink struct{}

func (fakeSink) Append(ctx context.Context, ev domain.MemoryEvent) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *graphstore.Store) {
	t.Helper()

	graph, err := graphstore.New(filepath.Join(t.TempDir(), "graph.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { graph.Close() })

	vectors, err := vectorstore.New(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { vectors.Close() })

	txns := txn.New(graph.DB())
	queries := graphquery.New(graph, testLogger())
	mem := memory.New(graph, vectors, &fakeEmbedder{dims: 4}, &fakeExtractor{}, txns, queries, fakeSink{}, domain.DefaultBreakerConfig, testLogger())
	limiter := quota.New(100, time.Minute)

	return New(mem, queries, limiter), graph
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func decodeText(t *testing.T, result *mcp.CallToolResult, out interface{}) {
	t.Helper()
	require.False(t, result.IsError, "expected a successful result")
	require.NotEmpty(t, result.Content)

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("expected text content, got %T", c)
	}
	require.NoError(t, json.Unmarshal([]byte(text), out))
}

func TestHandleAddMemoryReturnsGeneratedName(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleAddMemory(context.Background(), callRequest(map[string]interface{}{
		"content": "Alice uses TypeScript.",
		"tenant":  "u1",
	}))
	require.NoError(t, err)

	var out addMemoryResult
	decodeText(t, result, &out)
	assert.Regexp(t, `^mem-[0-9a-f]{8}$`, out.Name)
}

func TestHandleAddMemoryRejectsOversizedContent(t *testing.T) {
	s, _ := newTestServer(t)

	oversized := make([]byte, maxTextLength+1)
	result, err := s.handleAddMemory(context.Background(), callRequest(map[string]interface{}{
		"content": string(oversized),
		"tenant":  "u1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleAddMemoryRejectsOversizedTenant(t *testing.T) {
	s, _ := newTestServer(t)

	oversized := make([]byte, maxTenantLength+1)
	for i := range oversized {
		oversized[i] = 'a'
	}
	result, err := s.handleAddMemory(context.Background(), callRequest(map[string]interface{}{
		"content": "hello",
		"tenant":  string(oversized),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleReadGraphReturnsNewlyAddedNode(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	addResult, err := s.handleAddMemory(ctx, callRequest(map[string]interface{}{
		"content": "Alice uses TypeScript.",
		"tenant":  "u1",
	}))
	require.NoError(t, err)
	var added addMemoryResult
	decodeText(t, addResult, &added)

	result, err := s.handleReadGraph(ctx, callRequest(map[string]interface{}{
		"tenant": "u1",
	}))
	require.NoError(t, err)

	var graph domain.Graph
	decodeText(t, result, &graph)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, added.Name, graph.Nodes[0].Name)
}

func TestHandleReadGraphIsolatesTenants(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleAddMemory(ctx, callRequest(map[string]interface{}{
		"content": "Alice uses TypeScript.",
		"tenant":  "u1",
	}))
	require.NoError(t, err)

	result, err := s.handleReadGraph(ctx, callRequest(map[string]interface{}{
		"tenant": "u2",
	}))
	require.NoError(t, err)

	var graph domain.Graph
	decodeText(t, result, &graph)
	assert.Empty(t, graph.Nodes)
	assert.Empty(t, graph.Edges)
}

func TestHandleSearchNodesRejectsInjectionWithoutDestroyingData(t *testing.T) {
	s, graph := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleAddMemory(ctx, callRequest(map[string]interface{}{
		"content": "Alice uses TypeScript.",
		"tenant":  "u1",
	}))
	require.NoError(t, err)

	result, err := s.handleSearchNodes(ctx, callRequest(map[string]interface{}{
		"query":  "x'; DROP TABLE nodes; --",
		"tenant": "u1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	readResult, err := s.handleReadGraph(ctx, callRequest(map[string]interface{}{
		"tenant": "u1",
	}))
	require.NoError(t, err)
	var readGraph domain.Graph
	decodeText(t, readResult, &readGraph)
	assert.Len(t, readGraph.Nodes, 1, "nodes table must survive the injection attempt")

	_ = graph // kept for future direct-store assertions
}

func TestHandleSearchMemoryRejectsOversizedQuery(t *testing.T) {
	s, _ := newTestServer(t)

	oversized := make([]byte, maxQueryLength+1)
	result, err := s.handleSearchMemory(context.Background(), callRequest(map[string]interface{}{
		"query":  string(oversized),
		"tenant": "u1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleSearchMemoryRejectsEmptyTenant(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleSearchMemory(context.Background(), callRequest(map[string]interface{}{
		"query":  "typescript",
		"tenant": "",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleAddMemoryEnforcesPerTenantRateLimit(t *testing.T) {
	s, _ := newTestServer(t)
	s.limiter = quota.New(1, time.Minute)
	ctx := context.Background()

	first, err := s.handleAddMemory(ctx, callRequest(map[string]interface{}{
		"content": "first",
		"tenant":  "u1",
	}))
	require.NoError(t, err)
	assert.False(t, first.IsError)

	second, err := s.handleAddMemory(ctx, callRequest(map[string]interface{}{
		"content": "second",
		"tenant":  "u1",
	}))
	require.NoError(t, err)
	assert.True(t, second.IsError, "second call within the window should be rate limited")
}

func TestClampIntFallsBackToDefaultWhenUnset(t *testing.T) {
	assert.Equal(t, defaultLimit, clampInt(0, minLimit, maxLimit, defaultLimit))
	assert.Equal(t, minLimit, clampInt(-5, minLimit, maxLimit, defaultLimit))
	assert.Equal(t, maxLimit, clampInt(10_000, minLimit, maxLimit, defaultLimit))
}
