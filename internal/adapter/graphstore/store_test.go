package graphstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memkernel/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "graph.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetNodeByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNode(ctx, s.DB(), domain.Node{
		Name: "mem-abc123", Tenant: "acme", Status: domain.NodeStatusPending,
		CreatedAt: 1, UpdatedAt: 1,
	})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.Equal(t, domain.DefaultNodeType, n.Type)

	got, err := s.GetNodeByName(ctx, s.DB(), "acme", "mem-abc123")
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, domain.NodeStatusPending, got.Status)
}

func TestGetNodeByEmbeddingIDFindsForwardReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, s.DB(), domain.Node{
		Name: "mem-abc123", Tenant: "acme", EmbeddingID: "vec-1", CreatedAt: 1, UpdatedAt: 1,
	})
	require.NoError(t, err)

	got, err := s.GetNodeByEmbeddingID(ctx, s.DB(), "acme", "vec-1")
	require.NoError(t, err)
	assert.Equal(t, "mem-abc123", got.Name)
}

func TestGetNodeByEmbeddingIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetNodeByEmbeddingID(context.Background(), s.DB(), "acme", "missing")
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestCreateNodeDuplicateNameTenantRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "dup", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)

	_, err = s.CreateNode(ctx, s.DB(), domain.Node{Name: "dup", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	assert.Error(t, err)
}

func TestCreateNodeSameNameDifferentTenantAllowed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "shared", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, s.DB(), domain.Node{Name: "shared", Tenant: "globex", CreatedAt: 1, UpdatedAt: 1})
	assert.NoError(t, err)
}

func TestGetNodeByNameNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetNodeByName(context.Background(), s.DB(), "acme", "missing")
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestUpdateNodeStatusTransitionsAndBumpsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "n1", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)

	err = s.UpdateNodeStatus(ctx, s.DB(), "acme", n.ID, domain.NodeStatusReady, map[string]string{"k": "v"}, 42)
	require.NoError(t, err)

	got, err := s.GetNodeByID(ctx, s.DB(), "acme", n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeStatusReady, got.Status)
	assert.Equal(t, int64(42), got.UpdatedAt)
	assert.Equal(t, "v", got.Metadata["k"])
}

func TestUpdateNodeStatusWrongTenantNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "n1", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)

	err = s.UpdateNodeStatus(ctx, s.DB(), "globex", n.ID, domain.NodeStatusReady, nil, 2)
	assert.Error(t, err)
}

func TestCreateEdgeRejectsSelfLoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "n1", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)

	_, err = s.CreateEdge(ctx, s.DB(), domain.Edge{SourceID: n.ID, TargetID: n.ID, Tenant: "acme", CreatedAt: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSelfLoop)
}

func TestCreateEdgeDefaultsTypeAndWeight(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "a", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)
	b, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "b", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)

	e, err := s.CreateEdge(ctx, s.DB(), domain.Edge{SourceID: a.ID, TargetID: b.ID, Tenant: "acme", CreatedAt: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultEdgeType, e.Type)
	assert.Equal(t, domain.DefaultEdgeWeight, e.Weight)
}

func TestEdgesFromAndEdgesTo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateNode(ctx, s.DB(), domain.Node{Name: "a", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	b, _ := s.CreateNode(ctx, s.DB(), domain.Node{Name: "b", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	_, err := s.CreateEdge(ctx, s.DB(), domain.Edge{SourceID: a.ID, TargetID: b.ID, Tenant: "acme", CreatedAt: 1})
	require.NoError(t, err)

	from, err := s.EdgesFrom(ctx, s.DB(), "acme", a.ID)
	require.NoError(t, err)
	assert.Len(t, from, 1)

	to, err := s.EdgesTo(ctx, s.DB(), "acme", b.ID)
	require.NoError(t, err)
	assert.Len(t, to, 1)

	none, err := s.EdgesFrom(ctx, s.DB(), "acme", b.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchNodesByNameLikeIsTenantScopedAndCapped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		_, err := s.CreateNode(ctx, s.DB(), domain.Node{
			Name: "mem-" + string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Tenant: "acme", CreatedAt: 1, UpdatedAt: 1,
		})
		require.NoError(t, err)
	}
	_, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "mem-zz", Tenant: "other", CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)

	graph, err := s.SearchNodesByNameLike(ctx, s.DB(), "acme", "mem-%")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(graph.Nodes), 50)
	for _, n := range graph.Nodes {
		assert.Equal(t, "acme", n.Tenant)
	}
}

func TestSearchNodesByNameLikeMatchesContentAndType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "widget-one", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)
	byContent, err := s.CreateNode(ctx, s.DB(), domain.Node{
		Name: "other", Content: "mentions a gadget somewhere", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1,
	})
	require.NoError(t, err)
	byType, err := s.CreateNode(ctx, s.DB(), domain.Node{
		Name: "another", Type: "gadget", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1,
	})
	require.NoError(t, err)
	edge, err := s.CreateEdge(ctx, s.DB(), domain.Edge{
		SourceID: byContent.ID, TargetID: byType.ID, Type: "related_to", Tenant: "acme", CreatedAt: 1,
	})
	require.NoError(t, err)

	graph, err := s.SearchNodesByNameLike(ctx, s.DB(), "acme", "%gadget%")
	require.NoError(t, err)
	ids := make([]int64, len(graph.Nodes))
	for i, n := range graph.Nodes {
		ids[i] = n.ID
	}
	assert.ElementsMatch(t, []int64{byContent.ID, byType.ID}, ids)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, edge.ID, graph.Edges[0].ID)
}

func TestListStalePending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "stale", Tenant: "acme", Status: domain.NodeStatusPending, CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)
	fresh, err := s.CreateNode(ctx, s.DB(), domain.Node{Name: "fresh", Tenant: "acme", Status: domain.NodeStatusPending, CreatedAt: 100, UpdatedAt: 100})
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, s.DB(), domain.Node{Name: "ready", Tenant: "acme", Status: domain.NodeStatusReady, CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)

	results, err := s.ListStalePending(ctx, s.DB(), 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, stale.ID, results[0].ID)
	assert.NotEqual(t, fresh.ID, results[0].ID)
}

func TestReadGraphPagesNodesAndIncludesTouchingEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateNode(ctx, s.DB(), domain.Node{Name: "a", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	b, _ := s.CreateNode(ctx, s.DB(), domain.Node{Name: "b", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	_, _ = s.CreateNode(ctx, s.DB(), domain.Node{Name: "c", Tenant: "acme", CreatedAt: 1, UpdatedAt: 1})
	_, err := s.CreateEdge(ctx, s.DB(), domain.Edge{SourceID: a.ID, TargetID: b.ID, Tenant: "acme", CreatedAt: 1})
	require.NoError(t, err)

	g, err := s.ReadGraph(ctx, s.DB(), "acme", 2, 0)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)
}

func TestReadGraphEmptyTenant(t *testing.T) {
	s := newTestStore(t)
	g, err := s.ReadGraph(context.Background(), s.DB(), "nobody", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}
