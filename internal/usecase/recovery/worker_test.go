package recovery

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memkernel/internal/adapter/graphstore"
	"memkernel/internal/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.MemoryEvent
}

func (r *recordingSink) Append(ctx context.Context, ev domain.MemoryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(t *testing.T, fixedNow time.Time) (*Worker, *graphstore.Store, *recordingSink) {
	t.Helper()
	graph, err := graphstore.New(filepath.Join(t.TempDir(), "graph.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { graph.Close() })

	sink := &recordingSink{}
	w := New(graph, sink, time.Minute, 10*time.Minute, testLogger())
	w.now = func() time.Time { return fixedNow }
	return w, graph, sink
}

func TestSweepTransitionsStalePendingToFailed(t *testing.T) {
	fixedNow := time.Unix(1_000_000, 0)
	w, graph, sink := newTestWorker(t, fixedNow)
	ctx := context.Background()

	stale := fixedNow.Add(-20 * time.Minute).Unix()
	n, err := graph.CreateNode(ctx, graph.DB(), domain.Node{
		Name: "mem-stale01", Tenant: "acme", Status: domain.NodeStatusPending,
		CreatedAt: stale, UpdatedAt: stale,
	})
	require.NoError(t, err)

	swept, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := graph.GetNodeByID(ctx, graph.DB(), "acme", n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeStatusFailed, got.Status)
	assert.Contains(t, got.Metadata, "recovery_note")
	assert.Equal(t, 1, sink.count())
}

func TestSweepIgnoresFreshPending(t *testing.T) {
	fixedNow := time.Unix(1_000_000, 0)
	w, graph, _ := newTestWorker(t, fixedNow)
	ctx := context.Background()

	fresh := fixedNow.Add(-2 * time.Minute).Unix()
	n, err := graph.CreateNode(ctx, graph.DB(), domain.Node{
		Name: "mem-fresh01", Tenant: "acme", Status: domain.NodeStatusPending,
		CreatedAt: fresh, UpdatedAt: fresh,
	})
	require.NoError(t, err)

	swept, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	got, err := graph.GetNodeByID(ctx, graph.DB(), "acme", n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeStatusPending, got.Status)
}

func TestSweepIgnoresReadyNodes(t *testing.T) {
	fixedNow := time.Unix(1_000_000, 0)
	w, graph, _ := newTestWorker(t, fixedNow)
	ctx := context.Background()

	stale := fixedNow.Add(-20 * time.Minute).Unix()
	_, err := graph.CreateNode(ctx, graph.DB(), domain.Node{
		Name: "mem-ready01", Tenant: "acme", Status: domain.NodeStatusReady,
		CreatedAt: stale, UpdatedAt: stale,
	})
	require.NoError(t, err)

	swept, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}

func TestSweepOnceSkipsWhenAlreadyRunning(t *testing.T) {
	fixedNow := time.Unix(1_000_000, 0)
	w, _, _ := newTestWorker(t, fixedNow)
	w.running.Store(true)

	w.sweepOnce(context.Background())

	assert.True(t, w.running.Load(), "a concurrent sweep must not be cleared by the skipped tick")
}

func TestNewFallsBackToDefaultsOnZeroDurations(t *testing.T) {
	graph, err := graphstore.New(filepath.Join(t.TempDir(), "graph.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { graph.Close() })

	w := New(graph, nil, 0, 0, testLogger())
	assert.Equal(t, DefaultInterval, w.interval)
	assert.Equal(t, DefaultStaleAfter, w.staleAfter)
}
