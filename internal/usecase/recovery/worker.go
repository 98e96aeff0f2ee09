// Package recovery implements the Recovery Worker (§4.7): a periodic sweep
// that transitions abandoned PENDING nodes to FAILED. The background
// processor (internal/usecase/memory) is fire-and-forget; a crash between
// the fast-path write and the SQL promotion step would otherwise leave a
// node pending forever. This worker marks such rows for manual replay
// without re-running any AI work itself.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"

	"memkernel/internal/adapter/graphstore"
	"memkernel/internal/domain"
)

// DefaultInterval and DefaultStaleAfter match spec.md §4.7's stated
// defaults: sweep every 5 minutes, fail nodes PENDING for over 10 minutes.
const (
	DefaultInterval   = 5 * time.Minute
	DefaultStaleAfter = 10 * time.Minute
)

// EventSink is the append-only audit-trail contract this worker writes
// RECOVERY_SWEPT entries to; satisfied by internal/adapter/eventstore.Store.
type EventSink interface {
	Append(ctx context.Context, ev domain.MemoryEvent) error
}

// Worker periodically sweeps stale PENDING nodes into FAILED. Construct with
// New and drive it with Start; Sweep is exposed directly for tests and for
// callers that want to trigger an out-of-band sweep.
type Worker struct {
	graph      *graphstore.Store
	events     EventSink
	logger     *slog.Logger
	interval   time.Duration
	staleAfter time.Duration

	running atomic.Bool
	cron    *cron.Cron
	now     func() time.Time
}

// New constructs a Worker. interval and staleAfter of zero fall back to
// DefaultInterval and DefaultStaleAfter respectively.
func New(graph *graphstore.Store, events EventSink, interval, staleAfter time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Worker{
		graph:      graph,
		events:     events,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Start runs an immediate sweep (§4.7 "first tick runs immediately") and
// then schedules one every interval until ctx is cancelled. It returns
// immediately; the schedule runs in the background.
func (w *Worker) Start(ctx context.Context) {
	w.sweepOnce(ctx)

	w.cron = cron.New()
	_, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.interval), func() { w.sweepOnce(ctx) })
	if err != nil {
		w.logger.Error("recovery worker: failed to schedule sweep", "error", err)
		return
	}
	w.cron.Start()

	go func() {
		<-ctx.Done()
		w.cron.Stop()
	}()
}

// sweepOnce guards Sweep with an is_running flag (§4.7 "one invocation at a
// time"): a tick that arrives while the previous sweep is still running is
// skipped rather than queued.
func (w *Worker) sweepOnce(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Debug("recovery worker: sweep already running, skipping tick")
		return
	}
	defer w.running.Store(false)

	n, err := w.Sweep(ctx)
	if err != nil {
		w.logger.Error("recovery worker: sweep failed", "error", err)
		return
	}
	if n > 0 {
		w.logger.Info("recovery worker: swept stale pending nodes", "count", n)
	}
}

// Sweep runs one pass across all tenants: find PENDING nodes last updated
// before now-staleAfter, and transition each to FAILED with a
// metadata.recovery_note, per §4.7.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.staleAfter).Unix()
	stale, err := w.graph.ListStalePending(ctx, w.graph.DB(), cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, node := range stale {
		meta := node.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		meta["recovery_note"] = fmt.Sprintf(
			"marked FAILED by recovery sweep: PENDING since %s",
			time.Unix(node.UpdatedAt, 0).UTC().Format(time.RFC3339))

		now := w.now().Unix()
		if err := w.graph.UpdateNodeStatus(ctx, w.graph.DB(), node.Tenant, node.ID, domain.NodeStatusFailed, meta, now); err != nil {
			w.logger.Error("recovery worker: failed to mark node failed", "node", node.Name, "tenant", node.Tenant, "error", err)
			continue
		}
		w.publishEvent(ctx, node.Tenant, node.Name)
		swept++
	}
	return swept, nil
}

func (w *Worker) publishEvent(ctx context.Context, tenant, nodeName string) {
	if w.events == nil {
		return
	}
	ev := domain.MemoryEvent{
		ID:          ulid.Make().String(),
		Type:        domain.EventRecoverySwept,
		Description: fmt.Sprintf("%s %s", domain.EventRecoverySwept, nodeName),
		Metadata:    map[string]string{"node_name": nodeName},
		Tenant:      tenant,
		CreatedAt:   w.now().Unix(),
	}
	if err := w.events.Append(ctx, ev); err != nil {
		w.logger.Warn("recovery worker: failed to append audit event", "error", err)
	}
}
