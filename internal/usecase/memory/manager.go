// Package memory implements the Memory Manager (§4.6): the ingest fast path
// (synchronous PENDING node write) plus background AI processing (embed,
// vector upsert, entity extraction, promote-to-READY under one SQL
// transaction), and hybrid search (vector k-NN hydrated with a 1-hop
// subgraph per hit). Grounded on the teacher's internal/usecase layer
// conventions: constructor-injected collaborators, context.Context as the
// first parameter everywhere, and a detached background goroutine per
// fire-and-forget task (internal/usecase/cronjob.Manager.executeJob).
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"memkernel/internal/adapter/graphstore"
	"memkernel/internal/adapter/resilience"
	"memkernel/internal/domain"
	"memkernel/internal/usecase/graphquery"
	"memkernel/internal/usecase/txn"
	"memkernel/internal/validate"
)

const (
	defaultSearchK       = 5
	defaultRecentTenants = 1000
)

// EventSink is the append-only audit-trail contract the Memory Manager
// writes to; satisfied by internal/adapter/eventstore.Store.
type EventSink interface {
	Append(ctx context.Context, ev domain.MemoryEvent) error
}

// SearchResult pairs a vector hit with its similarity score and (if the
// background processor has completed) the 1-hop subgraph around its
// anchor node. Context is nil when the anchor node cannot yet be found —
// §4.6 step 3 notes this indicates in-flight or failed background work,
// not an error. Summary is only populated when a domain.Summarizer has
// been attached via SetSummarizer; the spec's search data flow names it
// as an optional final step, not a required one.
type SearchResult struct {
	Memory     domain.VectorRecord
	Similarity float32
	Context    *domain.Graph
	Summary    string
}

// Manager orchestrates memory ingest and hybrid retrieval. It owns one
// instance of each collaborating subsystem, per spec.md §3's "Ownership"
// note; the graph and vector stores remain independent backends whose
// cross-store consistency this Manager enforces via the Transaction
// Manager and saga compensation, not via the stores themselves.
type Manager struct {
	graph     *graphstore.Store
	vectors   domain.VectorStore
	embedder  domain.EmbeddingProvider
	extractor domain.Extractor
	txns      *txn.Manager
	queries   *graphquery.Engine
	events    EventSink
	logger    *slog.Logger

	summarizer domain.Summarizer

	embedBreaker   *resilience.Breaker[[][]float32]
	vectorBreaker  *resilience.Breaker[struct{}]
	extractBreaker *resilience.Breaker[domain.Extraction]

	recents *sessionRecents

	now func() time.Time
}

// New constructs a Manager. breakerCfg configures all three internal
// breakers (embed, vector-upsert, extract) identically, matching the
// teacher's pattern of one shared threshold/timeout for every collaborator
// of a given kind rather than per-instance tuning knobs.
func New(
	graph *graphstore.Store,
	vectors domain.VectorStore,
	embedder domain.EmbeddingProvider,
	extractor domain.Extractor,
	txns *txn.Manager,
	queries *graphquery.Engine,
	events EventSink,
	breakerCfg domain.BreakerConfig,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		graph:          graph,
		vectors:        vectors,
		embedder:       embedder,
		extractor:      extractor,
		txns:           txns,
		queries:        queries,
		events:         events,
		logger:         logger,
		embedBreaker:   resilience.New[[][]float32]("embed", breakerCfg, logger),
		vectorBreaker:  resilience.New[struct{}]("vector-upsert", breakerCfg, logger),
		extractBreaker: resilience.New[domain.Extraction]("extract", breakerCfg, logger),
		recents:        newSessionRecents(defaultRecentTenants),
		now:            time.Now,
	}
}

// AddMemory ingests content for tenant (§4.6): it synchronously writes a
// PENDING node carrying a forward reference to a not-yet-existent vector
// record, audits the event, touches the session recency LRU, and returns
// the generated node name immediately. Background processing (embed,
// vector upsert, extraction, promotion) is spawned as a detached goroutine
// whose failure is logged but never surfaces to the caller.
func (m *Manager) AddMemory(ctx context.Context, content, tenant string, metadata map[string]string) (string, error) {
	if err := validate.Tenant(tenant); err != nil {
		return "", err
	}
	if content == "" {
		return "", domain.NewValidationError("memory", "AddMemory", domain.ErrValidation, "content must not be empty")
	}

	vectorID := uuid.NewString()
	nodeName := "mem-" + vectorID[:8]
	nowUnix := m.now().Unix()

	if _, err := m.graph.CreateNode(ctx, m.graph.DB(), domain.Node{
		Name:        nodeName,
		Tenant:      tenant,
		Content:     content,
		EmbeddingID: vectorID,
		Status:      domain.NodeStatusPending,
		Metadata:    metadata,
		CreatedAt:   nowUnix,
		UpdatedAt:   nowUnix,
	}); err != nil {
		return "", err
	}

	m.publishEvent(ctx, domain.EventMemoryAddedFast, tenant, nodeName, map[string]string{"vector_id": vectorID})
	m.recents.Touch(tenant, content)

	go m.processBackground(tenant, nodeName, vectorID, content, metadata)

	return nodeName, nil
}

// processBackground runs the background half of ingest (§4.6 steps a-d) in
// a detached context: the request that spawned it may already have
// returned, so it cannot share the request's cancellation.
func (m *Manager) processBackground(tenant, nodeName, vectorID, content string, metadata map[string]string) {
	ctx := context.Background()
	if err := m.runBackground(ctx, tenant, nodeName, vectorID, content, metadata); err != nil {
		// The anchor node is left PENDING; the recovery worker (§4.7) will
		// eventually transition it to FAILED for manual replay. No retry is
		// attempted here — spec.md's concurrency model treats background
		// work as fire-and-forget, not a replayable queue.
		m.logger.Error("background memory processing failed", "node", nodeName, "tenant", tenant, "error", err)
		m.publishEvent(ctx, domain.EventMemoryFailed, tenant, nodeName, map[string]string{"error": err.Error()})
		return
	}
	m.publishEvent(ctx, domain.EventMemoryReady, tenant, nodeName, nil)
}

func (m *Manager) runBackground(ctx context.Context, tenant, nodeName, vectorID, content string, metadata map[string]string) error {
	vectors, err := m.embedBreaker.Execute(ctx, func(ctx context.Context) ([][]float32, error) {
		return m.embedder.Embed(ctx, []string{content})
	})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) == 0 {
		return domain.NewExternalServiceError("memory", "runBackground", domain.ErrExternalService, "embedding provider returned no vectors")
	}
	vector := vectors[0]
	timestamp := m.now().Unix()

	// The vector upsert and entity extraction are independent of each other
	// (extraction reads raw content, not the embedding), so they run
	// concurrently via errgroup rather than back to back; either failing
	// cancels the other's context. Extraction failure is tolerated (logged,
	// falls back to an empty extraction) but a vector-upsert failure aborts
	// the whole background run.
	group, groupCtx := errgroup.WithContext(ctx)
	var extraction domain.Extraction

	group.Go(func() error {
		_, err := m.vectorBreaker.Execute(groupCtx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.vectors.Upsert(ctx, domain.VectorRecord{
				ID:        vectorID,
				Vector:    vector,
				Text:      content,
				Tenant:    tenant,
				Timestamp: timestamp,
				NodeName:  nodeName,
				Metadata:  metadata,
			})
		})
		return err
	})
	group.Go(func() error {
		ext, err := m.extractBreaker.Execute(groupCtx, func(ctx context.Context) (domain.Extraction, error) {
			return m.extractor.Extract(ctx, content)
		})
		if err != nil {
			m.logger.Warn("entity extraction failed, continuing with empty extraction", "node", nodeName, "error", err)
			return nil
		}
		extraction = ext
		return nil
	})
	if err := group.Wait(); err != nil {
		return fmt.Errorf("embed-and-upsert: %w", err)
	}

	// saga tracks this ingest's vector-store side effect so it can be
	// compensated if the SQL promotion step fails (§4.4.3, §9). The upsert
	// itself already ran above; this step exists to carry the
	// compensation, run only if promote-and-link fails.
	saga := txn.NewSaga()
	txState := domain.SagaTransaction{ID: vectorID, VectorIDs: []string{vectorID}, State: domain.SagaPending}

	saga.AddStep(txn.SagaStep{
		Name:    "vector-upsert",
		Execute: func(ctx context.Context) error { return nil },
		Compensate: func(ctx context.Context) error {
			return m.vectors.DeleteBatch(ctx, []string{vectorID})
		},
	})

	saga.AddStep(txn.SagaStep{
		Name: "promote-and-link",
		Execute: func(ctx context.Context) error {
			return m.txns.Run(ctx, func(ctx context.Context, tx *sql.Tx) error {
				return m.linkAndPromote(ctx, tx, tenant, nodeName, extraction)
			})
		},
	})

	if err := saga.Run(ctx); err != nil {
		txState.State = domain.SagaRolledBack
		if compErrs := saga.CompensationErrors(); len(compErrs) > 0 {
			m.logger.Error("saga compensation errors", "node", nodeName, "errors", compErrs)
		}
		return fmt.Errorf("ingest saga %s: %w", txState.ID, err)
	}
	txState.State = domain.SagaCommitted

	return nil
}

// linkAndPromote implements §4.6 step d: resolve the anchor node, materialize
// extracted entities and relationships as nodes/edges, and promote the
// anchor to READY — all within the caller's SQL transaction.
func (m *Manager) linkAndPromote(ctx context.Context, tx *sql.Tx, tenant, nodeName string, extraction domain.Extraction) error {
	anchor, err := m.graph.GetNodeByName(ctx, tx, tenant, nodeName)
	if err != nil {
		return err
	}
	now := m.now().Unix()

	for _, ent := range extraction.Entities {
		if err := validate.Name(ent.Name); err != nil {
			m.logger.Warn("skipping extracted entity with invalid name", "node", nodeName, "entity", ent.Name, "error", err)
			continue
		}
		entityType := ent.Type
		if entityType == "" {
			entityType = domain.DefaultNodeType
		}
		entityNode, err := m.getOrCreateNode(ctx, tx, tenant, ent.Name, entityType, now)
		if err != nil {
			return err
		}
		if entityNode.ID == anchor.ID {
			continue
		}
		if _, err := m.graph.CreateEdge(ctx, tx, domain.Edge{
			SourceID: anchor.ID, TargetID: entityNode.ID, Type: "mentions", Tenant: tenant, CreatedAt: now,
		}); err != nil {
			return err
		}
	}

	for _, rel := range extraction.Relationships {
		if rel.From == "" || rel.To == "" {
			continue
		}
		if err := validate.Name(rel.From); err != nil {
			m.logger.Warn("skipping relationship with invalid endpoint", "node", nodeName, "from", rel.From, "error", err)
			continue
		}
		if err := validate.Name(rel.To); err != nil {
			m.logger.Warn("skipping relationship with invalid endpoint", "node", nodeName, "to", rel.To, "error", err)
			continue
		}

		from, err := m.getOrCreateNode(ctx, tx, tenant, rel.From, domain.DefaultNodeType, now)
		if err != nil {
			return err
		}
		to, err := m.getOrCreateNode(ctx, tx, tenant, rel.To, domain.DefaultNodeType, now)
		if err != nil {
			return err
		}
		if from.ID == to.ID {
			continue
		}

		edgeType := strings.ToLower(rel.Type)
		if edgeType == "" {
			edgeType = domain.DefaultEdgeType
		}
		if _, err := m.graph.CreateEdge(ctx, tx, domain.Edge{
			SourceID: from.ID, TargetID: to.ID, Type: edgeType, Tenant: tenant, CreatedAt: now,
		}); err != nil {
			return err
		}
	}

	return m.graph.UpdateNodeStatus(ctx, tx, tenant, anchor.ID, domain.NodeStatusReady, anchor.Metadata, now)
}

// getOrCreateNode implements §8's "unique-race on get_or_create_node":
// concurrent creators of the same (name, tenant) race on the unique index;
// the loser treats the constraint violation as "another task won" and
// retries once by reading the now-present row.
func (m *Manager) getOrCreateNode(ctx context.Context, q graphstore.Querier, tenant, name, nodeType string, now int64) (domain.Node, error) {
	n, err := m.graph.CreateNode(ctx, q, domain.Node{
		Name: name, Type: nodeType, Tenant: tenant, Status: domain.NodeStatusReady, CreatedAt: now, UpdatedAt: now,
	})
	if err == nil {
		return n, nil
	}

	existing, getErr := m.graph.GetNodeByName(ctx, q, tenant, name)
	if getErr != nil {
		return domain.Node{}, err
	}
	return existing, nil
}

// Search answers a hybrid query (§4.6): embed, vector k-NN within tenant,
// then hydrate each hit with its 1-hop subgraph by resolving the node whose
// embedding_id matches the hit's vector id. k<=0 defaults to 5.
func (m *Manager) Search(ctx context.Context, query, tenant string, k int) ([]SearchResult, error) {
	if err := validate.Tenant(tenant); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = defaultSearchK
	}

	vectors, err := m.embedBreaker.Execute(ctx, func(ctx context.Context) ([][]float32, error) {
		return m.embedder.Embed(ctx, []string{query})
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, domain.NewExternalServiceError("memory", "Search", domain.ErrExternalService, "embedding provider returned no vector for the query")
	}

	hits, err := m.vectors.Search(ctx, tenant, vectors[0], k)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		result := SearchResult{Memory: hit.Record, Similarity: hit.Similarity}

		node, err := m.graph.GetNodeByEmbeddingID(ctx, m.graph.DB(), tenant, hit.Record.ID)
		if err != nil {
			// Background processing has not yet completed, or failed
			// outright (§4.6 step 3) — a nil Context is not an error.
			results = append(results, result)
			continue
		}

		subgraph, err := m.queries.Subgraph(ctx, tenant, node.Name, 1)
		if err != nil {
			results = append(results, result)
			continue
		}
		result.Context = &subgraph

		if m.summarizer != nil {
			summary, err := m.summarizer.Summarize(ctx, subgraphFragments(hit.Record, subgraph))
			if err != nil {
				m.logger.Warn("summary synthesis failed, leaving result unsummarized", "node", node.Name, "error", err)
			} else {
				result.Summary = summary
			}
		}

		results = append(results, result)
	}

	return results, nil
}

// subgraphFragments renders a hit's memory text plus its 1-hop graph
// neighborhood as the flat fragment set a Summarizer synthesizes from.
func subgraphFragments(record domain.VectorRecord, subgraph domain.Graph) []string {
	fragments := make([]string, 0, 1+len(subgraph.Edges))
	fragments = append(fragments, record.Text)

	nameByID := make(map[int64]string, len(subgraph.Nodes))
	for _, n := range subgraph.Nodes {
		nameByID[n.ID] = n.Name
	}
	for _, e := range subgraph.Edges {
		fragments = append(fragments, fmt.Sprintf("%s %s %s", nameByID[e.SourceID], e.Type, nameByID[e.TargetID]))
	}
	return fragments
}

// SetSummarizer attaches the optional LLM-backed summary step to Search's
// data flow (spec.md's search data flow: "... 1-hop subgraph expansion per
// hit → optional LLM summary synthesized from the fragment set"). A nil
// summarizer (the default) leaves SearchResult.Summary empty.
func (m *Manager) SetSummarizer(s domain.Summarizer) {
	m.summarizer = s
}

// Recent returns tenant's most recently ingested content, if any, from the
// process-wide session LRU (§4.6 step 4).
func (m *Manager) Recent(tenant string) (string, bool) {
	return m.recents.Get(tenant)
}

func (m *Manager) publishEvent(ctx context.Context, eventType, tenant, nodeName string, extra map[string]string) {
	if m.events == nil {
		return
	}
	meta := map[string]string{"node_name": nodeName}
	for k, v := range extra {
		meta[k] = v
	}
	ev := domain.MemoryEvent{
		ID:          ulid.Make().String(),
		Type:        eventType,
		Description: fmt.Sprintf("%s %s", eventType, nodeName),
		Metadata:    meta,
		Tenant:      tenant,
		CreatedAt:   m.now().Unix(),
	}
	if err := m.events.Append(ctx, ev); err != nil {
		m.logger.Warn("failed to append audit event", "type", eventType, "node", nodeName, "error", err)
	}
}
