// Command memkernel runs the memory engine as a single local host process,
// serving its tool-call surface over MCP stdio (§6). Construction follows
// the teacher's cmd/agent/main.go pattern: a numbered sequence of
// constructors in dependency order, each wrapped error naming the
// component that failed, closers deferred immediately after a successful
// construction.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"memkernel/internal/adapter/embedding"
	"memkernel/internal/adapter/eventstore"
	"memkernel/internal/adapter/extraction"
	"memkernel/internal/adapter/graphstore"
	"memkernel/internal/adapter/toolsurface"
	"memkernel/internal/adapter/vectorstore"
	"memkernel/internal/domain"
	"memkernel/internal/infra/config"
	"memkernel/internal/infra/logger"
	"memkernel/internal/usecase/graphquery"
	"memkernel/internal/usecase/memory"
	"memkernel/internal/usecase/quota"
	"memkernel/internal/usecase/recovery"
	"memkernel/internal/usecase/txn"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	// 1. Config
	var cfg *config.Config
	if _, statErr := os.Stat(*cfgPath); os.IsNotExist(statErr) {
		defaults := config.Default()
		cfg = &defaults
	} else {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = loaded
	}

	// 2. Logger
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	// 3. Relational graph store
	graph, err := graphstore.New(cfg.Store.Path, log)
	if err != nil {
		return fmt.Errorf("graphstore: %w", err)
	}
	defer graph.Close()

	// 4. Vector store
	vectors, err := vectorstore.New(cfg.VectorStore.Path)
	if err != nil {
		return fmt.Errorf("vectorstore: %w", err)
	}
	defer vectors.Close()

	// 5. Audit event store
	events, err := eventstore.New(cfg.Store.Path + ".events")
	if err != nil {
		return fmt.Errorf("eventstore: %w", err)
	}
	defer events.Close()

	// 6. Embedding provider: a mock base wrapped in the two-tier cache
	// (§4.2). A production deployment swaps NewMockProvider for a real
	// domain.EmbeddingProvider behind the same interface; nothing else in
	// this wiring changes.
	embedder := embedding.NewCachedEmbedder(
		embedding.NewMockProvider(256),
		cfg.EmbeddingCache.L2Dir,
		cfg.EmbeddingCache.L1Size,
		cfg.EmbeddingCache.L1TTL,
		log,
	)

	// 7. Entity extractor: same placeholder arrangement as the embedder —
	// domain.Extractor is an external LLM collaborator out of scope per
	// spec.md §1.
	extractor := extraction.NewNoopExtractor()

	// 8. Transaction manager, graph query engine
	txns := txn.New(graph.DB())
	queries := graphquery.New(graph, log)

	// 9. Memory manager
	breakerCfg := domainBreakerConfig(cfg)
	mem := memory.New(graph, vectors, embedder, extractor, txns, queries, events, breakerCfg, log)

	// Summary synthesis is optional (§4 search data flow): attach the same
	// placeholder arrangement as the embedder/extractor so search results
	// carry a Summary end-to-end without a configured LLM collaborator.
	mem.SetSummarizer(extraction.NewFragmentJoinSummarizer())

	// 10. Recovery worker
	worker := recovery.New(graph, events, cfg.Recovery.Interval, cfg.Recovery.StaleThreshold, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	worker.Start(ctx)

	// 11. Rate limiter, tool surface
	limiter := quota.New(cfg.RateLimiter.MaxRequests, cfg.RateLimiter.Window)
	server := toolsurface.New(mem, queries, limiter)

	log.Info("memkernel starting", "store", cfg.Store.Path, "vector_store", cfg.VectorStore.Path)
	return server.ServeStdio()
}

func domainBreakerConfig(cfg *config.Config) domain.BreakerConfig {
	return domain.BreakerConfig{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		ResetTimeout:     cfg.CircuitBreaker.ResetTimeout,
	}
}
