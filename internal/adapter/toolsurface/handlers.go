package toolsurface

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"memkernel/internal/domain"
)

// addMemoryResult is the add_memory response shape: just the generated
// node name, per spec.md §6's "add_memory(...) → node_name".
type addMemoryResult struct {
	Name string `json:"name"`
}

func (s *Server) handleAddMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	content := argString(args, "content")
	tenant := argString(args, "tenant")
	metadata := argStringMap(args, "metadata")

	if err := s.checkTenant(tenant); err != nil {
		return errorResult(err), nil
	}
	if err := checkMaxLen("content", content, maxTextLength); err != nil {
		return errorResult(err), nil
	}

	name, err := s.memory.AddMemory(ctx, content, tenant, metadata)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(addMemoryResult{Name: name})
}

// searchHit is the rendering of one memory.SearchResult for the tool
// surface: snake_case JSON, and Context flattened to its own field so
// callers don't need to know about the internal SearchResult wrapper.
type searchHit struct {
	VectorID   string        `json:"vector_id"`
	NodeName   string        `json:"node_name"`
	Text       string        `json:"text"`
	Similarity float32       `json:"similarity"`
	Context    *domain.Graph `json:"context,omitempty"`
	Summary    string        `json:"summary,omitempty"`
}

func (s *Server) handleSearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	query := argString(args, "query")
	tenant := argString(args, "tenant")
	limit := clampInt(argInt(args, "limit"), minLimit, maxLimit, defaultLimit)

	if err := s.checkTenant(tenant); err != nil {
		return errorResult(err), nil
	}
	if err := checkMaxLen("query", query, maxQueryLength); err != nil {
		return errorResult(err), nil
	}

	results, err := s.memory.Search(ctx, query, tenant, limit)
	if err != nil {
		return errorResult(err), nil
	}

	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, searchHit{
			VectorID:   r.Memory.ID,
			NodeName:   r.Memory.NodeName,
			Text:       r.Memory.Text,
			Similarity: r.Similarity,
			Context:    r.Context,
			Summary:    r.Summary,
		})
	}
	return jsonResult(hits)
}

func (s *Server) handleReadGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	tenant := argString(args, "tenant")
	limit := clampInt(argInt(args, "limit"), minLimit, maxLimit, 100)
	offset := argInt(args, "offset")

	if err := s.checkTenant(tenant); err != nil {
		return errorResult(err), nil
	}

	graph, err := s.queries.ReadGraph(ctx, tenant, limit, offset)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(graph)
}

func (s *Server) handleSearchNodes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	query := argString(args, "query")
	tenant := argString(args, "tenant")

	if err := s.checkTenant(tenant); err != nil {
		return errorResult(err), nil
	}
	if err := checkMaxLen("query", query, maxQueryLength); err != nil {
		return errorResult(err), nil
	}

	graph, err := s.queries.SearchNodes(ctx, tenant, query)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(graph)
}

// hybridHit pairs a vector hit with the deeper (possibly multi-hop)
// subgraph hybrid_search expands to, as distinct from search_memory's fixed
// 1-hop context.
type hybridHit struct {
	VectorID   string       `json:"vector_id"`
	NodeName   string       `json:"node_name"`
	Text       string       `json:"text"`
	Similarity float32      `json:"similarity"`
	Context    domain.Graph `json:"context"`
}

func (s *Server) handleHybridSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	query := argString(args, "query")
	tenant := argString(args, "tenant")
	depth := clampInt(argInt(args, "depth"), minDepth, maxDepth, defaultDepth)

	if err := s.checkTenant(tenant); err != nil {
		return errorResult(err), nil
	}
	if err := checkMaxLen("query", query, maxQueryLength); err != nil {
		return errorResult(err), nil
	}

	results, err := s.memory.Search(ctx, query, tenant, defaultLimit)
	if err != nil {
		return errorResult(err), nil
	}

	hits := make([]hybridHit, 0, len(results))
	for _, r := range results {
		graph, err := s.queries.Subgraph(ctx, tenant, r.Memory.NodeName, depth)
		if err != nil {
			// A hit whose anchor node isn't hydrated yet (background work
			// still in flight, or failed) contributes no expanded context
			// rather than failing the whole call — mirrors Search's own
			// tolerance of an unhydrated anchor (§4.6 step 3).
			continue
		}
		hits = append(hits, hybridHit{
			VectorID:   r.Memory.ID,
			NodeName:   r.Memory.NodeName,
			Text:       r.Memory.Text,
			Similarity: r.Similarity,
			Context:    graph,
		})
	}
	return jsonResult(hits)
}
