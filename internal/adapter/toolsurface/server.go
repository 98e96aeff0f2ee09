// Package toolsurface is the thin mark3labs/mcp-go registration layer named
// in spec.md §6: it marshals/unmarshals the five tool-call operations and
// calls straight into the Memory Manager and Graph Query Engine. It does not
// reimplement auth or JSON-schema validation — those belong to the excluded
// RPC layer (spec.md §1) — but it does enforce the length/range limits §6
// states explicitly, since those are part of the tool contract itself, and
// it passes every call through the per-tenant rate limiter before touching
// any collaborator.
package toolsurface

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"memkernel/internal/domain"
	"memkernel/internal/usecase/graphquery"
	"memkernel/internal/usecase/memory"
	"memkernel/internal/usecase/quota"
	"memkernel/internal/validate"
)

// Limits named verbatim in spec.md §6.
const (
	maxTextLength   = 50_000
	maxQueryLength  = 1_000
	maxTenantLength = 100

	minLimit     = 1
	maxLimit     = 500
	defaultLimit = 5

	minDepth     = 1
	maxDepth     = 3
	defaultDepth = 1
)

// Server hosts memkernel's five tool-call operations over MCP.
type Server struct {
	mcp     *server.MCPServer
	memory  *memory.Manager
	queries *graphquery.Engine
	limiter *quota.Limiter
}

// New builds a Server wired to the given collaborators and registers all
// five tools against a fresh MCP server instance.
func New(mem *memory.Manager, queries *graphquery.Engine, limiter *quota.Limiter) *Server {
	s := &Server{
		mcp:     server.NewMCPServer("memkernel", "0.1.0"),
		memory:  mem,
		queries: queries,
		limiter: limiter,
	}
	s.register()
	return s
}

// ServeStdio runs the server over stdio until the process exits or the
// transport errors out. This is the only transport spec.md's scope calls
// for (a single local host process, §1).
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) register() {
	s.mcp.AddTool(mcp.NewTool("add_memory",
		mcp.WithDescription("Ingest a piece of text as a new memory. Returns the generated node name immediately; graph linking happens in the background."),
		mcp.WithString("content", mcp.Required(), mcp.Description("text to remember, at most 50,000 characters")),
		mcp.WithString("tenant", mcp.Required(), mcp.Description("tenant id, at most 100 characters")),
		mcp.WithObject("metadata", mcp.Description("arbitrary string metadata attached to the memory node")),
	), s.handleAddMemory)

	s.mcp.AddTool(mcp.NewTool("search_memory",
		mcp.WithDescription("Hybrid vector + graph search: embeds the query, finds nearest memories, and hydrates each hit with its 1-hop graph context."),
		mcp.WithString("query", mcp.Required(), mcp.Description("search text, at most 1,000 characters")),
		mcp.WithString("tenant", mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("max results, 1-500, default 5")),
	), s.handleSearchMemory)

	s.mcp.AddTool(mcp.NewTool("read_graph",
		mcp.WithDescription("Paged read of a tenant's node/edge graph."),
		mcp.WithString("tenant", mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("page size, 1-500, default 100")),
		mcp.WithNumber("offset", mcp.Description("page offset, default 0")),
	), s.handleReadGraph)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Keyword scan over node name, content, and type, capped at 50 hits, returned with the edges connecting the hit set."),
		mcp.WithString("query", mcp.Required(), mcp.Description("search text, at most 1,000 characters")),
		mcp.WithString("tenant", mcp.Required()),
	), s.handleSearchNodes)

	s.mcp.AddTool(mcp.NewTool("hybrid_search",
		mcp.WithDescription("Vector search followed by a multi-hop subgraph expansion from each hit's anchor node."),
		mcp.WithString("query", mcp.Required(), mcp.Description("search text, at most 1,000 characters")),
		mcp.WithString("tenant", mcp.Required()),
		mcp.WithNumber("depth", mcp.Description("hop depth, 1-3, default 1")),
	), s.handleHybridSearch)
}

// checkTenant runs the shared tenant-shape and rate-limit gate every
// operation passes through before touching a collaborator.
func (s *Server) checkTenant(tenant string) error {
	if err := validate.Tenant(tenant); err != nil {
		return err
	}
	if len(tenant) > maxTenantLength {
		return domain.NewValidationError("toolsurface", "checkTenant", domain.ErrValidation,
			"tenant must be at most 100 characters")
	}
	return s.limiter.AllowOrError(tenant)
}

func checkMaxLen(field, value string, max int) error {
	if len(value) > max {
		return domain.NewValidationError("toolsurface", "checkMaxLen", domain.ErrValidation,
			fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return nil
}

func clampInt(v, min, max, fallback int) int {
	if v == 0 {
		return fallback
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
