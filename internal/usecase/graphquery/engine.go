// Package graphquery implements the read-side graph operations described in
// §4.5: bounded subgraph expansion, shortest-path search, a bidirectional
// deep-context traversal, a capped keyword scan, and paged full-graph reads.
// All operations are tenant-scoped.
package graphquery

import (
	"context"
	"log/slog"
	"strings"

	"memkernel/internal/adapter/graphstore"
	"memkernel/internal/domain"
)

// Engine answers graph read queries over a graphstore.Store.
type Engine struct {
	store  *graphstore.Store
	logger *slog.Logger
}

// New constructs an Engine over store.
func New(store *graphstore.Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

type frontierNode struct {
	node  domain.Node
	depth int
}

// Subgraph performs a bounded breadth-first expansion outward from
// startName along outgoing edges only, up to maxDepth hops, returning every
// node and edge visited. Cycle detection is a map keyed by node id, so a
// node whose id is numerically a substring of another visited id (e.g. 1
// and 11) is never confused with it (§8).
func (e *Engine) Subgraph(ctx context.Context, tenant, startName string, maxDepth int) (domain.Graph, error) {
	start, err := e.store.GetNodeByName(ctx, e.store.DB(), tenant, startName)
	if err != nil {
		return domain.Graph{}, err
	}

	visited := map[int64]bool{start.ID: true}
	nodesByID := map[int64]domain.Node{start.ID: start}
	edgesByID := map[int64]domain.Edge{}
	queue := []frontierNode{{node: start, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		out, err := e.store.EdgesFrom(ctx, e.store.DB(), tenant, cur.node.ID)
		if err != nil {
			return domain.Graph{}, err
		}
		for _, edge := range out {
			edgesByID[edge.ID] = edge
			if visited[edge.TargetID] {
				continue
			}
			neighbor, err := e.store.GetNodeByID(ctx, e.store.DB(), tenant, edge.TargetID)
			if err != nil {
				continue
			}
			visited[edge.TargetID] = true
			nodesByID[edge.TargetID] = neighbor
			queue = append(queue, frontierNode{node: neighbor, depth: cur.depth + 1})
		}
	}

	return collectGraph(nodesByID, edgesByID), nil
}

// DeepContext is Subgraph's bidirectional sibling: it expands along both
// outgoing and incoming edges, surfacing nodes that reference startName as
// well as nodes startName references.
func (e *Engine) DeepContext(ctx context.Context, tenant, startName string, maxDepth int) (domain.Graph, error) {
	start, err := e.store.GetNodeByName(ctx, e.store.DB(), tenant, startName)
	if err != nil {
		return domain.Graph{}, err
	}

	visited := map[int64]bool{start.ID: true}
	nodesByID := map[int64]domain.Node{start.ID: start}
	edgesByID := map[int64]domain.Edge{}
	queue := []frontierNode{{node: start, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		out, err := e.store.EdgesFrom(ctx, e.store.DB(), tenant, cur.node.ID)
		if err != nil {
			return domain.Graph{}, err
		}
		in, err := e.store.EdgesTo(ctx, e.store.DB(), tenant, cur.node.ID)
		if err != nil {
			return domain.Graph{}, err
		}

		for _, edge := range append(out, in...) {
			edgesByID[edge.ID] = edge
			neighborID := edge.TargetID
			if neighborID == cur.node.ID {
				neighborID = edge.SourceID
			}
			if visited[neighborID] {
				continue
			}
			neighbor, err := e.store.GetNodeByID(ctx, e.store.DB(), tenant, neighborID)
			if err != nil {
				continue
			}
			visited[neighborID] = true
			nodesByID[neighborID] = neighbor
			queue = append(queue, frontierNode{node: neighbor, depth: cur.depth + 1})
		}
	}

	return collectGraph(nodesByID, edgesByID), nil
}

// FindPath performs a breadth-first search for the shortest outgoing-edge
// path from startName to endName, bounded by maxDepth hops, returning the
// sequence of node names along that path. BFS guarantees shortest-path-by-
// hop-count, but ties among equal-length paths are broken by edge insertion
// order rather than weight — spec.md's design notes flag this as accepted
// imprecision rather than a defect to fix (weighted shortest path is out of
// scope, §9).
func (e *Engine) FindPath(ctx context.Context, tenant, startName, endName string, maxDepth int) ([]string, error) {
	start, err := e.store.GetNodeByName(ctx, e.store.DB(), tenant, startName)
	if err != nil {
		return nil, err
	}
	end, err := e.store.GetNodeByName(ctx, e.store.DB(), tenant, endName)
	if err != nil {
		return nil, err
	}
	if start.ID == end.ID {
		return []string{start.Name}, nil
	}

	parent := map[int64]int64{start.ID: 0}
	nameByID := map[int64]string{start.ID: start.Name}
	visited := map[int64]bool{start.ID: true}
	queue := []frontierNode{{node: start, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		out, err := e.store.EdgesFrom(ctx, e.store.DB(), tenant, cur.node.ID)
		if err != nil {
			return nil, err
		}
		for _, edge := range out {
			if visited[edge.TargetID] {
				continue
			}
			neighbor, err := e.store.GetNodeByID(ctx, e.store.DB(), tenant, edge.TargetID)
			if err != nil {
				continue
			}
			visited[edge.TargetID] = true
			parent[edge.TargetID] = cur.node.ID
			nameByID[edge.TargetID] = neighbor.Name

			if edge.TargetID == end.ID {
				return reconstructPath(parent, nameByID, start.ID, end.ID), nil
			}
			queue = append(queue, frontierNode{node: neighbor, depth: cur.depth + 1})
		}
	}

	return nil, domain.NewNotFoundError("graphquery", "FindPath", domain.ErrNotFound, "no path within the given depth bound")
}

func reconstructPath(parent map[int64]int64, nameByID map[int64]string, startID, endID int64) []string {
	var reversed []string
	for id := endID; ; id = parent[id] {
		reversed = append(reversed, nameByID[id])
		if id == startID {
			break
		}
	}
	path := make([]string, len(reversed))
	for i, name := range reversed {
		path[len(reversed)-1-i] = name
	}
	return path
}

// SearchNodes performs a bounded LIKE scan over each node's name, content,
// and type containing keyword, tenant-scoped, capped at 50 results, and
// returned with the edges connecting the hit set (§4.5).
func (e *Engine) SearchNodes(ctx context.Context, tenant, keyword string) (domain.Graph, error) {
	escaped := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_").Replace(keyword)
	return e.store.SearchNodesByNameLike(ctx, e.store.DB(), tenant, "%"+escaped+"%")
}

// ReadGraph returns a tenant's nodes page plus the edges touching that page.
func (e *Engine) ReadGraph(ctx context.Context, tenant string, limit, offset int) (domain.Graph, error) {
	return e.store.ReadGraph(ctx, e.store.DB(), tenant, limit, offset)
}

func collectGraph(nodesByID map[int64]domain.Node, edgesByID map[int64]domain.Edge) domain.Graph {
	g := domain.Graph{
		Nodes: make([]domain.Node, 0, len(nodesByID)),
		Edges: make([]domain.Edge, 0, len(edgesByID)),
	}
	for _, n := range nodesByID {
		g.Nodes = append(g.Nodes, n)
	}
	for _, e := range edgesByID {
		g.Edges = append(g.Edges, e)
	}
	return g
}
