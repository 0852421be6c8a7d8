package query

import (
	"context"
	"time"

	"github.com/weftlab/weft/internal/types"
)

// Neighbors expands breadth-first from id to at most depth hops over
// the undirected view of the graph. Every reachable node is reported
// exactly once, at its minimum hop distance; the start entity itself is
// excluded. Within one hop level, nodes appear in adjacency insertion
// order.
func (e *Engine) Neighbors(ctx context.Context, id types.ID, depth int) (*NeighborsResponse, error) {
	start := time.Now()
	if depth <= 0 {
		return nil, types.NewValidationError("depth must be positive, got %d", depth)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := e.store.Snapshot()
	if !snap.Has(id) {
		return nil, types.NewNotFoundError("entity", id)
	}

	var (
		neighbors []NeighborNode
		truncated bool
		visited   = map[types.ID]bool{id: true}
		frontier  = []types.ID{id}
	)

levels:
	for dist := 1; dist <= depth && len(frontier) > 0; dist++ {
		var next []types.ID
		for _, current := range frontier {
			for _, edge := range incidentEdges(snap, current) {
				other := edge.Other(current)
				if visited[other] {
					continue
				}
				visited[other] = true
				if e.cfg.NeighborLimit > 0 && len(neighbors) >= e.cfg.NeighborLimit {
					truncated = true
					break levels
				}
				neighbors = append(neighbors, NeighborNode{
					Entity:   snap.Entity(other),
					Distance: dist,
				})
				next = append(next, other)
			}
		}
		frontier = next
	}

	resp := &NeighborsResponse{
		Neighbors: neighbors,
		Meta:      Meta{Strategy: StrategyNeighbors, Truncated: truncated},
	}
	e.finish(string(id), &resp.Meta, len(resp.Neighbors), start)
	return resp, nil
}
