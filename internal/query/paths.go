package query

import (
	"context"
	"fmt"
	"time"

	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
)

// pathState is one partial route on the BFS frontier. Each state tracks
// its own visited set so cycles never extend a path, while distinct
// routes through shared intermediate nodes stay independent.
type pathState struct {
	nodes      []types.ID
	edges      []*graph.Edge
	confidence float64
	visited    map[types.ID]bool
}

func (s *pathState) extend(edge *graph.Edge, to types.ID) *pathState {
	next := &pathState{
		nodes:      append(append([]types.ID(nil), s.nodes...), to),
		edges:      append(append([]*graph.Edge(nil), s.edges...), edge),
		confidence: s.confidence * edge.Strength,
		visited:    make(map[types.ID]bool, len(s.visited)+1),
	}
	for id := range s.visited {
		next.visited[id] = true
	}
	next.visited[to] = true
	return next
}

// StreamPaths searches breadth-first for routes from source to target,
// handing each path to yield the instant it is found rather than
// waiting for the search to finish. Paths arrive shallowest first;
// order among same-depth ties follows adjacency insertion order, which
// is documented behavior rather than a guarantee callers should lean
// on. The search stops when yield returns false, maxPaths paths have
// been emitted (reported as truncated), or the frontier passes maxHops.
// source == target yields exactly one zero-length path immediately.
func (e *Engine) StreamPaths(ctx context.Context, source, target types.ID, maxHops, maxPaths int, yield func(Path) bool) (Meta, error) {
	start := time.Now()
	meta := Meta{Strategy: StrategyPaths}
	if maxHops <= 0 {
		return meta, types.NewValidationError("maxHops must be positive, got %d", maxHops)
	}
	if maxPaths <= 0 {
		return meta, types.NewValidationError("maxPaths must be positive, got %d", maxPaths)
	}
	if yield == nil {
		return meta, types.NewValidationError("yield function cannot be nil")
	}

	snap := e.store.Snapshot()
	if !snap.Has(source) {
		return meta, types.NewNotFoundError("entity", source)
	}
	if !snap.Has(target) {
		return meta, types.NewNotFoundError("entity", target)
	}

	emitted := 0
	emit := func(p Path) bool {
		emitted++
		more := yield(p)
		if emitted >= maxPaths {
			meta.Truncated = true
			return false
		}
		return more
	}

	defer func() {
		e.finish(fmt.Sprintf("%s -> %s", source, target), &meta, emitted, start)
	}()

	if source == target {
		emit(Path{Entities: []types.ID{source}, Confidence: 1})
		return meta, nil
	}

	frontier := []*pathState{{
		nodes:      []types.ID{source},
		confidence: 1,
		visited:    map[types.ID]bool{source: true},
	}}

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		if err := ctx.Err(); err != nil {
			return meta, err
		}
		var next []*pathState
		for _, state := range frontier {
			from := state.nodes[len(state.nodes)-1]
			for _, edge := range incidentEdges(snap, from) {
				to := edge.Other(from)
				if state.visited[to] {
					continue
				}
				extended := state.extend(edge, to)
				if to == target {
					if !emit(Path{
						Entities:   extended.nodes,
						Edges:      extended.edges,
						Confidence: extended.confidence,
					}) {
						return meta, nil
					}
					continue
				}
				if hop < maxHops {
					next = append(next, extended)
				}
			}
		}
		frontier = next
	}
	return meta, nil
}

// Paths collects up to maxPaths routes from source to target within
// maxHops. Path confidence is the product of traversed edge strengths.
func (e *Engine) Paths(ctx context.Context, source, target types.ID, maxHops, maxPaths int) (*PathsResponse, error) {
	var paths []Path
	meta, err := e.StreamPaths(ctx, source, target, maxHops, maxPaths, func(p Path) bool {
		paths = append(paths, p)
		return true
	})
	if err != nil {
		return nil, err
	}
	return &PathsResponse{Paths: paths, Meta: meta}, nil
}
