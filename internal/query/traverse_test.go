package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlab/weft/internal/types"
)

func neighborIDs(nodes []NeighborNode) []types.ID {
	ids := make([]types.ID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.Entity.ID
	}
	return ids
}

func TestNeighbors_SingleHop(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	resp, err := e.Neighbors(context.Background(), "a", 1)
	require.NoError(t, err)
	assert.Equal(t, StrategyNeighbors, resp.Meta.Strategy)
	assert.ElementsMatch(t, []types.ID{"b", "c", "d"}, neighborIDs(resp.Neighbors))
	for _, n := range resp.Neighbors {
		assert.Equal(t, 1, n.Distance)
	}
}

func TestNeighbors_SymmetricEdgesTraverseBothWays(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	// b is only ever an edge target in the committed set; the undirected
	// view must still reach a from it.
	resp, err := e.Neighbors(context.Background(), "b", 1)
	require.NoError(t, err)
	assert.Equal(t, []types.ID{"a"}, neighborIDs(resp.Neighbors))
}

func TestNeighbors_MinimumHopDistance(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	// From b the star center a is 1 hop away and the other leaves are 2.
	resp, err := e.Neighbors(context.Background(), "b", 2)
	require.NoError(t, err)
	require.Len(t, resp.Neighbors, 3)

	distances := map[types.ID]int{}
	for _, n := range resp.Neighbors {
		distances[n.Entity.ID] = n.Distance
	}
	assert.Equal(t, map[types.ID]int{"a": 1, "c": 2, "d": 2}, distances)
}

func TestNeighbors_ExcludesStartAndReportsOnce(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	// Depth 3 walks back over a repeatedly; every node still appears at
	// most once and the start never does.
	resp, err := e.Neighbors(context.Background(), "a", 3)
	require.NoError(t, err)
	seen := map[types.ID]bool{}
	for _, n := range resp.Neighbors {
		assert.NotEqual(t, types.ID("a"), n.Entity.ID)
		assert.False(t, seen[n.Entity.ID], "entity %s reported twice", n.Entity.ID)
		seen[n.Entity.ID] = true
	}
	assert.Len(t, resp.Neighbors, 3)
}

func TestNeighbors_Validation(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	_, err := e.Neighbors(context.Background(), "a", 0)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidation))

	_, err = e.Neighbors(context.Background(), "missing", 1)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeNotFound))
}

func TestNeighbors_LimitTruncates(t *testing.T) {
	store, provider := newFixture(t)
	e, err := NewEngine(store, provider, Config{NeighborLimit: 2}, nil)
	require.NoError(t, err)

	resp, err := e.Neighbors(context.Background(), "a", 1)
	require.NoError(t, err)
	assert.Len(t, resp.Neighbors, 2)
	assert.True(t, resp.Meta.Truncated)
}
