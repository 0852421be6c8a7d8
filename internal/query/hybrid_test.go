package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
)

func floatPtr(v float64) *float64 { return &v }

func TestHybridSearch_ScenarioRanking(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	// The messaging pair must outrank the http component for a chat
	// query.
	resp, err := e.HybridSearch(context.Background(), "send a chat message", 2, Options{})
	require.NoError(t, err)
	assert.Equal(t, StrategyHybrid, resp.Meta.Strategy)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, []types.ID{"a", "b"}, resultIDs(resp.Results))

	for _, r := range resp.Results {
		assert.Greater(t, r.SemanticScore, 0.0)
		assert.Greater(t, r.KeywordScore, 0.0)
	}
}

func TestHybridSearch_WeightOverrideValidation(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	_, err := e.HybridSearch(context.Background(), "chat", 2, Options{
		SemanticWeight: floatPtr(0.8),
		KeywordWeight:  floatPtr(0.3),
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidation))

	_, err = e.HybridSearch(context.Background(), "chat", 2, Options{
		SemanticWeight: floatPtr(-0.1),
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidation))
}

func TestHybridSearch_GraphBoostNeverPromotes(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	// d is 1-hop from the top semantic hit but has no embedding and no
	// lexical overlap with the query: the boost must not conjure it
	// into the results.
	resp, err := e.HybridSearch(context.Background(), "send a chat message", 4, Options{})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotEqual(t, types.ID("d"), r.Entity.ID,
			"graph boost must never promote an entity absent from semantic and keyword results")
	}

	// b is both a candidate and a 1-hop neighbor of the seed a, so it
	// carries the boost.
	var b *Result
	for i := range resp.Results {
		if resp.Results[i].Entity.ID == "b" {
			b = &resp.Results[i]
		}
	}
	require.NotNil(t, b)
	assert.Equal(t, e.cfg.GraphWeight, b.GraphBoost)
}

func TestHybridSearch_DegradesToKeywordOnly(t *testing.T) {
	store, provider := newFixture(t)
	provider.err = errors.New("provider offline")
	e := newTestEngine(t, store, provider)

	resp, err := e.HybridSearch(context.Background(), "chat message", 2, Options{})
	require.NoError(t, err)
	assert.Equal(t, StrategyKeywordDegraded, resp.Meta.Strategy)
	assert.True(t, resp.Meta.Degraded)
	assert.NotEmpty(t, resp.Results)
}

func TestHybridSearch_DeterministicTieBreak(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	first, err := e.HybridSearch(context.Background(), "send a chat message", 3, Options{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.HybridSearch(context.Background(), "send a chat message", 3, Options{})
		require.NoError(t, err)
		assert.Equal(t, resultIDs(first.Results), resultIDs(again.Results))
	}
}

// TestFuse_Monotonicity pins the fusion property: raising the semantic
// weight while lowering the keyword weight by the same amount never
// drops a semantically-stronger result below its keyword-stronger
// counterpart.
func TestFuse_Monotonicity(t *testing.T) {
	x := Result{Entity: graph.NewEntity("x", "X"), SemanticScore: 0.9, KeywordScore: 0.1}
	y := Result{Entity: graph.NewEntity("y", "Y"), SemanticScore: 0.1, KeywordScore: 0.9}

	rank := func(sw, kw float64) (xScore, yScore float64) {
		merged := fuse([]Result{x, y}, []Result{x, y}, sw, kw)
		return merged["x"].Score, merged["y"].Score
	}

	baseX, baseY := rank(0.60, 0.25)
	require.Greater(t, baseX, baseY)

	for _, delta := range []float64{0.05, 0.10, 0.15, 0.25} {
		xs, ys := rank(0.60+delta, 0.25-delta)
		assert.Greater(t, xs, ys,
			"shifting weight toward semantic (delta %.2f) must keep the semantic-stronger result ahead", delta)
		assert.GreaterOrEqual(t, xs, baseX)
	}
}

func TestFuse_MergesByID(t *testing.T) {
	a := graph.NewEntity("a", "A")
	semantic := []Result{{Entity: a, SemanticScore: 0.8}}
	keyword := []Result{{Entity: a, KeywordScore: 0.5}, {Entity: graph.NewEntity("b", "B"), KeywordScore: 1.0}}

	merged := fuse(semantic, keyword, 0.6, 0.25)
	require.Len(t, merged, 2)
	assert.InDelta(t, 0.6*0.8+0.25*0.5, merged["a"].Score, 1e-9)
	assert.InDelta(t, 0.25*1.0, merged["b"].Score, 1e-9)
	assert.Zero(t, merged["b"].SemanticScore)
}
