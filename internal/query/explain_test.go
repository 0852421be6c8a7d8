package query

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlab/weft/internal/types"
)

func TestExplain_DirectMatchEvidence(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	exp, err := e.Explain(context.Background(), "send a chat message", "a", []types.ID{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, types.ID("a"), exp.EntityID)
	assert.Equal(t, "Slack Notify", exp.Label)

	assert.Equal(t, []string{"chat", "message", "send"}, exp.MatchedTerms)
	assert.Equal(t, []string{"send notifications through Slack Notify"}, exp.MatchedUseCases)
	assert.Contains(t, exp.Text, "matches the query terms")
}

func TestExplain_ConnectionsCarryEdgeReasoning(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	exp, err := e.Explain(context.Background(), "send a chat message", "a", []types.ID{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, exp.Connections, 2)

	joined := strings.Join(exp.Connections, "\n")
	assert.Contains(t, joined, "belongs-to-category Discord Notify (strength 0.80)")
	assert.Contains(t, joined, "Slack Notify and Discord Notify are both messaging components")
	assert.Contains(t, joined, "used-in-pattern HTTP Request (strength 0.50)")
}

func TestExplain_GraphOnlyResultExplainedByEdges(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	// d shares no vocabulary with the query; its justification must come
	// entirely from its recorded edge.
	exp, err := e.Explain(context.Background(), "send a chat message", "d", []types.ID{"a", "d"})
	require.NoError(t, err)
	assert.Empty(t, exp.MatchedTerms)
	assert.Empty(t, exp.MatchedUseCases)
	require.Len(t, exp.Connections, 1)
	assert.Contains(t, exp.Connections[0], "compatible-with Slack Notify (strength 0.60)")
	assert.Contains(t, exp.Text, "Graph connections")
}

func TestExplain_NothingInventedFallback(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	// No term overlap, no edges toward the other results: the text says
	// so instead of fabricating evidence.
	exp, err := e.Explain(context.Background(), "quantum widgets", "c", []types.ID{"c"})
	require.NoError(t, err)
	assert.Empty(t, exp.MatchedTerms)
	assert.Empty(t, exp.MatchedUseCases)
	assert.Empty(t, exp.Connections)
	assert.Equal(t, "HTTP Request was ranked by overall similarity to the query.", exp.Text)
}

func TestExplain_IgnoresUnknownResultIDs(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)

	exp, err := e.Explain(context.Background(), "chat", "a", []types.ID{"a", "ghost"})
	require.NoError(t, err)
	assert.Empty(t, exp.Connections)
}

func TestExplain_Validation(t *testing.T) {
	store, provider := newFixture(t)
	e := newTestEngine(t, store, provider)
	ctx := context.Background()

	_, err := e.Explain(ctx, "  ", "a", nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidation))

	_, err = e.Explain(ctx, "chat", "missing", nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeNotFound))
}
