package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlab/weft/internal/types"
)

func embedded(id string, vec ...float64) *Entity {
	return NewEntity(types.ID(id), id).WithEmbedding(vec)
}

func TestBruteForceIndex_Query(t *testing.T) {
	ix, err := newBruteForceIndex([]*Entity{
		embedded("a", 1, 0, 0),
		embedded("b", 0.9, 0.1, 0),
		embedded("c", 0, 1, 0),
	})
	require.NoError(t, err)

	hits, err := ix.query([]float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, types.ID("a"), hits[0].id)
	assert.InDelta(t, 1.0, hits[0].score, 1e-9)
	assert.Equal(t, types.ID("b"), hits[1].id)
	assert.Greater(t, hits[0].score, hits[1].score)
}

func TestBruteForceIndex_TiesBreakByAscendingID(t *testing.T) {
	// z and a carry identical vectors; a must win the tie.
	ix, err := newBruteForceIndex([]*Entity{
		embedded("z", 1, 0),
		embedded("a", 1, 0),
		embedded("m", 0, 1),
	})
	require.NoError(t, err)

	hits, err := ix.query([]float64{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3, "orthogonal vector scores zero similarity but is still returned")

	assert.Equal(t, types.ID("a"), hits[0].id)
	assert.Equal(t, types.ID("z"), hits[1].id)
	assert.Equal(t, types.ID("m"), hits[2].id)
}

func TestBruteForceIndex_Deterministic(t *testing.T) {
	entities := []*Entity{
		embedded("a", 0.5, 0.5, 0.1),
		embedded("b", 0.4, 0.6, 0.2),
		embedded("c", 0.3, 0.3, 0.9),
		embedded("d", 0.5, 0.5, 0.1),
	}
	ix, err := newBruteForceIndex(entities)
	require.NoError(t, err)

	first, err := ix.query([]float64{0.5, 0.5, 0.1}, 4)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ix.query([]float64{0.5, 0.5, 0.1}, 4)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBruteForceIndex_SkipsMissingEmbeddings(t *testing.T) {
	ix, err := newBruteForceIndex([]*Entity{
		embedded("a", 1, 0),
		NewEntity("bare", "no vector"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ix.len())

	hits, err := ix.query([]float64{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, types.ID("a"), hits[0].id)
}

func TestBruteForceIndex_DimensionMismatch(t *testing.T) {
	ix, err := newBruteForceIndex([]*Entity{embedded("a", 1, 0, 0)})
	require.NoError(t, err)

	_, err = ix.query([]float64{1, 0}, 1)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidation))
}

func TestBruteForceIndex_InconsistentWidthsRejected(t *testing.T) {
	_, err := newBruteForceIndex([]*Entity{
		embedded("a", 1, 0),
		embedded("b", 1, 0, 0),
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeStorageCorruption))
}

func TestBruteForceIndex_ZeroQueryVector(t *testing.T) {
	ix, err := newBruteForceIndex([]*Entity{embedded("a", 1, 0)})
	require.NoError(t, err)

	hits, err := ix.query([]float64{0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorCodec_RoundTrip(t *testing.T) {
	vec := []float64{0.125, -3.5, 0, 1e-12, 42}
	decoded, err := decodeVector(encodeVector(vec), len(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)
}

func TestVectorCodec_TruncatedBlob(t *testing.T) {
	raw := encodeVector([]float64{1, 2, 3})
	_, err := decodeVector(raw[:len(raw)-1], 3)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeStorageCorruption))
}
