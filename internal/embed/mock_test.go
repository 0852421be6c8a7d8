package embed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlab/weft/internal/types"
)

func TestMockProvider_MatchesLocalScheme(t *testing.T) {
	ctx := context.Background()

	mock := NewMockProvider()
	mock.SetDimensions(32)
	mock.SetModel("local-hash-v1")

	local, err := NewLocalProvider(Config{Model: "local-hash-v1", Dimensions: 32})
	require.NoError(t, err)

	fromMock, err := mock.Embed(ctx, "webhook trigger")
	require.NoError(t, err)
	fromLocal, err := local.Embed(ctx, "webhook trigger")
	require.NoError(t, err)

	assert.Equal(t, fromLocal, fromMock, "mock must reproduce the local provider's vectors")
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	ctx := context.Background()
	mock := NewMockProvider()

	_, err := mock.Embed(ctx, "one")
	require.NoError(t, err)
	_, err = mock.EmbedBatch(ctx, []string{"two", "three"})
	require.NoError(t, err)
	mock.Health(ctx)

	assert.Equal(t, 3, mock.CallCount())
	assert.Len(t, mock.GetCallsByMethod("Embed"), 1)
	assert.Len(t, mock.GetCallsByMethod("EmbedBatch"), 1)

	mock.Reset()
	assert.Equal(t, 0, mock.CallCount())
}

func TestMockProvider_FailBatches(t *testing.T) {
	ctx := context.Background()
	mock := NewMockProvider()
	mock.FailBatches(2)

	_, err := mock.EmbedBatch(ctx, []string{"a"})
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))

	_, err = mock.EmbedBatch(ctx, []string{"a"})
	require.Error(t, err)

	vectors, err := mock.EmbedBatch(ctx, []string{"a"})
	require.NoError(t, err, "failures should clear after the configured count")
	assert.Len(t, vectors, 1)
}

func TestMockProvider_DelayHonorsContext(t *testing.T) {
	mock := NewMockProvider()
	mock.SetDelay(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := mock.Embed(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
