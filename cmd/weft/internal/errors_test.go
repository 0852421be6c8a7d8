package internal

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/weftlab/weft/internal/types"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.SetErr(&bytes.Buffer{})
	return cmd
}

func TestHandleError_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"cancelled", context.Canceled, ExitCancelled},
		{"deadline", context.DeadlineExceeded, ExitTimeout},
		{"cli error", NewCLIError(ExitConfigError, "bad config"), ExitConfigError},
		{"wrapped cli error", fmt.Errorf("outer: %w", NewCLIError(ExitBuildError, "nope")), ExitBuildError},
		{"config invalid", types.NewError(types.ErrCodeConfigInvalid, "bad"), ExitConfigError},
		{"build in progress", types.NewBuildInProgressError(), ExitBuildError},
		{"storage corruption", types.NewStorageCorruptionError("broken", nil), ExitStorageError},
		{"not found", types.NewNotFoundError("entity", "x"), ExitError},
		{"generic", fmt.Errorf("boom"), ExitError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HandleError(newTestCommand(), tc.err))
		})
	}
}

func TestCLIError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("inner")
	err := WrapError(ExitStorageError, "outer", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "outer")
	assert.Contains(t, err.Error(), "inner")
}
