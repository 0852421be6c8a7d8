// Package observability wires the ambient telemetry: slog logging with
// trace correlation and OpenTelemetry tracer-provider setup. The query
// trace log lives in the graph store, not here.
package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/weftlab/weft/internal/types"
)

// NewLogger builds the root logger from the configured level and
// format. Component packages derive their own via
// logger.With("component", ...).
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = NewJSONHandler(w, lvl)
	case "", "text":
		handler = NewTextHandler(w, lvl)
	default:
		return nil, types.NewError(types.ErrCodeConfigInvalid,
			"log format must be json or text, got "+format)
	}
	return slog.New(handler), nil
}

// NewJSONHandler creates a JSON log handler, the format for anything
// that ships logs to a collector.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// NewTextHandler creates a human-readable handler for terminal use.
func NewTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

// ParseLevel maps a config level string onto a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, types.NewError(types.ErrCodeConfigInvalid,
			"log level must be debug, info, warn, or error, got "+level)
	}
}

// WithTrace returns the logger annotated with the trace and span ids of
// the span in ctx, or the logger unchanged when no span is recording.
// Log lines emitted inside a traced operation become joinable with the
// exported spans.
func WithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}
