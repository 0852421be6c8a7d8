package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewLogger_FormatsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown", "component", "test")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "test", entry["component"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewLogger_RejectsUnknownSettings(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewLogger(&buf, "loud", "json")
	assert.Error(t, err)

	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestParseLevel_Defaults(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestWithTrace_AnnotatesInsideSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", "json")
	require.NoError(t, err)

	WithTrace(ctx, logger).Info("inside span")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestWithTrace_NoSpanIsPassThrough(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", "json")
	require.NoError(t, err)

	WithTrace(context.Background(), logger).Info("no span")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestInitTracing_DisabledStillUsable(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tp)

	// No exporter is registered, so spans go nowhere, but callers can
	// still start and end them without branching on the flag.
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()
	assert.NoError(t, ShutdownTracing(context.Background(), tp))
}

func TestTracingConfig_Validate(t *testing.T) {
	assert.NoError(t, TracingConfig{Enabled: false}.Validate())
	assert.Error(t, TracingConfig{Enabled: true}.Validate())
	assert.Error(t, TracingConfig{Enabled: true, Endpoint: "localhost:4317", SampleRate: 2}.Validate())
	assert.NoError(t, TracingConfig{Enabled: true, Endpoint: "localhost:4317", SampleRate: 0.5}.Validate())
}

func TestShutdownTracing_NilProvider(t *testing.T) {
	assert.NoError(t, ShutdownTracing(context.Background(), nil))
}
