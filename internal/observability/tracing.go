package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"

	"github.com/weftlab/weft/internal/types"
	"github.com/weftlab/weft/pkg/version"
)

const (
	defaultBatchTimeout = 5 * time.Second
	defaultServiceName  = "weft"
)

// TracingConfig configures span export. Disabled tracing costs nothing:
// InitTracing hands back a provider that records no spans.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string // OTLP/gRPC collector, host:port
	Insecure    bool   // plaintext toward the collector
	SampleRate  float64
	ServiceName string
}

// Validate checks the config when tracing is enabled.
func (c TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return types.NewError(types.ErrCodeConfigInvalid,
			"tracing endpoint is required when tracing is enabled")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return types.NewError(types.ErrCodeConfigInvalid,
			"tracing sample rate must be within [0, 1]")
	}
	return nil
}

// TracingOption customizes InitTracing.
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	sampler      sdktrace.Sampler
	resource     *resource.Resource
	batchTimeout time.Duration
}

// WithSampler overrides the rate-based sampler.
func WithSampler(sampler sdktrace.Sampler) TracingOption {
	return func(o *tracingOptions) { o.sampler = sampler }
}

// WithResource overrides the telemetry resource.
func WithResource(res *resource.Resource) TracingOption {
	return func(o *tracingOptions) { o.resource = res }
}

// WithBatchTimeout sets the maximum time between batch exports.
func WithBatchTimeout(timeout time.Duration) TracingOption {
	return func(o *tracingOptions) { o.batchTimeout = timeout }
}

// InitTracing builds the tracer provider and installs it globally. With
// tracing disabled it returns a provider that records nothing, so
// callers never branch on the flag.
func InitTracing(ctx context.Context, cfg TracingConfig, opts ...TracingOption) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &tracingOptions{batchTimeout: defaultBatchTimeout}
	for _, opt := range opts {
		opt(options)
	}

	if options.sampler == nil {
		rate := cfg.SampleRate
		if rate == 0 {
			rate = 1
		}
		options.sampler = sdktrace.TraceIDRatioBased(rate)
	}

	if options.resource == nil {
		name := cfg.ServiceName
		if name == "" {
			name = defaultServiceName
		}
		res, err := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceName(name),
				semconv.ServiceVersion(version.Version),
			),
			resource.WithFromEnv(),
			resource.WithTelemetrySDK(),
		)
		if err != nil {
			return nil, err
		}
		options.resource = res
	}

	otlpOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		otlpOpts = append(otlpOpts, otlptracegrpc.WithInsecure())
	} else {
		otlpOpts = append(otlpOpts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(nil)))
	}
	exporter, err := otlptracegrpc.New(ctx, otlpOpts...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(options.batchTimeout)),
		sdktrace.WithSampler(options.sampler),
		sdktrace.WithResource(options.resource),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// ShutdownTracing flushes pending spans; call it before exit.
func ShutdownTracing(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
