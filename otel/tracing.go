package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TracingConfig configures OTLP trace export for the toolrun process.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP collector endpoint (host:port).
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// FlushTimeout bounds the final flush during shutdown (default 5s).
	FlushTimeout time.Duration
}

// SetupTracing installs a global tracer provider that exports spans via
// OTLP/HTTP. The returned shutdown function flushes and stops the provider;
// callers should defer it.
func SetupTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("otel: tracing endpoint is required")
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 5 * time.Second
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otel: create exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.FlushTimeout)
		defer cancel()
		return provider.Shutdown(ctx)
	}
	return shutdown, nil
}
