// Package telemetry wires OpenTelemetry tracing and metrics for the binaries.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Ad1th/Poster-Website/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// Providers holds the installed providers so they can be flushed on shutdown.
type Providers struct {
	tracer  *tracesdk.TracerProvider
	meter   *sdkmetric.MeterProvider
	handler http.Handler
}

// Setup installs the global tracer and meter providers described by cfg.
// Disabled signals fall back to the otel no-op providers.
func Setup(ctx context.Context, serviceName string, cfg config.TelemetryConfig) (*Providers, error) {
	p := &Providers{}
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String(serviceName))

	if cfg.Traces.Enabled {
		tp, err := NewTracerProvider(ctx, res, cfg.Traces.OtlpHttp)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer provider: %w", err)
		}
		p.tracer = tp
	}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		p.meter = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))
		otel.SetMeterProvider(p.meter)
		p.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	return p, nil
}

// NewTracerProvider exports spans over OTLP/HTTP and installs the W3C propagators.
func NewTracerProvider(ctx context.Context, res *resource.Resource, cfg config.OtlpHttpConfig) (*tracesdk.TracerProvider, error) {
	collectorOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		collectorOpts = append(collectorOpts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, collectorOpts...)
	if err != nil {
		return nil, err
	}
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}

// MetricsHandler serves the Prometheus scrape endpoint, or nil when metrics are off.
func (p *Providers) MetricsHandler() http.Handler {
	return p.handler
}

// Shutdown flushes and stops every installed provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.tracer != nil {
		if err := p.tracer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.meter != nil {
		if err := p.meter.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
