// Package telemetry wires OpenTelemetry tracing and metrics for Sesame.
//
// Metrics are exposed through the Prometheus exporter; traces go to an OTLP
// endpoint when one is configured. A nil *Provider (or one built with
// Enabled=false) is safe to use everywhere and records nothing.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the telemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is the OTLP exporter endpoint for traces.
	// Leave empty to disable trace export.
	OTLPEndpoint string

	Enabled bool
}

// DefaultConfig returns a default telemetry configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "sesame",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Enabled:        true,
	}
}

// Provider manages the OpenTelemetry tracer and meter providers plus the
// instruments the login flows record on.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer

	issuedCounter   metric.Int64Counter
	consumedCounter metric.Int64Counter
	deniedCounter   metric.Int64Counter
}

// NewProvider creates a new telemetry provider.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{config: cfg}, nil
	}

	p := &Provider{config: cfg}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	if err := p.setupTracing(res); err != nil {
		return nil, err
	}
	if err := p.setupMetrics(res); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	}

	if p.config.OTLPEndpoint != "" {
		exporter, err := otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer(p.config.ServiceName)
	return nil
}

func (p *Provider) setupMetrics(res *resource.Resource) error {
	exporter, err := prometheus.New()
	if err != nil {
		return err
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(p.meterProvider)
	meter := p.meterProvider.Meter(p.config.ServiceName)

	p.issuedCounter, err = meter.Int64Counter(
		"sesame.tokens.issued",
		metric.WithDescription("Total number of login tokens issued"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	p.consumedCounter, err = meter.Int64Counter(
		"sesame.tokens.consumed",
		metric.WithDescription("Total number of login tokens successfully consumed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	p.deniedCounter, err = meter.Int64Counter(
		"sesame.tokens.denied",
		metric.WithDescription("Total number of rejected verification attempts"),
		metric.WithUnit("1"),
	)
	return err
}

// Tracer returns the provider's tracer. Never returns nil.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return otel.Tracer("sesame")
	}
	return p.tracer
}

// RecordIssued counts an issued login token.
func (p *Provider) RecordIssued(ctx context.Context) {
	if p == nil || p.issuedCounter == nil {
		return
	}
	p.issuedCounter.Add(ctx, 1)
}

// RecordConsumed counts a successful verification.
func (p *Provider) RecordConsumed(ctx context.Context) {
	if p == nil || p.consumedCounter == nil {
		return
	}
	p.consumedCounter.Add(ctx, 1)
}

// RecordDenied counts a rejected verification attempt.
func (p *Provider) RecordDenied(ctx context.Context, reason string) {
	if p == nil || p.deniedCounter == nil {
		return
	}
	p.deniedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.meterProvider != nil {
		return p.meterProvider.Shutdown(ctx)
	}
	return nil
}
