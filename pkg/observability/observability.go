// Package observability provides OpenTelemetry metrics for the trust
// engine: evaluation and alert rates, trust-tier transitions, and the
// distribution of confidence scores, exported over OTLP gRPC.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config configures the OpenTelemetry metric provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // e.g. "localhost:4317" for gRPC
	ExportInterval time.Duration
	Enabled        bool
	Insecure       bool // use insecure connection (dev only)
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "veracity",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		ExportInterval: 15 * time.Second,
		Enabled:        true,
		Insecure:       false,
	}
}

// Provider manages the OpenTelemetry meter provider and the engine's
// instruments. A disabled provider is a safe no-op.
type Provider struct {
	config        *Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	logger        *slog.Logger

	evaluationCounter metric.Int64Counter
	alertCounter      metric.Int64Counter
	tierTransitions   metric.Int64Counter
	confidenceHist    metric.Float64Histogram
}

// New creates a new observability provider.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}

	if !config.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
			attribute.String("veracity.component", "core"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	p.meter = otel.Meter("veracity.engine",
		metric.WithInstrumentationVersion(config.ServiceVersion),
	)
	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to init instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
		"insecure", config.Insecure,
	)
	return p, nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(p.config.ExportInterval),
		)),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error

	p.evaluationCounter, err = p.meter.Int64Counter("veracity.evaluations.total",
		metric.WithDescription("Total number of evidence evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return err
	}

	p.alertCounter, err = p.meter.Int64Counter("veracity.alerts.total",
		metric.WithDescription("Total number of deception alerts emitted"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return err
	}

	p.tierTransitions, err = p.meter.Int64Counter("veracity.tier_transitions.total",
		metric.WithDescription("Total number of authorization tier transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	p.confidenceHist, err = p.meter.Float64Histogram("veracity.confidence.score",
		metric.WithDescription("Distribution of overall confidence scores"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9),
	)
	return err
}

// Shutdown gracefully shuts down the meter provider, flushing pending
// exports.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		return err
	}
	return nil
}

// Meter returns the configured meter.
func (p *Provider) Meter() metric.Meter {
	if p.meter == nil {
		return otel.Meter("veracity.engine")
	}
	return p.meter
}

// RecordEvaluation records one confidence evaluation.
func (p *Provider) RecordEvaluation(ctx context.Context, score float64, riskLevel string) {
	attrs := metric.WithAttributes(attribute.String("risk_level", riskLevel))
	if p.evaluationCounter != nil {
		p.evaluationCounter.Add(ctx, 1, attrs)
	}
	if p.confidenceHist != nil {
		p.confidenceHist.Record(ctx, score, attrs)
	}
}

// RecordAlert records one emitted deception alert.
func (p *Provider) RecordAlert(ctx context.Context, severity, pattern string) {
	if p.alertCounter != nil {
		p.alertCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("severity", severity),
			attribute.String("pattern", pattern),
		))
	}
}

// RecordTierTransition records an agent moving between authorization
// tiers.
func (p *Provider) RecordTierTransition(ctx context.Context, from, to string) {
	if p.tierTransitions != nil {
		p.tierTransitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		))
	}
}
