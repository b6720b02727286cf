package runner

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservabilityOptions configures optional OpenTelemetry integration.
// When both fields are nil the runner records nothing.
type ObservabilityOptions struct {
	// Tracer creates one span per scenario result.
	Tracer trace.Tracer

	// MeterProvider creates the scenario score/duration/count instruments.
	MeterProvider metric.MeterProvider
}

// observer holds the initialized instruments. Instrument creation failures
// degrade to logging-only; observability must never break a run.
type observer struct {
	tracer trace.Tracer
	logger *slog.Logger

	scoreHistogram    metric.Float64Histogram
	durationHistogram metric.Float64Histogram
	countCounter      metric.Int64Counter
}

// newObserver initializes instruments from the options.
func newObserver(opts ObservabilityOptions, logger *slog.Logger) *observer {
	o := &observer{tracer: opts.Tracer, logger: logger}

	if opts.MeterProvider == nil {
		return o
	}

	meter := opts.MeterProvider.Meter("github.com/fabrik-ai/fabrik/runner")

	var err error
	if o.scoreHistogram, err = meter.Float64Histogram(
		"fabrik.scenario.score",
		metric.WithDescription("Scenario score from 0.0 (worst) to 1.0 (best)"),
		metric.WithUnit("1"),
	); err != nil {
		logger.Warn("failed to create score histogram", "error", err)
	}

	if o.durationHistogram, err = meter.Float64Histogram(
		"fabrik.scenario.duration",
		metric.WithDescription("Scenario execution duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		logger.Warn("failed to create duration histogram", "error", err)
	}

	if o.countCounter, err = meter.Int64Counter(
		"fabrik.scenario.count",
		metric.WithDescription("Number of scenarios executed"),
		metric.WithUnit("1"),
	); err != nil {
		logger.Warn("failed to create scenario counter", "error", err)
	}

	return o
}

// record emits a span and metrics for one scenario result.
func (o *observer) record(ctx context.Context, name string, result RunResult) {
	attrs := []attribute.KeyValue{
		attribute.String("scenario.name", name),
		attribute.Bool("scenario.passed", result.Passed),
		attribute.Float64("scenario.score", result.Score),
		attribute.Int("scenario.assertions", len(result.Assertions)),
	}

	if o.tracer != nil {
		_, span := o.tracer.Start(ctx, fmt.Sprintf("scenario.%s", name),
			trace.WithAttributes(attrs...))
		if result.Passed {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, result.Error)
		}
		span.End()
	}

	if o.scoreHistogram != nil {
		o.scoreHistogram.Record(ctx, result.Score, metric.WithAttributes(attrs...))
	}
	if o.durationHistogram != nil {
		o.durationHistogram.Record(ctx, float64(result.Duration.Milliseconds()), metric.WithAttributes(attrs...))
	}
	if o.countCounter != nil {
		o.countCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
