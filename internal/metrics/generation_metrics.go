package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("generation-metrics")

// GenerationMetrics provides metrics collection for generation calls and
// the integrity guard.
type GenerationMetrics struct {
	generationsStartedCounter   metric.Int64Counter
	generationsCompletedCounter metric.Int64Counter
	generationsFailedCounter    metric.Int64Counter
	generationDurationHistogram metric.Float64Histogram
	generationsActiveGauge      metric.Int64UpDownCounter
	guardRejectionsCounter      metric.Int64Counter
	queueDepthGauge             metric.Int64UpDownCounter
}

// NewGenerationMetrics creates a new generation metrics collector
func NewGenerationMetrics() (*GenerationMetrics, error) {
	generationsStartedCounter, err := meter.Int64Counter(
		"oneclick_studio.generations.started",
		metric.WithDescription("Total number of generation calls issued"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	generationsCompletedCounter, err := meter.Int64Counter(
		"oneclick_studio.generations.completed",
		metric.WithDescription("Total number of generation calls completed successfully"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	generationsFailedCounter, err := meter.Int64Counter(
		"oneclick_studio.generations.failed",
		metric.WithDescription("Total number of generation calls that failed"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	generationDurationHistogram, err := meter.Float64Histogram(
		"oneclick_studio.generation.duration",
		metric.WithDescription("Duration of generation calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	generationsActiveGauge, err := meter.Int64UpDownCounter(
		"oneclick_studio.generations.active",
		metric.WithDescription("Number of generation calls currently in flight"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	guardRejectionsCounter, err := meter.Int64Counter(
		"oneclick_studio.guard.rejections",
		metric.WithDescription("Automatic overwrites rejected by the integrity guard"),
		metric.WithUnit("{path}"),
	)
	if err != nil {
		return nil, err
	}

	queueDepthGauge, err := meter.Int64UpDownCounter(
		"oneclick_studio.queue.depth",
		metric.WithDescription("Pending autonomous steps across sessions"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, err
	}

	return &GenerationMetrics{
		generationsStartedCounter:   generationsStartedCounter,
		generationsCompletedCounter: generationsCompletedCounter,
		generationsFailedCounter:    generationsFailedCounter,
		generationDurationHistogram: generationDurationHistogram,
		generationsActiveGauge:      generationsActiveGauge,
		guardRejectionsCounter:      guardRejectionsCounter,
		queueDepthGauge:             queueDepthGauge,
	}, nil
}

// RecordGenerationStarted records a generation call being issued
func (gm *GenerationMetrics) RecordGenerationStarted(ctx context.Context, projectID string, automatic bool) {
	gm.generationsStartedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Bool("automatic", automatic),
		),
	)
	gm.generationsActiveGauge.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
		),
	)
}

// RecordGenerationCompleted records a successful generation call
func (gm *GenerationMetrics) RecordGenerationCompleted(ctx context.Context, projectID string, automatic bool, duration time.Duration) {
	gm.generationsCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Bool("automatic", automatic),
			attribute.String("status", "completed"),
		),
	)
	gm.generationDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Bool("automatic", automatic),
			attribute.String("status", "completed"),
		),
	)
	gm.generationsActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
		),
	)
}

// RecordGenerationFailed records a failed generation call
func (gm *GenerationMetrics) RecordGenerationFailed(ctx context.Context, projectID string, automatic bool, duration time.Duration) {
	gm.generationsFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Bool("automatic", automatic),
			attribute.String("status", "failed"),
		),
	)
	gm.generationDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Bool("automatic", automatic),
			attribute.String("status", "failed"),
		),
	)
	gm.generationsActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
		),
	)
}

// RecordGuardRejections records integrity guard rejections for a batch
func (gm *GenerationMetrics) RecordGuardRejections(ctx context.Context, projectID string, count int) {
	if count == 0 {
		return
	}
	gm.guardRejectionsCounter.Add(ctx, int64(count),
		metric.WithAttributes(
			attribute.String("project.id", projectID),
		),
	)
}

// RecordQueueDepthChange adjusts the pending-step gauge
func (gm *GenerationMetrics) RecordQueueDepthChange(ctx context.Context, projectID string, delta int) {
	if delta == 0 {
		return
	}
	gm.queueDepthGauge.Add(ctx, int64(delta),
		metric.WithAttributes(
			attribute.String("project.id", projectID),
		),
	)
}
