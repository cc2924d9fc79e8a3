package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("generation-metrics")

// GenerationMetrics provides metrics collection for code generation attempts
type GenerationMetrics struct {
	attemptsStartedCounter   metric.Int64Counter
	attemptsCompletedCounter metric.Int64Counter
	attemptsFailedCounter    metric.Int64Counter
	fallbacksCounter         metric.Int64Counter
	skippedRecordsCounter    metric.Int64Counter
	attemptDurationHistogram metric.Float64Histogram
	attemptsActiveGauge      metric.Int64UpDownCounter
}

// NewGenerationMetrics creates a new generation metrics collector
func NewGenerationMetrics() (*GenerationMetrics, error) {
	attemptsStartedCounter, err := meter.Int64Counter(
		"flash_agent.attempts.started",
		metric.WithDescription("Total number of generation attempts started"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	attemptsCompletedCounter, err := meter.Int64Counter(
		"flash_agent.attempts.completed",
		metric.WithDescription("Total number of generation attempts that produced a result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	attemptsFailedCounter, err := meter.Int64Counter(
		"flash_agent.attempts.failed",
		metric.WithDescription("Total number of generation attempts that ended without a result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	fallbacksCounter, err := meter.Int64Counter(
		"flash_agent.fallbacks",
		metric.WithDescription("Total number of real-path failures that fell back to the mock generator"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return nil, err
	}

	skippedRecordsCounter, err := meter.Int64Counter(
		"flash_agent.stream.skipped_records",
		metric.WithDescription("Total number of malformed stream records skipped"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	attemptDurationHistogram, err := meter.Float64Histogram(
		"flash_agent.attempt.duration",
		metric.WithDescription("Duration of generation attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	attemptsActiveGauge, err := meter.Int64UpDownCounter(
		"flash_agent.attempts.active",
		metric.WithDescription("Number of generation attempts currently running"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return &GenerationMetrics{
		attemptsStartedCounter:   attemptsStartedCounter,
		attemptsCompletedCounter: attemptsCompletedCounter,
		attemptsFailedCounter:    attemptsFailedCounter,
		fallbacksCounter:         fallbacksCounter,
		skippedRecordsCounter:    skippedRecordsCounter,
		attemptDurationHistogram: attemptDurationHistogram,
		attemptsActiveGauge:      attemptsActiveGauge,
	}, nil
}

// RecordAttemptStarted records a new generation attempt
func (gm *GenerationMetrics) RecordAttemptStarted(ctx context.Context, language string, mockForced bool) {
	gm.attemptsStartedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("language", language),
			attribute.Bool("mock_forced", mockForced),
		),
	)
	gm.attemptsActiveGauge.Add(ctx, 1)
}

// RecordFallback records a real-path failure that switched to the mock generator
func (gm *GenerationMetrics) RecordFallback(ctx context.Context, reason string) {
	gm.fallbacksCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("reason", reason),
		),
	)
}

// RecordSkippedRecords records malformed stream records dropped by the decoder
func (gm *GenerationMetrics) RecordSkippedRecords(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	gm.skippedRecordsCounter.Add(ctx, int64(count))
}

// RecordAttemptCompleted records an attempt that produced a result
func (gm *GenerationMetrics) RecordAttemptCompleted(ctx context.Context, path, language string, duration time.Duration) {
	gm.attemptsCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("path", path),
			attribute.String("language", language),
		),
	)
	gm.attemptDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("path", path),
			attribute.String("status", "completed"),
		),
	)
	gm.attemptsActiveGauge.Add(ctx, -1)
}

// RecordAttemptFailed records an attempt that ended with a terminal error
func (gm *GenerationMetrics) RecordAttemptFailed(ctx context.Context, errorType string, duration time.Duration) {
	gm.attemptsFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.type", errorType),
		),
	)
	gm.attemptDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", "failed"),
		),
	)
	gm.attemptsActiveGauge.Add(ctx, -1)
}
