// Package observability records pipeline metrics through the global
// OpenTelemetry meter. Exporter and provider wiring belong to the
// embedding deployment; the library only records.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/kbukum/scribe"

// Metrics holds the instruments the pipeline reports to.
type Metrics struct {
	attemptTotal    metric.Int64Counter
	attemptDuration metric.Float64Histogram
	chunkTotal      metric.Int64Counter
	jobDuration     metric.Float64Histogram
}

// NewMetrics creates pipeline instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	attemptTotal, err := meter.Int64Counter("scribe.attempt.total",
		metric.WithDescription("Transcription attempts by provider and outcome"))
	if err != nil {
		return nil, err
	}
	attemptDuration, err := meter.Float64Histogram("scribe.attempt.duration",
		metric.WithDescription("Transcription attempt latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	chunkTotal, err := meter.Int64Counter("scribe.chunk.total",
		metric.WithDescription("Chunks by terminal status"))
	if err != nil {
		return nil, err
	}
	jobDuration, err := meter.Float64Histogram("scribe.job.duration",
		metric.WithDescription("End-to-end job duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		attemptTotal:    attemptTotal,
		attemptDuration: attemptDuration,
		chunkTotal:      chunkTotal,
		jobDuration:     jobDuration,
	}, nil
}

// RecordAttempt records one provider attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, provider, outcome string, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	m.attemptTotal.Add(ctx, 1, attrs)
	m.attemptDuration.Record(ctx, float64(latency.Milliseconds()), attrs)
}

// RecordChunk records a chunk reaching a terminal status.
func (m *Metrics) RecordChunk(ctx context.Context, provider, status string) {
	m.chunkTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordJob records one completed job.
func (m *Metrics) RecordJob(ctx context.Context, state string, duration time.Duration) {
	m.jobDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("state", state)))
}
