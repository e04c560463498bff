package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "codeatlas"

// Metrics holds all CodeAtlas metric instruments.
type Metrics struct {
	JobsStarted    metric.Int64Counter
	JobsCompleted  metric.Int64Counter
	JobsFailed     metric.Int64Counter
	PagesGenerated metric.Int64Counter
	PagesFailed    metric.Int64Counter
	JobDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.JobsStarted, err = meter.Int64Counter("codeatlas.jobs.started",
		metric.WithDescription("Number of analysis jobs started"))
	if err != nil {
		return nil, err
	}

	m.JobsCompleted, err = meter.Int64Counter("codeatlas.jobs.completed",
		metric.WithDescription("Number of analysis jobs completed"))
	if err != nil {
		return nil, err
	}

	m.JobsFailed, err = meter.Int64Counter("codeatlas.jobs.failed",
		metric.WithDescription("Number of analysis jobs failed"))
	if err != nil {
		return nil, err
	}

	m.PagesGenerated, err = meter.Int64Counter("codeatlas.pages.generated",
		metric.WithDescription("Number of wiki pages generated"))
	if err != nil {
		return nil, err
	}

	m.PagesFailed, err = meter.Int64Counter("codeatlas.pages.failed",
		metric.WithDescription("Number of wiki pages that failed to generate"))
	if err != nil {
		return nil, err
	}

	m.JobDuration, err = meter.Float64Histogram("codeatlas.job.duration_seconds",
		metric.WithDescription("Analysis job duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
