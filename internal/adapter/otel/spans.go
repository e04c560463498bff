package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "codeatlas"

// StartJobSpan starts a span for one analysis job execution.
func StartJobSpan(ctx context.Context, jobID, repositoryID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "analysis.job",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("repository.id", repositoryID),
		),
	)
}

// StartClassifySpan starts a span for the classification phase.
func StartClassifySpan(ctx context.Context, repositoryID string, fileCount int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "analysis.classify",
		trace.WithAttributes(
			attribute.String("repository.id", repositoryID),
			attribute.Int("files", fileCount),
		),
	)
}

// StartPageSpan starts a span for generating one wiki page.
func StartPageSpan(ctx context.Context, repositoryID, subsystem string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "wiki.page",
		trace.WithAttributes(
			attribute.String("repository.id", repositoryID),
			attribute.String("subsystem.name", subsystem),
		),
	)
}
