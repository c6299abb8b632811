package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"agmipx/internal/infrastructure"
	"agmipx/internal/reshape"
)

const (
	TracerName = "agmipx.pipeline"
)

// PipelineTracer provides OpenTelemetry instrumentation for searches and runs
type PipelineTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.Metrics
}

// NewPipelineTracer creates a tracer recording on the given providers
func NewPipelineTracer(providers *infrastructure.OTelProviders) (*PipelineTracer, error) {
	metrics, err := infrastructure.CreateMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	tracer := providers.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &PipelineTracer{tracer: tracer, metrics: metrics}, nil
}

// NewNoopTracer returns a tracer whose instruments discard everything
func NewNoopTracer() *PipelineTracer {
	// noop instruments never fail to register
	metrics, _ := infrastructure.CreateMetrics(noop.NewMeterProvider().Meter(TracerName))
	return &PipelineTracer{tracer: otel.Tracer(TracerName), metrics: metrics}
}

// Metrics exposes the instruments to other layers
func (pt *PipelineTracer) Metrics() *infrastructure.Metrics {
	return pt.metrics
}

// TraceSearch creates a span around a dataset search
func (pt *PipelineTracer) TraceSearch(ctx context.Context, criteria string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "pipeline.search",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("search.criteria", criteria)),
	)
}

// RecordSearch closes a search span and records its metrics
func (pt *PipelineTracer) RecordSearch(ctx context.Context, span trace.Span, matched int, duration time.Duration, err error) {
	status := statusLabel(err)
	attrs := metric.WithAttributes(attribute.String("status", status))
	pt.metrics.SearchesTotal.Add(ctx, 1, attrs)
	pt.metrics.SearchDuration.Record(ctx, duration.Seconds(), attrs)

	span.SetAttributes(attribute.Int("search.matched", matched))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		pt.metrics.SearchMatched.Record(ctx, int64(matched))
		span.SetStatus(codes.Ok, "search completed")
	}
	span.End()
}

// TraceRun creates a span for a whole pipeline run
func (pt *PipelineTracer) TraceRun(ctx context.Context, runID string, opts reshape.Options) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("pivot.row", opts.Pivot.Row.String()),
			attribute.String("pivot.col", opts.Pivot.Col.String()),
			attribute.String("pivot.agg", string(opts.Pivot.Agg)),
			attribute.String("fill.method", string(opts.Fill)),
			attribute.Bool("index.enabled", opts.Index != nil),
			attribute.Bool("harmonize.enabled", opts.Harmonize != nil),
		),
	)
}

// RecordRunCompletion closes a run span and records its metrics
func (pt *PipelineTracer) RecordRunCompletion(ctx context.Context, span trace.Span, runID string, duration time.Duration, err error) {
	status := statusLabel(err)
	attrs := metric.WithAttributes(attribute.String("status", status))
	pt.metrics.PipelineRunsTotal.Add(ctx, 1, attrs)
	pt.metrics.PipelineRunDuration.Record(ctx, duration.Seconds(), attrs)

	span.SetAttributes(
		attribute.String("run.status", status),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)

	switch status {
	case "success":
		span.SetStatus(codes.Ok, "pipeline completed successfully")
	case "cancelled":
		pt.metrics.PipelineCancellations.Add(ctx, 1)
		span.SetStatus(codes.Error, "pipeline cancelled")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	infrastructure.AddSpanEvent(ctx, "pipeline.completed", map[string]interface{}{
		"run_id":   runID,
		"status":   status,
		"duration": duration.Seconds(),
	})
	span.End()
}

// TraceStep creates a span for one step of a run
func (pt *PipelineTracer) TraceStep(ctx context.Context, runID, stepID string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "pipeline.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", stepID),
		),
	)
}

// RecordStepCompletion closes a step span and records its metrics
func (pt *PipelineTracer) RecordStepCompletion(ctx context.Context, span trace.Span, stepID string, duration time.Duration, err error) {
	status := statusLabel(err)
	attrs := metric.WithAttributes(
		attribute.String("step", stepID),
		attribute.String("status", status),
	)
	pt.metrics.PipelineStepsTotal.Add(ctx, 1, attrs)
	pt.metrics.PipelineStepDuration.Record(ctx, duration.Seconds(), attrs)

	if err != nil {
		pt.metrics.PipelineErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("step", stepID),
			attribute.String("error_type", string(GetErrorType(err))),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "step completed")
	}
	span.End()
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case GetErrorType(err) == ErrorTypeCancellation:
		return "cancelled"
	default:
		return "failure"
	}
}
