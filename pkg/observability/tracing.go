package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for resolution runs.
	TracerName = "penf-coref"
)

// Span attribute keys
const (
	AttrRunID      = "run_id"
	AttrDocumentID = "document_id"
	AttrStage      = "stage"
	AttrMentions   = "mentions"
	AttrPairs      = "pairs"
	AttrMerges     = "merges"
	AttrClusters   = "clusters"
	AttrErrorCode  = "error_code"
	AttrRetryable  = "retryable"
)

// Span names
const (
	SpanResolve = "coref.resolve"
	SpanBatch   = "coref.batch"
)

// Stage names, shared by spans, metrics and heartbeats.
const (
	StageCandidates = "candidates"
	StageScore      = "score"
	StageLink       = "link"
	StageMerge      = "merge"
	StageCommit     = "commit"
)

// Tracer provides distributed tracing for resolution runs.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global OpenTelemetry provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// NewTracerWithProvider creates a tracer from an explicit provider.
func NewTracerWithProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(TracerName)}
}

// StartResolveSpan starts the root span for resolving one document.
func (t *Tracer) StartResolveSpan(ctx context.Context, runID, documentID string, mentions int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanResolve,
		trace.WithAttributes(
			attribute.String(AttrRunID, runID),
			attribute.String(AttrDocumentID, documentID),
			attribute.Int(AttrMentions, mentions),
		),
	)
}

// StartStageSpan starts a span for one stage of a run.
func (t *Tracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "coref.stage."+stage,
		trace.WithAttributes(attribute.String(AttrStage, stage)),
	)
}

// StartBatchSpan starts a span covering a batch of documents.
func (t *Tracer) StartBatchSpan(ctx context.Context, documents int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanBatch,
		trace.WithAttributes(attribute.Int("documents", documents)),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetOutcome sets the run's pair, merge and cluster counts.
func (h *SpanHelper) SetOutcome(pairs, merges, clusters int) {
	h.span.SetAttributes(
		attribute.Int(AttrPairs, pairs),
		attribute.Int(AttrMerges, merges),
		attribute.Int(AttrClusters, clusters),
	)
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, code string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorCode, code),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func (h *SpanHelper) AddEvent(name string, attrs ...attribute.KeyValue) {
	h.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
