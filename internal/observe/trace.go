package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for every span the intake
// pipeline emits.
const tracerName = "github.com/lexivoice/lexivoice"

// Tracer returns the service tracer from the globally registered provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan opens a pipeline span. Span names follow "package.Operation"
// (intake.ProcessAudio, router.Route) so one trace reads as the path an
// audio upload took through the service. The caller ends the span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID returns the active trace ID, the identifier a caller quotes
// when following up about an intake. Empty when ctx carries no recording
// span.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns the default slog logger with trace_id and span_id attached
// when ctx carries an active span. Pipeline stages log through this so a
// degraded retrieval or a fallback transcription can be matched to its
// trace.
func Logger(ctx context.Context) *slog.Logger {
	log := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		log = log.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return log
}
