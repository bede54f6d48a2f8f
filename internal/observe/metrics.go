// Package observe provides application-wide observability primitives for
// LexiVoice: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all LexiVoice metrics.
const meterName = "github.com/lexivoice/lexivoice"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// AnalysisDuration tracks audio quality analysis latency.
	AnalysisDuration metric.Float64Histogram

	// TranscriptionDuration tracks transcription latency. Use with attributes:
	//   attribute.String("method", ...), attribute.String("status", ...)
	TranscriptionDuration metric.Float64Histogram

	// RetrievalDuration tracks knowledge-base search latency.
	RetrievalDuration metric.Float64Histogram

	// ResponseDuration tracks answer generation latency.
	ResponseDuration metric.Float64Histogram

	// --- Counters ---

	// RoutingDecisions counts method selections. Use with attribute:
	//   attribute.String("method", ...)
	RoutingDecisions metric.Int64Counter

	// Fallbacks counts tolerant-retry fallbacks. Use with attribute:
	//   attribute.String("from_method", ...)
	Fallbacks metric.Int64Counter

	// BackendRequests counts backend API calls. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("status", ...)
	BackendRequests metric.Int64Counter

	// BackendErrors counts backend errors by backend name.
	BackendErrors metric.Int64Counter

	// TranscriptionCost accumulates estimated transcription spend in USD.
	// Use with attribute: attribute.String("method", ...)
	TranscriptionCost metric.Float64Counter

	// --- Distributions ---

	// QualityScore tracks the composite audio quality score distribution.
	QualityScore metric.Float64Histogram

	// --- Gauges ---

	// ActiveIntakes tracks the number of intake requests in flight.
	ActiveIntakes metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// batch transcription latencies, which run much longer than typical HTTP
// round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// scoreBuckets covers the composite quality score range. The SNR term alone
// can push the score to 8, so buckets run 0–10.
var scoreBuckets = []float64{
	1, 2, 3, 4, 5, 6, 7, 8, 9, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("lexivoice.analysis.duration",
		metric.WithDescription("Latency of audio quality analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("lexivoice.transcription.duration",
		metric.WithDescription("Latency of transcription by method and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RetrievalDuration, err = m.Float64Histogram("lexivoice.retrieval.duration",
		metric.WithDescription("Latency of knowledge-base retrieval."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ResponseDuration, err = m.Float64Histogram("lexivoice.response.duration",
		metric.WithDescription("Latency of answer generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QualityScore, err = m.Float64Histogram("lexivoice.quality.score",
		metric.WithDescription("Distribution of composite audio quality scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.RoutingDecisions, err = m.Int64Counter("lexivoice.routing.decisions",
		metric.WithDescription("Total routing decisions by selected method."),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("lexivoice.routing.fallbacks",
		metric.WithDescription("Total tolerant-retry fallbacks by original method."),
	); err != nil {
		return nil, err
	}
	if met.BackendRequests, err = m.Int64Counter("lexivoice.backend.requests",
		metric.WithDescription("Total backend API requests by backend and status."),
	); err != nil {
		return nil, err
	}
	if met.BackendErrors, err = m.Int64Counter("lexivoice.backend.errors",
		metric.WithDescription("Total backend errors by backend."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionCost, err = m.Float64Counter("lexivoice.transcription.cost",
		metric.WithDescription("Accumulated estimated transcription cost by method."),
		metric.WithUnit("USD"),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveIntakes, err = m.Int64UpDownCounter("lexivoice.active_intakes",
		metric.WithDescription("Number of intake requests currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lexivoice.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRoutingDecision records a method selection.
func (m *Metrics) RecordRoutingDecision(ctx context.Context, method string) {
	m.RoutingDecisions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("method", method)),
	)
}

// RecordFallback records a tolerant-retry fallback from the given method.
func (m *Metrics) RecordFallback(ctx context.Context, fromMethod string) {
	m.Fallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("from_method", fromMethod)),
	)
}

// RecordBackendRequest records a backend call with the standard attribute set.
func (m *Metrics) RecordBackendRequest(ctx context.Context, backend, status string) {
	m.BackendRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("status", status),
		),
	)
}

// RecordBackendError records a backend error counter increment.
func (m *Metrics) RecordBackendError(ctx context.Context, backend string) {
	m.BackendErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("backend", backend)),
	)
}

// RecordCost accumulates estimated transcription spend for a method.
func (m *Metrics) RecordCost(ctx context.Context, method string, usd float64) {
	m.TranscriptionCost.Add(ctx, usd,
		metric.WithAttributes(attribute.String("method", method)),
	)
}
