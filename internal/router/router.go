// Package router implements the adaptive transcription pipeline: analyze the
// incoming audio, select a transcription method from the measured quality,
// dispatch to the matching backend, and retry once on the noise-tolerant
// path when the first attempt fails.
//
// The fallback is deliberately shallow. A request gets at most one retry,
// always on the tolerant backend, and never after a hybrid attempt has
// already exhausted both backends.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/lexivoice/lexivoice/internal/observe"
	"github.com/lexivoice/lexivoice/pkg/audio/quality"
	"github.com/lexivoice/lexivoice/pkg/transcribe"
)

// ErrTranscriptionFailed is returned when the selected backend and, where
// applicable, the tolerant fallback have both failed. The underlying backend
// error is wrapped and reachable via errors.Unwrap.
var ErrTranscriptionFailed = errors.New("transcription failed")

// Analyzer measures audio quality. *quality.Analyzer is the production
// implementation.
type Analyzer interface {
	Analyze(data []byte) quality.Metrics
}

// Config holds the routing policy knobs.
type Config struct {
	// CostOptimization gates the accurate method: when false, audio that
	// would qualify for the accurate backend is routed to hybrid instead.
	CostOptimization bool

	// FallbackEnabled permits the single tolerant retry after a failed
	// accurate or hybrid attempt.
	FallbackEnabled bool

	// QualityThreshold is the minimum composite score operators consider
	// acceptable. It is surfaced in the routing decision for reporting and
	// does not alter method selection.
	QualityThreshold float64
}

// Decision describes one routing outcome, for response payloads and logs.
type Decision struct {
	// Method is the method the selector chose from the quality metrics.
	Method transcribe.Method

	// Score is the composite quality score behind the choice.
	Score float64

	// Quality holds the measured metrics.
	Quality quality.Metrics

	// FellBack is true when the result came from the tolerant retry rather
	// than the selected method.
	FellBack bool

	// BelowThreshold is true when Score is under the configured
	// QualityThreshold.
	BelowThreshold bool
}

// Router orchestrates analysis, selection, and dispatch. It is safe for
// concurrent use.
type Router struct {
	analyzer Analyzer
	backends map[transcribe.Method]transcribe.Backend
	cfg      Config
	metrics  *observe.Metrics
}

// Option is a functional option for configuring a Router.
type Option func(*Router)

// WithMetrics overrides the metrics instance, e.g. in tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// New creates a Router. backends must contain an entry for every
// transcribe.Method; the tolerant entry doubles as the fallback target.
func New(analyzer Analyzer, backends map[transcribe.Method]transcribe.Backend, cfg Config, opts ...Option) (*Router, error) {
	if analyzer == nil {
		return nil, errors.New("router: analyzer must not be nil")
	}
	for _, m := range []transcribe.Method{
		transcribe.MethodAccurate, transcribe.MethodTolerant, transcribe.MethodHybrid,
	} {
		if backends[m] == nil {
			return nil, fmt.Errorf("router: missing backend for method %q", m)
		}
	}
	r := &Router{
		analyzer: analyzer,
		backends: backends,
		cfg:      cfg,
		metrics:  observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Route transcribes the audio using the method selected from its measured
// quality. On failure of an accurate or hybrid attempt, and when fallback is
// enabled, it retries exactly once on the tolerant backend. A hybrid attempt
// that already exhausted both backends is terminal. Terminal failures wrap
// [ErrTranscriptionFailed].
func (r *Router) Route(ctx context.Context, data []byte, language string) (*transcribe.Result, Decision, error) {
	ctx, span := observe.StartSpan(ctx, "router.Route",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	log := observe.Logger(ctx)

	analysisStart := time.Now()
	metrics := r.analyzer.Analyze(data)
	r.metrics.AnalysisDuration.Record(ctx, time.Since(analysisStart).Seconds())

	score := transcribe.QualityScore(metrics)
	method := transcribe.SelectMethod(metrics, r.cfg.CostOptimization)

	decision := Decision{
		Method:         method,
		Score:          score,
		Quality:        metrics,
		BelowThreshold: score < r.cfg.QualityThreshold,
	}

	r.metrics.QualityScore.Record(ctx, score)
	r.metrics.RecordRoutingDecision(ctx, string(method))
	log.Info("routing decision",
		"method", method,
		"score", score,
		"snr", metrics.SNR,
		"clarity", metrics.Clarity,
		"background_noise", metrics.BackgroundNoise,
		"duration_s", metrics.Duration,
	)

	req := transcribe.Request{Audio: data, Language: language, Quality: metrics}

	result, err := r.attempt(ctx, method, req)
	if err == nil {
		return result, decision, nil
	}

	if !r.shouldFallBack(method, err) {
		log.Error("transcription failed", "method", method, "error", err)
		return nil, decision, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}

	log.Warn("falling back to tolerant backend", "method", method, "error", err)
	r.metrics.RecordFallback(ctx, string(method))
	decision.FellBack = true

	result, retryErr := r.attempt(ctx, transcribe.MethodTolerant, req)
	if retryErr != nil {
		log.Error("fallback transcription failed", "error", retryErr)
		return nil, decision, fmt.Errorf("%w: fallback after %v: %w",
			ErrTranscriptionFailed, err, retryErr)
	}
	return result, decision, nil
}

// attempt dispatches one transcription and records its telemetry.
func (r *Router) attempt(ctx context.Context, method transcribe.Method, req transcribe.Request) (*transcribe.Result, error) {
	start := time.Now()
	result, err := r.backends[method].Transcribe(ctx, req)

	status := "ok"
	if err != nil {
		status = "error"
		r.metrics.RecordBackendError(ctx, string(method))
	}
	r.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds(),
		durationAttrs(method, status))
	r.metrics.RecordBackendRequest(ctx, string(method), status)

	if err != nil {
		return nil, err
	}
	r.metrics.RecordCost(ctx, string(result.Method), result.Cost)
	return result, nil
}

// shouldFallBack reports whether a failed attempt earns the tolerant retry.
// Tolerant attempts have nowhere left to fall, and a hybrid attempt that
// already failed both backends would only repeat one of them.
func (r *Router) shouldFallBack(method transcribe.Method, err error) bool {
	if !r.cfg.FallbackEnabled {
		return false
	}
	if method == transcribe.MethodTolerant {
		return false
	}
	return !errors.Is(err, transcribe.ErrAllBackendsFailed)
}

func durationAttrs(method transcribe.Method, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		observe.Attr("method", string(method)),
		observe.Attr("status", status),
	)
}
