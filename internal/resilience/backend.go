package resilience

import (
	"context"

	"github.com/lexivoice/lexivoice/pkg/transcribe"
)

// Compile-time interface assertion.
var _ transcribe.Backend = (*GuardedBackend)(nil)

// GuardedBackend wraps a transcribe.Backend with a [Breaker]. While the
// breaker is open, Transcribe fails immediately with [ErrBreakerOpen]
// wrapped in a transcribe.BackendError, so callers can fall back without
// waiting out an HTTP timeout.
type GuardedBackend struct {
	name    string
	inner   transcribe.Backend
	breaker *Breaker
}

// Guard wraps backend with a breaker built from cfg. cfg.Name doubles as
// the BackendError name on rejected calls.
func Guard(backend transcribe.Backend, cfg BreakerConfig) *GuardedBackend {
	return &GuardedBackend{
		name:    cfg.Name,
		inner:   backend,
		breaker: NewBreaker(cfg),
	}
}

// Transcribe implements [transcribe.Backend].
func (g *GuardedBackend) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	var res *transcribe.Result
	err := g.breaker.Do(func() error {
		var innerErr error
		res, innerErr = g.inner.Transcribe(ctx, req)
		return innerErr
	})
	if err != nil {
		if err == ErrBreakerOpen {
			return nil, &transcribe.BackendError{Backend: g.name, Err: err}
		}
		return nil, err
	}
	return res, nil
}

// State reports the underlying breaker's state, for readiness reporting.
func (g *GuardedBackend) State() State {
	return g.breaker.State()
}
