// Package mock provides a test double for the transcribe.Backend interface.
//
// Pre-populate Result or Err to control the outcome, or set TranscribeFn
// for per-call behaviour. Calls records every invocation for assertions.
package mock

import (
	"context"
	"sync"

	"github.com/lexivoice/lexivoice/pkg/transcribe"
)

// Call records a single invocation of Backend.Transcribe.
type Call struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the request passed to Transcribe.
	Req transcribe.Request
}

// Backend is a mock implementation of transcribe.Backend.
type Backend struct {
	mu sync.Mutex

	// Result is returned from Transcribe on success. A copy is returned
	// so callers mutating the result (e.g. re-tagging the method) do not
	// affect later calls.
	Result *transcribe.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeFn, if non-nil, overrides Result/Err entirely.
	TranscribeFn func(ctx context.Context, req transcribe.Request) (*transcribe.Result, error)

	// Calls records every call to Transcribe.
	Calls []Call
}

// Compile-time interface assertion.
var _ transcribe.Backend = (*Backend)(nil)

// Transcribe records the call and returns the configured outcome.
func (b *Backend) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	b.mu.Lock()
	b.Calls = append(b.Calls, Call{Ctx: ctx, Req: req})
	fn := b.TranscribeFn
	res, err := b.Result, b.Err
	b.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &transcribe.Result{Text: "mock transcript", Confidence: 0.9}, nil
	}
	cp := *res
	return &cp, nil
}

// CallCount returns the number of recorded calls. Thread-safe.
func (b *Backend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = nil
}
