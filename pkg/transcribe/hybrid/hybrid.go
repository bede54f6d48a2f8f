// Package hybrid runs the accurate and tolerant transcription backends
// concurrently and arbitrates between their results.
//
// The arbitration is a join, not a race: both backends are always allowed
// to settle, and the decision depends only on the two outcomes — never on
// arrival order. A failure in one backend does not abort the other.
package hybrid

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lexivoice/lexivoice/pkg/transcribe"
)

// Compile-time interface assertion.
var _ transcribe.Backend = (*Arbitrator)(nil)

const (
	// confidenceWeight and costWeight combine a result's confidence with
	// its cost into the arbitration score.
	confidenceWeight = 0.7
	costWeight       = 0.3

	// costScale maps cost in USD onto [0, 1] for the score's cost term.
	costScale = 100.0
)

// Arbitrator implements transcribe.Backend by fanning out to both backends
// and keeping the better-scoring result. It is safe for concurrent use.
type Arbitrator struct {
	accurate transcribe.Backend
	tolerant transcribe.Backend
}

// New creates an Arbitrator over the two backends.
func New(accurate, tolerant transcribe.Backend) *Arbitrator {
	return &Arbitrator{accurate: accurate, tolerant: tolerant}
}

// Transcribe implements [transcribe.Backend]. Both backends run
// concurrently; once both have settled the winner is chosen by
//
//	score = confidence×0.7 + (1 − cost/100)×0.3
//
// with ties going to the accurate backend. The winner is re-tagged
// [transcribe.MethodHybrid]. If exactly one backend succeeded its result is
// used (also tagged hybrid); if both failed the error wraps
// [transcribe.ErrAllBackendsFailed].
func (a *Arbitrator) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	var (
		accRes, tolRes *transcribe.Result
		accErr, tolErr error
	)

	// Each task records its own outcome and reports no error to the
	// group, so a failing backend never cancels its sibling.
	var g errgroup.Group
	g.Go(func() error {
		accRes, accErr = a.accurate.Transcribe(ctx, req)
		return nil
	})
	g.Go(func() error {
		tolRes, tolErr = a.tolerant.Transcribe(ctx, req)
		return nil
	})
	_ = g.Wait()

	var winner *transcribe.Result
	switch {
	case accErr != nil && tolErr != nil:
		return nil, fmt.Errorf("%w: accurate: %v; tolerant: %v",
			transcribe.ErrAllBackendsFailed, accErr, tolErr)

	case accErr != nil:
		slog.Warn("hybrid: accurate backend failed, using tolerant result", "error", accErr)
		winner = tolRes

	case tolErr != nil:
		slog.Warn("hybrid: tolerant backend failed, using accurate result", "error", tolErr)
		winner = accRes

	default:
		winner = accRes
		if score(tolRes) > score(accRes) {
			winner = tolRes
		}
	}

	winner.Method = transcribe.MethodHybrid
	return winner, nil
}

// score ranks a successful result. Higher is better.
func score(r *transcribe.Result) float64 {
	return r.Confidence*confidenceWeight + (1-r.Cost/costScale)*costWeight
}
