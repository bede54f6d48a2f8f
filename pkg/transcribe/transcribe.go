// Package transcribe defines the Backend interface for speech-to-text
// services and the normalized result model shared by every backend adapter.
//
// Two adapter families exist: a high-accuracy/high-cost backend
// (whisperapi) and a noise-tolerant/low-cost backend (flamingo). The hybrid
// package runs both and arbitrates. Which one handles a given request is
// decided per request by [SelectMethod] from measured audio quality.
//
// Backends must be safe for concurrent use: each Transcribe call is
// independent and shares no mutable state with other calls.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexivoice/lexivoice/pkg/audio/quality"
)

// Method identifies which processing path produced (or should produce) a
// transcription. It is chosen once per request and never changes for the
// lifetime of that request.
type Method string

const (
	// MethodAccurate routes to the high-accuracy, high-cost backend.
	MethodAccurate Method = "accurate"

	// MethodTolerant routes to the noise-tolerant, low-cost backend.
	MethodTolerant Method = "tolerant"

	// MethodHybrid runs both backends concurrently and keeps the
	// better-scoring result.
	MethodHybrid Method = "hybrid"
)

// IsValid reports whether m is a recognised processing method.
func (m Method) IsValid() bool {
	switch m {
	case MethodAccurate, MethodTolerant, MethodHybrid:
		return true
	}
	return false
}

// Request carries one audio sample to a backend.
type Request struct {
	// Audio is the raw container bytes as received from the caller.
	Audio []byte

	// Language is the caller-supplied language hint (ISO 639-1, e.g. "es").
	// Empty lets the backend auto-detect where supported.
	Language string

	// Quality is the analyzed quality of Audio. Backends use it to tune
	// preprocessing; it is attached verbatim to the result.
	Quality quality.Metrics
}

// Word is a single word-level timestamp in a transcription.
type Word struct {
	// Start and End bound the word within the recording.
	Start time.Duration
	// End is the word's end offset.
	End time.Duration
	// Text is the word as transcribed.
	Text string
}

// Result is a normalized transcription. It is produced exactly once per
// request — by a backend adapter or the hybrid arbitrator — and is
// read-only from that point on.
type Result struct {
	// Text is the full transcript.
	Text string

	// Confidence is the backend's overall confidence in [0, 1].
	Confidence float64

	// Language is the language the backend detected (ISO 639-1).
	Language string

	// Words holds ordered word-level timestamps when the backend
	// provides them.
	Words []Word

	// Method is the processing method actually executed. Exactly one
	// method is ever attached to a result: either the selected one or
	// the fallback method that ran instead.
	Method Method

	// Cost is the monetary cost of this transcription in USD.
	Cost float64

	// Quality is the audio quality metrics the routing decision was
	// based on.
	Quality quality.Metrics
}

// Backend is the uniform contract for a speech-to-text service adapter.
type Backend interface {
	// Transcribe submits the audio sample and blocks until the backend
	// responds or ctx is cancelled. A non-success response from the
	// remote service yields a *BackendError.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// BackendError reports a non-success response from a transcription service.
type BackendError struct {
	// Backend names the failing adapter ("whisperapi", "flamingo").
	Backend string

	// StatusCode is the HTTP status returned by the service, or 0 for
	// transport-level failures.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s backend: status %d: %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BackendError) Unwrap() error { return e.Err }

// ErrAllBackendsFailed is returned by the hybrid arbitrator when both
// backends fail. The orchestrator treats it as terminal: the fallback
// target has already failed, so no further attempt is made.
var ErrAllBackendsFailed = errors.New("transcribe: all backends failed")
