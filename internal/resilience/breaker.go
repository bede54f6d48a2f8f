// Package resilience protects the transcription backends from cascading
// failures.
//
// [Breaker] is a classic three-state circuit breaker
// (closed → open → half-open); [GuardedBackend] wraps a transcribe.Backend
// with one so that a persistently failing service is rejected fast instead
// of tying up request handlers in timeouts.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] when the breaker is open and
// the cooldown has not yet elapsed.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrBreakerOpen] until the cooldown
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through; enough
	// successes close the breaker, any failure re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log messages, e.g. the backend name.
	Name string

	// Threshold is how many consecutive failures trip the breaker.
	// Default: 5.
	Threshold int

	// Cooldown is how long the breaker stays open before probing again.
	// Default: 30s.
	Cooldown time.Duration

	// Probes is how many half-open calls are permitted, and how many must
	// succeed to close. Default: 3.
	Probes int
}

// Breaker implements the three-state circuit breaker pattern.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	probes    int

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probeCalls  int
	probeFails  int
}

// NewBreaker creates a [Breaker]. Zero-value config fields are replaced
// with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 3
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		probes:    cfg.Probes,
		state:     StateClosed,
	}
}

// Do runs fn if the breaker allows it. Open breakers return
// [ErrBreakerOpen] without calling fn; half-open breakers admit up to the
// configured number of probes.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.cooldown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.probeCalls = 0
		b.probeFails = 0
		slog.Info("circuit breaker half-open", "name", b.name)

	case StateHalfOpen:
		if b.probeCalls >= b.probes {
			// Probe budget spent, decision pending.
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}

	probing := b.state == StateHalfOpen
	if probing {
		b.probeCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.fail(probing)
	} else {
		b.succeed(probing)
	}
	return err
}

// fail updates failure accounting. Caller holds b.mu.
func (b *Breaker) fail(probing bool) {
	b.lastFailure = time.Now()

	if probing {
		b.probeFails++
		b.state = StateOpen
		b.failures = b.threshold
		slog.Warn("circuit breaker re-opened", "name", b.name)
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = StateOpen
		slog.Warn("circuit breaker opened",
			"name", b.name,
			"consecutive_failures", b.failures)
	}
}

// succeed updates success accounting. Caller holds b.mu.
func (b *Breaker) succeed(probing bool) {
	if probing {
		if b.probeCalls-b.probeFails >= b.probes {
			b.state = StateClosed
			b.failures = 0
			b.probeCalls = 0
			b.probeFails = 0
			slog.Info("circuit breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State reports the breaker's current [State]. An open breaker whose
// cooldown has elapsed reports [StateHalfOpen]; the actual transition
// happens on the next [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.lastFailure) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [StateClosed].
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probeCalls = 0
	b.probeFails = 0
	slog.Info("circuit breaker reset", "name", b.name)
}
