// Package resilience keeps the interview usable when a reasoning or voice
// backend misbehaves.
//
// Each backend sits behind a [CircuitBreaker]. A [Group] lists backends of
// one kind in preference order and [Call] walks it until one answers.
// [LLMFallback] and [TTSFallback] present a group as a single provider.
// A request is never retried on the backend that just failed it.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the backend while its breaker
// is open or its half-open probe budget is spent.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the mode of a [CircuitBreaker].
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields take the
// defaults noted below.
type CircuitBreakerConfig struct {
	Name string

	// MaxFailures consecutive failures open a closed breaker. Default 5.
	MaxFailures int

	// ResetTimeout is the cool-down before an open breaker admits probes.
	// Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is both the probe budget and the number of probe successes
	// needed to close again. Default 3.
	HalfOpenMax int

	// IsFailure classifies errors. Default [CountsAsFailure].
	IsFailure func(error) bool

	// OnStateChange runs under the breaker lock after each transition and
	// must not call back into the breaker.
	OnStateChange func(name string, from, to State)

	// Clock replaces time.Now.
	Clock func() time.Time
}

// CountsAsFailure treats every error except caller cancellation as a strike
// against the backend.
func CountsAsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// CircuitBreaker is a closed, open and half-open breaker guarding one
// backend. Safe for concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probes    int
	successes int
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = CountsAsFailure
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Name returns the breaker's label.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Execute calls fn unless the breaker rejects the call with
// [ErrCircuitOpen]. fn's error is returned unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch {
	case cb.cfg.IsFailure(err):
		cb.onFailure(probe)
	case err == nil:
		cb.onSuccess(probe)
	}
	return err
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.cfg.Clock().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if !cb.cooledDown() {
			return false, ErrCircuitOpen
		}
		cb.probes, cb.successes = 0, 0
		cb.transition(StateHalfOpen)
	}
	if cb.probes >= cb.cfg.HalfOpenMax {
		return false, ErrCircuitOpen
	}
	cb.probes++
	return true, nil
}

// onFailure and onSuccess run with cb.mu held.
func (cb *CircuitBreaker) onFailure(probe bool) {
	cb.openedAt = cb.cfg.Clock()
	if probe || cb.state == StateHalfOpen {
		cb.failures = cb.cfg.MaxFailures
		cb.transition(StateOpen)
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.MaxFailures {
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) onSuccess(probe bool) {
	switch {
	case !probe:
		cb.failures = 0
	case cb.state == StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.HalfOpenMax {
			cb.failures = 0
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateOpen {
		slog.Warn("circuit breaker opened", "name", cb.cfg.Name, "from", from.String(), "consecutive_failures", cb.failures)
	} else {
		slog.Info("circuit breaker state changed", "name", cb.cfg.Name, "from", from.String(), "to", to.String())
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State reports the current state. An open breaker whose cool-down has
// passed reads as half-open; the transition itself happens on the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cooledDown() {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures, cb.probes, cb.successes = 0, 0, 0
	cb.transition(StateClosed)
}
