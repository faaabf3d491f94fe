package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAllFailed is returned when no backend in a [Group] produced a result.
// The per-backend errors are joined into the returned error, so provider
// sentinels still match with [errors.Is].
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig applies to every backend of a [Group].
type FallbackConfig struct {
	// CircuitBreaker is the template for each backend's breaker. Name is
	// replaced with the backend name.
	CircuitBreaker CircuitBreakerConfig

	// OnResult is called after every attempt that reached a backend. Calls
	// rejected by an open breaker are not reported.
	OnResult func(provider string, elapsed time.Duration, err error)
}

// BackendStatus is a point-in-time view of one backend's breaker.
type BackendStatus struct {
	Name  string
	State State
}

type backend[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// Group orders several backends of one provider type. A call goes to the
// first backend whose breaker admits it and moves down the list on failure.
type Group[T any] struct {
	cfg FallbackConfig

	mu       sync.RWMutex
	backends []backend[T]
}

// NewGroup returns an empty group. Add backends in preference order.
func NewGroup[T any](cfg FallbackConfig) *Group[T] {
	return &Group[T]{cfg: cfg}
}

// Add appends a backend after the ones already registered.
func (g *Group[T]) Add(name string, value T) {
	cb := g.cfg.CircuitBreaker
	cb.Name = name
	g.mu.Lock()
	defer g.mu.Unlock()
	g.backends = append(g.backends, backend[T]{name: name, value: value, breaker: NewCircuitBreaker(cb)})
}

// Primary returns the preferred backend.
func (g *Group[T]) Primary() (T, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.backends) == 0 {
		var zero T
		return zero, false
	}
	return g.backends[0].value, true
}

// Status lists every backend with its breaker state, in preference order.
func (g *Group[T]) Status() []BackendStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]BackendStatus, len(g.backends))
	for i, b := range g.backends {
		out[i] = BackendStatus{Name: b.name, State: b.breaker.State()}
	}
	return out
}

// Healthy reports whether at least one backend would currently be called.
func (g *Group[T]) Healthy() bool {
	for _, s := range g.Status() {
		if s.State != StateOpen {
			return true
		}
	}
	return false
}

func (g *Group[T]) snapshot() []backend[T] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]backend[T](nil), g.backends...)
}

// Call runs fn against each backend of g in order and returns the first
// success. It stops with ctx.Err() as soon as ctx is done, without trying
// the remaining backends.
func Call[T, R any](ctx context.Context, g *Group[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	backends := g.snapshot()
	for i, b := range backends {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var result R
		err := b.breaker.Execute(func() error {
			start := time.Now()
			var callErr error
			result, callErr = fn(ctx, b.value)
			if g.cfg.OnResult != nil {
				g.cfg.OnResult(b.name, time.Since(start), callErr)
			}
			return callErr
		})
		if err == nil {
			return result, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", b.name, err))

		switch {
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("provider skipped, circuit open", "provider", b.name)
		case ctx.Err() != nil:
			return zero, ctx.Err()
		case i < len(backends)-1:
			slog.Warn("provider failed, trying next", "provider", b.name, "err", err)
		}
	}
	if len(errs) == 0 {
		return zero, fmt.Errorf("%w: no providers configured", ErrAllFailed)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
