// Package resilience protects the capture path: a circuit breaker stops
// hammering a broken screenshot tool and a short retry rides out one-off
// failures.
package resilience

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
)

// State represents circuit breaker state.
type State uint32

const (
	Closed   State = iota // normal operation
	Open                  // failing fast
	HalfOpen              // probing recovery
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = apperrors.New(apperrors.CodeUnavailable, "circuit breaker open")

// Breaker is a lock-free circuit breaker. Hooks run synchronously on the
// goroutine that caused the transition.
type Breaker struct {
	cfg         Config
	state       atomic.Uint32
	failures    atomic.Int32
	successes   atomic.Int32
	lastFailure atomic.Int64 // unix nano
	now         func() time.Time

	hookMu sync.RWMutex
	hooks  []func(from, to State)
}

// New creates a breaker with cfg.
func New(cfg Config) *Breaker {
	b := &Breaker{cfg: cfg.withDefaults(), now: time.Now}
	b.state.Store(uint32(Closed))
	return b
}

// OnStateChange registers fn to observe transitions.
func (b *Breaker) OnStateChange(fn func(from, to State)) *Breaker {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()
	b.hooks = append(b.hooks, fn)
	return b
}

// Allow returns nil if a call may proceed.
func (b *Breaker) Allow() error {
	if State(b.state.Load()) != Open {
		return nil
	}
	if b.cooledDown() {
		b.transition(Open, HalfOpen)
		return nil
	}
	return ErrOpen
}

// Success records a successful call.
func (b *Breaker) Success() {
	switch State(b.state.Load()) {
	case HalfOpen:
		if b.successes.Add(1) >= int32(b.cfg.HalfOpenSuccesses) {
			b.transition(HalfOpen, Closed)
		}
	case Closed:
		b.failures.Store(0)
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.lastFailure.Store(b.now().UnixNano())
	count := b.failures.Add(1)

	switch State(b.state.Load()) {
	case HalfOpen:
		b.transition(HalfOpen, Open)
	case Closed:
		if count >= int32(b.cfg.Threshold) {
			b.transition(Closed, Open)
		}
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.transition(b.State(), Closed)
}

// transition moves from -> to if no other goroutine got there first.
func (b *Breaker) transition(from, to State) {
	if from == to || !b.state.CompareAndSwap(uint32(from), uint32(to)) {
		return
	}

	b.successes.Store(0)
	switch to {
	case Closed:
		b.failures.Store(0)
		slog.Info("circuit breaker closed", "name", b.cfg.Name)
	case Open:
		slog.Warn("circuit breaker opened", "name", b.cfg.Name, "failures", b.failures.Load())
	case HalfOpen:
		slog.Info("circuit breaker half-open", "name", b.cfg.Name)
	}

	b.hookMu.RLock()
	hooks := b.hooks
	b.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(from, to)
	}
}

func (b *Breaker) cooledDown() bool {
	last := b.lastFailure.Load()
	return last == 0 || b.now().Sub(time.Unix(0, last)) > b.cfg.ResetTimeout
}

// Execute runs fn under breaker protection.
func (b *Breaker) Execute(fn func() error) error {
	_, err := Execute(b, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// Execute runs fn under breaker protection and returns its value.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	v, err := fn()
	if err != nil {
		b.Failure()
		return zero, err
	}
	b.Success()
	return v, nil
}
