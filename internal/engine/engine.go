// Package engine runs template matching in parallel on OS threads and turns
// the scores into health and respawn readings.
//
// Every entry point is safe for concurrent use. Frames and templates are
// copied into owned images before any task starts, so callers may reuse
// their buffers as soon as a call returns.
package engine

import (
	"github.com/GriffinCanCode/matchcore/internal/correlate"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
	"github.com/GriffinCanCode/matchcore/internal/syncx"
)

// Thresholds are the fixed detection thresholds of the composite paths.
type Thresholds struct {
	Bar     float64
	Empty   float64
	Respawn float64
}

// DefaultThresholds returns the production values.
func DefaultThresholds() Thresholds {
	return Thresholds{Bar: DefaultBarThreshold, Empty: DefaultEmptyThreshold, Respawn: DefaultRespawnThreshold}
}

type taskFunc func(e *Engine, id int, frame, tmpl *imaging.Image, method correlate.Method, threshold float64) MatchResult

// Engine dispatches match tasks. The zero value is not usable; build with New.
type Engine struct {
	corr       correlate.Correlator
	log        Logger
	lock       syncx.HostLock
	thresholds Thresholds
	sem        chan struct{}
	runTask    taskFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithCorrelator replaces the build-time default correlator.
func WithCorrelator(c correlate.Correlator) Option {
	return func(e *Engine) { e.corr = c }
}

// WithLogger sets the logging sink.
func WithLogger(l Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithThresholds overrides the composite-path thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithMaxParallel bounds how many tasks run at once across the engine.
// n <= 0 leaves fan-out unbounded. Result ordering is unaffected.
func WithMaxParallel(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = make(chan struct{}, n)
		} else {
			e.sem = nil
		}
	}
}

// New builds an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		corr:       correlate.Default(),
		log:        nopLogger{},
		thresholds: DefaultThresholds(),
		runTask:    (*Engine).match,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = nopLogger{}
	}
	return e
}

// Host returns an engine sharing e's configuration whose entry points release
// lock while they work and hold it while they read host buffers.
func (e *Engine) Host(lock syncx.HostLock) *Engine {
	c := *e
	c.lock = lock
	return &c
}

func (e *Engine) acquire() {
	if e.sem != nil {
		e.sem <- struct{}{}
	}
}

func (e *Engine) release() {
	if e.sem != nil {
		<-e.sem
	}
}
