// Package monitor runs the host loop: capture a screenshot, skip it if
// nothing changed, read the health bar and the respawn button through the
// engine, then publish the reading to history, alerts and subscribers.
package monitor

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/matchcore/internal/config"
	"github.com/GriffinCanCode/matchcore/internal/correlate"
	"github.com/GriffinCanCode/matchcore/internal/engine"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
	"github.com/GriffinCanCode/matchcore/internal/monitor/alert"
	"github.com/GriffinCanCode/matchcore/internal/monitor/batch"
	"github.com/GriffinCanCode/matchcore/internal/monitor/frames"
	"github.com/GriffinCanCode/matchcore/internal/monitor/history"
	"github.com/GriffinCanCode/matchcore/internal/resilience"
	"github.com/GriffinCanCode/matchcore/internal/screen"
	"github.com/GriffinCanCode/matchcore/internal/syncx"
	"github.com/GriffinCanCode/matchcore/internal/templates"
	"github.com/GriffinCanCode/matchcore/internal/trace"
)

// Reading is the result of analyzing one frame.
type Reading struct {
	Time    time.Time           `json:"time"`
	Health  engine.HealthResult `json:"health"`
	Respawn engine.MatchResult  `json:"respawn"`
}

// Event is what subscribers receive. Exactly one payload is set, per Type.
type Event struct {
	Type    string              `json:"type"`
	Reading *Reading            `json:"reading,omitempty"`
	Alert   *alert.Alert        `json:"alert,omitempty"`
	Batch   []engine.BatchEntry `json:"batch,omitempty"`
}

// Status is a point-in-time summary of the loop.
type Status struct {
	Running       bool          `json:"running"`
	Paused        bool          `json:"paused"`
	Batching      bool          `json:"batching"`
	AlertsEnabled bool          `json:"alerts_enabled"`
	Breaker       string        `json:"breaker"`
	Ticks         uint64        `json:"ticks"`
	Skipped       uint64        `json:"skipped"`
	Failures      uint64        `json:"failures"`
	Latest        *Reading      `json:"latest,omitempty"`
	Stats         history.Stats `json:"stats"`
}

// Monitor coordinates capture, detection and publication.
type Monitor struct {
	cfg     *config.Config
	method  correlate.Method
	eng     *engine.Engine
	store   *templates.Store
	source  *frames.Source
	history *history.Store
	alerts  *alert.Alerter
	batcher *batch.Batcher

	// host is the loop's execution lock. Detection holds it; the engine
	// releases it while correlating so control calls never wait on a frame.
	host   sync.Mutex
	paused bool // guarded by host

	reading    *syncx.RWGuard[Reading]
	hasReading atomic.Bool

	subMu sync.RWMutex
	subs  map[chan Event]struct{}

	running  atomic.Bool
	ticks    atomic.Uint64
	skipped  atomic.Uint64
	failures atomic.Uint64
}

// New creates a monitor that detects through eng and reads templates from
// store. The monitor owns capturer and closes it when Run returns.
func New(cfg *config.Config, eng *engine.Engine, store *templates.Store, capturer screen.Capturer) (*Monitor, error) {
	method, err := cfg.Method()
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:     cfg,
		method:  method,
		store:   store,
		history: history.NewStore(cfg.HistorySize),
		alerts:  alert.New(cfg.AlertCooldown, true),
		reading: syncx.NewGuard(Reading{}),
		subs:    make(map[chan Event]struct{}),
	}
	m.eng = eng.Host(&m.host)
	m.source = frames.NewSource(capturer,
		resilience.New(resilience.CaptureConfig()),
		resilience.CaptureRetryConfig(),
		cfg.MaxHashDistance)
	if cfg.BatchSize > 1 {
		m.batcher = batch.NewBatcher(m.flushBatch, cfg.BatchSize, cfg.BatchFlushDelay)
	}
	return m, nil
}

// Run ticks at the configured capture rate until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return nil
	}
	defer m.running.Store(false)

	log := trace.Logger(ctx)
	interval := m.cfg.CaptureInterval()
	log.Info("monitor started", "interval", interval, "batching", m.batcher != nil)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if m.batcher != nil {
				m.batcher.Stop()
			}
			if err := m.source.Close(); err != nil {
				log.Warn("capturer close failed", "error", err)
			}
			log.Info("monitor stopped", "ticks", m.ticks.Load())
			return nil
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil && ctx.Err() == nil {
				level := slog.LevelWarn
				if err == resilience.ErrOpen {
					level = slog.LevelDebug
				}
				log.Log(ctx, level, "monitor tick failed", "error", err)
			}
		}
	}
}

// Tick captures and analyzes one frame.
func (m *Monitor) Tick(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "monitor.tick")
	defer span.End()

	if m.Paused() {
		return nil
	}

	f, err := m.source.Next(ctx)
	if err != nil {
		m.failures.Add(1)
		return err
	}
	m.ticks.Add(1)
	if !f.Changed {
		m.skipped.Add(1)
		return nil
	}

	frame := imaging.FromImage(f.Image).AsBuffer()
	if m.batcher != nil {
		m.batcher.Add(frame)
		return nil
	}
	return m.detect(ctx, frame)
}

type templateSet struct {
	health, empty, respawn imaging.Buffer
}

func (m *Monitor) templates() (templateSet, error) {
	var ts templateSet
	for _, t := range []struct {
		name string
		dst  *imaging.Buffer
	}{
		{m.cfg.HealthTemplate, &ts.health},
		{m.cfg.EmptyTemplate, &ts.empty},
		{m.cfg.RespawnTemplate, &ts.respawn},
	} {
		img, err := m.store.Get(t.name)
		if err != nil {
			return templateSet{}, err
		}
		*t.dst = img.AsBuffer()
	}
	return ts, nil
}

func (m *Monitor) detect(ctx context.Context, frame imaging.Buffer) error {
	ts, err := m.templates()
	if err != nil {
		return err
	}

	m.host.Lock()
	defer m.host.Unlock()

	health, err := m.eng.DetectHealth(ctx, frame, ts.health, ts.empty, m.cfg.HealthThreshold)
	if err != nil {
		return err
	}
	matches, err := m.eng.MatchTemplates(ctx, frame,
		[]imaging.Buffer{ts.respawn}, []float64{m.cfg.RespawnThreshold}, m.method)
	if err != nil {
		return err
	}

	r := Reading{Time: time.Now(), Health: health, Respawn: matches[0]}
	m.reading.Set(r)
	m.hasReading.Store(true)
	m.emit(Event{Type: EventReading, Reading: &r})

	m.record(history.Sample{
		Time:           r.Time,
		HealthFraction: health.HealthFraction,
		BarFound:       health.BarFound,
		IsEmpty:        health.IsEmpty,
		IsCritical:     health.IsCritical,
		RespawnVisible: r.Respawn.Found,
	})
	return nil
}

// flushBatch runs BatchProcess over queued frames. Batch entries only say
// whether the bar is on screen, so their samples are partial: a missing bar
// reads as empty.
func (m *Monitor) flushBatch(ctx context.Context, queued []batch.Frame) {
	log := trace.Logger(ctx)
	ts, err := m.templates()
	if err != nil {
		log.Warn("batch templates unavailable", "error", err)
		return
	}

	bufs := make([]imaging.Buffer, len(queued))
	for i, f := range queued {
		bufs[i] = f.Buffer
	}

	m.host.Lock()
	defer m.host.Unlock()

	entries, err := m.eng.BatchProcess(ctx, bufs, ts.health, ts.respawn, m.cfg.HealthThreshold)
	if err != nil {
		log.Warn("batch process failed", "error", err, "frames", len(bufs))
		return
	}
	m.emit(Event{Type: EventBatch, Batch: entries})

	for i, e := range entries {
		at := time.Now()
		if len(entries) == len(queued) {
			at = queued[i].Time
		}
		m.record(history.Sample{
			Time:           at,
			BarFound:       e.HealthFound,
			IsEmpty:        !e.HealthFound,
			RespawnVisible: e.RespawnFound,
			Partial:        true,
		})
	}
}

// record appends s to history and publishes the alerts it triggers.
func (m *Monitor) record(s history.Sample) {
	m.history.Add(s)
	for _, a := range m.alerts.Check(s) {
		m.emit(Event{Type: EventAlert, Alert: &a})
	}
}

// Subscribe returns a channel of events and a func that unsubscribes it.
// Events are dropped for subscribers whose buffer is full.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, SubscriberBuffer)
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, ch)
			m.subMu.Unlock()
		})
	}
}

func (m *Monitor) emit(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Latest returns the most recent reading, if any frame has been analyzed.
func (m *Monitor) Latest() (Reading, bool) {
	if !m.hasReading.Load() {
		return Reading{}, false
	}
	return m.reading.Get(), true
}

// LatestFrame returns the most recent screenshot, analyzed or skipped.
func (m *Monitor) LatestFrame() image.Image {
	return m.source.Latest()
}

// History returns samples from the last d.
func (m *Monitor) History(d time.Duration) []history.Sample {
	return m.history.Recent(d)
}

// SetAlerts enables/disables alerts.
func (m *Monitor) SetAlerts(enabled bool) {
	m.alerts.SetEnabled(enabled)
}

// SetPaused stops or resumes frame analysis. Resuming forgets the last frame
// hash so the next capture is always analyzed.
func (m *Monitor) SetPaused(paused bool) {
	m.host.Lock()
	m.paused = paused
	m.host.Unlock()
	if !paused {
		m.source.Reset()
	}
	slog.Info("monitor pause state changed", "paused", paused)
}

// Paused reports whether analysis is paused.
func (m *Monitor) Paused() bool {
	m.host.Lock()
	defer m.host.Unlock()
	return m.paused
}

// Breaker exposes the capture breaker.
func (m *Monitor) Breaker() *resilience.Breaker {
	return m.source.Breaker()
}

// Status reports counters and the latest reading.
func (m *Monitor) Status() Status {
	st := Status{
		Running:       m.running.Load(),
		Paused:        m.Paused(),
		Batching:      m.batcher != nil,
		AlertsEnabled: m.alerts.IsEnabled(),
		Breaker:       m.Breaker().State().String(),
		Ticks:         m.ticks.Load(),
		Skipped:       m.skipped.Load(),
		Failures:      m.failures.Load(),
		Stats:         m.history.Stats(StatusWindowSeconds * time.Second),
	}
	if r, ok := m.Latest(); ok {
		st.Latest = &r
	}
	return st
}
