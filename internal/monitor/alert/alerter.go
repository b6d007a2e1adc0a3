// Package alert turns health samples into the actions a player (or a bot
// driving the game) should take.
package alert

import (
	"log/slog"
	"sync"
	"time"

	"github.com/GriffinCanCode/matchcore/internal/monitor/history"
)

// Action names what should be done about a reading.
type Action string

const (
	UsePotion Action = "use_potion"
	Respawn   Action = "respawn"
)

// Alert is one triggered action.
type Alert struct {
	Action         Action    `json:"action"`
	Time           time.Time `json:"time"`
	HealthFraction float64   `json:"health_fraction"`
}

// Alerter applies the rules with a per-action cooldown.
type Alerter struct {
	mu       sync.Mutex
	enabled  bool
	cooldown time.Duration
	last     map[Action]time.Time
	now      func() time.Time
}

// New creates an alerter.
func New(cooldown time.Duration, enabled bool) *Alerter {
	return &Alerter{
		enabled:  enabled,
		cooldown: cooldown,
		last:     make(map[Action]time.Time),
		now:      time.Now,
	}
}

// Check returns the alerts s triggers. A critical but non-empty bar asks for
// a potion; an empty bar with the respawn button on screen asks for a
// respawn. Each action fires at most once per cooldown.
func (a *Alerter) Check(s history.Sample) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled {
		return nil
	}

	var out []Alert
	if s.BarFound && s.IsCritical && !s.IsEmpty {
		out = a.fire(out, UsePotion, s)
	}
	if s.IsEmpty && s.RespawnVisible {
		out = a.fire(out, Respawn, s)
	}
	return out
}

func (a *Alerter) fire(out []Alert, action Action, s history.Sample) []Alert {
	now := a.now()
	if last, ok := a.last[action]; ok && now.Sub(last) < a.cooldown {
		return out
	}
	a.last[action] = now
	slog.Info("alert triggered", "action", action, "health", s.HealthFraction)
	return append(out, Alert{Action: action, Time: now, HealthFraction: s.HealthFraction})
}

// SetEnabled enables/disables alerts.
func (a *Alerter) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
	slog.Info("alert state changed", "enabled", enabled)
}

// IsEnabled returns current enabled state.
func (a *Alerter) IsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}
