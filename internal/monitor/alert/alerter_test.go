package alert

import (
	"testing"
	"time"

	"github.com/GriffinCanCode/matchcore/internal/monitor/history"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newAlerter(cooldown time.Duration, enabled bool) (*Alerter, *clock) {
	c := &clock{t: time.Unix(1000, 0)}
	a := New(cooldown, enabled)
	a.now = c.now
	return a, c
}

func actions(alerts []Alert) []Action {
	out := make([]Action, len(alerts))
	for i, a := range alerts {
		out[i] = a.Action
	}
	return out
}

func TestAlerterRules(t *testing.T) {
	tests := []struct {
		name   string
		sample history.Sample
		want   []Action
	}{
		{"healthy", history.Sample{BarFound: true, HealthFraction: 0.9}, nil},
		{"critical", history.Sample{BarFound: true, IsCritical: true, HealthFraction: 0.2}, []Action{UsePotion}},
		{"critical but empty", history.Sample{BarFound: true, IsCritical: true, IsEmpty: true}, nil},
		{"critical bar not found", history.Sample{IsCritical: true}, nil},
		{"empty with respawn", history.Sample{IsEmpty: true, IsCritical: true, RespawnVisible: true}, []Action{Respawn}},
		{"respawn while alive", history.Sample{BarFound: true, HealthFraction: 0.9, RespawnVisible: true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAlerter(time.Second, true)
			got := actions(a.Check(tt.sample))
			if len(got) != len(tt.want) {
				t.Fatalf("Check() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Check()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAlerterDisabled(t *testing.T) {
	a, _ := newAlerter(time.Second, false)
	if got := a.Check(history.Sample{BarFound: true, IsCritical: true}); len(got) != 0 {
		t.Errorf("disabled alerter fired %v", got)
	}
}

func TestAlerterCooldown(t *testing.T) {
	a, c := newAlerter(time.Second, true)
	critical := history.Sample{BarFound: true, IsCritical: true, HealthFraction: 0.1}
	dead := history.Sample{IsEmpty: true, RespawnVisible: true}

	if len(a.Check(critical)) != 1 {
		t.Fatal("first check should fire")
	}
	if len(a.Check(critical)) != 0 {
		t.Error("should be in cooldown")
	}
	if len(a.Check(dead)) != 1 {
		t.Error("cooldown is per action; respawn should still fire")
	}

	c.advance(time.Second)
	if got := a.Check(critical); len(got) != 1 || !got[0].Time.Equal(c.t) {
		t.Errorf("should fire after cooldown, got %+v", got)
	}
}

func TestSetEnabled(t *testing.T) {
	a, _ := newAlerter(time.Second, false)
	if a.IsEnabled() {
		t.Error("should start disabled")
	}
	a.SetEnabled(true)
	if !a.IsEnabled() {
		t.Error("should be enabled")
	}
}
