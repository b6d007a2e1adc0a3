package engine

import (
	"image"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/matchcore/internal/correlate"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

func noise(w, h, ch int, seed int64) *imaging.Image {
	m := imaging.New(w, h, ch)
	r := rand.New(rand.NewSource(seed))
	for i := range m.Pix {
		m.Pix[i] = byte(r.Intn(256))
	}
	return m
}

// healthBar draws a w x h bar whose left filled columns are pure red and the
// rest dark gray.
func healthBar(w, h, filled int) *imaging.Image {
	m := imaging.New(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := [3]byte{40, 40, 40}
			if x < filled {
				px = [3]byte{0, 0, 255}
			}
			for c, v := range px {
				m.Set(x, y, c, v)
			}
		}
	}
	return m
}

func withPatch(frame, patch *imaging.Image, at image.Point) *imaging.Image {
	out := &imaging.Image{Width: frame.Width, Height: frame.Height, Channels: frame.Channels,
		Pix: append([]byte(nil), frame.Pix...)}
	out.Paste(patch, at)
	return out
}

// funcCorrelator adapts a function to correlate.Correlator.
type funcCorrelator func(frame, tmpl *imaging.Image, method correlate.Method) (*correlate.Surface, error)

func (f funcCorrelator) Correlate(frame, tmpl *imaging.Image, method correlate.Method) (*correlate.Surface, error) {
	return f(frame, tmpl, method)
}

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) Log(_ slog.Level, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *recordingLogger) has(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

// hostLock is a HostLock that reports whether it is currently held.
type hostLock struct {
	mu   sync.Mutex
	held atomic.Bool
}

func (l *hostLock) Lock() {
	l.mu.Lock()
	l.held.Store(true)
}

func (l *hostLock) Unlock() {
	l.held.Store(false)
	l.mu.Unlock()
}
