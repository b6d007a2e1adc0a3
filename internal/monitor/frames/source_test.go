package frames

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/matchcore/internal/resilience"
)

type stubCapturer struct {
	mu     sync.Mutex
	frames []image.Image
	calls  int
	err    error
	closed bool
}

func (c *stubCapturer) Capture(context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	img := c.frames[0]
	if len(c.frames) > 1 {
		c.frames = c.frames[1:]
	}
	return img, nil
}

func (c *stubCapturer) Close() error {
	c.closed = true
	return nil
}

func noise(seed int64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	r := rand.New(rand.NewSource(seed))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(r.Intn(256))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:  1,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		IsRetryable: func(error) bool { return false },
	}
}

func newSource(c *stubCapturer, maxDist int) *Source {
	return NewSource(c, resilience.New(resilience.Config{Threshold: 2, ResetTimeout: time.Hour}), noRetry(), maxDist)
}

func TestSourceSkipsIdenticalFrames(t *testing.T) {
	img := noise(1)
	s := newSource(&stubCapturer{frames: []image.Image{img}}, 2)

	for i, want := range []bool{true, false, false} {
		f, err := s.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if f.Changed != want {
			t.Errorf("frame %d Changed = %v, want %v", i, f.Changed, want)
		}
	}
	if s.Latest() != img {
		t.Error("Latest() should return the last capture even when skipped")
	}
}

func TestSourceReportsDifferentFrames(t *testing.T) {
	s := newSource(&stubCapturer{frames: []image.Image{noise(1), noise(2)}}, 2)

	if f, _ := s.Next(context.Background()); !f.Changed {
		t.Error("first frame should be changed")
	}
	if f, _ := s.Next(context.Background()); !f.Changed {
		t.Error("unrelated frame should be changed")
	}
}

func TestSourceNegativeDistanceNeverSkips(t *testing.T) {
	s := newSource(&stubCapturer{frames: []image.Image{noise(3)}}, -1)
	for i := 0; i < 3; i++ {
		if f, _ := s.Next(context.Background()); !f.Changed {
			t.Errorf("frame %d skipped with skipping disabled", i)
		}
	}
}

func TestSourceReset(t *testing.T) {
	s := newSource(&stubCapturer{frames: []image.Image{noise(4)}}, 2)
	s.Next(context.Background())
	s.Reset()
	if f, _ := s.Next(context.Background()); !f.Changed {
		t.Error("frame after Reset should be changed")
	}
}

func TestSourceOpensBreaker(t *testing.T) {
	c := &stubCapturer{err: errors.New("no display")}
	s := newSource(c, 2)

	for i := 0; i < 2; i++ {
		if _, err := s.Next(context.Background()); err == nil {
			t.Fatal("expected capture error")
		}
	}
	if s.Breaker().State() != resilience.Open {
		t.Fatalf("breaker state = %v, want open", s.Breaker().State())
	}

	calls := c.calls
	if _, err := s.Next(context.Background()); !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("error = %v, want ErrOpen", err)
	}
	if c.calls != calls {
		t.Error("capturer called while breaker open")
	}
}

func TestSourceClose(t *testing.T) {
	c := &stubCapturer{frames: []image.Image{noise(5)}}
	s := newSource(c, 2)
	if err := s.Close(); err != nil || !c.closed {
		t.Errorf("Close() = %v, closed = %v", err, c.closed)
	}
}
