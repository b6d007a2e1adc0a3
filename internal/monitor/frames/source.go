// Package frames pulls screenshots for the monitor and drops the ones that
// did not visibly change since the last frame analyzed.
package frames

import (
	"context"
	"image"
	"sync"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/matchcore/internal/resilience"
	"github.com/GriffinCanCode/matchcore/internal/screen"
	"github.com/GriffinCanCode/matchcore/internal/trace"
)

// Frame is one captured screenshot.
type Frame struct {
	Image   image.Image
	Changed bool // false when the perceptual hash is within the skip distance
}

// Source captures through a circuit breaker and compares each frame's
// perceptual hash with the last frame that was reported as changed.
type Source struct {
	capturer screen.Capturer
	breaker  *resilience.Breaker
	retry    resilience.RetryConfig
	maxDist  int // negative disables skipping

	mu       sync.Mutex
	lastHash *goimagehash.ImageHash
	latest   image.Image
}

// NewSource wraps capturer. Frames whose hash distance to the previous
// changed frame is at most maxDist are reported unchanged.
func NewSource(capturer screen.Capturer, breaker *resilience.Breaker, retry resilience.RetryConfig, maxDist int) *Source {
	return &Source{capturer: capturer, breaker: breaker, retry: retry, maxDist: maxDist}
}

// Next captures one frame.
func (s *Source) Next(ctx context.Context) (Frame, error) {
	img, err := resilience.Guarded(ctx, s.breaker, s.retry, s.capturer.Capture)
	if err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	s.latest = img
	s.mu.Unlock()

	return Frame{Image: img, Changed: !s.similar(ctx, img)}, nil
}

// similar computes pHash and reports whether img is within maxDist of the
// last changed frame.
func (s *Source) similar(ctx context.Context, img image.Image) bool {
	if s.maxDist < 0 {
		return false
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastHash == nil {
		s.lastHash = hash
		return false
	}

	dist, err := s.lastHash.Distance(hash)
	if err != nil {
		s.lastHash = hash
		return false
	}

	if dist <= s.maxDist {
		trace.Logger(ctx).Debug("skipping similar frame", "distance", dist)
		return true
	}

	s.lastHash = hash
	return false
}

// Reset forgets the last hash so the next frame is always analyzed.
func (s *Source) Reset() {
	s.mu.Lock()
	s.lastHash = nil
	s.mu.Unlock()
}

// Latest returns the most recent screenshot, changed or not.
func (s *Source) Latest() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Breaker exposes the capture breaker for health reporting.
func (s *Source) Breaker() *resilience.Breaker { return s.breaker }

// Close releases the capturer.
func (s *Source) Close() error { return s.capturer.Close() }
