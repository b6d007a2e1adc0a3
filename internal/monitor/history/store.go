// Package history keeps a bounded window of recent health samples.
package history

import (
	"sync"
	"time"
)

// Sample is one monitor reading reduced to what history and alerts need.
type Sample struct {
	Time           time.Time `json:"time"`
	HealthFraction float64   `json:"health_fraction"`
	BarFound       bool      `json:"bar_found"`
	IsEmpty        bool      `json:"is_empty"`
	IsCritical     bool      `json:"is_critical"`
	RespawnVisible bool      `json:"respawn_visible"`
	Partial        bool      `json:"partial,omitempty"` // batch mode: no fraction measured
}

// Stats summarizes the measured samples of a window in which the bar was found.
type Stats struct {
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Critical int     `json:"critical"`
}

// Store holds at most maxSize samples, oldest first.
type Store struct {
	mu      sync.RWMutex
	samples []Sample
	maxSize int
	now     func() time.Time
}

// NewStore creates a store of maxSamples.
func NewStore(maxSamples int) *Store {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Store{
		samples: make([]Sample, 0, maxSamples),
		maxSize: maxSamples,
		now:     time.Now,
	}
}

// Add stores s, stamping it with the current time if it has none.
func (s *Store) Add(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sample.Time.IsZero() {
		sample.Time = s.now()
	}
	s.samples = append(s.samples, sample)

	if len(s.samples) > s.maxSize {
		s.samples = s.samples[len(s.samples)-s.maxSize:]
	}
}

// Recent returns samples no older than d, oldest first. d <= 0 returns all.
func (s *Store) Recent(d time.Duration) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d <= 0 {
		return append([]Sample(nil), s.samples...)
	}
	cutoff := s.now().Add(-d)
	var out []Sample
	for _, e := range s.samples {
		if !e.Time.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the newest sample.
func (s *Store) Latest() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Stats summarizes Recent(d), counting only measured samples where the bar
// was found.
func (s *Store) Stats(d time.Duration) Stats {
	var st Stats
	var sum float64
	for _, e := range s.Recent(d) {
		if !e.BarFound || e.Partial {
			continue
		}
		if st.Count == 0 || e.HealthFraction < st.Min {
			st.Min = e.HealthFraction
		}
		if e.HealthFraction > st.Max {
			st.Max = e.HealthFraction
		}
		if e.IsCritical {
			st.Critical++
		}
		sum += e.HealthFraction
		st.Count++
	}
	if st.Count > 0 {
		st.Mean = sum / float64(st.Count)
	}
	return st
}

// Len returns the number of stored samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}
