// Package batch accumulates captured frames and hands them off in groups.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/matchcore/internal/imaging"
	"github.com/GriffinCanCode/matchcore/internal/trace"
)

// Frame is a queued frame with its capture time.
type Frame struct {
	Time   time.Time
	Buffer imaging.Buffer
}

// FlushFunc processes one batch. It runs on its own goroutine.
type FlushFunc func(ctx context.Context, frames []Frame)

// Batcher flushes when maxSize frames are queued or flushDelay after the last
// Add, whichever comes first.
type Batcher struct {
	flush      FlushFunc
	maxSize    int
	flushDelay time.Duration
	mu         sync.Mutex
	frames     []Frame
	timer      *time.Timer
	stopped    bool
	wg         sync.WaitGroup
}

// NewBatcher creates a frame batcher.
func NewBatcher(flush FlushFunc, maxSize int, flushDelay time.Duration) *Batcher {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	return &Batcher{
		flush:      flush,
		maxSize:    maxSize,
		flushDelay: flushDelay,
		frames:     make([]Frame, 0, maxSize),
	}
}

// Add queues a frame. Frames added after Stop are dropped.
func (b *Batcher) Add(buf imaging.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.frames = append(b.frames, Frame{Time: time.Now(), Buffer: buf})

	if len(b.frames) >= b.maxSize {
		b.flushLocked()
		return
	}

	// Start or reset timer for delayed flush
	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.timerFlush)
	} else {
		b.timer.Reset(b.flushDelay)
	}
}

func (b *Batcher) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if len(b.frames) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	frames := b.frames
	b.frames = make([]Frame, 0, b.maxSize)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, span := trace.StartSpan(context.Background(), "frame_batch_flush")
		span.SetAttr("count", len(frames))
		b.flush(ctx, frames)
		span.End()
		trace.Logger(ctx).Debug("frame batch flushed", "span", span)
	}()
}

// Pending returns the number of queued frames.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Flush forces immediate flush of pending frames.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Stop flushes remaining frames and waits for every flush to finish.
func (b *Batcher) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.flushLocked()
	b.mu.Unlock()
	b.wg.Wait()
}
