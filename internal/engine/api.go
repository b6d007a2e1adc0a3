package engine

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/GriffinCanCode/matchcore/internal/correlate"
	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
	"github.com/GriffinCanCode/matchcore/internal/syncx"
	"github.com/GriffinCanCode/matchcore/internal/trace"
)

// DetectHealth reads the health bar from frame. Only malformed buffers are
// reported as errors; detection faults read as a zeroed result.
func (e *Engine) DetectHealth(ctx context.Context, frame, healthTmpl, emptyTmpl imaging.Buffer, healthThreshold float64) (HealthResult, error) {
	host := syncx.Release(e.lock)
	defer host.Restore()

	imgs, err := e.convert(host, frame, healthTmpl, emptyTmpl)
	if err != nil {
		return HealthResult{}, err
	}
	return e.AnalyzeHealth(ctx, imgs[0], imgs[1], imgs[2], healthThreshold), nil
}

// AnalyzeHealth is DetectHealth for callers that already own their images.
func (e *Engine) AnalyzeHealth(ctx context.Context, frame, healthTmpl, emptyTmpl *imaging.Image, healthThreshold float64) HealthResult {
	_, span := trace.StartSpan(ctx, "engine.detect_health")
	res := e.analyzeHealth(frame, healthTmpl, emptyTmpl, healthThreshold)
	span.End()
	e.log.Log(slog.LevelDebug, "health detection completed",
		"span", span, "fraction", res.HealthFraction, "bar_found", res.BarFound, "elapsed_ms", res.ElapsedMS)
	return res
}

// MatchTemplates matches every template against frame in parallel. A length
// mismatch between templates and thresholds returns an empty slice and a
// CodeSizeMismatch error.
func (e *Engine) MatchTemplates(ctx context.Context, frame imaging.Buffer, templates []imaging.Buffer, thresholds []float64, method correlate.Method) ([]MatchResult, error) {
	if len(templates) != len(thresholds) {
		e.log.Log(slog.LevelWarn, "template and threshold counts differ",
			"templates", len(templates), "thresholds", len(thresholds))
		return []MatchResult{}, apperrors.Newf(apperrors.CodeSizeMismatch,
			"%d templates but %d thresholds", len(templates), len(thresholds))
	}

	host := syncx.Release(e.lock)
	defer host.Restore()

	imgs, err := e.convert(host, append([]imaging.Buffer{frame}, templates...)...)
	if err != nil {
		return []MatchResult{}, err
	}
	return e.Dispatch(ctx, imgs[0], imgs[1:], thresholds, method)
}

// Dispatch is MatchTemplates over owned images.
func (e *Engine) Dispatch(ctx context.Context, frame *imaging.Image, templates []*imaging.Image, thresholds []float64, method correlate.Method) ([]MatchResult, error) {
	if !method.Valid() {
		return []MatchResult{}, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown match method %d", int(method))
	}
	_, span := trace.StartSpan(ctx, "engine.match_templates")
	results, err := e.dispatch(frame, templates, thresholds, method)
	span.SetAttr("tasks", len(templates))
	span.End()
	if err == nil {
		e.log.Log(slog.LevelDebug, "template dispatch completed", "span", span, "method", method.String())
	}
	return results, err
}

// BatchProcess runs bar and respawn detection on every frame concurrently.
// Frames with a malformed shape are logged and contribute no entry; the rest
// keep their relative order. healthThreshold is range-checked but does not
// change the entries: they report bar presence and confidence, not a health
// fraction, so there is nothing to classify as critical.
func (e *Engine) BatchProcess(ctx context.Context, frames []imaging.Buffer, healthTmpl, respawnTmpl imaging.Buffer, healthThreshold float64) ([]BatchEntry, error) {
	if healthThreshold < 0 || healthThreshold > 1 {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "health threshold %v outside [0,1]", healthThreshold)
	}

	host := syncx.Release(e.lock)
	defer host.Restore()

	tmpls, err := e.convert(host, healthTmpl, respawnTmpl)
	if err != nil {
		return nil, err
	}

	imgs := make([]*imaging.Image, 0, len(frames))
	host.Hold(func() {
		for i, f := range frames {
			img, err := imaging.ToImage(f)
			if err != nil {
				e.log.Log(slog.LevelWarn, "skipping malformed frame", "index", i, "error", err)
				continue
			}
			imgs = append(imgs, img)
		}
	})

	return e.Batch(ctx, imgs, tmpls[0], tmpls[1]), nil
}

// Batch is BatchProcess over owned images.
func (e *Engine) Batch(ctx context.Context, frames []*imaging.Image, healthTmpl, respawnTmpl *imaging.Image) []BatchEntry {
	_, span := trace.StartSpan(ctx, "engine.batch_process")
	entries := make([]BatchEntry, len(frames))

	var wg sync.WaitGroup
	for i, frame := range frames {
		wg.Add(1)
		go func(i int, frame *imaging.Image) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.log.Log(slog.LevelError, "batch frame panicked", "index", i, "panic", r)
					entries[i] = BatchEntry{}
				}
			}()
			found, err := e.dispatch(frame,
				[]*imaging.Image{healthTmpl, respawnTmpl},
				[]float64{e.thresholds.Bar, e.thresholds.Respawn},
				correlate.CCoeffNormed)
			if err != nil {
				return
			}
			entries[i] = BatchEntry{
				HealthFound:       found[0].Found,
				HealthConfidence:  found[0].MaxScore,
				RespawnFound:      found[1].Found,
				RespawnConfidence: found[1].MaxScore,
			}
		}(i, frame)
	}
	wg.Wait()

	span.SetAttr("frames", len(frames))
	span.End()
	e.log.Log(slog.LevelDebug, "batch completed", "span", span)
	return entries
}

// Benchmark times iterations serial correlations of tmpl over frame.
func (e *Engine) Benchmark(ctx context.Context, frame, tmpl imaging.Buffer, iterations int) (BenchmarkResult, error) {
	if iterations < 1 {
		return BenchmarkResult{}, apperrors.Newf(apperrors.CodeInvalidArgument, "iterations must be >= 1, got %d", iterations)
	}

	host := syncx.Release(e.lock)
	defer host.Restore()

	imgs, err := e.convert(host, frame, tmpl)
	if err != nil {
		return BenchmarkResult{}, err
	}

	f, t := imgs[0], imgs[1]
	if t.Width > f.Width || t.Height > f.Height {
		return BenchmarkResult{}, apperrors.Newf(apperrors.CodeInvalidArgument,
			"template %dx%d larger than frame %dx%d", t.Width, t.Height, f.Width, f.Height)
	}

	_, span := trace.StartSpan(ctx, "engine.benchmark")
	start := time.Now()
	for i := 0; i < iterations; i++ {
		s, err := e.corr.Correlate(f, t, correlate.CCoeffNormed)
		if err != nil {
			span.End()
			return BenchmarkResult{}, apperrors.Wrap(err, apperrors.CodeInternal, "benchmark correlation")
		}
		s.MaxLoc()
	}
	total := msSince(start)
	span.End()

	res := BenchmarkResult{TotalTimeMS: total, AvgTimeMS: total / float64(iterations), Iterations: iterations}
	e.log.Log(slog.LevelInfo, "benchmark completed", "span", span, "iterations", iterations, "total_ms", total, "avg_ms", res.AvgTimeMS)
	return res, nil
}

// convert copies host buffers into owned images while holding the host lock.
func (e *Engine) convert(host *syncx.Released, bufs ...imaging.Buffer) ([]*imaging.Image, error) {
	out := make([]*imaging.Image, len(bufs))
	var err error
	host.Hold(func() {
		for i, b := range bufs {
			if out[i], err = imaging.ToImage(b); err != nil {
				if ae, ok := apperrors.As(err); ok {
					ae.WithMetadata("argument", strconv.Itoa(i))
				}
				return
			}
		}
	})
	if err != nil {
		e.log.Log(slog.LevelWarn, "rejected input buffer", "error", err)
		return nil, err
	}
	return out, nil
}
