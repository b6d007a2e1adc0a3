package engine

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/GriffinCanCode/matchcore/internal/correlate"
	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

// match correlates one template against the frame. It never fails: bad inputs
// and correlator faults come back as a zeroed, not-found result.
func (e *Engine) match(id int, frame, tmpl *imaging.Image, method correlate.Method, threshold float64) (res MatchResult) {
	start := time.Now()
	res.TemplateID = id
	defer func() {
		if r := recover(); r != nil {
			e.log.Log(slog.LevelError, "match task panicked", "template_id", id, "panic", r)
			res = MatchResult{TemplateID: id}
		}
		res.ElapsedMS = msSince(start)
	}()

	switch {
	case frame.Empty() || tmpl.Empty():
		e.log.Log(slog.LevelWarn, "empty frame or template", "template_id", id)
		return res
	case tmpl.Width > frame.Width || tmpl.Height > frame.Height:
		e.log.Log(slog.LevelWarn, "template larger than frame", "template_id", id,
			"template", fmt.Sprintf("%dx%d", tmpl.Width, tmpl.Height),
			"frame", fmt.Sprintf("%dx%d", frame.Width, frame.Height))
		return res
	}

	s, err := e.corr.Correlate(frame, tmpl, method)
	if err != nil {
		e.log.Log(slog.LevelError, "correlation failed", "template_id", id, "error", err)
		return res
	}
	score, loc := s.MaxLoc()
	res.MaxScore = score
	res.Location = pointOf(loc)
	res.Found = score >= threshold
	return res
}

// outcome is what a task goroutine leaves in its slot: a result, or the fault
// that prevented one.
type outcome struct {
	result MatchResult
	err    error
}

// dispatch runs one task per template, each on its own OS thread, and waits
// for all of them. Entry i of the result belongs to template i.
func (e *Engine) dispatch(frame *imaging.Image, templates []*imaging.Image, thresholds []float64, method correlate.Method) ([]MatchResult, error) {
	if len(templates) != len(thresholds) {
		e.log.Log(slog.LevelWarn, "template and threshold counts differ",
			"templates", len(templates), "thresholds", len(thresholds))
		return []MatchResult{}, apperrors.Newf(apperrors.CodeSizeMismatch,
			"%d templates but %d thresholds", len(templates), len(thresholds))
	}

	outcomes := make([]outcome, len(templates))
	var wg sync.WaitGroup
	for i := range templates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = outcome{err: fmt.Errorf("task %d: %v", i, r)}
				}
			}()
			e.acquire()
			defer e.release()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			outcomes[i] = outcome{result: e.runTask(e, i, frame, templates[i], method, thresholds[i])}
		}(i)
	}
	wg.Wait()

	results := make([]MatchResult, len(outcomes))
	for i, o := range outcomes {
		if o.err != nil {
			e.log.Log(slog.LevelError, "match task lost", "index", i, "error", o.err)
			results[i] = MatchResult{TemplateID: sentinelID}
			continue
		}
		results[i] = o.result
	}
	return results, nil
}
