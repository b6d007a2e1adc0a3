package engine

import (
	"image"
	"log/slog"
	"time"

	"github.com/GriffinCanCode/matchcore/internal/correlate"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

// analyzeHealth searches for the bar and the empty marker in parallel, then
// measures how much of the located bar is filled. Any fault yields a zeroed
// reading.
func (e *Engine) analyzeHealth(frame, bar, empty *imaging.Image, healthThreshold float64) (res HealthResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Log(slog.LevelError, "health analysis panicked", "panic", r)
			res = HealthResult{}
		}
		res.ElapsedMS = msSince(start)
	}()

	if frame.Empty() || bar.Empty() || empty.Empty() {
		e.log.Log(slog.LevelWarn, "empty input in health detection")
		return res
	}

	found, err := e.dispatch(frame,
		[]*imaging.Image{bar, empty},
		[]float64{e.thresholds.Bar, e.thresholds.Empty},
		correlate.CCoeffNormed)
	if err != nil {
		e.log.Log(slog.LevelError, "health dispatch failed", "error", err)
		return res
	}
	barMatch, emptyMatch := found[0], found[1]

	res.BarFound = barMatch.Found
	res.BarLocation = barMatch.Location
	if barMatch.Found {
		frac, err := measureHealth(frame, barMatch.Location, bar.Width, bar.Height)
		if err != nil {
			e.log.Log(slog.LevelError, "health color analysis failed", "error", err)
			return HealthResult{}
		}
		res.HealthFraction = frac
	}

	res.IsEmpty = emptyMatch.Found || res.HealthFraction < EmptyHealthFloor
	res.IsCritical = res.HealthFraction < healthThreshold
	return res
}

// measureHealth is the fraction of red pixels in the w x h region at loc,
// clamped to the frame. A region clamped to nothing measures 0.
func measureHealth(frame *imaging.Image, loc Point, w, h int) (float64, error) {
	roi := frame.Region(image.Rect(loc.X, loc.Y, loc.X+w, loc.Y+h))
	if roi.Empty() {
		return 0, nil
	}
	hsv, err := imaging.ToHSV(roi)
	if err != nil {
		return 0, err
	}
	return float64(imaging.CountInRanges(hsv, healthBands...)) / float64(roi.Width*roi.Height), nil
}
