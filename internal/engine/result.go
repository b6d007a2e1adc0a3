package engine

import (
	"image"
	"time"
)

// Point is a pixel location in frame coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func pointOf(p image.Point) Point { return Point{X: p.X, Y: p.Y} }

// MatchResult is the outcome of one match task. Found is decided once, at task
// completion. TemplateID is the task's input index, or -1 for a task whose
// outcome could not be collected.
type MatchResult struct {
	TemplateID int     `json:"template_id"`
	MaxScore   float64 `json:"max_score"`
	Location   Point   `json:"location"`
	Found      bool    `json:"found"`
	ElapsedMS  float64 `json:"elapsed_ms"`
}

// HealthResult is one health-bar reading.
type HealthResult struct {
	HealthFraction float64 `json:"health_fraction"`
	BarFound       bool    `json:"bar_found"`
	IsEmpty        bool    `json:"is_empty"`
	IsCritical     bool    `json:"is_critical"`
	BarLocation    Point   `json:"bar_location"`
	ElapsedMS      float64 `json:"elapsed_ms"`
}

// BatchEntry is the per-frame output of BatchProcess. It carries no frame
// index: entries for dropped frames are simply absent.
type BatchEntry struct {
	HealthFound       bool    `json:"health_found"`
	HealthConfidence  float64 `json:"health_confidence"`
	RespawnFound      bool    `json:"respawn_found"`
	RespawnConfidence float64 `json:"respawn_confidence"`
}

// BenchmarkResult summarizes a serial benchmark run.
type BenchmarkResult struct {
	TotalTimeMS float64 `json:"total_time_ms"`
	AvgTimeMS   float64 `json:"avg_time_ms"`
	Iterations  int     `json:"iterations"`
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
