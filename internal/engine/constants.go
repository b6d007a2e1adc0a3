package engine

import "github.com/GriffinCanCode/matchcore/internal/imaging"

// Detection thresholds used by the health and batch paths.
const (
	DefaultBarThreshold     = 0.7
	DefaultEmptyThreshold   = 0.8
	DefaultRespawnThreshold = 0.8
	DefaultHealthThreshold  = 0.3
)

// EmptyHealthFloor classifies a reading as empty even when the empty-health
// template was not seen.
const EmptyHealthFloor = 0.05

// DefaultBenchmarkIterations is the repeat count when the caller has no
// preference.
const DefaultBenchmarkIterations = 100

// sentinelID marks a result substituted at the join site.
const sentinelID = -1

// Red wraps around hue 0, so filled health is two bands (OpenCV 8-bit HSV).
var healthBands = []imaging.HSVRange{
	{Lo: [3]uint8{0, 120, 70}, Hi: [3]uint8{10, 255, 255}},
	{Lo: [3]uint8{170, 120, 70}, Hi: [3]uint8{180, 255, 255}},
}
