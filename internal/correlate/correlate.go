// Package correlate computes template-matching score surfaces. The scoring
// follows the OpenCV matchTemplate definitions so either backend can be used
// behind the Correlator interface.
package correlate

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

// Method selects the scoring function. Values match OpenCV's TM_* constants.
type Method int

const (
	SqDiff Method = iota
	SqDiffNormed
	CCorr
	CCorrNormed
	CCoeff
	CCoeffNormed
)

// DefaultMethod is normalized correlation coefficient, the method every
// detection path uses.
const DefaultMethod = CCoeffNormed

var methodNames = [...]string{"sqdiff", "sqdiff_normed", "ccorr", "ccorr_normed", "ccoeff", "ccoeff_normed"}

func (m Method) String() string {
	if m.Valid() {
		return methodNames[m]
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool { return m >= SqDiff && m <= CCoeffNormed }

// ParseMethod accepts the names produced by String, case-insensitively.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range methodNames {
		if name == s {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("unknown match method %q", s)
}

// Surface is the score for every placement of the template's top-left corner:
// (frameW-tmplW+1) x (frameH-tmplH+1) values, row-major.
type Surface struct {
	Width  int
	Height int
	Values []float32
}

// At returns the score at placement (x, y).
func (s *Surface) At(x, y int) float32 { return s.Values[y*s.Width+x] }

// MinMaxLoc returns the extreme values and their first locations in
// row-major scan order.
func (s *Surface) MinMaxLoc() (minVal, maxVal float64, minLoc, maxLoc image.Point) {
	if len(s.Values) == 0 {
		return 0, 0, image.Point{}, image.Point{}
	}
	minVal, maxVal = math.Inf(1), math.Inf(-1)
	for i, v := range s.Values {
		f := float64(v)
		if f < minVal {
			minVal, minLoc = f, image.Pt(i%s.Width, i/s.Width)
		}
		if f > maxVal {
			maxVal, maxLoc = f, image.Pt(i%s.Width, i/s.Width)
		}
	}
	return minVal, maxVal, minLoc, maxLoc
}

// MaxLoc returns the global maximum and its location.
func (s *Surface) MaxLoc() (float64, image.Point) {
	_, maxVal, _, maxLoc := s.MinMaxLoc()
	return maxVal, maxLoc
}

// Correlator produces a score surface for one template over one frame.
// Implementations must be safe for concurrent use and must not mutate inputs.
type Correlator interface {
	Correlate(frame, tmpl *imaging.Image, method Method) (*Surface, error)
}

func checkInputs(frame, tmpl *imaging.Image, method Method) error {
	switch {
	case !method.Valid():
		return fmt.Errorf("unknown match method %d", int(method))
	case frame.Empty() || tmpl.Empty():
		return fmt.Errorf("empty image")
	case frame.Channels != tmpl.Channels:
		return fmt.Errorf("channel mismatch: frame %d, template %d", frame.Channels, tmpl.Channels)
	case tmpl.Width > frame.Width || tmpl.Height > frame.Height:
		return fmt.Errorf("template %dx%d larger than frame %dx%d", tmpl.Width, tmpl.Height, frame.Width, frame.Height)
	}
	return nil
}
