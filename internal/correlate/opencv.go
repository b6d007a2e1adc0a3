//go:build gocv

package correlate

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

func init() { defaultCorrelator = OpenCV{} }

// OpenCV correlates with cv::matchTemplate through gocv. Selected as the
// default when built with -tags gocv.
type OpenCV struct{}

func toMat(m *imaging.Image) (gocv.Mat, error) {
	var mt gocv.MatType
	switch m.Channels {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
		mt = gocv.MatTypeCV8UC3
	case 4:
		mt = gocv.MatTypeCV8UC4
	default:
		return gocv.NewMat(), fmt.Errorf("unsupported channel count %d", m.Channels)
	}
	return gocv.NewMatFromBytes(m.Height, m.Width, mt, m.Pix)
}

// Correlate implements Correlator.
func (OpenCV) Correlate(frame, tmpl *imaging.Image, method Method) (*Surface, error) {
	if err := checkInputs(frame, tmpl, method); err != nil {
		return nil, err
	}

	f, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := toMat(tmpl)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(f, t, &result, gocv.TemplateMatchMode(method), mask)
	if result.Empty() {
		return nil, fmt.Errorf("matchTemplate produced no result")
	}

	data, err := result.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	return &Surface{
		Width:  result.Cols(),
		Height: result.Rows(),
		Values: append([]float32(nil), data...),
	}, nil
}
