package correlate

import (
	"math"

	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

// normEpsilon is the smallest denominator treated as non-degenerate.
const normEpsilon = 1e-9

var defaultCorrelator Correlator = Native{}

// Default returns the correlator selected at build time: Native unless the
// binary was built with the gocv tag.
func Default() Correlator { return defaultCorrelator }

// Native is a pure-Go matchTemplate. Window sums come from integral images;
// the template cross term is a direct sliding product for small templates and
// a per-channel FFT correlation for large ones. Multi-channel images are
// scored over all channels jointly, as OpenCV does.
type Native struct{}

// integral holds per-channel summed-area tables plus one table of squares
// summed over channels, each (w+1) x (h+1).
type integral struct {
	w, ch int
	sum   [][]float64
	sq    []float64
}

func newIntegral(m *imaging.Image) *integral {
	w, h, ch := m.Width, m.Height, m.Channels
	in := &integral{w: w + 1, ch: ch, sum: make([][]float64, ch), sq: make([]float64, (w+1)*(h+1))}
	for c := range in.sum {
		in.sum[c] = make([]float64, (w+1)*(h+1))
	}
	rowSum := make([]float64, ch)
	for y := 0; y < h; y++ {
		for c := range rowSum {
			rowSum[c] = 0
		}
		rowSq := 0.0
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				v := float64(m.At(x, y, c))
				rowSum[c] += v
				rowSq += v * v
				in.sum[c][(y+1)*in.w+x+1] = in.sum[c][y*in.w+x+1] + rowSum[c]
			}
			in.sq[(y+1)*in.w+x+1] = in.sq[y*in.w+x+1] + rowSq
		}
	}
	return in
}

func (in *integral) rect(t []float64, x, y, w, h int) float64 {
	return t[(y+h)*in.w+x+w] - t[y*in.w+x+w] - t[(y+h)*in.w+x] + t[y*in.w+x]
}

// Correlate implements Correlator.
func (Native) Correlate(frame, tmpl *imaging.Image, method Method) (*Surface, error) {
	if err := checkInputs(frame, tmpl, method); err != nil {
		return nil, err
	}

	ch := tmpl.Channels
	tw, th := tmpl.Width, tmpl.Height
	n := float64(tw * th)

	tSum := make([]float64, ch)
	var tSq float64
	for i, v := range tmpl.Pix {
		f := float64(v)
		tSum[i%ch] += f
		tSq += f * f
	}
	tMean := make([]float64, ch)
	tVar := tSq
	for c := range tSum {
		tMean[c] = tSum[c] / n
		tVar -= tSum[c] * tSum[c] / n
	}

	in := newIntegral(frame)
	s := &Surface{Width: frame.Width - tw + 1, Height: frame.Height - th + 1}
	s.Values = make([]float32, s.Width*s.Height)

	var crossAll []float64
	if preferFFT(frame, tmpl) {
		crossAll = crossFFT(frame, tmpl, s.Width, s.Height)
	} else {
		crossAll = crossDirect(frame, tmpl, s.Width, s.Height)
	}

	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			cross := crossAll[y*s.Width+x]
			wSq := in.rect(in.sq, x, y, tw, th)

			var r float64
			switch method {
			case SqDiff:
				r = tSq - 2*cross + wSq
			case SqDiffNormed:
				r = normedSqDiff(tSq-2*cross+wSq, math.Sqrt(tSq*wSq))
			case CCorr:
				r = cross
			case CCorrNormed:
				r = normed(cross, math.Sqrt(tSq*wSq))
			case CCoeff, CCoeffNormed:
				wVar := wSq
				for c := 0; c < ch; c++ {
					ws := in.rect(in.sum[c], x, y, tw, th)
					cross -= tMean[c] * ws
					wVar -= ws * ws / n
				}
				r = cross
				if method == CCoeffNormed {
					r = normed(cross, math.Sqrt(math.Max(tVar, 0)*math.Max(wVar, 0)))
				}
			}
			s.Values[y*s.Width+x] = float32(r)
		}
	}
	return s, nil
}

func normed(num, denom float64) float64 {
	if denom <= normEpsilon {
		return 0
	}
	return math.Max(-1, math.Min(1, num/denom))
}

func normedSqDiff(num, denom float64) float64 {
	if denom <= normEpsilon {
		if num <= normEpsilon {
			return 0
		}
		return 1
	}
	return math.Max(0, math.Min(1, num/denom))
}
