package correlate

import (
	"math"
	"math/bits"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

// fftCostFactor weighs one butterfly against one multiply-add of the direct
// loop when picking the cross-term path.
const fftCostFactor = 4

// fastSize returns the smallest n' >= n whose only prime factors are 2, 3
// and 5, the lengths the mixed-radix transform handles fastest.
func fastSize(n int) int {
	for m := max(n, 1); ; m++ {
		r := m
		for _, p := range []int{2, 3, 5} {
			for r%p == 0 {
				r /= p
			}
		}
		if r == 1 {
			return m
		}
	}
}

// preferFFT compares the direct cross-term cost with the transform cost.
func preferFFT(frame, tmpl *imaging.Image) bool {
	sw, sh := frame.Width-tmpl.Width+1, frame.Height-tmpl.Height+1
	direct := float64(sw) * float64(sh) * float64(tmpl.Width*tmpl.Height*tmpl.Channels)
	p, q := fastSize(frame.Width), fastSize(frame.Height)
	logPQ := float64(bits.Len(uint(p)) + bits.Len(uint(q)))
	spectral := float64(2*tmpl.Channels+1) * float64(p*q) * logPQ * fftCostFactor
	return spectral < direct
}

// plan2D is a separable 2-D complex transform over a w x h row-major grid.
type plan2D struct {
	w, h       int
	rows, cols *fourier.CmplxFFT
	gain       float64 // forward+inverse round-trip gain, divided out by inverse
	line, out  []complex128
}

func newPlan2D(w, h int) *plan2D {
	p := &plan2D{
		w:    w,
		h:    h,
		rows: fourier.NewCmplxFFT(w),
		cols: fourier.NewCmplxFFT(h),
		line: make([]complex128, max(w, h)),
		out:  make([]complex128, max(w, h)),
	}
	p.gain = roundTripGain(p.rows) * roundTripGain(p.cols)
	return p
}

func roundTripGain(f *fourier.CmplxFFT) float64 {
	impulse := make([]complex128, f.Len())
	impulse[0] = 1
	coeff := f.Coefficients(nil, impulse)
	return real(f.Sequence(nil, coeff)[0])
}

func (p *plan2D) forward(grid []complex128) { p.apply(grid, false) }

func (p *plan2D) inverse(grid []complex128) {
	p.apply(grid, true)
	inv := complex(1/p.gain, 0)
	for i := range grid {
		grid[i] *= inv
	}
}

func (p *plan2D) apply(grid []complex128, inverse bool) {
	run := func(f *fourier.CmplxFFT, dst, src []complex128) []complex128 {
		if inverse {
			return f.Sequence(dst, src)
		}
		return f.Coefficients(dst, src)
	}
	for y := 0; y < p.h; y++ {
		row := grid[y*p.w : (y+1)*p.w]
		copy(row, run(p.rows, p.out[:p.w], row))
	}
	col, out := p.line[:p.h], p.out[:p.h]
	for x := 0; x < p.w; x++ {
		for y := range col {
			col[y] = grid[y*p.w+x]
		}
		run(p.cols, out, col)
		for y, v := range out {
			grid[y*p.w+x] = v
		}
	}
}

// crossFFT computes sum(T * F) for every template placement through the
// spectrum of each channel. Padding to at least the frame size keeps valid
// placements clear of circular wraparound.
func crossFFT(frame, tmpl *imaging.Image, sw, sh int) []float64 {
	pw, ph := fastSize(frame.Width), fastSize(frame.Height)
	plan := newPlan2D(pw, ph)

	acc := make([]complex128, pw*ph)
	fb := make([]complex128, pw*ph)
	tb := make([]complex128, pw*ph)
	for c := 0; c < tmpl.Channels; c++ {
		clear(fb)
		clear(tb)
		for y := 0; y < frame.Height; y++ {
			for x := 0; x < frame.Width; x++ {
				fb[y*pw+x] = complex(float64(frame.At(x, y, c)), 0)
			}
		}
		for y := 0; y < tmpl.Height; y++ {
			for x := 0; x < tmpl.Width; x++ {
				tb[y*pw+x] = complex(float64(tmpl.At(x, y, c)), 0)
			}
		}
		plan.forward(fb)
		plan.forward(tb)
		for i := range acc {
			acc[i] += fb[i] * cmplx.Conj(tb[i])
		}
	}
	plan.inverse(acc)

	cross := make([]float64, sw*sh)
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			// Byte products are integers; rounding drops transform noise.
			cross[y*sw+x] = math.Round(real(acc[y*pw+x]))
		}
	}
	return cross
}

// crossDirect is the plain sliding dot product, cheaper for small templates.
func crossDirect(frame, tmpl *imaging.Image, sw, sh int) []float64 {
	cross := make([]float64, sw*sh)
	fStride, tStride := frame.Stride(), tmpl.Stride()
	ch := tmpl.Channels
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			var sum float64
			for ty := 0; ty < tmpl.Height; ty++ {
				fo := (y+ty)*fStride + x*ch
				frow := frame.Pix[fo : fo+tStride]
				trow := tmpl.Pix[ty*tStride : (ty+1)*tStride]
				for i, tv := range trow {
					sum += float64(tv) * float64(frow[i])
				}
			}
			cross[y*sw+x] = sum
		}
	}
	return cross
}
