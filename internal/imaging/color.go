package imaging

import (
	"math"

	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
)

// HSVRange is an inclusive per-channel range in 8-bit HSV (H in [0,180]).
type HSVRange struct {
	Lo [3]uint8
	Hi [3]uint8
}

func (r HSVRange) contains(h, s, v byte) bool {
	return h >= r.Lo[0] && h <= r.Hi[0] &&
		s >= r.Lo[1] && s <= r.Hi[1] &&
		v >= r.Lo[2] && v <= r.Hi[2]
}

// ToHSV converts a BGR or BGRA image to 3-channel 8-bit HSV using the
// OpenCV convention: H in [0,180], S and V in [0,255]. Alpha is ignored.
func ToHSV(m *Image) (*Image, error) {
	if m.Channels != 3 && m.Channels != 4 {
		return nil, apperrors.Newf(apperrors.CodeInvalidShape, "hsv conversion needs 3 or 4 channels, got %d", m.Channels)
	}
	out := New(m.Width, m.Height, 3)
	for p, o := 0, 0; o < len(out.Pix); p, o = p+m.Channels, o+3 {
		h, s, v := bgrToHSV(m.Pix[p], m.Pix[p+1], m.Pix[p+2])
		out.Pix[o], out.Pix[o+1], out.Pix[o+2] = h, s, v
	}
	return out, nil
}

func bgrToHSV(b, g, r byte) (byte, byte, byte) {
	bf, gf, rf := float64(b), float64(g), float64(r)
	v := math.Max(rf, math.Max(gf, bf))
	lo := math.Min(rf, math.Min(gf, bf))
	diff := v - lo

	var s float64
	if v > 0 {
		s = 255 * diff / v
	}

	var h float64
	if diff > 0 {
		switch v {
		case rf:
			h = 60 * (gf - bf) / diff
		case gf:
			h = 120 + 60*(bf-rf)/diff
		default:
			h = 240 + 60*(rf-gf)/diff
		}
		if h < 0 {
			h += 360
		}
	}
	return saturate(h / 2), saturate(s), saturate(v)
}

func saturate(f float64) byte {
	f = math.Round(f)
	switch {
	case f < 0:
		return 0
	case f > 255:
		return 255
	}
	return byte(f)
}

// CountInRanges counts HSV pixels falling in any of the ranges.
func CountInRanges(hsv *Image, ranges ...HSVRange) int {
	n := 0
	for i := 0; i+2 < len(hsv.Pix); i += hsv.Channels {
		h, s, v := hsv.Pix[i], hsv.Pix[i+1], hsv.Pix[i+2]
		for _, r := range ranges {
			if r.contains(h, s, v) {
				n++
				break
			}
		}
	}
	return n
}
