package imaging

import (
	"image"
	"image/color"
	"math"

	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
)

// Buffer is an externally owned raw pixel buffer: Shape is [h, w] or [h, w, c]
// and Strides are byte strides per dimension. Nil Strides means C-contiguous.
type Buffer struct {
	Data    []byte
	Shape   []int
	Strides []int
}

func (b Buffer) dims() (h, w, c int) {
	h, w, c = b.Shape[0], b.Shape[1], 1
	if len(b.Shape) == 3 {
		c = b.Shape[2]
	}
	return h, w, c
}

func (b Buffer) strides() []int {
	if b.Strides != nil {
		return b.Strides
	}
	_, w, c := b.dims()
	if len(b.Shape) == 2 {
		return []int{w, 1}
	}
	return []int{w * c, c, 1}
}

// Contiguous reports whether the buffer is laid out row-major with no gaps.
func (b Buffer) Contiguous() bool {
	if b.Strides == nil {
		return true
	}
	if len(b.Strides) != len(b.Shape) {
		return false
	}
	_, w, c := b.dims()
	if len(b.Shape) == 2 {
		return b.Strides[0] == w && b.Strides[1] == 1
	}
	return b.Strides[0] == w*c && b.Strides[1] == c && b.Strides[2] == 1
}

func shapeError(format string, args ...any) error {
	return apperrors.Newf(apperrors.CodeInvalidShape, format, args...)
}

func (b Buffer) validate() error {
	if rank := len(b.Shape); rank < 2 || rank > 3 {
		return shapeError("buffer rank must be 2 or 3, got %d", rank)
	}
	h, w, c := b.dims()
	if c != 1 && c != 3 && c != 4 {
		return shapeError("unsupported channel count %d", c)
	}
	if h <= 0 || w <= 0 {
		return shapeError("buffer dimensions must be positive, got %dx%d", w, h)
	}
	if w > math.MaxInt/h/c {
		return shapeError("buffer shape %dx%dx%d overflows", w, h, c)
	}
	st := b.strides()
	if len(st) != len(b.Shape) {
		return shapeError("got %d strides for rank %d", len(st), len(b.Shape))
	}
	for _, s := range st {
		if s < 0 {
			return shapeError("negative strides are not supported")
		}
	}
	if len(b.Data) == 0 {
		return shapeError("buffer holds no data for %dx%dx%d", w, h, c)
	}

	// Each term of the last element's offset is bounded by the data length
	// before it is summed, so the sum cannot overflow.
	n := []int{h, w, c}[:len(st)]
	limit := len(b.Data) - 1
	last := 0
	for i, s := range st {
		if s > 0 && n[i]-1 > limit/s {
			return shapeError("buffer holds %d bytes, dimension %d of size %d with stride %d does not fit", len(b.Data), i, n[i], s)
		}
		last += (n[i] - 1) * s
	}
	if last > limit {
		return shapeError("buffer holds %d bytes, layout needs %d", len(b.Data), last+1)
	}
	return nil
}

// ToImage copies b into a freshly owned, contiguous Image. The result never
// aliases b.Data, so the caller may reuse the buffer as soon as it returns.
func ToImage(b Buffer) (*Image, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	h, w, c := b.dims()
	out := New(w, h, c)

	if b.Contiguous() {
		copy(out.Pix, b.Data[:len(out.Pix)])
		return out, nil
	}

	// Strided source: gather element by element into the contiguous copy.
	st := b.strides()
	chStride := 0
	if len(st) == 3 {
		chStride = st[2]
	}
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := y*st[0] + x*st[1]
			for ch := 0; ch < c; ch++ {
				out.Pix[i] = b.Data[base+ch*chStride]
				i++
			}
		}
	}
	return out, nil
}

// FromImage converts a decoded image. Gray images stay single-channel,
// everything else becomes 3-channel BGR.
func FromImage(src image.Image) *Image {
	r := src.Bounds()
	if g, ok := src.(*image.Gray); ok {
		out := New(r.Dx(), r.Dy(), 1)
		for y := 0; y < out.Height; y++ {
			copy(out.Pix[y*out.Width:(y+1)*out.Width], g.Pix[g.PixOffset(r.Min.X, r.Min.Y+y):])
		}
		return out
	}

	out := New(r.Dx(), r.Dy(), 3)
	rgba, fast := src.(*image.RGBA)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			var c color.RGBA
			if fast {
				c = rgba.RGBAAt(r.Min.X+x, r.Min.Y+y)
			} else {
				c = color.RGBAModel.Convert(src.At(r.Min.X+x, r.Min.Y+y)).(color.RGBA)
			}
			i := out.Offset(x, y, 0)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = c.B, c.G, c.R
		}
	}
	return out
}
