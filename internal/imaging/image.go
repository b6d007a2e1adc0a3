// Package imaging holds the engine's owned pixel representation and the
// adapters that build it from externally owned buffers and decoded images.
package imaging

import (
	"image"
)

// Image is an owned, contiguous 8-bit pixel grid in BGR/BGRA (or gray) order.
// It must not be mutated once built; tasks share frames read-only.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// New allocates a zeroed image.
func New(width, height, channels int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Empty reports whether the image has zero area.
func (m *Image) Empty() bool {
	return m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Pix) == 0
}

// Stride is the byte length of one row.
func (m *Image) Stride() int { return m.Width * m.Channels }

// Bounds returns the image rectangle anchored at the origin.
func (m *Image) Bounds() image.Rectangle {
	if m == nil {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, m.Width, m.Height)
}

// Offset returns the index of channel c of pixel (x, y) in Pix.
func (m *Image) Offset(x, y, c int) int {
	return y*m.Stride() + x*m.Channels + c
}

// At returns channel c of pixel (x, y).
func (m *Image) At(x, y, c int) byte { return m.Pix[m.Offset(x, y, c)] }

// Set writes channel c of pixel (x, y). Only valid while building an image.
func (m *Image) Set(x, y, c int, v byte) { m.Pix[m.Offset(x, y, c)] = v }

// Region copies r, clamped to the image bounds. The result may have zero area.
func (m *Image) Region(r image.Rectangle) *Image {
	r = r.Intersect(m.Bounds())
	out := New(r.Dx(), r.Dy(), m.Channels)
	if out.Empty() {
		return out
	}
	rowBytes := out.Stride()
	for y := 0; y < out.Height; y++ {
		src := m.Offset(r.Min.X, r.Min.Y+y, 0)
		copy(out.Pix[y*rowBytes:(y+1)*rowBytes], m.Pix[src:src+rowBytes])
	}
	return out
}

// Paste copies src into m with its top-left corner at p, clipping at the edges.
// Channel counts must match.
func (m *Image) Paste(src *Image, p image.Point) {
	dst := image.Rectangle{Min: p, Max: p.Add(image.Pt(src.Width, src.Height))}.Intersect(m.Bounds())
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		for x := dst.Min.X; x < dst.Max.X; x++ {
			for c := 0; c < m.Channels; c++ {
				m.Set(x, y, c, src.At(x-p.X, y-p.Y, c))
			}
		}
	}
}

// AsBuffer exposes the image as a contiguous host buffer. The buffer aliases
// Pix; ToImage copies it again.
func (m *Image) AsBuffer() Buffer {
	if m.Channels == 1 {
		return Buffer{Data: m.Pix, Shape: []int{m.Height, m.Width}}
	}
	return Buffer{Data: m.Pix, Shape: []int{m.Height, m.Width, m.Channels}}
}

// ToRGBA renders the image for encoders and perceptual hashing.
func (m *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := out.PixOffset(x, y)
			switch m.Channels {
			case 1:
				g := m.At(x, y, 0)
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = g, g, g
				out.Pix[i+3] = 0xff
			default:
				out.Pix[i] = m.At(x, y, 2)
				out.Pix[i+1] = m.At(x, y, 1)
				out.Pix[i+2] = m.At(x, y, 0)
				out.Pix[i+3] = 0xff
				if m.Channels == 4 {
					out.Pix[i+3] = m.At(x, y, 3)
				}
			}
		}
	}
	return out
}
