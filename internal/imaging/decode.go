package imaging

import (
	"bytes"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	"image/png"
	"io"
	"os"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder

	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
)

// Decode reads any registered image format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.CodeDecodeFailed, "decode image")
	}
	return img, format, nil
}

// DecodeBytes decodes data straight into an engine Image.
func DecodeBytes(data []byte) (*Image, error) {
	img, _, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// DecodeFile opens and decodes path.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeNotFound, "open %s", path)
	}
	defer f.Close()
	img, _, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// EncodePNG renders m losslessly.
func EncodePNG(m *Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.ToRGBA()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Scale resizes img by factor with Lanczos resampling. A factor of 1 (or
// anything non-positive) returns img unchanged.
func Scale(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor == 1 {
		return img
	}
	b := img.Bounds()
	w := uint(float64(b.Dx())*factor + 0.5)
	h := uint(float64(b.Dy())*factor + 0.5)
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return resize.Resize(w, h, img, resize.Lanczos3)
}
