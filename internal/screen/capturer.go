// Package screen grabs full-screen frames through the platform's screenshot
// tool. Frames are written as PNG so colors survive for the health mask.
package screen

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

// Capturer produces one frame per call.
type Capturer interface {
	Capture(ctx context.Context) (image.Image, error)
	Close() error
}

// backend writes a PNG screenshot to path.
type backend interface {
	grab(ctx context.Context, path string) error
}

// fileCapturer runs a backend into a private temp dir and decodes the result.
type fileCapturer struct {
	backend backend
	tempDir string
	mu      sync.Mutex
}

func newFileCapturer(b backend) (*fileCapturer, error) {
	dir, err := os.MkdirTemp("", "matchcore-screen-*")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "create capture dir")
	}
	return &fileCapturer{backend: b, tempDir: dir}, nil
}

func (c *fileCapturer) Capture(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.tempDir, "frame.png")
	if err := c.backend.grab(ctx, path); err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.CodeCancelled, "capture cancelled")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "grab screen")
	}
	defer os.Remove(path)

	img, err := imaging.DecodeFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "read screenshot")
	}
	return img, nil
}

// Close removes the temp dir.
func (c *fileCapturer) Close() error {
	return os.RemoveAll(c.tempDir)
}
