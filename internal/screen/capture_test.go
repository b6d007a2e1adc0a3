package screen

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
)

// pngBackend writes a fixed image, or fails with err.
type pngBackend struct {
	img *image.RGBA
	err error
}

func (b pngBackend) grab(_ context.Context, path string) error {
	if b.err != nil {
		return b.err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, b.img)
}

func TestFileCapturerDecodes(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	src.Set(1, 1, color.RGBA{R: 255, A: 255})

	c, err := newFileCapturer(pngBackend{img: src})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	img, err := c.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("bounds = %v", img.Bounds())
	}
	if r, _, _, _ := img.At(1, 1).RGBA(); r>>8 != 255 {
		t.Errorf("pixel red = %d, want 255", r>>8)
	}

	entries, _ := os.ReadDir(c.tempDir)
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned between captures: %d entries", len(entries))
	}
}

func TestFileCapturerErrors(t *testing.T) {
	c, err := newFileCapturer(pngBackend{err: errors.New("display unavailable")})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.Capture(context.Background()); !apperrors.IsCode(err, apperrors.CodeCaptureFailed) {
		t.Errorf("error = %v, want CAPTURE_FAILED", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Capture(ctx); !apperrors.IsCode(err, apperrors.CodeCancelled) {
		t.Errorf("cancelled error = %v, want CANCELLED", err)
	}
}

func TestCloseRemovesTempDir(t *testing.T) {
	c, err := newFileCapturer(pngBackend{})
	if err != nil {
		t.Fatal(err)
	}
	dir := c.tempDir
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("temp directory should be removed after Close")
	}
}

func TestToolBackendMissingTools(t *testing.T) {
	b := toolBackend{tools: []tool{{"matchcore-no-such-tool", func(p string) []string { return nil }}}}
	err := b.grab(context.Background(), "/tmp/x.png")
	if err == nil {
		t.Fatal("expected error for missing tool")
	}
}

// Integration test: needs a real display and screenshot tool.
func TestCaptureIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	c, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	img, err := c.Capture(context.Background())
	if err != nil {
		t.Skipf("no screenshot available here: %v", err)
	}
	if img.Bounds().Empty() {
		t.Error("captured frame is empty")
	}
}
