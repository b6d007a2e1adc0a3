package templates

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		img.Set(i%w, i/w, color.RGBA{R: 220, G: 20, B: 60, A: 255})
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestGetProbesExtensionsAndCaches(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "health_bar.png"), 12, 4)
	s := NewStore(dir, 1)

	img, err := s.Get("health_bar")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if img.Width != 12 || img.Height != 4 || img.Channels != 3 {
		t.Errorf("template = %dx%dx%d", img.Width, img.Height, img.Channels)
	}
	if b, g, r := img.At(0, 0, 0), img.At(0, 0, 1), img.At(0, 0, 2); b != 60 || g != 20 || r != 220 {
		t.Errorf("pixel BGR = %d,%d,%d", b, g, r)
	}

	if err := os.Remove(filepath.Join(dir, "health_bar.png")); err != nil {
		t.Fatal(err)
	}
	again, err := s.Get("health_bar")
	if err != nil || again != img {
		t.Errorf("second Get should hit the cache: %v", err)
	}

	s.Reload()
	if _, err := s.Get("health_bar"); !apperrors.IsCode(err, apperrors.CodeTemplateLoadFailed) {
		t.Errorf("after Reload error = %v, want TEMPLATE_LOAD_FAILED", err)
	}
}

func TestGetScales(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "respawn_button.png"), 20, 10)

	img, err := NewStore(dir, 0.5).Get("respawn_button.png")
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 10 || img.Height != 5 {
		t.Errorf("scaled = %dx%d, want 10x5", img.Width, img.Height)
	}
}

func TestPutAndNames(t *testing.T) {
	s := NewStore(t.TempDir(), 1)
	s.Put("b", imaging.New(2, 2, 3))
	s.Put("a", imaging.New(1, 1, 3))

	names := s.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v", names)
	}
}

func TestPreloadJoinsFailures(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "ok.png"), 2, 2)
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := NewStore(dir, 1).Preload("ok", "broken", "missing")
	if err == nil {
		t.Fatal("Preload() should fail")
	}
	if !apperrors.IsCode(err, apperrors.CodeTemplateLoadFailed) {
		t.Errorf("error = %v, want TEMPLATE_LOAD_FAILED", err)
	}
}
