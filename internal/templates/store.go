// Package templates loads named template images from disk and caches them.
package templates

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
)

// Extensions probed, in order, for a name given without one.
var Extensions = []string{".png", ".bmp", ".webp", ".tiff", ".tif", ".jpg", ".jpeg"}

// Store is a cache of decoded templates. Loads are lazy; each name is read
// from disk at most once unless Reload is called.
type Store struct {
	dir   string
	scale float64

	mu    sync.RWMutex
	cache map[string]*imaging.Image
}

// NewStore reads templates from dir, resized by scale (1 keeps the file's size).
func NewStore(dir string, scale float64) *Store {
	return &Store{dir: dir, scale: scale, cache: make(map[string]*imaging.Image)}
}

// Get returns the named template, loading it on first use.
func (s *Store) Get(name string) (*imaging.Image, error) {
	s.mu.RLock()
	img, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := s.load(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = img
	return img, nil
}

// Put registers an in-memory template under name, replacing any cached one.
func (s *Store) Put(name string, img *imaging.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[name] = img
}

// Reload drops every cached template.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*imaging.Image)
}

// Names lists the cached templates.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.cache))
	for n := range s.cache {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Preload loads every name, returning all failures joined.
func (s *Store) Preload(names ...string) error {
	var errs []error
	for _, n := range names {
		if _, err := s.Get(n); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("templates loaded", "dir", s.dir, "count", len(names), "scale", s.scale)
	return nil
}

func (s *Store) load(name string) (*imaging.Image, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	src, err := imaging.DecodeFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeTemplateLoadFailed, "load template %q", name).
			WithMetadata("path", path)
	}
	img := imaging.FromImage(imaging.Scale(src, s.scale))
	slog.Debug("template loaded", "name", name, "path", path, "width", img.Width, "height", img.Height)
	return img, nil
}

func (s *Store) resolve(name string) (string, error) {
	if filepath.Ext(name) != "" {
		return filepath.Join(s.dir, name), nil
	}
	for _, ext := range Extensions {
		p := filepath.Join(s.dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.Wrapf(err, apperrors.CodeTemplateLoadFailed, "stat %s", p)
		}
	}
	return "", apperrors.Newf(apperrors.CodeTemplateLoadFailed, "template %q not found in %s", name, s.dir).
		WithMetadata("name", name)
}
