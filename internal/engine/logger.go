package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Logger is the engine's logging sink. Tasks log concurrently, so
// implementations must serialize writes.
type Logger interface {
	Log(level slog.Level, msg string, args ...any)
}

type slogLogger struct {
	mu  sync.Mutex
	log *slog.Logger
}

// NewSlogLogger adapts l, holding a mutex around each write.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{log: l.With("component", "engine")}
}

func (s *slogLogger) Log(level slog.Level, msg string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Log(context.Background(), level, msg, args...)
}

type nopLogger struct{}

func (nopLogger) Log(slog.Level, string, ...any) {}
