// Package trace carries W3C-style trace and span ids through requests,
// detection passes and log lines. It has no exporter; ids only end up in logs
// and response headers.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"
)

// Header and metadata keys used for propagation.
const (
	TraceIDKey      = "x-trace-id"
	SpanIDKey       = "x-span-id"
	ParentSpanIDKey = "x-parent-span-id"
)

type ctxKey struct{}

// Context holds trace identifiers for a single span.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New creates a root context with fresh ids.
func New() Context {
	return Context{TraceID: newID(16), SpanID: newID(8)}
}

// NewChild creates a span under parent. A zero parent starts a new trace.
func NewChild(parent Context) Context {
	if parent.TraceID == "" {
		return New()
	}
	return Context{TraceID: parent.TraceID, SpanID: newID(8), ParentSpanID: parent.SpanID}
}

// continueFrom builds the local span for a remote caller's ids.
func continueFrom(traceID, callerSpan string) Context {
	if traceID == "" {
		return New()
	}
	return Context{TraceID: traceID, SpanID: newID(8), ParentSpanID: callerSpan}
}

// FromContext extracts the trace context.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// WithContext stores tc in ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// EnsureContext returns the existing trace context or starts a new one.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}

func newID(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Args returns the ids as slog key/value pairs.
func (c Context) Args() []any {
	args := []any{"trace_id", c.TraceID, "span_id", c.SpanID}
	if c.ParentSpanID != "" {
		args = append(args, "parent_span_id", c.ParentSpanID)
	}
	return args
}

// Span is a timed operation, typically one engine entry point or one
// monitor tick.
type Span struct {
	Name      string
	Ctx       Context
	StartTime time.Time
	EndTime   time.Time
	attrs     []slog.Attr
}

// StartSpan begins a child span of whatever trace ctx carries.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent, _ := FromContext(ctx)
	s := &Span{Name: name, Ctx: NewChild(parent), StartTime: time.Now()}
	return WithContext(ctx, s.Ctx), s
}

// SetAttr records an attribute reported with the span.
func (s *Span) SetAttr(key string, val any) {
	s.attrs = append(s.attrs, slog.Any(key, val))
}

// End marks the span complete and returns its duration.
func (s *Span) End() time.Duration {
	if s.EndTime.IsZero() {
		s.EndTime = time.Now()
	}
	return s.Duration()
}

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("name", s.Name),
		slog.String("trace_id", s.Ctx.TraceID),
		slog.String("span_id", s.Ctx.SpanID),
		slog.Duration("duration", s.Duration()),
	}
	if s.Ctx.ParentSpanID != "" {
		attrs = append(attrs, slog.String("parent_span_id", s.Ctx.ParentSpanID))
	}
	return slog.GroupValue(append(attrs, s.attrs...)...)
}

// Logger returns slog.Default tagged with the trace ids in ctx.
func Logger(ctx context.Context) *slog.Logger {
	return With(ctx, slog.Default())
}

// With tags base with the trace ids in ctx, if any.
func With(ctx context.Context, base *slog.Logger) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return base
	}
	return base.With(tc.Args()...)
}
