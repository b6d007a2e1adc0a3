package trace

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestNewContext(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(tc.TraceID))
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(tc.SpanID))
	}
	if tc.ParentSpanID != "" {
		t.Error("new context should not have parent span ID")
	}
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New().TraceID
		if seen[id] {
			t.Fatal("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}
	if root := NewChild(Context{}); root.TraceID == "" || root.ParentSpanID != "" {
		t.Errorf("child of zero context = %+v, want fresh root", root)
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if len(tc.TraceID) != 32 {
		t.Fatal("should create trace ID")
	}
	if _, again := EnsureContext(ctx); again.TraceID != tc.TraceID {
		t.Error("should return existing trace")
	}
}

func TestSpan(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "detect_health")
	_, child := StartSpan(ctx, "dispatch")

	if child.Ctx.TraceID != parent.Ctx.TraceID || child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Errorf("child %+v not nested under %+v", child.Ctx, parent.Ctx)
	}
	if parent.Duration() != 0 {
		t.Error("unfinished span should report zero duration")
	}

	child.SetAttr("tasks", 2)
	if d := child.End(); d < 0 {
		t.Errorf("End() = %v", d)
	}
	first := child.EndTime
	child.End()
	if child.EndTime != first {
		t.Error("End should be idempotent")
	}

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("done", "span", child)
	if out := buf.String(); !strings.Contains(out, "span.name=dispatch") || !strings.Contains(out, "span.tasks=2") {
		t.Errorf("log output missing span attributes: %s", out)
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	tc := New()

	With(WithContext(context.Background(), tc), base).Info("tick")
	if !strings.Contains(buf.String(), "trace_id="+tc.TraceID) {
		t.Errorf("log missing trace id: %s", buf.String())
	}

	if With(context.Background(), base) != base {
		t.Error("untraced context should return base logger")
	}
}

func TestMiddleware(t *testing.T) {
	var got Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set(TraceIDKey, "abc123")
	req.Header.Set(SpanIDKey, "caller")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.TraceID != "abc123" || got.ParentSpanID != "caller" {
		t.Errorf("context = %+v, want trace abc123 parent caller", got)
	}
	if rec.Header().Get(TraceIDKey) != "abc123" || rec.Header().Get(SpanIDKey) != got.SpanID {
		t.Errorf("response headers = %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(got.TraceID) != 32 {
		t.Error("middleware should start a trace when none is sent")
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(TraceIDKey, "remote-trace", SpanIDKey, "remote-span"))

	var got Context
	_, err := UnaryServerInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req any) (any, error) {
			got, _ = FromContext(ctx)
			return nil, nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if got.TraceID != "remote-trace" || got.ParentSpanID != "remote-span" {
		t.Errorf("context = %+v", got)
	}
}

func TestUnaryClientInterceptor(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	var md metadata.MD
	err := UnaryClientInterceptor()(ctx, "/grpc.health.v1.Health/Check", nil, nil, nil,
		func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
			md, _ = metadata.FromOutgoingContext(ctx)
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if got := md.Get(TraceIDKey); len(got) != 1 || got[0] != tc.TraceID {
		t.Errorf("trace id = %v, want %q", got, tc.TraceID)
	}
	if got := md.Get(SpanIDKey); len(got) != 1 || got[0] != tc.SpanID {
		t.Errorf("span id = %v, want %q", got, tc.SpanID)
	}
}
