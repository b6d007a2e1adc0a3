package grpcclient

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/GriffinCanCode/matchcore/internal/trace"
)

// startServer runs hs behind an in-memory listener and returns a client for it.
func startServer(t *testing.T, hs healthpb.HealthServer, opts ...grpc.ServerOption) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := New("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.retry.BaseDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestServing(t *testing.T) {
	hs := health.NewServer()
	c := startServer(t, hs)

	ok, err := c.Serving(context.Background())
	if err != nil || !ok {
		t.Fatalf("Serving() = %v, %v, want true", ok, err)
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	ok, err = c.Serving(context.Background())
	if err != nil || ok {
		t.Errorf("Serving() after NOT_SERVING = %v, %v, want false", ok, err)
	}
}

func TestCheckUnknownService(t *testing.T) {
	c := startServer(t, health.NewServer())

	st, err := c.Check(context.Background(), "capture")
	if status.Code(err) != codes.NotFound {
		t.Errorf("Check() error = %v, want NotFound", err)
	}
	if st != healthpb.HealthCheckResponse_UNKNOWN {
		t.Errorf("status = %v, want UNKNOWN", st)
	}
}

type flakyHealth struct {
	healthpb.UnimplementedHealthServer
	failures int32
	calls    atomic.Int32
}

func (f *flakyHealth) Check(context.Context, *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, status.Error(codes.Unavailable, "warming up")
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func TestCheckRetriesUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		failures int32
		wantOK   bool
		calls    int32
	}{
		{"recovers", ProbeMaxRetries, true, ProbeMaxRetries + 1},
		{"exhausts", ProbeMaxRetries + 1, false, ProbeMaxRetries + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fh := &flakyHealth{failures: tt.failures}
			c := startServer(t, fh)

			ok, err := c.Serving(context.Background())
			if ok != tt.wantOK {
				t.Errorf("Serving() = %v, %v, want %v", ok, err, tt.wantOK)
			}
			if !tt.wantOK && status.Code(err) != codes.Unavailable {
				t.Errorf("error = %v, want Unavailable", err)
			}
			if n := fh.calls.Load(); n != tt.calls {
				t.Errorf("calls = %d, want %d", n, tt.calls)
			}
		})
	}
}

func TestCheckPropagatesTrace(t *testing.T) {
	var got atomic.Value
	got.Store("")
	intercept := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(trace.TraceIDKey); len(v) > 0 {
				got.Store(v[0])
			}
		}
		return handler(ctx, req)
	}
	c := startServer(t, health.NewServer(), grpc.UnaryInterceptor(intercept))

	tc := trace.New()
	if _, err := c.Check(trace.WithContext(context.Background(), tc), ""); err != nil {
		t.Fatal(err)
	}
	if v := got.Load().(string); v != tc.TraceID {
		t.Errorf("server saw trace %q, want %q", v, tc.TraceID)
	}
}
