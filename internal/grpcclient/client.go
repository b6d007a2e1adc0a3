package grpcclient

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/GriffinCanCode/matchcore/internal/resilience"
	"github.com/GriffinCanCode/matchcore/internal/trace"
)

// Client wraps the health client of one matchd connection
type Client struct {
	conn   *grpc.ClientConn
	Health healthpb.HealthClient
	retry  resilience.RetryConfig
}

// New creates a client for addr. The connection is established lazily on
// the first call.
func New(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		conn:   conn,
		Health: healthpb.NewHealthClient(conn),
		retry: resilience.RetryConfig{
			MaxRetries:   ProbeMaxRetries,
			BaseDelay:    ProbeBaseDelay,
			MaxDelay:     ProbeMaxDelay,
			JitterFactor: resilience.DefaultJitterFactor,
			IsRetryable:  resilience.IsTransient,
		},
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Check returns the serving status of service. The empty name asks about the
// daemon as a whole. Unavailable servers are retried with backoff.
func (c *Client) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	var resp *healthpb.HealthCheckResponse
	err := resilience.Retry(ctx, c.retry, func() error {
		cctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
		defer cancel()
		var err error
		resp, err = c.Health.Check(cctx, &healthpb.HealthCheckRequest{Service: service})
		return err
	})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Serving reports whether the daemon answers SERVING.
func (c *Client) Serving(ctx context.Context) (bool, error) {
	st, err := c.Check(ctx, "")
	if err != nil {
		return false, err
	}
	return st == healthpb.HealthCheckResponse_SERVING, nil
}
