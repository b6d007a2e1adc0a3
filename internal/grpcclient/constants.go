// Package grpcclient probes a running matchd over its gRPC health service.
package grpcclient

import "time"

// Client configuration defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// Health check configuration
	HealthCheckTimeout = 2 * time.Second
	ProbeMaxRetries    = 2
	ProbeBaseDelay     = 200 * time.Millisecond
	ProbeMaxDelay      = time.Second
)
