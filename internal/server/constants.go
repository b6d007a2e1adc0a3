// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Request body cap; frames arrive base64-encoded.
	MaxRequestBytes = 32 << 20

	// Global IP-based rate limiting (prevents multi-connection bypass attacks)
	IPRateLimitWindow          = time.Second      // Sliding window duration
	IPRateLimitCleanupInterval = 5 * time.Minute  // How often to purge stale IP entries
	IPRateLimitEntryTTL        = 10 * time.Minute // TTL for inactive IP entries

	// Default and maximum look-back for /api/history (seconds)
	DefaultHistorySeconds = 60
	MaxHistorySeconds     = 3600

	// Upper bound on /api/benchmark iterations
	MaxBenchmarkIterations = 10000

	// WebSocket write timeout per event
	WSWriteTimeout = 5 * time.Second
)
