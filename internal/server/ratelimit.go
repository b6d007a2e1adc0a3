package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
)

// rateLimiter tracks request timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// allow checks if a request is allowed and records the timestamp if so.
func (r *rateLimiter) allow(now time.Time, limit int) bool {
	cutoff := now.Add(-IPRateLimitWindow)
	r.lastSeen = now

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= limit {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// ipLimiter applies one sliding window per client IP, shared by HTTP and
// WebSocket traffic so extra connections do not buy extra budget.
type ipLimiter struct {
	mu          sync.Mutex
	limit       int
	clients     map[string]*rateLimiter
	lastCleanup time.Time
	now         func() time.Time
}

func newIPLimiter(limit int) *ipLimiter {
	return &ipLimiter{limit: limit, clients: make(map[string]*rateLimiter), now: time.Now}
}

func (l *ipLimiter) allow(ip string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) > IPRateLimitCleanupInterval {
		l.cleanup(now)
	}

	rl, ok := l.clients[ip]
	if !ok {
		rl = &rateLimiter{}
		l.clients[ip] = rl
	}
	return rl.allow(now, l.limit)
}

// cleanup drops clients idle for longer than IPRateLimitEntryTTL.
func (l *ipLimiter) cleanup(now time.Time) {
	for ip, rl := range l.clients {
		if now.Sub(rl.lastSeen) > IPRateLimitEntryTTL {
			delete(l.clients, ip)
		}
	}
	l.lastCleanup = now
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			writeError(w, r, apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded").
				WithMetadata("retry_after", IPRateLimitWindow.String()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
