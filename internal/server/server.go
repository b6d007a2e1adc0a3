// Package server provides HTTP and WebSocket handlers
package server

import (
	"encoding/json"
	"image"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/GriffinCanCode/matchcore/internal/config"
	"github.com/GriffinCanCode/matchcore/internal/engine"
	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
	"github.com/GriffinCanCode/matchcore/internal/monitor"
	"github.com/GriffinCanCode/matchcore/internal/monitor/history"
	"github.com/GriffinCanCode/matchcore/internal/templates"
	"github.com/GriffinCanCode/matchcore/internal/trace"
)

// Monitor is the part of the host loop the server exposes.
type Monitor interface {
	Status() monitor.Status
	History(d time.Duration) []history.Sample
	SetAlerts(enabled bool)
	SetPaused(paused bool)
	Subscribe() (<-chan monitor.Event, func())
	LatestFrame() image.Image
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	cfg     *config.Config
	eng     *engine.Engine
	store   *templates.Store
	mon     Monitor // nil when the monitor is disabled
	limiter *ipLimiter

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New creates a new server. mon may be nil.
func New(cfg *config.Config, eng *engine.Engine, store *templates.Store, mon Monitor) *Server {
	return &Server{
		cfg:     cfg,
		eng:     eng,
		store:   store,
		mon:     mon,
		limiter: newIPLimiter(cfg.RateLimit),
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Engine API
	mux.HandleFunc("POST /api/match", s.handleMatch)
	mux.HandleFunc("POST /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/batch", s.handleBatch)
	mux.HandleFunc("POST /api/benchmark", s.handleBenchmark)
	mux.HandleFunc("GET /api/templates", s.handleTemplates)

	// Monitor API
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("POST /api/alerts/enable", s.handleAlerts(true))
	mux.HandleFunc("POST /api/alerts/disable", s.handleAlerts(false))
	mux.HandleFunc("POST /api/monitor/pause", s.handlePause(true))
	mux.HandleFunc("POST /api/monitor/resume", s.handlePause(false))

	// Apply middleware: trace -> CORS -> rate limit
	return trace.Middleware(s.corsMiddleware(s.rateLimit(mux)))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.allowedOrigin(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allowedOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" if it is not allowed.
func (s *Server) allowedOrigin(origin string) string {
	if slices.Contains(s.cfg.CORSOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(s.cfg.CORSOrigins, origin) {
		return origin
	}
	return ""
}

// originPatterns converts CORS origins to websocket host patterns.
func (s *Server) originPatterns() []string {
	out := make([]string, 0, len(s.cfg.CORSOrigins))
	for _, o := range s.cfg.CORSOrigins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		out = append(out, o)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error": <google.rpc.ErrorInfo>} with the
// status its code maps to.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := apperrors.As(err)
	if !ok {
		ae = apperrors.Wrap(err, apperrors.CodeInternal, "internal error")
	}
	status := ae.HTTPStatus()

	log := trace.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	info, merr := protojson.Marshal(ae.ToProto())
	if merr != nil {
		slog.Error("encode error detail", "error", merr)
		info = []byte("{}")
	}
	writeJSON(w, status, map[string]json.RawMessage{"error": info})
}

func (s *Server) requireMonitor(w http.ResponseWriter, r *http.Request) bool {
	if s.mon == nil {
		writeError(w, r, apperrors.New(apperrors.CodeUnavailable, "monitor disabled"))
		return false
	}
	return true
}
