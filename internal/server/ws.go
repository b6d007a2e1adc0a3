package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/matchcore/internal/monitor"
	"github.com/GriffinCanCode/matchcore/internal/trace"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

// ControlMessage toggles monitor state from a client.
type ControlMessage struct {
	Type    string `json:"type"` // "alerts" or "pause"
	Enabled bool   `json:"enabled"`
}

type StatusMessage struct {
	Type   string         `json:"type"`
	Status monitor.Status `json:"status"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handleWebSocket streams monitor events to the client and accepts control
// messages from it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.requireMonitor(w, r) {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	events, unsubscribe := s.mon.Subscribe()
	defer unsubscribe()
	go s.streamEvents(ctx, cancel, conn, events)

	ip := clientIP(r)
	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !s.limiter.allow(ip) {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = s.write(ctx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var ctl ControlMessage
		if err := json.Unmarshal(msg, &ctl); err != nil {
			_ = s.write(ctx, conn, ErrorMessage{Type: "error", Message: "invalid message"})
			continue
		}

		switch ctl.Type {
		case "alerts":
			s.mon.SetAlerts(ctl.Enabled)
		case "pause":
			s.mon.SetPaused(ctl.Enabled)
		case "status":
		default:
			_ = s.write(ctx, conn, ErrorMessage{Type: "error", Message: "unknown message type " + ctl.Type})
			continue
		}
		_ = s.write(ctx, conn, StatusMessage{Type: "status", Status: s.mon.Status()})
	}
}

// streamEvents forwards monitor events until ctx ends or a write fails.
func (s *Server) streamEvents(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, events <-chan monitor.Event) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := s.write(ctx, conn, ev); err != nil {
				trace.Logger(ctx).Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, WSWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

// Connections returns the number of open WebSocket clients.
func (s *Server) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
