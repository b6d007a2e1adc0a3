package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/GriffinCanCode/matchcore/internal/correlate"
	"github.com/GriffinCanCode/matchcore/internal/engine"
	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
	"github.com/GriffinCanCode/matchcore/internal/imaging"
	"github.com/GriffinCanCode/matchcore/internal/monitor"
	"github.com/GriffinCanCode/matchcore/internal/monitor/history"
	"github.com/GriffinCanCode/matchcore/internal/trace"
)

// ImageRef names an image: inline base64-encoded file data, or a template
// from the store. Data wins when both are set.
type ImageRef struct {
	Data     string `json:"data,omitempty"`
	Template string `json:"template,omitempty"`
}

// MatchRequest is the body of POST /api/match.
type MatchRequest struct {
	Frame      ImageRef   `json:"frame"`
	Templates  []ImageRef `json:"templates"`
	Thresholds []float64  `json:"thresholds"`
	Method     string     `json:"method,omitempty"`
}

// MatchResponse lists one result per template, in request order.
type MatchResponse struct {
	Results []engine.MatchResult `json:"results"`
}

// HealthRequest is the body of POST /api/health. Unset templates and
// threshold fall back to the configured ones.
type HealthRequest struct {
	Frame     ImageRef  `json:"frame"`
	Health    *ImageRef `json:"health,omitempty"`
	Empty     *ImageRef `json:"empty,omitempty"`
	Threshold *float64  `json:"threshold,omitempty"`
}

// BatchRequest is the body of POST /api/batch.
type BatchRequest struct {
	Frames    []ImageRef `json:"frames"`
	Health    *ImageRef  `json:"health,omitempty"`
	Respawn   *ImageRef  `json:"respawn,omitempty"`
	Threshold *float64   `json:"threshold,omitempty"`
}

// BatchResponse carries one entry per analyzed frame.
type BatchResponse struct {
	Entries []engine.BatchEntry `json:"entries"`
	Skipped []int               `json:"skipped,omitempty"` // request indexes that could not be decoded
}

// BenchmarkRequest is the body of POST /api/benchmark.
type BenchmarkRequest struct {
	Frame      ImageRef  `json:"frame"`
	Template   *ImageRef `json:"template,omitempty"`
	Iterations int       `json:"iterations,omitempty"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Method      string          `json:"method"`
	MaxParallel int             `json:"max_parallel"`
	Templates   []string        `json:"templates"`
	Clients     int             `json:"clients"`
	Monitor     *monitor.Status `json:"monitor,omitempty"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Seconds int              `json:"seconds"`
	Samples []history.Sample `json:"samples"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid request body")
	}
	return nil
}

// resolve loads ref as an engine image.
func (s *Server) resolve(ref ImageRef, field string) (*imaging.Image, error) {
	var img *imaging.Image
	var err error
	switch {
	case ref.Data != "":
		var data []byte
		if data, err = base64.StdEncoding.DecodeString(ref.Data); err != nil {
			err = apperrors.Wrap(err, apperrors.CodeDecodeFailed, "invalid base64")
			break
		}
		img, err = imaging.DecodeBytes(data)
	case ref.Template != "":
		img, err = s.store.Get(ref.Template)
	default:
		err = apperrors.New(apperrors.CodeInvalidArgument, "image requires data or template")
	}
	if err != nil {
		if ae, ok := apperrors.As(err); ok {
			ae.WithMetadata("field", field)
		}
		return nil, err
	}
	return img, nil
}

// resolveOr resolves ref, or the named template when ref is nil.
func (s *Server) resolveOr(ref *ImageRef, name, field string) (*imaging.Image, error) {
	if ref == nil {
		ref = &ImageRef{Template: name}
	}
	return s.resolve(*ref, field)
}

func (s *Server) method(name string) (correlate.Method, error) {
	if name == "" {
		return s.cfg.Method()
	}
	m, err := correlate.ParseMethod(name)
	if err != nil {
		return m, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid method")
	}
	return m, nil
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	method, err := s.method(req.Method)
	if err != nil {
		writeError(w, r, err)
		return
	}

	frame, err := s.resolve(req.Frame, "frame")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tmpls := make([]imaging.Buffer, len(req.Templates))
	for i, ref := range req.Templates {
		img, err := s.resolve(ref, fmt.Sprintf("templates[%d]", i))
		if err != nil {
			writeError(w, r, err)
			return
		}
		tmpls[i] = img.AsBuffer()
	}

	results, err := s.eng.MatchTemplates(r.Context(), frame.AsBuffer(), tmpls, req.Thresholds, method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MatchResponse{Results: results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var req HealthRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	threshold := s.cfg.HealthThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	frame, err := s.resolve(req.Frame, "frame")
	if err != nil {
		writeError(w, r, err)
		return
	}
	bar, err := s.resolveOr(req.Health, s.cfg.HealthTemplate, "health")
	if err != nil {
		writeError(w, r, err)
		return
	}
	empty, err := s.resolveOr(req.Empty, s.cfg.EmptyTemplate, "empty")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.eng.DetectHealth(r.Context(), frame.AsBuffer(), bar.AsBuffer(), empty.AsBuffer(), threshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	threshold := s.cfg.HealthThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	bar, err := s.resolveOr(req.Health, s.cfg.HealthTemplate, "health")
	if err != nil {
		writeError(w, r, err)
		return
	}
	respawn, err := s.resolveOr(req.Respawn, s.cfg.RespawnTemplate, "respawn")
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Undecodable frames are dropped like malformed buffers in BatchProcess.
	var skipped []int
	frames := make([]imaging.Buffer, 0, len(req.Frames))
	for i, ref := range req.Frames {
		img, err := s.resolve(ref, fmt.Sprintf("frames[%d]", i))
		if err != nil {
			trace.Logger(r.Context()).Warn("skipping undecodable frame", "index", i, "error", err)
			skipped = append(skipped, i)
			continue
		}
		frames = append(frames, img.AsBuffer())
	}

	entries, err := s.eng.BatchProcess(r.Context(), frames, bar.AsBuffer(), respawn.AsBuffer(), threshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Entries: entries, Skipped: skipped})
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	var req BenchmarkRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	iterations := req.Iterations
	if iterations == 0 {
		iterations = s.cfg.BenchmarkIterations
	}
	if iterations > MaxBenchmarkIterations {
		writeError(w, r, apperrors.Newf(apperrors.CodeInvalidArgument,
			"iterations %d exceeds %d", iterations, MaxBenchmarkIterations))
		return
	}

	frame, err := s.resolve(req.Frame, "frame")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tmpl, err := s.resolveOr(req.Template, s.cfg.HealthTemplate, "template")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.eng.Benchmark(r.Context(), frame.AsBuffer(), tmpl.AsBuffer(), iterations)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"templates": s.store.Names()})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Method:      s.cfg.MatchMethod,
		MaxParallel: s.cfg.MaxParallel,
		Templates:   s.store.Names(),
		Clients:     s.Connections(),
	}
	if s.mon != nil {
		st := s.mon.Status()
		resp.Monitor = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireMonitor(w, r) {
		return
	}
	seconds := DefaultHistorySeconds
	if v := r.URL.Query().Get("seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > MaxHistorySeconds {
			writeError(w, r, apperrors.Newf(apperrors.CodeInvalidArgument,
				"seconds must be in 1..%d", MaxHistorySeconds).WithMetadata("seconds", v))
			return
		}
		seconds = n
	}
	samples := s.mon.History(time.Duration(seconds) * time.Second)
	if samples == nil {
		samples = []history.Sample{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Seconds: seconds, Samples: samples})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if !s.requireMonitor(w, r) {
		return
	}
	img := s.mon.LatestFrame()
	if img == nil {
		writeError(w, r, apperrors.New(apperrors.CodeNotFound, "no frame captured yet"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		trace.Logger(r.Context()).Warn("frame encode failed", "error", err)
	}
}

func (s *Server) handleAlerts(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMonitor(w, r) {
			return
		}
		s.mon.SetAlerts(enabled)
		writeJSON(w, http.StatusOK, map[string]bool{"alerts_enabled": enabled})
	}
}

func (s *Server) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireMonitor(w, r) {
			return
		}
		s.mon.SetPaused(paused)
		writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
	}
}
