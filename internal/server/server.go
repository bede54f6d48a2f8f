// Package server exposes the intake pipeline over HTTP.
//
// The API surface is small: POST /v1/intake accepts a multipart recording
// and returns the transcription and generated answer as JSON. The usual
// operational endpoints (/healthz, /readyz, /metrics) ride alongside.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexivoice/lexivoice/internal/health"
	"github.com/lexivoice/lexivoice/internal/intake"
	"github.com/lexivoice/lexivoice/internal/observe"
	"github.com/lexivoice/lexivoice/internal/router"
)

// defaultMaxUploadBytes caps uploaded recordings at 25 MiB.
const defaultMaxUploadBytes = 25 << 20

// IntakeService is the pipeline behind POST /v1/intake. *intake.Service
// satisfies it.
type IntakeService interface {
	ProcessAudio(ctx context.Context, audio []byte, language string, ic intake.Context) (*intake.Result, error)
}

var _ IntakeService = (*intake.Service)(nil)

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes overrides the upload size cap.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithMetrics overrides the metrics sink used by the HTTP middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server routes HTTP requests to the intake pipeline.
type Server struct {
	svc       IntakeService
	health    *health.Handler
	metrics   *observe.Metrics
	maxUpload int64
}

// New builds a Server. svc and h are required.
func New(svc IntakeService, h *health.Handler, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, errors.New("server: intake service must not be nil")
	}
	if h == nil {
		return nil, errors.New("server: health handler must not be nil")
	}
	s := &Server{
		svc:       svc,
		health:    h,
		metrics:   observe.DefaultMetrics(),
		maxUpload: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the fully wired HTTP handler: routes plus the tracing and
// metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/intake", s.handleIntake)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

// handleIntake accepts a multipart form with an "audio" file part and
// optional "language", "case_type", and "jurisdiction" fields.
func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	file, _, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("recording exceeds the %d byte limit", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, `multipart field "audio" is required`)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("recording exceeds the %d byte limit", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "could not read the audio part")
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "audio part is empty")
		return
	}

	result, err := s.svc.ProcessAudio(r.Context(), audio, r.FormValue("language"), intake.Context{
		CaseType:     r.FormValue("case_type"),
		Jurisdiction: r.FormValue("jurisdiction"),
	})
	if err != nil {
		// Full diagnostics stay in the logs; callers get a generic
		// message regardless of which stage failed.
		observe.Logger(r.Context()).ErrorContext(r.Context(), "intake request failed",
			"error", err,
			"language", r.FormValue("language"),
			"case_type", r.FormValue("case_type"),
			"jurisdiction", r.FormValue("jurisdiction"),
			slog.Int("audio_bytes", len(audio)),
		)
		if errors.Is(err, router.ErrTranscriptionFailed) {
			writeError(w, http.StatusBadGateway, "transcription is temporarily unavailable; please try again")
			return
		}
		writeError(w, http.StatusBadGateway, "the request could not be processed; please try again")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
