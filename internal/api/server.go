// Package api exposes the HTTP interface for the validation service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedlint/feedlint/internal/config"
	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/metrics"
	"github.com/feedlint/feedlint/internal/validator"
)

// Server wires HTTP handlers to the validator.
type Server struct {
	router chi.Router
	v      *validator.Validator
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(v *validator.Validator, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		v:      v,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/validate", s.validateURL)
		r.Post("/validate/body", s.validateBody)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type validateRequest struct {
	URL                 string `json:"url"`
	FirstOccurrenceOnly *bool  `json:"first_occurrence_only"`
	GroupEvents         bool   `json:"group_events"`
	WantRawData         bool   `json:"want_raw_data"`
	BaseURI             string `json:"base_uri"`
}

type validateResponse struct {
	RunID    string      `json:"run_id"`
	FeedType string      `json:"feed_type"`
	Events   []eventJSON `json:"events"`
	RawData  string      `json:"raw_data,omitempty"`
}

type eventJSON struct {
	Kind        string            `json:"kind"`
	Severity    string            `json:"severity"`
	Line        int               `json:"line,omitempty"`
	Column      int               `json:"column,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Occurrences int               `json:"occurrences,omitempty"`
}

func (s *Server) validateURL(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}

	res, err := s.v.ValidateURL(r.Context(), req.URL, s.toOptions(req))
	s.writeRun(w, res, err)
}

// validateBody validates the raw request body. The request Content-Type
// plays the role the upstream server's Content-Type would on a fetch.
func (s *Server) validateBody(w http.ResponseWriter, r *http.Request) {
	opts := validator.Options{
		FirstOccurrenceOnly: queryBool(r, "first_occurrence_only", true),
		GroupEvents:         queryBool(r, "group_events", false),
		WantRawData:         queryBool(r, "want_raw_data", false),
		BaseURI:             r.URL.Query().Get("base_uri"),
	}

	res, err := s.v.ValidateStream(r.Context(), r.Body, r.Header.Get("Content-Type"), opts)
	s.writeRun(w, res, err)
}

func (s *Server) writeRun(w http.ResponseWriter, res validator.Result, err error) {
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, validator.ErrInputTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		// Terminal runs still carry their diagnostics.
		writeJSON(w, status, toResponse(res))
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) toOptions(req validateRequest) validator.Options {
	firstOnly := true
	if req.FirstOccurrenceOnly != nil {
		firstOnly = *req.FirstOccurrenceOnly
	}
	return validator.Options{
		FirstOccurrenceOnly: firstOnly,
		GroupEvents:         req.GroupEvents,
		WantRawData:         req.WantRawData,
		BaseURI:             req.BaseURI,
	}
}

func toResponse(res validator.Result) validateResponse {
	out := validateResponse{
		RunID:    res.RunID,
		FeedType: res.FeedType.String(),
		Events:   make([]eventJSON, 0, len(res.Events)),
		RawData:  res.RawData,
	}
	for _, ev := range res.Events {
		out.Events = append(out.Events, toEventJSON(ev))
	}
	return out
}

func toEventJSON(ev diag.Event) eventJSON {
	ej := eventJSON{
		Kind:     string(ev.Kind),
		Severity: string(ev.Severity),
	}
	if ev.Pos != nil {
		ej.Line = ev.Pos.Line
		ej.Column = ev.Pos.Column
	}
	if ev.Occurrences > 1 {
		ej.Occurrences = ev.Occurrences
	}
	if len(ev.Params) > 0 {
		ej.Params = make(map[string]string, len(ev.Params))
		for _, p := range ev.Params {
			ej.Params[p.Key] = p.Value
		}
	}
	return ej
}

func queryBool(r *http.Request, name string, def bool) bool {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return def
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
