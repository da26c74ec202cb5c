// Package api serves the appraisal pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/raine/resale-appraiser/internal/analysis"
	"github.com/raine/resale-appraiser/internal/common"
	"github.com/raine/resale-appraiser/internal/market"
	"github.com/raine/resale-appraiser/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	// MaxUploadBytes bounds the multipart body of an analyze request.
	MaxUploadBytes = 32 << 20
	// MaxImages bounds the number of files per analyze request.
	MaxImages = 20
)

// Server wires HTTP routes for the appraisal API.
type Server struct {
	analyzer analysis.Analyzer
	market   market.Fetcher
	metrics  *metrics.Manager
}

// NewServer creates a server. fetcher may be nil, in which case /v1/comps
// answers 503.
func NewServer(analyzer analysis.Analyzer, fetcher market.Fetcher, m *metrics.Manager) *Server {
	return &Server{analyzer: analyzer, market: fetcher, metrics: m}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.instrument("healthz", handleHealth))
	mux.HandleFunc("POST /v1/analyze", s.instrument("analyze", s.handleAnalyze))
	mux.HandleFunc("GET /v1/comps", s.instrument("comps", s.handleComps))
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// instrument records metrics and an access log line for next.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next(wrapped, r)

		elapsed := time.Since(start)
		s.metrics.ObserveHTTPRequest(route, r.Method, wrapped.status, elapsed)
		log.Debug().
			Str("route", route).
			Str("method", r.Method).
			Int("status", wrapped.status).
			Dur("duration", elapsed).
			Msg("http request")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps pipeline errors to a status code and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrEmptyInput):
		return http.StatusBadRequest, "empty_input"
	case errors.Is(err, common.ErrConfiguration):
		return http.StatusServiceUnavailable, "not_configured"
	case errors.Is(err, common.ErrAuthFailed):
		return http.StatusBadGateway, "market_auth_failed"
	case errors.Is(err, common.ErrAnalysisFailed):
		return http.StatusBadGateway, "analysis_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

var errBadRequest = errors.New("bad request")

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
