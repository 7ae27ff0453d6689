// Package httpapi exposes the session use cases as a small JSON API plus the
// health and Prometheus endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

const (
	msgNotFound     = "session not found"
	msgUpdateFailed = "failed to update session"
	msgLoadFailed   = "failed to load session"
	msgBadRequest   = "invalid request body"
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 64 << 10
)

// SessionService is what the API needs from the session use cases.
type SessionService interface {
	Create(ctx context.Context, images []string) (domain.Session, error)
	Get(ctx context.Context, id string) (domain.Session, error)
	Activate(ctx context.Context, id, impressionText string) (domain.Session, error)
	Complete(ctx context.Context, id string, chosenImageIdx int) (domain.Session, error)
	Invest(ctx context.Context, id string) (domain.Session, error)
}

// Server serves the API.
type Server struct {
	sessions SessionService
	gatherer prometheus.Gatherer
	mux      *http.ServeMux
}

// New builds the routes. A nil gatherer serves the default registry.
func New(sessions SessionService, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{sessions: sessions, gatherer: gatherer, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /api/sessions", s.handleCreate)
	s.mux.HandleFunc("GET /api/session/{id}", s.handleGet)
	s.mux.HandleFunc("POST /api/session/{id}/activate", s.handleActivate)
	s.mux.HandleFunc("POST /api/session/{id}/complete", s.handleComplete)
	s.mux.HandleFunc("POST /api/session/{id}/invest", s.handleInvest)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi.Serve: listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}

	slog.Info("http api listening", "addr", ln.Addr().String())
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi.Serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi.Serve: shutdown: %w", err)
	}
	slog.Info("http api stopped")
	return nil
}

type createRequest struct {
	Images []string `json:"images"`
}

type activateRequest struct {
	ImpressionText string `json:"impressionText"`
}

type completeRequest struct {
	ChosenImageIdx *int `json:"chosenImageIdx"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.sessions.Create(r.Context(), req.Images)
	if err != nil {
		s.fail(w, r, err, msgUpdateFailed)
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(sess))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, msgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(sess))
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.sessions.Activate(r.Context(), r.PathValue("id"), req.ImpressionText)
	if err != nil {
		s.fail(w, r, err, msgUpdateFailed)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(sess))
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ChosenImageIdx == nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	sess, err := s.sessions.Complete(r.Context(), r.PathValue("id"), *req.ChosenImageIdx)
	if err != nil {
		s.fail(w, r, err, msgUpdateFailed)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(sess))
}

func (s *Server) handleInvest(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Invest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, msgUpdateFailed)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(sess))
}

// fail logs the real error and answers with a generic message. Only "not
// found" is distinguishable by the caller.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidStrategy):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrVersionConflict):
		status = http.StatusConflict
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "session request failed",
		"method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	writeError(w, status, msg)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		slog.Debug("bad request body", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
