package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/moplabs/mopd/internal/domain"
	"github.com/moplabs/mopd/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
	healthTimeout    = 2 * time.Second
)

type analyzeRequest struct {
	Problem string `json:"problem"`
}

// handleAnalyze starts a run and streams its updates as server-sent events,
// one data frame per update, flushed immediately. The run executes on a
// detached context; a client disconnect stops the framing, never the run.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation("invalid request body"))
		return
	}

	sessionID, updates, err := s.runner.Run(req.Problem)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, err)
		return
	}
	AddLogField(r.Context(), "session_id", sessionID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, domain.NewError(domain.ErrorTypeServer, "streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Session-ID", sessionID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(u)
			if err != nil {
				s.logger.Error("update marshal failed", "session_id", sessionID, "error", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			s.logger.Info("stream observer departed", "session_id", sessionID)
			return
		}
	}
}

// handleGetAnalysis returns the persisted record for one session.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := s.recorder.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, domain.ErrNotFound(fmt.Sprintf("analysis %s not found", id)))
			return
		}
		AddError(r.Context(), err)
		writeError(w, domain.NewError(domain.ErrorTypeServer, "analysis lookup failed"))
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// handleListAnalyses returns persisted records newest first. The limit query
// parameter is clamped to [1, 100] and defaults to 50.
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.ErrValidation("limit must be an integer"))
			return
		}
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	sessions, err := s.recorder.List(r.Context(), storage.ListOptions{Limit: limit})
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, domain.NewError(domain.ErrorTypeServer, "analysis list failed"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": sessions,
		"count":    len(sessions),
	})
}

// pinger is implemented by stores that can probe their backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth reports liveness plus storage reachability. The store is
// probed with a short timeout so a hung backend cannot stall the probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	connected := true
	if p, ok := s.store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		connected = p.Ping(ctx) == nil
	}

	status := "healthy"
	if !connected {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"database": connected,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "mopd",
		"status":  "running",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to a status code and a JSON envelope.
func writeError(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		derr = domain.NewError(domain.ErrorTypeServer, err.Error())
	}
	writeJSON(w, derr.HTTPStatusCode(), map[string]string{
		"error": derr.Message,
		"type":  string(derr.Type),
	})
}
