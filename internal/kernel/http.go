package kernel

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the oracle over HTTP. Routes, relative to the mount point:
//
//	POST /decide  - the consult protocol: {session_id, agent, stage} -> {status}
//	POST /stop    - arm the latch; optional body {reason}
//	POST /reset   - disarm the latch
//	GET  /history - audit trail, oldest first
type Handler struct {
	service *Service
	router  *chi.Mux
}

// NewHandler wraps a Service with its HTTP surface.
func NewHandler(service *Service) *Handler {
	h := &Handler{
		service: service,
		router:  chi.NewRouter(),
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	h.router.Post("/decide", h.handleDecide)
	h.router.Post("/stop", h.handleStop)
	h.router.Post("/reset", h.handleReset)
	h.router.Get("/history", h.handleHistory)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	writeJSON(w, h.service.Decide(req))
}

type stopRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	h.service.Stop(req.Reason)
	writeJSON(w, map[string]string{"status": "stopping"})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.service.Reset()
	writeJSON(w, map[string]string{"status": "reset"})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := h.service.History()
	writeJSON(w, map[string]any{
		"count":   len(history),
		"history": history,
	})
}

// decodeOptionalJSON decodes a JSON body into dst, treating an empty body as
// the zero value. Operator tools often POST /stop with no payload.
func decodeOptionalJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
