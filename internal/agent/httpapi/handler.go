package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lapworks/lapstream-go/internal/agent/session"
	"github.com/lapworks/lapstream-go/internal/core/domain"
	"github.com/lapworks/lapstream-go/internal/infra/buildinfo"
	"github.com/lapworks/lapstream-go/internal/storage"
	"github.com/lapworks/lapstream-go/internal/telemetry/logger"
)

// Handler serves the agent REST API.
type Handler struct {
	sessions *session.Service
	store    *storage.Store
	log      logger.Logger
	started  time.Time
}

// New creates a Handler backed by the session service and store.
func New(sessions *session.Service, store *storage.Store, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		sessions: sessions,
		store:    store,
		log:      log,
		started:  time.Now(),
	}
}

// Register mounts the API routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/status", h.handleStatus)
	mux.HandleFunc("GET /api/v1/sessions", h.handleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/current", h.handleCurrentSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/laps", h.handleListLaps)
	mux.HandleFunc("POST /api/v1/sessions", h.handleStartSession)
	mux.HandleFunc("POST /api/v1/sessions/current/stop", h.handleStopSession)
}

// handleStatus handles GET /api/v1/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	info := buildinfo.Get()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"version":        info.Version,
		"commit":         info.Commit,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"time":           time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListSessions handles GET /api/v1/sessions.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	h.writeJSON(w, http.StatusOK, sessions)
}

// handleCurrentSession handles GET /api/v1/sessions/current.
func (h *Handler) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	current := h.sessions.Current()
	if current == nil {
		h.writeError(w, http.StatusNotFound, domain.ErrSessionNotActive.Code, "no active session")
		return
	}
	h.writeJSON(w, http.StatusOK, current)
}

// handleGetSession handles GET /api/v1/sessions/{id}.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

// handleListLaps handles GET /api/v1/sessions/{id}/laps.
func (h *Handler) handleListLaps(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.GetSession(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	laps, err := h.store.ListLaps(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if laps == nil {
		laps = []*domain.Lap{}
	}
	h.writeJSON(w, http.StatusOK, laps)
}

// startSessionRequest is the POST /api/v1/sessions body.
type startSessionRequest struct {
	CircuitName string `json:"circuit_name"`
	VehicleName string `json:"vehicle_name"`
	GameMode    string `json:"game_mode"`
}

// handleStartSession handles POST /api/v1/sessions.
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "LS-API-400", "invalid request body")
		return
	}

	s, err := h.sessions.Start(r.Context(), req.CircuitName, req.VehicleName, req.GameMode)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, s)
}

// handleStopSession handles POST /api/v1/sessions/current/stop.
func (h *Handler) handleStopSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Stop(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("encode response failed", "error", err)
	}
}

// errorResponse is the error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Code: code, Message: message}); err != nil {
		h.log.Error("encode error response failed", "error", err)
	}
}

// writeDomainError maps domain errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		h.log.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "LS-API-500", "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch de.Code {
	case domain.ErrSessionNotFound.Code, domain.ErrSessionNotActive.Code:
		status = http.StatusNotFound
	case domain.ErrSessionActive.Code:
		status = http.StatusConflict
	case domain.ErrStorageClosed.Code:
		status = http.StatusServiceUnavailable
	}
	h.writeError(w, status, de.Code, de.Message)
}
