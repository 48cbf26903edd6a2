package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rehabsense/internal/pose"
)

// Handler exposes the session REST endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler backed by the given Service.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the session API onto a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions/start", h.StartSession)
	r.Get("/sessions", h.ListSessions)
	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/end", h.EndSession)
	})
}

type startRequest struct {
	Exercise string `json:"exercise"`
	UserID   string `json:"userId"`
}

// StartSession handles POST /sessions/start.
// Body: { "exercise": "squat", "userId": "u1" }.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid start body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := h.svc.Start(req.Exercise, req.UserID)
	if err != nil {
		if errors.Is(err, pose.ErrUnknownExercise) {
			writeError(w, http.StatusBadRequest, "unknown exercise: "+req.Exercise)
			return
		}
		h.log.Error("start session failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, info)
}

// GetSession handles GET /sessions/{session_id}: the live snapshot.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := ID(chi.URLParam(r, "session_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	snap, err := h.svc.Snapshot(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.List())
}

// EndSession handles POST /sessions/{session_id}/end and returns the
// terminal summary. Ending twice returns the same summary.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := ID(chi.URLParam(r, "session_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	summary, err := h.svc.End(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.log.Error("end session failed",
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}

	h.log.Info("session end requested", slog.String("session_id", string(id)))
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
