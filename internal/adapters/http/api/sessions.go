// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/crimemap/internal/app"
)

// SessionDependencies defines the interface for session and cache operations.
type SessionDependencies interface {
	NewSession(ctx context.Context) string
	ClearCache(ctx context.Context, sessionID, gestureID string) (service.ClearResult, error)
}

// SessionsHandler handles session requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

// clearRequest mirrors the OpenAPI schema for POST /api/cache/clear.
type clearRequest struct {
	SessionID string `json:"session_id"`
	GestureID string `json:"gesture_id"`
}

func (c clearRequest) validate() error {
	if strings.TrimSpace(c.GestureID) == "" {
		return errors.New("missing gesture_id")
	}
	return nil
}

// HandleNewSession handles POST /api/sessions requests.
func (h *SessionsHandler) HandleNewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: h.deps.NewSession(r.Context())})
}

// HandleClearCache handles POST /api/cache/clear requests. A replayed
// gesture is acknowledged with cleared=false.
func (h *SessionsHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	const op = "api.cache_clear"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.ClearCache(r.Context(), req.SessionID, req.GestureID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	status := http.StatusOK
	if res.Cleared {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}
