// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/crimemap/internal/app"
	"github.com/okian/crimemap/internal/domain/registry"
)

// ExploreDependencies defines the interface for pipeline runs.
type ExploreDependencies interface {
	Explore(ctx context.Context, req service.Request) (service.View, error)
}

// ExploreHandler handles explore requests.
type ExploreHandler struct {
	deps ExploreDependencies
}

// NewExploreHandler creates a new explore handler.
func NewExploreHandler(deps ExploreDependencies) *ExploreHandler {
	return &ExploreHandler{deps: deps}
}

// exploreRequest mirrors the OpenAPI schema for POST /api/explore.
type exploreRequest struct {
	SessionID    string           `json:"session_id"`
	Selection    selectionRequest `json:"selection"`
	ClearGesture string           `json:"clear_gesture"`
}

// HandleExplore handles POST /api/explore requests.
func (h *ExploreHandler) HandleExplore(w http.ResponseWriter, r *http.Request) {
	const op = "api.explore"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req exploreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sel, err := req.Selection.selection()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	view, err := h.deps.Explore(r.Context(), service.Request{
		SessionID:    req.SessionID,
		Selection:    sel,
		ClearGesture: req.ClearGesture,
	})
	if errors.Is(err, registry.ErrDatasetUnavailable) {
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Code:      "dataset_unavailable",
			Message:   view.Warning,
			SessionID: view.SessionID,
		})
		return
	}
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
