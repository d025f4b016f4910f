// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	service "github.com/okian/crimemap/internal/app"
	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/internal/domain/registry"
)

// CatalogDependencies defines the interface for listing selectable values.
type CatalogDependencies interface {
	Constabularies(ctx context.Context) ([]registry.ConstabularyOption, error)
	Options(ctx context.Context, fidelity model.Fidelity, constabulary string) (service.OptionsView, error)
}

// CatalogHandler handles constabulary and option listings.
type CatalogHandler struct {
	deps CatalogDependencies
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogDependencies) *CatalogHandler {
	return &CatalogHandler{deps: deps}
}

type constabulariesResponse struct {
	Constabularies []registry.ConstabularyOption `json:"constabularies"`
}

// HandleConstabularies handles GET /api/constabularies requests.
func (h *CatalogHandler) HandleConstabularies(w http.ResponseWriter, r *http.Request) {
	const op = "api.constabularies"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	opts, err := h.deps.Constabularies(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if opts == nil {
		opts = []registry.ConstabularyOption{}
	}
	writeJSON(w, http.StatusOK, constabulariesResponse{Constabularies: opts})
}

// HandleOptions handles GET /api/options?fidelity=&constabulary= requests.
func (h *CatalogHandler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	const op = "api.options"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	fidelity, err := model.ParseFidelity(queryParam(r, "fidelity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.Options(r.Context(), fidelity, queryParam(r, "constabulary"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
