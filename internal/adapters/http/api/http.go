// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/crimemap/internal/app"
	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/internal/domain/registry"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ExploreDependencies
	CatalogDependencies
	SessionDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	exploreHandler  *ExploreHandler
	catalogHandler  *CatalogHandler
	sessionsHandler *SessionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		exploreHandler:  NewExploreHandler(deps),
		catalogHandler:  NewCatalogHandler(deps),
		sessionsHandler: NewSessionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/explore", MetricsMiddleware(s.exploreHandler.HandleExplore, "explore"))
	mux.HandleFunc("/api/constabularies", MetricsMiddleware(s.catalogHandler.HandleConstabularies, "constabularies"))
	mux.HandleFunc("/api/options", MetricsMiddleware(s.catalogHandler.HandleOptions, "options"))
	mux.HandleFunc("/api/sessions", MetricsMiddleware(s.sessionsHandler.HandleNewSession, "sessions"))
	mux.HandleFunc("/api/cache/clear", MetricsMiddleware(s.sessionsHandler.HandleClearCache, "cache_clear"))
}

// selectionRequest mirrors the OpenAPI schema for a selection.
type selectionRequest struct {
	Fidelity     string `json:"fidelity"`
	Constabulary string `json:"constabulary"`
	CrimeType    string `json:"crime_type"`
	Month        string `json:"month"`
}

func (s selectionRequest) selection() (model.Selection, error) {
	fidelity, err := model.ParseFidelity(s.Fidelity)
	if err != nil {
		return model.Selection{}, err
	}
	sel := model.Selection{
		Fidelity:     fidelity,
		Constabulary: s.Constabulary,
		CrimeType:    s.CrimeType,
		Month:        s.Month,
	}
	if err := sel.Validate(); err != nil {
		return model.Selection{}, err
	}
	return sel.Normalized(), nil
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
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

// writeServiceError translates service failures to status codes.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case isBadRequest(err):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, registry.ErrDatasetUnavailable):
		writeError(w, http.StatusBadGateway, "dataset_unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}

func isBadRequest(err error) bool {
	return errors.Is(err, service.ErrInvalidSelection) ||
		errors.Is(err, service.ErrMissingGesture) ||
		errors.Is(err, model.ErrIncompleteSelection) ||
		errors.Is(err, model.ErrUnknownFidelity)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func queryParam(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}
