// Package httpapi is the demonstration HTTP surface over the Query Engine:
// GET /contests/{id}/standings and POST /contests/{id}/validate, following
// the teacher's internal/contest/service.go handler style (plain
// net/http.HandlerFunc methods on a service struct, manual
// json.NewEncoder/http.Error, chi.URLParam for path segments). The engine
// itself stays a library; this package is the "external" surface
// spec.md refers to.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"standings-replay-engine/internal/apierrors"
	"standings-replay-engine/internal/query"

	"github.com/go-chi/chi/v5"
)

// API wraps the Query Engine for the demonstration HTTP surface.
type API struct {
	engine *query.Engine
}

// New wires an API to the given Query Engine.
func New(engine *query.Engine) *API {
	return &API{engine: engine}
}

// Routes registers the demonstration endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/contests/{id}/standings", a.GetStandings)
	r.Post("/contests/{id}/validate", a.Validate)
}

// GetStandings answers standingsAt (spec §6): ?t=, ?rankFrom=, ?rankTo=,
// ?includeUnofficial=.
func (a *API) GetStandings(w http.ResponseWriter, r *http.Request) {
	contestID := chi.URLParam(r, "id")
	if contestID == "" {
		http.Error(w, "contest id is required", http.StatusBadRequest)
		return
	}

	t, err := intQueryParam(r, "t", 0)
	if err != nil {
		http.Error(w, "t must be an integer", http.StatusBadRequest)
		return
	}
	rankFrom, err := intQueryParam(r, "rankFrom", 1)
	if err != nil {
		http.Error(w, "rankFrom must be an integer", http.StatusBadRequest)
		return
	}
	rankTo, err := intQueryParam(r, "rankTo", 0)
	if err != nil {
		http.Error(w, "rankTo must be an integer", http.StatusBadRequest)
		return
	}
	includeUnofficial := r.URL.Query().Get("includeUnofficial") == "true"

	result, err := a.engine.StandingsAt(r.Context(), contestID, t, rankFrom, rankTo, includeUnofficial)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Validate answers validate (spec §6): ?t=.
func (a *API) Validate(w http.ResponseWriter, r *http.Request) {
	contestID := chi.URLParam(r, "id")
	if contestID == "" {
		http.Error(w, "contest id is required", http.StatusBadRequest)
		return
	}

	t, err := intQueryParam(r, "t", 0)
	if err != nil {
		http.Error(w, "t must be an integer", http.StatusBadRequest)
		return
	}

	report, err := a.engine.Validate(r.Context(), contestID, t)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func intQueryParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// writeEngineError maps the engine's three typed error families onto HTTP
// status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	if _, ok := apierrors.AsInput(err); ok {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := apierrors.AsData(err); ok {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
