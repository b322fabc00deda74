package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gadievron/mailmatch/internal/namequery"
	"github.com/gadievron/mailmatch/internal/resolver"
	"github.com/gadievron/mailmatch/internal/runner"
	"github.com/gadievron/mailmatch/internal/store"
)

// StatsResponse summarizes the stored outcomes.
type StatsResponse struct {
	TotalOutcomes int64 `json:"total_outcomes"`
}

// OutcomeResponse is one stored resolution outcome.
type OutcomeResponse struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Status     string `json:"status"`
	Alternates string `json:"alternates,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// ResolveRequest asks for one name to be resolved.
type ResolveRequest struct {
	Name string `json:"name"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

func toOutcomeResponse(o store.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		Name:       o.Name,
		Email:      o.Email,
		Status:     o.Status,
		Alternates: o.Alternates,
		Confidence: o.Confidence,
	}
	if !o.UpdatedAt.IsZero() {
		resp.UpdatedAt = o.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// handleStats returns outcome counts.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountOutcomes(r.Context())
	if err != nil {
		s.logger.Error("failed to count outcomes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve statistics")
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{TotalOutcomes: count})
}

// handleListOutcomes returns stored outcomes, newest first.
func (s *Server) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	outcomes, err := s.store.ListOutcomes(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list outcomes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list outcomes")
		return
	}

	resp := make([]OutcomeResponse, len(outcomes))
	for i, o := range outcomes {
		resp[i] = toOutcomeResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetOutcome returns the stored outcome for one name.
func (s *Server) handleGetOutcome(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid name")
		return
	}

	outcome, err := s.store.GetOutcome(r.Context(), name)
	if err != nil {
		s.logger.Error("failed to get outcome", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get outcome")
		return
	}
	if outcome == nil {
		writeError(w, http.StatusNotFound, "not_found", "No outcome stored for this name")
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(*outcome))
}

// handleResolve resolves one name on demand and stores the outcome.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "resolver_unavailable", "No account is authorized for resolution")
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	q, err := namequery.Parse(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Name must not be empty")
		return
	}

	res, err := s.resolver.Resolve(r.Context(), q)
	if err != nil {
		s.logger.Error("resolution failed", "name", req.Name, "error", err)
		writeError(w, http.StatusBadGateway, "resolve_failed", err.Error())
		return
	}

	outcome := store.Outcome{Name: req.Name, Status: "Not found"}
	if res != nil {
		outcome = store.Outcome{
			Name:       req.Name,
			Email:      res.Winner.Email,
			Status:     res.Source.HumanStatus(),
			Alternates: res.FormatAlternates(),
			Confidence: runner.FormatConfidence(res),
		}
	}

	if err := s.store.SaveOutcome(r.Context(), req.Name, outcome); err != nil {
		s.logger.Error("failed to save outcome", "name", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to save outcome")
		return
	}

	status := http.StatusOK
	if res == nil {
		status = http.StatusNotFound
	}
	writeJSON(w, status, toOutcomeResponse(outcome))
}

// Ensure the resolver satisfies the server's contract.
var _ NameResolver = (*resolver.Resolver)(nil)
