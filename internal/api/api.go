package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/joescharf/bugboard/internal/bugs"
	"github.com/joescharf/bugboard/internal/llm"
	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/views"
)

// Triager proposes triage changes for a bug. *llm.Client satisfies it.
type Triager interface {
	TriageBug(ctx context.Context, b *models.Bug) (*llm.Suggestion, error)
}

// Server provides the REST API handlers.
type Server struct {
	bugs    *bugs.Service
	triager Triager
	log     *slog.Logger
}

// NewServer creates a new API server.
// The triager may be nil if no LLM is configured; logger may be nil.
func NewServer(svc *bugs.Service, triager Triager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		bugs:    svc,
		triager: triager,
		log:     logger,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.health)

	mux.HandleFunc("GET /api/bugs", s.listBugs)
	mux.HandleFunc("POST /api/bugs", s.createBug)
	mux.HandleFunc("GET /api/bugs/stats", s.bugStats)
	mux.HandleFunc("GET /api/bugs/{id}", s.getBug)
	mux.HandleFunc("PATCH /api/bugs/{id}", s.updateBug)
	mux.HandleFunc("PUT /api/bugs/{id}", s.updateBug)
	mux.HandleFunc("DELETE /api/bugs/{id}", s.deleteBug)
	mux.HandleFunc("POST /api/bugs/{id}/triage", s.triageBug)

	return corsMiddleware(requestIDMiddleware(s.logMiddleware(s.recoverMiddleware(mux))))
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields []models.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServiceError maps the bug service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	var nf *bugs.NotFoundError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: ve.Fields})
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// parseQuery reads filter criteria and the search term from query
// parameters. Unknown enum values are reported as validation errors.
func parseQuery(q url.Values) (views.Criteria, string, error) {
	ve := &models.ValidationError{}
	c := views.Criteria{
		Status:   models.Status(q.Get("status")),
		Priority: models.Priority(q.Get("priority")),
		Assignee: q.Get("assignee"),
	}
	if c.Status != "" && !c.Status.Valid() {
		ve.Fields = append(ve.Fields, models.FieldError{Field: "status", Message: "unknown status " + strconv.Quote(string(c.Status))})
	}
	if c.Priority != "" && !c.Priority.Valid() {
		ve.Fields = append(ve.Fields, models.FieldError{Field: "priority", Message: "unknown priority " + strconv.Quote(string(c.Priority))})
	}
	if v := q.Get("reproducible"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			ve.Fields = append(ve.Fields, models.FieldError{Field: "reproducible", Message: "must be true or false"})
		} else {
			c.Reproducible = &b
		}
	}
	if len(ve.Fields) > 0 {
		return views.Criteria{}, "", ve
	}
	return c, q.Get("q"), nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// filteredBugs loads every bug and applies the request's query filters.
func (s *Server) filteredBugs(r *http.Request) ([]*models.Bug, error) {
	c, term, err := parseQuery(r.URL.Query())
	if err != nil {
		return nil, err
	}
	all, err := s.bugs.GetAll(r.Context())
	if err != nil {
		return nil, err
	}
	return views.Apply(all, c, term), nil
}

func (s *Server) listBugs(w http.ResponseWriter, r *http.Request) {
	list, err := s.filteredBugs(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) bugStats(w http.ResponseWriter, r *http.Request) {
	list, err := s.filteredBugs(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views.ComputeStats(list))
}

func (s *Server) createBug(w http.ResponseWriter, r *http.Request) {
	var in models.BugInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bug, err := s.bugs.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bug)
}

func (s *Server) getBug(w http.ResponseWriter, r *http.Request) {
	bug, err := s.bugs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bug)
}

// updateBug serves both PATCH and PUT. Either way only the fields present
// in the body change; id and createdAt in the body are ignored.
func (s *Server) updateBug(w http.ResponseWriter, r *http.Request) {
	var patch models.BugPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bug, err := s.bugs.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bug)
}

func (s *Server) deleteBug(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.bugs.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Bug deleted successfully",
		"id":      id,
	})
}

type triageResponse struct {
	Suggestion *llm.Suggestion `json:"suggestion"`
	Bug        *models.Bug     `json:"bug"`
	Applied    bool            `json:"applied"`
}

// triageBug asks the LLM for a suggestion. With ?apply=true the suggested
// priority and tags are written through the service.
func (s *Server) triageBug(w http.ResponseWriter, r *http.Request) {
	if s.triager == nil {
		writeError(w, http.StatusServiceUnavailable, "LLM not configured (set ANTHROPIC_API_KEY)")
		return
	}

	id := r.PathValue("id")
	bug, err := s.bugs.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	suggestion, err := s.triager.TriageBug(r.Context(), bug)
	if err != nil {
		s.log.Warn("triage failed", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("LLM triage failed: %v", err))
		return
	}

	resp := triageResponse{Suggestion: suggestion, Bug: bug}
	if apply, _ := strconv.ParseBool(r.URL.Query().Get("apply")); apply {
		updated, err := s.bugs.Update(r.Context(), id, suggestion.Patch(bug.Tags))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp.Bug = updated
		resp.Applied = true
	}
	writeJSON(w, http.StatusOK, resp)
}
