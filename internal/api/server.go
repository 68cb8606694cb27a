// Package api exposes the scheduling core over HTTP. Authentication is
// out of scope here: callers identify their organization with the
// X-Org-ID header and every handler re-validates tenancy.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"caresched/internal/engine"
	"caresched/internal/nlp"
	"caresched/internal/store"
	"caresched/internal/tenant"
	"caresched/internal/timeutil"
)

const orgHeader = "X-Org-ID"

var errParserDisabled = errors.New("free-text modification requires the parser service")

// Parser is the slice of the NL parser boundary the modify handler
// uses. Nil disables free-text modification.
type Parser interface {
	Parse(ctx context.Context, text, commandContext string) (*nlp.ParsedCommand, error)
}

// Server holds the handler dependencies.
type Server struct {
	engine    *engine.Engine
	store     *store.Store
	validator *tenant.Validator
	parser    Parser
	logger    zerolog.Logger
}

func NewServer(eng *engine.Engine, st *store.Store, validator *tenant.Validator, parser Parser, logger zerolog.Logger) *Server {
	return &Server{
		engine:    eng,
		store:     st,
		validator: validator,
		parser:    parser,
		logger:    logger,
	}
}

// Router wires all routes with the middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", orgHeader},
	}))

	r.Route("/api/v1/schedules", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Get("/{id}", s.handleGetSchedule)
		r.Post("/{id}/draft-copy", s.handleDraftCopy)
		r.Post("/{id}/modify", s.handleModify)
		r.Post("/{id}/publish", s.handlePublish)
		r.Get("/{id}/export.xlsx", s.handleExport)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps the error taxonomy onto HTTP status codes and
// returns the code written, so handlers can label metrics with it.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) int {
	var (
		refErr    *tenant.RefError
		malformed *timeutil.ErrMalformed
	)
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.As(err, &refErr):
		status, msg = http.StatusForbidden, refErr.Error()
	case errors.As(err, &malformed):
		status, msg = http.StatusBadRequest, malformed.Error()
	case errors.Is(err, engine.ErrLowConfidence),
		errors.Is(err, engine.ErrInfeasible):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, engine.ErrUnknownAction):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, engine.ErrSchedulePublished):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, store.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	default:
		s.logger.Error().Err(err).Msg("request failed")
	}
	writeError(w, status, msg)
	return status
}

// orgID resolves and validates the calling organization. An empty
// return means the response has already been written.
func (s *Server) orgID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(orgHeader)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing "+orgHeader+" header")
		return ""
	}
	if _, err := s.validator.Organization(r.Context(), id); err != nil {
		s.writeEngineError(w, err)
		return ""
	}
	return id
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
