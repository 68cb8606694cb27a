package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"caresched/internal/engine"
	"caresched/internal/export"
	"caresched/internal/metrics"
	"caresched/internal/model"
	"caresched/internal/tenant"
)

type generateRequest struct {
	WeekStart string `json:"week_start"`
}

// handleGenerate builds a fresh draft schedule for the week.
// POST /api/v1/schedules/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	orgID := s.orgID(w, r)
	if orgID == "" {
		return
	}
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.engine.GenerateSchedule(r.Context(), orgID, req.WeekStart)
	if err != nil {
		metrics.IncHTTPRequest("generate", strconv.Itoa(s.writeEngineError(w, err)))
		return
	}
	metrics.IncHTTPRequest("generate", strconv.Itoa(http.StatusCreated))
	writeJSON(w, http.StatusCreated, res)
}

type scheduleResponse struct {
	Schedule *model.Schedule `json:"schedule"`
	Sessions []model.Session `json:"sessions"`
}

// handleGetSchedule returns a schedule with its sessions.
// GET /api/v1/schedules/{id}
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	orgID := s.orgID(w, r)
	if orgID == "" {
		return
	}
	sched, ok := s.loadScoped(w, r, orgID)
	if !ok {
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), sched.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	metrics.IncHTTPRequest("get_schedule", strconv.Itoa(http.StatusOK))
	writeJSON(w, http.StatusOK, scheduleResponse{Schedule: sched, Sessions: sessions})
}

// handleDraftCopy carries a schedule into a new week.
// POST /api/v1/schedules/{id}/draft-copy
func (s *Server) handleDraftCopy(w http.ResponseWriter, r *http.Request) {
	orgID := s.orgID(w, r)
	if orgID == "" {
		return
	}
	sched, ok := s.loadScoped(w, r, orgID)
	if !ok {
		return
	}
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.engine.CreateDraftCopy(r.Context(), sched.ID, req.WeekStart)
	if err != nil {
		metrics.IncHTTPRequest("draft_copy", strconv.Itoa(s.writeEngineError(w, err)))
		return
	}
	metrics.IncHTTPRequest("draft_copy", strconv.Itoa(http.StatusCreated))
	writeJSON(w, http.StatusCreated, res)
}

type modifyRequest struct {
	// Either an already-structured command...
	Command *engine.ModificationCommand `json:"command,omitempty"`
	// ...or free text routed through the NL parser.
	Text    string `json:"text,omitempty"`
	Context string `json:"context,omitempty"`
}

// handleModify applies one edit to a draft schedule.
// POST /api/v1/schedules/{id}/modify
func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	orgID := s.orgID(w, r)
	if orgID == "" {
		return
	}
	scheduleID := chi.URLParam(r, "id")

	var req modifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var cmd engine.ModificationCommand
	switch {
	case req.Command != nil:
		cmd = *req.Command
	case req.Text != "":
		parsed, err := s.parseText(r, req)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			metrics.IncHTTPRequest("modify", strconv.Itoa(http.StatusUnprocessableEntity))
			return
		}
		cmd = *parsed
	default:
		writeError(w, http.StatusBadRequest, "body needs a command or text")
		return
	}

	res, err := s.engine.ApplyModification(r.Context(), orgID, scheduleID, cmd)
	if err != nil {
		metrics.IncHTTPRequest("modify", strconv.Itoa(s.writeEngineError(w, err)))
		return
	}
	metrics.IncHTTPRequest("modify", strconv.Itoa(http.StatusOK))
	writeJSON(w, http.StatusOK, res)
}

// parseText runs free text through the NL parser and converts the
// typed payload into a modification command. The parsed payload is
// untrusted: each decoder re-validates its fields.
func (s *Server) parseText(r *http.Request, req modifyRequest) (*engine.ModificationCommand, error) {
	if s.parser == nil {
		return nil, errParserDisabled
	}
	commandContext := req.Context
	if commandContext == "" {
		commandContext = "schedule"
	}
	parsed, err := s.parser.Parse(r.Context(), req.Text, commandContext)
	if err != nil {
		return nil, err
	}

	cmd := engine.ModificationCommand{Action: parsed.Type, Confidence: parsed.Confidence}
	switch parsed.Type {
	case engine.ActionMove:
		mv, err := parsed.Move()
		if err != nil {
			return nil, err
		}
		cmd.SessionID, cmd.Date, cmd.StartTime, cmd.EndTime = mv.SessionID, mv.Date, mv.StartTime, mv.EndTime
	case engine.ActionCancel:
		cn, err := parsed.Cancel()
		if err != nil {
			return nil, err
		}
		cmd.SessionID = cn.SessionID
	case engine.ActionCreate:
		cr, err := parsed.Create()
		if err != nil {
			return nil, err
		}
		cmd.PractitionerID, cmd.ClientID, cmd.RoomID = cr.PractitionerID, cr.ClientID, cr.RoomID
		cmd.Date, cmd.StartTime, cmd.EndTime = cr.Date, cr.StartTime, cr.EndTime
	}
	return &cmd, nil
}

// handlePublish transitions a draft to published.
// POST /api/v1/schedules/{id}/publish
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	orgID := s.orgID(w, r)
	if orgID == "" {
		return
	}
	sched, err := s.engine.PublishSchedule(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		metrics.IncHTTPRequest("publish", strconv.Itoa(s.writeEngineError(w, err)))
		return
	}
	metrics.IncHTTPRequest("publish", strconv.Itoa(http.StatusOK))
	writeJSON(w, http.StatusOK, sched)
}

// handleExport streams the week as an xlsx workbook.
// GET /api/v1/schedules/{id}/export.xlsx
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	orgID := s.orgID(w, r)
	if orgID == "" {
		return
	}
	sched, ok := s.loadScoped(w, r, orgID)
	if !ok {
		return
	}
	ctx := r.Context()

	sessions, err := s.store.ListSessions(ctx, sched.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	names, err := s.displayNames(ctx, orgID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule-`+sched.WeekStart+`.xlsx"`)
	if err := export.WriteWeekWorkbook(w, sched, sessions, org.Timezone, names); err != nil {
		s.logger.Error().Err(err).Str("schedule_id", sched.ID).Msg("export failed")
		return
	}
	metrics.IncHTTPRequest("export", strconv.Itoa(http.StatusOK))
}

func (s *Server) displayNames(ctx context.Context, orgID string) (export.Names, error) {
	practitioners, err := s.store.ListActivePractitioners(ctx, orgID)
	if err != nil {
		return export.Names{}, err
	}
	clients, err := s.store.ListActiveClients(ctx, orgID)
	if err != nil {
		return export.Names{}, err
	}
	rooms, err := s.store.ListActiveRooms(ctx, orgID)
	if err != nil {
		return export.Names{}, err
	}

	names := export.Names{
		Practitioners: make(map[string]string, len(practitioners)),
		Clients:       make(map[string]string, len(clients)),
		Rooms:         make(map[string]string, len(rooms)),
	}
	for _, p := range practitioners {
		names.Practitioners[p.ID] = p.Name
	}
	for _, c := range clients {
		names.Clients[c.ID] = c.Name
	}
	for _, room := range rooms {
		names.Rooms[room.ID] = room.Name
	}
	return names, nil
}

// loadScoped fetches a schedule and enforces tenancy: a schedule from
// another organization reads as forbidden, not as absent data.
func (s *Server) loadScoped(w http.ResponseWriter, r *http.Request, orgID string) (*model.Schedule, bool) {
	sched, err := s.store.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return nil, false
	}
	if sched.OrgID != orgID {
		s.writeEngineError(w, &tenant.RefError{Field: "schedule_id", ID: sched.ID})
		return nil, false
	}
	return sched, true
}
