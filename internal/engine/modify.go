package engine

import (
	"context"
	"fmt"
	"strings"

	"caresched/internal/metrics"
	"caresched/internal/model"
	"caresched/internal/store"
	"caresched/internal/tenant"
	"caresched/internal/timeutil"
)

// ApplyModification applies one structured edit to a draft schedule.
// The confidence floor is enforced before anything is read; tenant
// validation covers every referenced entity; move and create re-run the
// feasibility check against the rest of the schedule; the commit is
// version-checked.
func (e *Engine) ApplyModification(ctx context.Context, orgID, scheduleID string, cmd ModificationCommand) (*ModificationResult, error) {
	if cmd.Confidence < e.cfg.ConfidenceFloor() {
		metrics.IncRejection("low_confidence")
		return nil, fmt.Errorf("confidence %.2f below floor %.2f: %w", cmd.Confidence, e.cfg.ConfidenceFloor(), ErrLowConfidence)
	}

	sched, err := e.loadDraft(ctx, orgID, scheduleID)
	if err != nil {
		return nil, err
	}

	var result *ModificationResult
	switch cmd.Action {
	case ActionMove:
		result, err = e.applyMove(ctx, sched, cmd)
	case ActionCancel:
		result, err = e.applyCancel(ctx, sched, cmd)
	case ActionCreate:
		result, err = e.applyCreate(ctx, sched, cmd)
	default:
		return nil, fmt.Errorf("action %q: %w", cmd.Action, ErrUnknownAction)
	}
	if err != nil {
		return nil, err
	}

	metrics.IncModification(cmd.Action)
	e.logger.Info().
		Str("schedule_id", scheduleID).
		Str("action", cmd.Action).
		Float64("confidence", cmd.Confidence).
		Msg("modification applied")
	return result, nil
}

// PublishSchedule transitions a draft to published. Published schedules
// accept no further mutation through this core; changes require a new
// draft copy.
func (e *Engine) PublishSchedule(ctx context.Context, orgID, scheduleID string) (*model.Schedule, error) {
	sched, err := e.loadDraft(ctx, orgID, scheduleID)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateScheduleStatus(ctx, scheduleID, sched.Version, model.SchedulePublished); err != nil {
		return nil, err
	}
	metrics.IncSchedulesPublished()
	e.logger.Info().Str("schedule_id", scheduleID).Msg("schedule published")
	return e.store.GetSchedule(ctx, scheduleID)
}

// loadDraft fetches a schedule, confirming tenancy and draft status.
func (e *Engine) loadDraft(ctx context.Context, orgID, scheduleID string) (*model.Schedule, error) {
	if err := e.validator.ValidateRefs(ctx, orgID, tenant.Refs{}); err != nil {
		return nil, err
	}
	sched, err := e.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sched.OrgID != orgID {
		return nil, &tenant.RefError{Field: "schedule_id", ID: scheduleID}
	}
	if sched.Status == model.SchedulePublished {
		metrics.IncRejection("published")
		return nil, ErrSchedulePublished
	}
	return sched, nil
}

func (e *Engine) applyMove(ctx context.Context, sched *model.Schedule, cmd ModificationCommand) (*ModificationResult, error) {
	sessions, err := e.store.ListSessions(ctx, sched.ID)
	if err != nil {
		return nil, err
	}
	before, rest, err := splitSession(sessions, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	date, start := cmd.Date, cmd.StartTime
	if date == "" {
		date = before.Date
	}
	if start == "" {
		start = before.StartTime
	}
	if _, err := timeutil.ParseDate(date); err != nil {
		return nil, err
	}
	duration := sessionDuration(*before)
	if cmd.EndTime != "" {
		endMin, err := timeutil.ParseTimeOfDay(cmd.EndTime)
		if err != nil {
			return nil, err
		}
		startMin, err := timeutil.ParseTimeOfDay(start)
		if err != nil {
			return nil, err
		}
		duration = endMin - startMin
	}
	if duration <= 0 {
		return nil, &timeutil.ErrMalformed{Kind: "time", Value: cmd.EndTime}
	}

	after, err := e.checkPlacement(ctx, sched, rest, before.PractitionerID, before.ClientID, before.RoomID, date, start, duration)
	if err != nil {
		return nil, err
	}
	if err := e.store.ReplaceSession(ctx, sched.ID, sched.Version, before.ID, after); err != nil {
		return nil, err
	}
	return &ModificationResult{
		Action: ActionMove,
		Before: before,
		After:  after,
		Message: fmt.Sprintf("moved session from %s %s to %s %s",
			before.Date, before.StartTime, after.Date, after.StartTime),
	}, nil
}

func (e *Engine) applyCancel(ctx context.Context, sched *model.Schedule, cmd ModificationCommand) (*ModificationResult, error) {
	sessions, err := e.store.ListSessions(ctx, sched.ID)
	if err != nil {
		return nil, err
	}
	before, _, err := splitSession(sessions, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if err := e.store.RemoveSession(ctx, sched.ID, sched.Version, before.ID); err != nil {
		return nil, err
	}
	return &ModificationResult{
		Action:  ActionCancel,
		Before:  before,
		Message: fmt.Sprintf("cancelled session on %s at %s", before.Date, before.StartTime),
	}, nil
}

func (e *Engine) applyCreate(ctx context.Context, sched *model.Schedule, cmd ModificationCommand) (*ModificationResult, error) {
	if _, err := timeutil.ParseDate(cmd.Date); err != nil {
		return nil, err
	}
	startMin, err := timeutil.ParseTimeOfDay(cmd.StartTime)
	if err != nil {
		return nil, err
	}
	duration := e.cfg.DefaultDuration()
	if cmd.EndTime != "" {
		endMin, err := timeutil.ParseTimeOfDay(cmd.EndTime)
		if err != nil {
			return nil, err
		}
		duration = endMin - startMin
	}
	if duration <= 0 {
		return nil, &timeutil.ErrMalformed{Kind: "time", Value: cmd.EndTime}
	}

	sessions, err := e.store.ListSessions(ctx, sched.ID)
	if err != nil {
		return nil, err
	}
	after, err := e.checkPlacement(ctx, sched, sessions, cmd.PractitionerID, cmd.ClientID, cmd.RoomID, cmd.Date, cmd.StartTime, duration)
	if err != nil {
		return nil, err
	}
	if err := e.store.AppendSession(ctx, sched.ID, sched.Version, after); err != nil {
		return nil, err
	}
	return &ModificationResult{
		Action:  ActionCreate,
		After:   after,
		Message: fmt.Sprintf("created session on %s at %s", after.Date, after.StartTime),
	}, nil
}

// checkPlacement re-validates a concrete placement against the rest of
// the schedule using the same evaluator generation uses. The roster's
// holiday and override window only covers the schedule's own week, so
// dates outside it are rejected rather than evaluated blind.
func (e *Engine) checkPlacement(ctx context.Context, sched *model.Schedule, others []model.Session, practitionerID, clientID, roomID, date, start string, duration int) (*model.Session, error) {
	refs := tenant.Refs{PractitionerID: practitionerID, ClientID: clientID, RoomID: roomID}
	if err := e.validator.ValidateRefs(ctx, sched.OrgID, refs); err != nil {
		return nil, err
	}

	roster, err := e.loadRoster(ctx, sched.OrgID, sched.WeekStart)
	if err != nil {
		return nil, err
	}
	if !roster.containsDate(date) {
		return nil, fmt.Errorf("date %s is outside the schedule week starting %s: %w", date, sched.WeekStart, ErrInfeasible)
	}
	ev := NewEvaluator(roster)

	// The roster lists active entities only; past ValidateRefs, a miss
	// means the entity is retired, not foreign.
	p := roster.practitioner(practitionerID)
	if p == nil {
		return nil, fmt.Errorf("practitioner %s is inactive: %w", practitionerID, ErrInfeasible)
	}
	client := roster.client(clientID)
	if client == nil {
		return nil, fmt.Errorf("client %s is inactive: %w", clientID, ErrInfeasible)
	}
	var room *model.Room
	if roomID != "" {
		if room = roster.room(roomID); room == nil {
			return nil, fmt.Errorf("room %s is inactive: %w", roomID, ErrInfeasible)
		}
	}

	spec := client.EffectiveSpecs(e.cfg.DefaultDuration())[0]
	spec.SessionsPerWeek = 1
	spec.DurationMinutes = duration

	cand, err := ev.newCandidate(p, client, spec, room, date, start)
	if err != nil {
		return nil, err
	}
	if d := ev.Feasible(cand, others); !d.OK {
		return nil, fmt.Errorf("%s: %w", strings.Join(d.Reasons, "; "), ErrInfeasible)
	}
	s := cand.session(sched.ID)
	return &s, nil
}

func splitSession(sessions []model.Session, id string) (*model.Session, []model.Session, error) {
	for i := range sessions {
		if sessions[i].ID == id {
			rest := make([]model.Session, 0, len(sessions)-1)
			rest = append(rest, sessions[:i]...)
			rest = append(rest, sessions[i+1:]...)
			return &sessions[i], rest, nil
		}
	}
	return nil, nil, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
}
