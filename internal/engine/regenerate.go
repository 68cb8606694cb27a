package engine

import (
	"context"
	"fmt"
	"strings"

	"caresched/internal/metrics"
	"caresched/internal/model"
	"caresched/internal/timeutil"
)

// CreateDraftCopy carries an existing schedule into a new week. Each
// inherited session maps onto the same weekday of the target week and
// is re-checked; every inherited session lands in exactly one of the
// kept, regenerated or removed partitions.
func (e *Engine) CreateDraftCopy(ctx context.Context, sourceScheduleID, targetWeekStart string) (*DraftCopyResult, error) {
	if _, err := timeutil.ParseDate(targetWeekStart); err != nil {
		return nil, err
	}
	source, err := e.store.GetSchedule(ctx, sourceScheduleID)
	if err != nil {
		return nil, fmt.Errorf("load source schedule: %w", err)
	}
	inherited, err := e.store.ListSessions(ctx, sourceScheduleID)
	if err != nil {
		return nil, fmt.Errorf("load source sessions: %w", err)
	}

	roster, err := e.loadRoster(ctx, source.OrgID, targetWeekStart)
	if err != nil {
		return nil, err
	}
	ev := NewEvaluator(roster)

	var (
		committed   []model.Session
		kept        []model.Session
		regenerated []model.Session
		removed     []RemovedSession
		warnings    []string
	)
	for _, old := range inherited {
		dow, err := timeutil.DayOfWeek(old.Date)
		if err != nil {
			removed = append(removed, RemovedSession{Session: old, Reasons: []string{err.Error()}})
			continue
		}
		targetDate := roster.DateByWeekday[dow]

		carried, reasons := e.carrySession(ev, roster, old, targetDate, committed)
		if carried != nil {
			committed = append(committed, *carried)
			kept = append(kept, *carried)
			continue
		}

		replacement, regenReasons := e.regenerateFor(ev, roster, old, committed)
		if replacement != nil {
			committed = append(committed, *replacement)
			regenerated = append(regenerated, *replacement)
			continue
		}

		reasons = append(reasons, regenReasons...)
		removed = append(removed, RemovedSession{Session: old, Reasons: reasons})
		warnings = append(warnings, fmt.Sprintf(
			"session %s (client %s) dropped: %s", old.ID, old.ClientID, strings.Join(reasons, "; "),
		))
	}

	sched := &model.Schedule{OrgID: source.OrgID, WeekStart: targetWeekStart}
	if err := e.store.CreateScheduleWithSessions(ctx, sched, committed); err != nil {
		return nil, fmt.Errorf("persist draft copy: %w", err)
	}

	metrics.IncDraftCopies()
	e.logger.Info().
		Str("source_schedule_id", sourceScheduleID).
		Str("week_start", targetWeekStart).
		Int("kept", len(kept)).
		Int("regenerated", len(regenerated)).
		Int("removed", len(removed)).
		Msg("draft copy created")

	return &DraftCopyResult{
		Schedule:    sched,
		Kept:        kept,
		Regenerated: regenerated,
		Removed:     removed,
		Warnings:    warnings,
	}, nil
}

// carrySession tries the inherited (practitioner, client, room) triple
// at the inherited time on the target date.
func (e *Engine) carrySession(ev *Evaluator, roster *Roster, old model.Session, targetDate string, committed []model.Session) (*model.Session, []string) {
	p := roster.practitioner(old.PractitionerID)
	if p == nil {
		return nil, []string{fmt.Sprintf("practitioner %s no longer active", old.PractitionerID)}
	}
	client := roster.client(old.ClientID)
	if client == nil {
		return nil, []string{fmt.Sprintf("client %s no longer active", old.ClientID)}
	}
	var room *model.Room
	if old.RoomID != "" {
		if room = roster.room(old.RoomID); room == nil {
			return nil, []string{fmt.Sprintf("room %s no longer active", old.RoomID)}
		}
	}

	spec, ok := sessionSpecOf(client, old, e.cfg.DefaultDuration())
	if !ok {
		return nil, []string{fmt.Sprintf("client %s session length changed", old.ClientID)}
	}
	cand, err := ev.newCandidate(p, client, spec, room, targetDate, old.StartTime)
	if err != nil {
		return nil, []string{err.Error()}
	}
	if d := ev.Feasible(cand, committed); !d.OK {
		return nil, d.Reasons
	}
	s := cand.session("")
	return &s, nil
}

// regenerateFor reruns the single-client candidate search for a session
// whose inherited triple is infeasible on the new date.
func (e *Engine) regenerateFor(ev *Evaluator, roster *Roster, old model.Session, committed []model.Session) (*model.Session, []string) {
	client := roster.client(old.ClientID)
	if client == nil {
		return nil, nil
	}
	spec, ok := sessionSpecOf(client, old, e.cfg.DefaultDuration())
	if !ok {
		return nil, nil
	}
	best, found, rejected := e.searchBest(ev, roster, client, spec, committed, roster.Week)
	if !found {
		return nil, []string{"regeneration found no feasible candidate: " + dominantReason(rejected)}
	}
	s := best.session("")
	return &s, nil
}

// sessionSpecOf reconstructs the specification an inherited session was
// placed under, matching by duration against the client's effective
// specs. SessionsPerWeek is irrelevant for a single placement.
func sessionSpecOf(client *model.Client, old model.Session, defaultDuration int) (model.SessionSpec, bool) {
	duration := sessionDuration(old)
	if duration <= 0 {
		return model.SessionSpec{}, false
	}
	specs := client.EffectiveSpecs(defaultDuration)
	for _, spec := range specs {
		if spec.DurationMinutes == duration {
			spec.SessionsPerWeek = 1
			return spec, true
		}
	}
	spec := specs[0]
	spec.SessionsPerWeek = 1
	spec.DurationMinutes = duration
	return spec, true
}

func sessionDuration(s model.Session) int {
	start, err1 := timeutil.ParseTimeOfDay(s.StartTime)
	end, err2 := timeutil.ParseTimeOfDay(s.EndTime)
	if err1 != nil || err2 != nil {
		return 0
	}
	return end - start
}
