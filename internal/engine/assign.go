package engine

import (
	"context"
	"fmt"
	"sort"

	"caresched/internal/metrics"
	"caresched/internal/model"
	"caresched/internal/timeutil"
)

// GenerateSchedule builds a draft schedule for one organization and
// week. Clients are visited in id order, each session specification in
// stored order, each required occurrence in turn; the best-scoring
// feasible candidate is committed before the next occurrence is
// considered. Infeasible occurrences become warnings, never failures.
func (e *Engine) GenerateSchedule(ctx context.Context, orgID, weekStart string) (*GenerateResult, error) {
	if _, err := timeutil.ParseDate(weekStart); err != nil {
		return nil, err
	}
	roster, err := e.loadRoster(ctx, orgID, weekStart)
	if err != nil {
		return nil, err
	}
	ev := NewEvaluator(roster)

	var (
		committed []model.Session
		warnings  []string
	)
	for ci := range roster.Clients {
		client := &roster.Clients[ci]
		for _, spec := range client.EffectiveSpecs(e.cfg.DefaultDuration()) {
			committed, warnings = e.placeSpec(ev, roster, client, spec, committed, warnings)
		}
	}

	sched := &model.Schedule{OrgID: orgID, WeekStart: weekStart}
	if err := e.store.CreateScheduleWithSessions(ctx, sched, committed); err != nil {
		return nil, fmt.Errorf("persist schedule: %w", err)
	}
	persisted, err := e.store.ListSessions(ctx, sched.ID)
	if err != nil {
		return nil, fmt.Errorf("reload sessions: %w", err)
	}

	stats := summarize(persisted)
	metrics.IncSchedulesGenerated()
	metrics.AddSessionsCreated(stats.SessionsCreated)
	metrics.AddGenerationWarnings(len(warnings))
	e.logger.Info().
		Str("org_id", orgID).
		Str("week_start", weekStart).
		Int("sessions", stats.SessionsCreated).
		Int("warnings", len(warnings)).
		Msg("schedule generated")

	return &GenerateResult{
		Schedule: sched,
		Sessions: persisted,
		Stats:    stats,
		Warnings: warnings,
	}, nil
}

// placeSpec commits sessions for every required occurrence of one
// specification. High-frequency specifications first restrict the
// search to days the specification has not used yet, falling back to
// the full week only when no untouched day has a feasible candidate.
func (e *Engine) placeSpec(ev *Evaluator, roster *Roster, client *model.Client, spec model.SessionSpec, committed []model.Session, warnings []string) ([]model.Session, []string) {
	highFrequency := spec.SessionsPerWeek >= e.cfg.HighFrequencyThreshold()
	usedDays := make(map[string]bool)

	for occ := 0; occ < spec.SessionsPerWeek; occ++ {
		dates := roster.Week
		if highFrequency {
			var free []string
			for _, d := range roster.Week {
				if !usedDays[d] {
					free = append(free, d)
				}
			}
			if len(free) > 0 {
				dates = free
			}
		}

		best, found, rejected := e.searchBest(ev, roster, client, spec, committed, dates)
		if !found && highFrequency && len(dates) < len(roster.Week) {
			best, found, rejected = e.searchBest(ev, roster, client, spec, committed, roster.Week)
		}
		if !found {
			for reason, n := range rejected {
				e.logger.Debug().
					Str("client_id", client.ID).
					Str("spec", spec.Name).
					Int("candidates", n).
					Str("reason", reason).
					Msg("candidates rejected")
			}
			warning := fmt.Sprintf(
				"client %s %q: occurrence %d/%d unmet: %s",
				client.ID, spec.Name, occ+1, spec.SessionsPerWeek, dominantReason(rejected),
			)
			e.logger.Warn().Str("client_id", client.ID).Msg(warning)
			warnings = append(warnings, warning)
			continue
		}

		committed = append(committed, best.session(""))
		usedDays[best.Date] = true
	}
	return committed, warnings
}

// searchBest enumerates candidates in tie-break order (date, start
// time, practitioner id, rooms by id then roomless) and keeps the
// first strictly-best score, so equal scores resolve to the earliest
// enumeration. Returns the rejection reason tally when nothing fits.
func (e *Engine) searchBest(ev *Evaluator, roster *Roster, client *model.Client, spec model.SessionSpec, committed []model.Session, dates []string) (Candidate, bool, map[string]int) {
	var (
		best      Candidate
		bestScore float64
		found     bool
	)
	rejected := make(map[string]int)
	step := e.cfg.SlotStep()

	consider := func(c Candidate) {
		d := ev.Feasible(c, committed)
		if !d.OK {
			for _, r := range d.Reasons {
				rejected[r]++
			}
			return
		}
		score := ev.Score(c)
		if !found || score > bestScore {
			best, bestScore, found = c, score, true
		}
	}

	for _, date := range dates {
		for startMin := 0; startMin+spec.DurationMinutes <= 24*60; startMin += step {
			start := timeutil.FormatMinuteOfDay(startMin)
			for pi := range roster.Practitioners {
				p := &roster.Practitioners[pi]
				for ri := range roster.Rooms {
					c, err := ev.newCandidate(p, client, spec, &roster.Rooms[ri], date, start)
					if err != nil {
						continue
					}
					consider(c)
				}
				if len(spec.RequiredRoomCapabilities) == 0 {
					c, err := ev.newCandidate(p, client, spec, nil, date, start)
					if err != nil {
						continue
					}
					consider(c)
				}
			}
		}
	}
	return best, found, rejected
}

// dominantReason picks the most frequent rejection reason, preferring
// the lexicographically smaller on ties for determinism.
func dominantReason(rejected map[string]int) string {
	if len(rejected) == 0 {
		return "no candidate slots in week"
	}
	reasons := make([]string, 0, len(rejected))
	for r := range rejected {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	top := reasons[0]
	for _, r := range reasons[1:] {
		if rejected[r] > rejected[top] {
			top = r
		}
	}
	return top
}

func summarize(sessions []model.Session) Stats {
	clients := make(map[string]struct{})
	practitioners := make(map[string]struct{})
	for _, s := range sessions {
		clients[s.ClientID] = struct{}{}
		practitioners[s.PractitionerID] = struct{}{}
	}
	return Stats{
		SessionsCreated:   len(sessions),
		ClientsScheduled:  len(clients),
		PractitionersUsed: len(practitioners),
	}
}
