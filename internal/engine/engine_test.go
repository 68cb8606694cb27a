package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caresched/internal/config"
	"caresched/internal/model"
	"caresched/internal/store"
	"caresched/internal/tenant"
	"caresched/internal/timeutil"
)

// Monday; the week runs through Sunday 2025-03-09.
const testWeek = "2025-03-03"

func newTestEngine(t *testing.T) (*Engine, *store.Store, *model.Organization) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	org := &model.Organization{Name: "Riverbend", Timezone: "America/New_York", Active: true}
	require.NoError(t, s.CreateOrganization(context.Background(), org))

	cfg := &config.Config{}
	e := New(s, tenant.NewValidator(s, nil), cfg, zerolog.Nop())
	return e, s, org
}

// weekdayHours builds working hours for the given weekdays.
func weekdayHours(start, end string, weekdays ...int) map[int]model.DayHours {
	h := make(map[int]model.DayHours, len(weekdays))
	for _, d := range weekdays {
		h[d] = model.DayHours{Start: start, End: end}
	}
	return h
}

func addPractitioner(t *testing.T, s *store.Store, orgID, id string, certs []string, hours map[int]model.DayHours) *model.Practitioner {
	t.Helper()
	p := &model.Practitioner{
		ID: id, OrgID: orgID, Name: id,
		Certifications: certs, WorkingHours: hours,
	}
	require.NoError(t, s.CreatePractitioner(context.Background(), p))
	return p
}

func addClient(t *testing.T, s *store.Store, c *model.Client) *model.Client {
	t.Helper()
	require.NoError(t, s.CreateClient(context.Background(), c))
	return c
}

func sessionTuples(sessions []model.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, fmt.Sprintf("%s|%s|%s|%s|%s|%s",
			s.PractitionerID, s.ClientID, s.RoomID, s.Date, s.StartTime, s.EndTime))
	}
	return out
}

func assertNoDoubleBooking(t *testing.T, sessions []model.Session) {
	t.Helper()
	for i := range sessions {
		for j := i + 1; j < len(sessions); j++ {
			if !sessions[i].OverlapsWith(sessions[j]) {
				continue
			}
			assert.NotEqual(t, sessions[i].PractitionerID, sessions[j].PractitionerID,
				"practitioner double-booked: %+v vs %+v", sessions[i], sessions[j])
			if sessions[i].RoomID != "" {
				assert.NotEqual(t, sessions[i].RoomID, sessions[j].RoomID,
					"room double-booked: %+v vs %+v", sessions[i], sessions[j])
			}
			assert.NotEqual(t, sessions[i].ClientID, sessions[j].ClientID,
				"client double-booked: %+v vs %+v", sessions[i], sessions[j])
		}
	}
}

func TestGenerateScheduleCapacityScenario(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	// Two practitioners certified in X; one does not work Wednesdays.
	addPractitioner(t, s, org.ID, "p-all-week", []string{"X"}, weekdayHours("09:00", "17:00", 1, 2, 3, 4, 5))
	addPractitioner(t, s, org.ID, "p-no-wed", []string{"X"}, weekdayHours("09:00", "17:00", 1, 2, 4, 5))

	addClient(t, s, &model.Client{
		ID: "c1", OrgID: org.ID, Name: "Jordan",
		SessionsPerWeek:        3,
		RequiredCertifications: []string{"X"},
	})

	res, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)

	assert.Empty(t, res.Warnings)
	require.Len(t, res.Sessions, 3)
	assert.Equal(t, 3, res.Stats.SessionsCreated)
	assert.Equal(t, 1, res.Stats.ClientsScheduled)
	assertNoDoubleBooking(t, res.Sessions)

	// High-frequency load spreads across distinct days.
	days := make(map[string]bool)
	for _, sess := range res.Sessions {
		days[sess.Date] = true
		assert.NotEqual(t, "2025-03-08", sess.Date) // Saturday
		assert.NotEqual(t, "2025-03-09", sess.Date) // Sunday
	}
	assert.Len(t, days, 3)

	sched, err := s.GetSchedule(ctx, res.Schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleDraft, sched.Status)
}

func TestGenerateDeterministic(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	addPractitioner(t, s, org.ID, "p1", []string{"cbt"}, weekdayHours("09:00", "17:00", 1, 2, 3, 4, 5))
	addPractitioner(t, s, org.ID, "p2", []string{"cbt"}, weekdayHours("09:00", "17:00", 1, 2, 3, 4, 5))
	require.NoError(t, s.CreateRoom(ctx, &model.Room{ID: "r1", OrgID: org.ID, Name: "Blue", Capabilities: []string{"sensory"}}))

	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 2, RequiredCertifications: []string{"cbt"}})
	addClient(t, s, &model.Client{ID: "c2", OrgID: org.ID, Name: "B", SessionsPerWeek: 2, RequiredRoomCapabilities: []string{"sensory"}})

	first, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	second, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)

	assert.Equal(t, sessionTuples(first.Sessions), sessionTuples(second.Sessions))
	assert.NotEqual(t, first.Schedule.ID, second.Schedule.ID)
}

func TestGenerateWarnsAndContinues(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	addPractitioner(t, s, org.ID, "p1", []string{"cbt"}, weekdayHours("09:00", "17:00", 1, 2, 3, 4, 5))

	// c1 needs a certification nobody holds; c2 is schedulable.
	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 1, RequiredCertifications: []string{"emdr"}})
	addClient(t, s, &model.Client{ID: "c2", OrgID: org.ID, Name: "B", SessionsPerWeek: 1})

	res, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "c1")
	assert.Contains(t, res.Warnings[0], "certification")
	require.Len(t, res.Sessions, 1)
	assert.Equal(t, "c2", res.Sessions[0].ClientID)
}

func TestGenerateHonorsHolidaysAndOverrides(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	// One practitioner who only works Mondays; Monday is a holiday and
	// the spec needs one session, so the run warns.
	addPractitioner(t, s, org.ID, "p1", nil, weekdayHours("09:00", "17:00", 1))
	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 1})
	require.NoError(t, s.CreateHoliday(ctx, &model.Holiday{OrgID: org.ID, Date: testWeek, Name: "Closed"}))

	res, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	assert.Empty(t, res.Sessions)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "availability")
}

func TestGenerateAvoidPairingRule(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	hours := weekdayHours("09:00", "17:00", 1, 2, 3, 4, 5)
	addPractitioner(t, s, org.ID, "p-avoided", nil, hours)
	addPractitioner(t, s, org.ID, "p-other", nil, hours)
	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 1})

	require.NoError(t, s.CreateRule(ctx, &model.Rule{
		OrgID: org.ID, Category: model.RuleSpecificPairing, Priority: 5, Active: true,
		Payload: []byte(`{"client_id":"c1","practitioner_id":"p-avoided","affinity":"avoid"}`),
	}))

	res, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	require.Len(t, res.Sessions, 1)
	assert.Equal(t, "p-other", res.Sessions[0].PractitionerID)
}

func TestGeneratePreferredTimeWindow(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	addPractitioner(t, s, org.ID, "p1", nil, weekdayHours("09:00", "20:00", 1, 2, 3, 4, 5))
	addClient(t, s, &model.Client{
		ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 1,
		PreferredTimeWindows: []string{"evening"},
	})

	res, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	require.Len(t, res.Sessions, 1)
	assert.GreaterOrEqual(t, res.Sessions[0].StartTime, "17:00")
}

func TestGenerateSessionShapeRule(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	// Single practitioner, two clients, max one session per day: the
	// placements must land on different days.
	addPractitioner(t, s, org.ID, "p1", nil, weekdayHours("09:00", "17:00", 1, 2, 3, 4, 5))
	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 1})
	addClient(t, s, &model.Client{ID: "c2", OrgID: org.ID, Name: "B", SessionsPerWeek: 1})

	require.NoError(t, s.CreateRule(ctx, &model.Rule{
		OrgID: org.ID, Category: model.RuleSessionShape, Priority: 1, Active: true,
		Payload: []byte(`{"max_per_practitioner_per_day":1}`),
	}))

	res, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	require.Len(t, res.Sessions, 2)
	assert.NotEqual(t, res.Sessions[0].Date, res.Sessions[1].Date)
}

func TestGenerateMinGapRule(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	addPractitioner(t, s, org.ID, "p1", nil, weekdayHours("09:00", "17:00", 1))
	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 2})

	require.NoError(t, s.CreateRule(ctx, &model.Rule{
		OrgID: org.ID, Category: model.RuleSessionShape, Priority: 1, Active: true,
		Payload: []byte(`{"min_gap_minutes":30}`),
	}))

	res, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	require.Len(t, res.Sessions, 2)

	// Both land on the only working day; the 10:00 slot adjacent to the
	// first session is skipped in favor of the gap.
	assert.Equal(t, "09:00", res.Sessions[0].StartTime)
	assert.Equal(t, "10:30", res.Sessions[1].StartTime)
}

func TestGenerateMaxConsecutiveRule(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	addPractitioner(t, s, org.ID, "p1", nil, weekdayHours("09:00", "17:00", 1))
	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 2})

	require.NoError(t, s.CreateRule(ctx, &model.Rule{
		OrgID: org.ID, Category: model.RuleSessionShape, Priority: 1, Active: true,
		Payload: []byte(`{"max_consecutive_minutes":90}`),
	}))

	res, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	require.Len(t, res.Sessions, 2)

	// Back-to-back at 10:00 would make a 120-minute block; the second
	// session breaks contact instead.
	assert.Equal(t, "09:00", res.Sessions[0].StartTime)
	assert.Equal(t, "10:30", res.Sessions[1].StartTime)
}

func TestDraftCopyPartitions(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	hours := weekdayHours("09:00", "17:00", 1, 2, 3, 4, 5)
	addPractitioner(t, s, org.ID, "p1", []string{"cbt"}, hours)
	addPractitioner(t, s, org.ID, "p2", []string{"cbt"}, hours)
	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 2, RequiredCertifications: []string{"cbt"}})
	addClient(t, s, &model.Client{ID: "c2", OrgID: org.ID, Name: "B", SessionsPerWeek: 1})

	gen, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	sourceCount := len(gen.Sessions)
	require.Greater(t, sourceCount, 0)

	res, err := e.CreateDraftCopy(ctx, gen.Schedule.ID, "2025-03-10")
	require.NoError(t, err)

	// Unchanged roster: everything carries over onto the next week.
	assert.Len(t, res.Kept, sourceCount)
	assert.Empty(t, res.Regenerated)
	assert.Empty(t, res.Removed)
	assert.Equal(t, sourceCount, len(res.Kept)+len(res.Regenerated)+len(res.Removed))
	for _, sess := range res.Kept {
		assert.GreaterOrEqual(t, sess.Date, "2025-03-10")
		assert.LessOrEqual(t, sess.Date, "2025-03-16")
	}

	persisted, err := s.ListSessions(ctx, res.Schedule.ID)
	require.NoError(t, err)
	assert.Len(t, persisted, sourceCount)
	assertNoDoubleBooking(t, persisted)
}

func TestDraftCopyRegeneratesAndRemoves(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	hours := weekdayHours("09:00", "17:00", 1, 2, 3, 4, 5)
	addPractitioner(t, s, org.ID, "p1", []string{"cbt"}, hours)
	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 1, RequiredCertifications: []string{"cbt"}})
	addClient(t, s, &model.Client{ID: "c2", OrgID: org.ID, Name: "B", SessionsPerWeek: 1})

	gen, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	require.Len(t, gen.Sessions, 2)

	// p1 retires before the next week: c1's certified session has no
	// replacement, c2's does not either since p1 was the only
	// practitioner. Everything lands in removed.
	require.NoError(t, s.SetPractitionerStatus(ctx, org.ID, "p1", model.StatusInactive))

	res, err := e.CreateDraftCopy(ctx, gen.Schedule.ID, "2025-03-10")
	require.NoError(t, err)
	assert.Empty(t, res.Kept)
	assert.Empty(t, res.Regenerated)
	require.Len(t, res.Removed, 2)
	assert.Equal(t, 2, len(res.Kept)+len(res.Regenerated)+len(res.Removed))
	for _, r := range res.Removed {
		assert.NotEmpty(t, r.Reasons)
	}
	assert.Len(t, res.Warnings, 2)
}

func TestDraftCopyRegeneratesAroundOverride(t *testing.T) {
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	hours := weekdayHours("09:00", "11:00", 1)
	addPractitioner(t, s, org.ID, "p1", nil, hours)
	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 1})

	gen, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	require.Len(t, gen.Sessions, 1)
	require.Equal(t, "09:00", gen.Sessions[0].StartTime)

	// Next-week Monday morning is blocked, but 10:00 remains open: the
	// inherited slot is infeasible yet regeneration succeeds.
	require.NoError(t, s.CreateAvailabilityOverride(ctx, &model.AvailabilityOverride{
		OrgID: org.ID, PractitionerID: "p1", Date: "2025-03-10",
		StartTime: "09:00", EndTime: "10:00", Status: model.OverrideApproved,
	}))

	res, err := e.CreateDraftCopy(ctx, gen.Schedule.ID, "2025-03-10")
	require.NoError(t, err)
	assert.Empty(t, res.Kept)
	require.Len(t, res.Regenerated, 1)
	assert.Empty(t, res.Removed)
	assert.Equal(t, "10:00", res.Regenerated[0].StartTime)
}

func modificationFixture(t *testing.T) (*Engine, *store.Store, *model.Organization, *GenerateResult) {
	t.Helper()
	e, s, org := newTestEngine(t)
	ctx := context.Background()

	addPractitioner(t, s, org.ID, "p1", nil, weekdayHours("09:00", "17:00", 1, 2, 3, 4, 5))
	addClient(t, s, &model.Client{ID: "c1", OrgID: org.ID, Name: "A", SessionsPerWeek: 1})

	gen, err := e.GenerateSchedule(ctx, org.ID, testWeek)
	require.NoError(t, err)
	require.Len(t, gen.Sessions, 1)
	return e, s, org, gen
}

func TestApplyModificationLowConfidence(t *testing.T) {
	e, s, org, gen := modificationFixture(t)
	ctx := context.Background()

	_, err := e.ApplyModification(ctx, org.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionCancel, Confidence: 0.3, SessionID: gen.Sessions[0].ID,
	})
	assert.ErrorIs(t, err, ErrLowConfidence)

	// No state change: version and session set are untouched.
	sched, err := s.GetSchedule(ctx, gen.Schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, gen.Schedule.Version, sched.Version)
	sessions, err := s.ListSessions(ctx, gen.Schedule.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestApplyModificationMove(t *testing.T) {
	e, s, org, gen := modificationFixture(t)
	ctx := context.Background()
	orig := gen.Sessions[0]

	res, err := e.ApplyModification(ctx, org.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionMove, Confidence: 0.9, SessionID: orig.ID,
		Date: "2025-03-05", StartTime: "14:00",
	})
	require.NoError(t, err)

	assert.Equal(t, ActionMove, res.Action)
	require.NotNil(t, res.Before)
	require.NotNil(t, res.After)
	assert.Equal(t, orig.Date, res.Before.Date)
	assert.Equal(t, "2025-03-05", res.After.Date)
	assert.Equal(t, "14:00", res.After.StartTime)
	assert.Equal(t, "15:00", res.After.EndTime) // duration preserved

	sessions, err := s.ListSessions(ctx, gen.Schedule.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "2025-03-05", sessions[0].Date)
}

func TestApplyModificationMoveInfeasible(t *testing.T) {
	e, _, org, gen := modificationFixture(t)

	_, err := e.ApplyModification(context.Background(), org.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionMove, Confidence: 0.9, SessionID: gen.Sessions[0].ID,
		Date: "2025-03-08", StartTime: "09:00", // Saturday, outside hours
	})
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestApplyModificationCreateAndCancel(t *testing.T) {
	e, s, org, gen := modificationFixture(t)
	ctx := context.Background()

	addClient(t, s, &model.Client{ID: "c2", OrgID: org.ID, Name: "B", SessionsPerWeek: 1})

	created, err := e.ApplyModification(ctx, org.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionCreate, Confidence: 0.8,
		PractitionerID: "p1", ClientID: "c2",
		Date: "2025-03-06", StartTime: "10:00", EndTime: "10:45",
	})
	require.NoError(t, err)
	require.NotNil(t, created.After)
	assert.Nil(t, created.Before)
	assert.Equal(t, "10:45", created.After.EndTime)

	sessions, err := s.ListSessions(ctx, gen.Schedule.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	cancelled, err := e.ApplyModification(ctx, org.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionCancel, Confidence: 0.8, SessionID: created.After.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, cancelled.Before)
	assert.Nil(t, cancelled.After)

	sessions, err = s.ListSessions(ctx, gen.Schedule.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestApplyModificationOutsideWeekRejected(t *testing.T) {
	e, s, org, gen := modificationFixture(t)
	ctx := context.Background()
	orig := gen.Sessions[0]

	// The feasibility data covers the schedule's own week, so an edit
	// dated beyond it must fail even though the slot looks open; a
	// holiday on that date proves nothing outside the week is consulted.
	require.NoError(t, s.CreateHoliday(ctx, &model.Holiday{OrgID: org.ID, Date: "2025-03-12", Name: "Closed"}))

	_, err := e.ApplyModification(ctx, org.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionMove, Confidence: 0.9, SessionID: orig.ID,
		Date: "2025-03-12", StartTime: "10:00",
	})
	assert.ErrorIs(t, err, ErrInfeasible)

	_, err = e.ApplyModification(ctx, org.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionCreate, Confidence: 0.9,
		PractitionerID: "p1", ClientID: "c1",
		Date: "2025-03-12", StartTime: "10:00",
	})
	assert.ErrorIs(t, err, ErrInfeasible)

	sessions, err := s.ListSessions(ctx, gen.Schedule.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, orig.Date, sessions[0].Date)
	assert.Equal(t, orig.StartTime, sessions[0].StartTime)
}

func TestApplyModificationInactiveRefInfeasible(t *testing.T) {
	e, s, org, gen := modificationFixture(t)
	ctx := context.Background()

	addPractitioner(t, s, org.ID, "p-retired", nil, weekdayHours("09:00", "17:00", 1, 2, 3, 4, 5))
	require.NoError(t, s.SetPractitionerStatus(ctx, org.ID, "p-retired", model.StatusInactive))

	// A retired in-org practitioner is an infeasible placement, not a
	// tenancy failure.
	_, err := e.ApplyModification(ctx, org.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionCreate, Confidence: 0.9,
		PractitionerID: "p-retired", ClientID: "c1",
		Date: "2025-03-06", StartTime: "10:00",
	})
	assert.ErrorIs(t, err, ErrInfeasible)
	var re *tenant.RefError
	assert.False(t, errors.As(err, &re))
	assert.Contains(t, err.Error(), "inactive")
}

func TestApplyModificationForeignRefs(t *testing.T) {
	e, s, org, gen := modificationFixture(t)
	ctx := context.Background()

	other := &model.Organization{Name: "Other", Timezone: "UTC", Active: true}
	require.NoError(t, s.CreateOrganization(ctx, other))
	foreign := &model.Client{OrgID: other.ID, Name: "Z", SessionsPerWeek: 1}
	require.NoError(t, s.CreateClient(ctx, foreign))

	_, err := e.ApplyModification(ctx, org.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionCreate, Confidence: 0.9,
		PractitionerID: "p1", ClientID: foreign.ID,
		Date: "2025-03-06", StartTime: "10:00",
	})
	require.Error(t, err)
	var re *tenant.RefError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "client_id", re.Field)

	// Foreign schedule id is rejected the same way.
	_, err = e.ApplyModification(ctx, other.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionCancel, Confidence: 0.9, SessionID: gen.Sessions[0].ID,
	})
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "schedule_id", re.Field)
}

func TestApplyModificationUnknownAction(t *testing.T) {
	e, _, org, gen := modificationFixture(t)
	_, err := e.ApplyModification(context.Background(), org.ID, gen.Schedule.ID, ModificationCommand{
		Action: "reschedule-everything", Confidence: 0.9,
	})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestPublishSchedule(t *testing.T) {
	e, s, org, gen := modificationFixture(t)
	ctx := context.Background()

	sched, err := e.PublishSchedule(ctx, org.ID, gen.Schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SchedulePublished, sched.Status)

	_, err = e.PublishSchedule(ctx, org.ID, gen.Schedule.ID)
	assert.ErrorIs(t, err, ErrSchedulePublished)

	_, err = e.ApplyModification(ctx, org.ID, gen.Schedule.ID, ModificationCommand{
		Action: ActionCancel, Confidence: 0.9, SessionID: gen.Sessions[0].ID,
	})
	assert.ErrorIs(t, err, ErrSchedulePublished)

	sessions, err := s.ListSessions(ctx, gen.Schedule.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestGenerateMalformedWeekStart(t *testing.T) {
	e, _, org := newTestEngine(t)
	_, err := e.GenerateSchedule(context.Background(), org.ID, "03/03/2025")
	require.Error(t, err)
	var em *timeutil.ErrMalformed
	assert.True(t, errors.As(err, &em))
}
