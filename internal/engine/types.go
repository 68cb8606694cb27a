// Package engine assembles weekly schedules: candidate enumeration,
// hard-constraint filtering, soft scoring, draft regeneration and
// single-session modifications. All operations are request-scoped over
// a Roster working set loaded from the store; placement within one run
// is strictly sequential because each committed session changes the
// feasibility of the next candidate.
package engine

import (
	"context"

	"github.com/rs/zerolog"

	"caresched/internal/config"
	"caresched/internal/model"
	"caresched/internal/rules"
	"caresched/internal/tenant"
)

// Storage is the slice of the entity store the engine reads and writes.
type Storage interface {
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	ListActivePractitioners(ctx context.Context, orgID string) ([]model.Practitioner, error)
	ListActiveClients(ctx context.Context, orgID string) ([]model.Client, error)
	ListActiveRooms(ctx context.Context, orgID string) ([]model.Room, error)
	ListActiveRules(ctx context.Context, orgID string) ([]model.Rule, error)
	ListHolidays(ctx context.Context, orgID, from, to string) ([]model.Holiday, error)
	ListApprovedOverrides(ctx context.Context, orgID string, dates []string) ([]model.AvailabilityOverride, error)

	CreateScheduleWithSessions(ctx context.Context, sched *model.Schedule, sessions []model.Session) error
	GetSchedule(ctx context.Context, id string) (*model.Schedule, error)
	ListSessions(ctx context.Context, scheduleID string) ([]model.Session, error)
	AppendSession(ctx context.Context, scheduleID string, expectedVersion int, sess *model.Session) error
	RemoveSession(ctx context.Context, scheduleID string, expectedVersion int, sessionID string) error
	ReplaceSession(ctx context.Context, scheduleID string, expectedVersion int, sessionID string, replacement *model.Session) error
	UpdateScheduleStatus(ctx context.Context, scheduleID string, expectedVersion int, status model.ScheduleStatus) error
}

// RefValidator confirms entity references belong to the organization.
type RefValidator interface {
	ValidateRefs(ctx context.Context, orgID string, refs tenant.Refs) error
}

// Engine is the scheduling core. One instance serves all organizations.
type Engine struct {
	store     Storage
	validator RefValidator
	cfg       *config.Config
	logger    zerolog.Logger
}

func New(store Storage, validator RefValidator, cfg *config.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
	}
}

// Roster is the in-memory working set one run operates on: the
// organization's active entities, decoded rules and the seven local
// dates of the target week.
type Roster struct {
	Org           *model.Organization
	WeekStart     string
	Week          []string       // seven consecutive local dates
	DateByWeekday map[int]string // weekday -> date within Week
	Practitioners []model.Practitioner
	Clients       []model.Client
	Rooms         []model.Room
	Rules         []rules.Decoded
	Holidays      map[string]bool
	// Overrides maps practitioner ID to that practitioner's approved
	// overrides within the week.
	Overrides map[string][]model.AvailabilityOverride
}

// Candidate is one (practitioner, client, room, slot) placement under
// consideration. Room is nil for a roomless placement. Minute fields
// are derived once at construction.
type Candidate struct {
	Practitioner *model.Practitioner
	Client       *model.Client
	Spec         model.SessionSpec
	Room         *model.Room
	Date         string
	StartTime    string
	EndTime      string

	weekday  int
	startMin int
	endMin   int
}

func (c Candidate) session(scheduleID string) model.Session {
	s := model.Session{
		ScheduleID:     scheduleID,
		PractitionerID: c.Practitioner.ID,
		ClientID:       c.Client.ID,
		Date:           c.Date,
		StartTime:      c.StartTime,
		EndTime:        c.EndTime,
	}
	if c.Room != nil {
		s.RoomID = c.Room.ID
	}
	return s
}

// Decision is the outcome of a feasibility check. Reasons is non-empty
// whenever OK is false.
type Decision struct {
	OK      bool
	Reasons []string
}

func reject(reasons ...string) Decision { return Decision{Reasons: reasons} }

// Stats aggregates one generation run.
type Stats struct {
	SessionsCreated   int `json:"sessions_created"`
	ClientsScheduled  int `json:"clients_scheduled"`
	PractitionersUsed int `json:"practitioners_used"`
}

// GenerateResult is the outcome of GenerateSchedule. Warnings carry one
// entry per unmet required occurrence; the run itself never aborts on
// infeasibility.
type GenerateResult struct {
	Schedule *model.Schedule `json:"schedule"`
	Sessions []model.Session `json:"sessions"`
	Stats    Stats           `json:"stats"`
	Warnings []string        `json:"warnings"`
}

// RemovedSession is an inherited session that could not be carried into
// the target week, with the reasons it was dropped.
type RemovedSession struct {
	Session model.Session `json:"session"`
	Reasons []string      `json:"reasons"`
}

// DraftCopyResult partitions every inherited session into exactly one
// of Kept, Regenerated or Removed.
type DraftCopyResult struct {
	Schedule    *model.Schedule  `json:"schedule"`
	Kept        []model.Session  `json:"kept"`
	Regenerated []model.Session  `json:"regenerated"`
	Removed     []RemovedSession `json:"removed"`
	Warnings    []string         `json:"warnings"`
}

// Modification actions.
const (
	ActionMove   = "move"
	ActionCancel = "cancel"
	ActionCreate = "create"
)

// ModificationCommand is an already-parsed structured edit of one
// schedule. Confidence comes from the upstream parser and is enforced
// against the configured floor before anything is touched.
type ModificationCommand struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`

	SessionID string `json:"session_id,omitempty"` // move, cancel

	Date      string `json:"date,omitempty"`       // move, create
	StartTime string `json:"start_time,omitempty"` // move, create
	EndTime   string `json:"end_time,omitempty"`   // move, create

	PractitionerID string `json:"practitioner_id,omitempty"` // create
	ClientID       string `json:"client_id,omitempty"`       // create
	RoomID         string `json:"room_id,omitempty"`         // create
}

// ModificationResult reports the concrete before/after state so a
// caller can render a diff. Before is nil for create, After is nil for
// cancel.
type ModificationResult struct {
	Action  string         `json:"action"`
	Before  *model.Session `json:"before,omitempty"`
	After   *model.Session `json:"after,omitempty"`
	Message string         `json:"message"`
}
