// Package model defines the scheduling domain entities shared across the core.
package model

import "time"

// EntityStatus marks whether an entity participates in scheduling.
type EntityStatus string

const (
	StatusActive   EntityStatus = "active"
	StatusInactive EntityStatus = "inactive"
)

// OverrideStatus is the review state of an availability override.
type OverrideStatus string

const (
	OverridePending  OverrideStatus = "pending"
	OverrideApproved OverrideStatus = "approved"
	OverrideRejected OverrideStatus = "rejected"
)

// ScheduleStatus tracks a schedule's mutability state.
type ScheduleStatus string

const (
	ScheduleDraft     ScheduleStatus = "draft"
	SchedulePublished ScheduleStatus = "published"
)

// RuleCategory identifies how a rule payload is interpreted.
type RuleCategory string

const (
	RuleGenderPairing   RuleCategory = "gender_pairing"
	RuleSessionShape    RuleCategory = "session"
	RuleAvailability    RuleCategory = "availability"
	RuleSpecificPairing RuleCategory = "specific_pairing"
	RuleCertification   RuleCategory = "certification"
)

// Organization is the tenant boundary. Soft-disabled, never hard-deleted.
type Organization struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Timezone  string            `json:"timezone"` // IANA name, e.g. "America/New_York"
	Labels    map[string]string `json:"labels,omitempty"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// DayHours is a weekday working window in local wall-clock time.
type DayHours struct {
	Start string `json:"start"` // "09:00"
	End   string `json:"end"`   // "17:00"
}

// Practitioner delivers sessions. WorkingHours is keyed by weekday,
// 0 = Sunday through 6 = Saturday; missing days are non-working.
type Practitioner struct {
	ID             string           `json:"id"`
	OrgID          string           `json:"org_id"`
	Name           string           `json:"name"`
	Gender         string           `json:"gender"`
	Certifications []string         `json:"certifications"`
	WorkingHours   map[int]DayHours `json:"working_hours"`
	Status         EntityStatus     `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// AvailabilityOverride removes time from a practitioner's default hours.
// An empty StartTime/EndTime pair blocks the whole day. Only approved
// overrides affect feasibility.
type AvailabilityOverride struct {
	ID             string         `json:"id"`
	OrgID          string         `json:"org_id"`
	PractitionerID string         `json:"practitioner_id"`
	Date           string         `json:"date"` // "2006-01-02", local calendar date
	StartTime      string         `json:"start_time,omitempty"`
	EndTime        string         `json:"end_time,omitempty"`
	Status         OverrideStatus `json:"status"`
	Reason         string         `json:"reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// WholeDay reports whether the override blocks the entire date.
func (o AvailabilityOverride) WholeDay() bool {
	return o.StartTime == "" || o.EndTime == ""
}

// Client receives sessions. The recurring-need fields on the client itself
// act as one implicit session specification when Specs is empty.
type Client struct {
	ID                       string        `json:"id"`
	OrgID                    string        `json:"org_id"`
	Name                     string        `json:"name"`
	Gender                   string        `json:"gender"`
	SessionsPerWeek          int           `json:"sessions_per_week"`
	RequiredCertifications   []string      `json:"required_certifications"`
	PreferredRoomID          string        `json:"preferred_room_id,omitempty"`
	RequiredRoomCapabilities []string      `json:"required_room_capabilities"`
	PreferredTimeWindows     []string      `json:"preferred_time_windows"` // morning, afternoon, evening
	GenderPreference         string        `json:"gender_preference,omitempty"`
	Status                   EntityStatus  `json:"status"`
	Specs                    []SessionSpec `json:"specs,omitempty"`
	CreatedAt                time.Time     `json:"created_at"`
	UpdatedAt                time.Time     `json:"updated_at"`
}

// SessionSpec is one named recurring requirement owned by a client.
// Empty requirement sets fall back to the owning client's sets.
type SessionSpec struct {
	ID                       string    `json:"id"`
	ClientID                 string    `json:"client_id"`
	Name                     string    `json:"name"`
	SessionsPerWeek          int       `json:"sessions_per_week"`
	DurationMinutes          int       `json:"duration_minutes"`
	RequiredCertifications   []string  `json:"required_certifications,omitempty"`
	RequiredRoomCapabilities []string  `json:"required_room_capabilities,omitempty"`
	CreatedAt                time.Time `json:"created_at"`
}

// EffectiveSpecs returns the client's stored specs, or the single implicit
// spec derived from the client's own fields when none are stored.
func (c Client) EffectiveSpecs(defaultDuration int) []SessionSpec {
	if len(c.Specs) > 0 {
		out := make([]SessionSpec, len(c.Specs))
		copy(out, c.Specs)
		for i := range out {
			if len(out[i].RequiredCertifications) == 0 {
				out[i].RequiredCertifications = c.RequiredCertifications
			}
			if len(out[i].RequiredRoomCapabilities) == 0 {
				out[i].RequiredRoomCapabilities = c.RequiredRoomCapabilities
			}
			if out[i].DurationMinutes <= 0 {
				out[i].DurationMinutes = defaultDuration
			}
		}
		return out
	}
	return []SessionSpec{{
		ID:                       c.ID + ":default",
		ClientID:                 c.ID,
		Name:                     "default",
		SessionsPerWeek:          c.SessionsPerWeek,
		DurationMinutes:          defaultDuration,
		RequiredCertifications:   c.RequiredCertifications,
		RequiredRoomCapabilities: c.RequiredRoomCapabilities,
	}}
}

// Room is a bookable space with capability tags.
type Room struct {
	ID           string       `json:"id"`
	OrgID        string       `json:"org_id"`
	Name         string       `json:"name"`
	Capabilities []string     `json:"capabilities"`
	Status       EntityStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Rule is an organization-defined preference or shape constraint. Payload
// is raw JSON interpreted per Category by the rules package; the engine
// never reads it directly.
type Rule struct {
	ID          string       `json:"id"`
	OrgID       string       `json:"org_id"`
	Category    RuleCategory `json:"category"`
	Description string       `json:"description"`
	Payload     []byte       `json:"payload"`
	Priority    int          `json:"priority"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Holiday removes an entire local calendar date org-wide.
type Holiday struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Date      string    `json:"date"` // "2006-01-02"
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Schedule is one organization's week of sessions. WeekStart is a local
// calendar date, not an instant. Version increments on every structural
// mutation for optimistic-concurrency detection.
type Schedule struct {
	ID        string         `json:"id"`
	OrgID     string         `json:"org_id"`
	WeekStart string         `json:"week_start"` // "2006-01-02"
	Status    ScheduleStatus `json:"status"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Session pairs a client and practitioner in an optional room. Times are
// local wall-clock strings so displayed times stay stable regardless of
// later timezone-policy changes.
type Session struct {
	ID             string    `json:"id"`
	ScheduleID     string    `json:"schedule_id"`
	PractitionerID string    `json:"practitioner_id"`
	ClientID       string    `json:"client_id"`
	RoomID         string    `json:"room_id,omitempty"`
	Date           string    `json:"date"`       // "2006-01-02"
	StartTime      string    `json:"start_time"` // "15:04"
	EndTime        string    `json:"end_time"`   // "15:04"
	CreatedAt      time.Time `json:"created_at"`
}

// OverlapsWith reports whether two sessions occupy intersecting
// [start, end) wall-clock intervals on the same date.
func (s Session) OverlapsWith(other Session) bool {
	if s.Date != other.Date {
		return false
	}
	return s.StartTime < other.EndTime && other.StartTime < s.EndTime
}

// HasSuperset reports whether set contains every element of required.
func HasSuperset(set, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(set))
	for _, v := range set {
		have[v] = struct{}{}
	}
	for _, v := range required {
		if _, ok := have[v]; !ok {
			return false
		}
	}
	return true
}
