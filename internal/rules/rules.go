// Package rules decodes organization rule payloads at the store boundary.
// Each category carries its own strongly-typed payload shape; unknown or
// malformed payloads are inert rather than an error, so rule data entered
// by staff can never crash the evaluator.
package rules

import (
	"encoding/json"
	"sort"

	"caresched/internal/model"
)

// GenderPairing prefers a practitioner gender relative to the client.
// Pairing is "same", "opposite", or an explicit gender value.
type GenderPairing struct {
	Pairing string `json:"pairing"`
}

// SessionShape constrains the shape of a practitioner's day. Zero fields
// are unconstrained. Violations make a schedule unusable, so these act as
// hard-like filters on top of the unconditional constraints.
type SessionShape struct {
	MinGapMinutes            int `json:"min_gap_minutes"`
	MaxPerPractitionerPerDay int `json:"max_per_practitioner_per_day"`
	MaxConsecutiveMinutes    int `json:"max_consecutive_minutes"`
}

// Availability blocks a recurring wall-clock window, optionally scoped to
// one practitioner or one weekday (0 = Sunday .. 6 = Saturday, -1 = all).
type Availability struct {
	PractitionerID string `json:"practitioner_id,omitempty"`
	Weekday        *int   `json:"weekday,omitempty"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
}

// SpecificPairing expresses affinity between one client and one
// practitioner. Affinity is "prefer" or "avoid".
type SpecificPairing struct {
	ClientID       string `json:"client_id"`
	PractitionerID string `json:"practitioner_id"`
	Affinity       string `json:"affinity"`
}

// Certification adds required certifications, org-wide or per client.
type Certification struct {
	ClientID       string   `json:"client_id,omitempty"`
	Certifications []string `json:"certifications"`
}

// Decoded is one active rule with its payload interpreted. Exactly one of
// the payload pointers is set unless Inert is true.
type Decoded struct {
	ID       string
	Category model.RuleCategory
	Priority int
	Inert    bool

	GenderPairing   *GenderPairing
	SessionShape    *SessionShape
	Availability    *Availability
	SpecificPairing *SpecificPairing
	Certification   *Certification
}

// Decode orders active rules by priority descending then creation order
// ascending (stable, deterministic) and interprets each payload.
func Decode(raw []model.Rule) []Decoded {
	active := make([]model.Rule, 0, len(raw))
	for _, r := range raw {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})

	out := make([]Decoded, 0, len(active))
	for _, r := range active {
		out = append(out, decodeOne(r))
	}
	return out
}

func decodeOne(r model.Rule) Decoded {
	d := Decoded{ID: r.ID, Category: r.Category, Priority: r.Priority}

	switch r.Category {
	case model.RuleGenderPairing:
		var p GenderPairing
		if json.Unmarshal(r.Payload, &p) != nil || p.Pairing == "" {
			d.Inert = true
			return d
		}
		d.GenderPairing = &p
	case model.RuleSessionShape:
		var p SessionShape
		if json.Unmarshal(r.Payload, &p) != nil {
			d.Inert = true
			return d
		}
		if p.MinGapMinutes <= 0 && p.MaxPerPractitionerPerDay <= 0 && p.MaxConsecutiveMinutes <= 0 {
			d.Inert = true
			return d
		}
		d.SessionShape = &p
	case model.RuleAvailability:
		var p Availability
		if json.Unmarshal(r.Payload, &p) != nil || p.StartTime == "" || p.EndTime == "" {
			d.Inert = true
			return d
		}
		d.Availability = &p
	case model.RuleSpecificPairing:
		var p SpecificPairing
		if json.Unmarshal(r.Payload, &p) != nil || p.ClientID == "" || p.PractitionerID == "" {
			d.Inert = true
			return d
		}
		if p.Affinity != "prefer" && p.Affinity != "avoid" {
			d.Inert = true
			return d
		}
		d.SpecificPairing = &p
	case model.RuleCertification:
		var p Certification
		if json.Unmarshal(r.Payload, &p) != nil || len(p.Certifications) == 0 {
			d.Inert = true
			return d
		}
		d.Certification = &p
	default:
		d.Inert = true
	}
	return d
}
