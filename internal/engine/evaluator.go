package engine

import (
	"fmt"

	"caresched/internal/model"
	"caresched/internal/rules"
	"caresched/internal/timeutil"
)

// Evaluator answers feasibility and desirability questions about
// candidates against one roster plus the sessions committed so far.
type Evaluator struct {
	roster *Roster
}

func NewEvaluator(roster *Roster) *Evaluator {
	return &Evaluator{roster: roster}
}

// newCandidate derives the minute fields once; malformed wall-clock
// strings never reach the evaluator past this point.
func (ev *Evaluator) newCandidate(p *model.Practitioner, c *model.Client, spec model.SessionSpec, room *model.Room, date, start string) (Candidate, error) {
	startMin, err := timeutil.ParseTimeOfDay(start)
	if err != nil {
		return Candidate{}, err
	}
	end, err := timeutil.AddMinutes(start, spec.DurationMinutes)
	if err != nil {
		return Candidate{}, err
	}
	dow, err := timeutil.DayOfWeek(date)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{
		Practitioner: p,
		Client:       c,
		Spec:         spec,
		Room:         room,
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		weekday:      dow,
		startMin:     startMin,
		endMin:       startMin + spec.DurationMinutes,
	}, nil
}

// Feasible enforces the unconditional hard constraints plus the
// hard-like session-shape and blocked-window rules. inProgress is the
// set of sessions already committed in this run.
func (ev *Evaluator) Feasible(c Candidate, inProgress []model.Session) Decision {
	if c.Practitioner.Status != model.StatusActive {
		return reject(fmt.Sprintf("practitioner %s is inactive", c.Practitioner.ID))
	}
	if c.Client.Status != model.StatusActive {
		return reject(fmt.Sprintf("client %s is inactive", c.Client.ID))
	}

	if ev.roster.Holidays[c.Date] {
		return reject(fmt.Sprintf("availability: %s is a holiday", c.Date))
	}

	if d := ev.insideAvailability(c); !d.OK {
		return d
	}

	required := append([]string{}, c.Spec.RequiredCertifications...)
	for _, r := range ev.roster.Rules {
		if r.Certification == nil {
			continue
		}
		if r.Certification.ClientID != "" && r.Certification.ClientID != c.Client.ID {
			continue
		}
		required = append(required, r.Certification.Certifications...)
	}
	if !model.HasSuperset(c.Practitioner.Certifications, required) {
		return reject(fmt.Sprintf("certification: practitioner %s lacks %v", c.Practitioner.ID, missing(c.Practitioner.Certifications, required)))
	}

	if len(c.Spec.RequiredRoomCapabilities) > 0 {
		if c.Room == nil {
			return reject("room capability: no room offered for a capability-constrained session")
		}
		if !model.HasSuperset(c.Room.Capabilities, c.Spec.RequiredRoomCapabilities) {
			return reject(fmt.Sprintf("room capability: room %s lacks %v", c.Room.ID, missing(c.Room.Capabilities, c.Spec.RequiredRoomCapabilities)))
		}
	}

	probe := c.session("")
	for _, s := range inProgress {
		if !probe.OverlapsWith(s) {
			continue
		}
		switch {
		case s.PractitionerID == c.Practitioner.ID:
			return reject(fmt.Sprintf("availability: practitioner %s already booked %s %s-%s", s.PractitionerID, s.Date, s.StartTime, s.EndTime))
		case c.Room != nil && s.RoomID == c.Room.ID:
			return reject(fmt.Sprintf("room capability: room %s already booked %s %s-%s", s.RoomID, s.Date, s.StartTime, s.EndTime))
		case s.ClientID == c.Client.ID:
			return reject(fmt.Sprintf("availability: client %s already booked %s %s-%s", s.ClientID, s.Date, s.StartTime, s.EndTime))
		}
	}

	if d := ev.blockedWindows(c); !d.OK {
		return d
	}
	if d := ev.sessionShape(c, inProgress); !d.OK {
		return d
	}
	return Decision{OK: true}
}

// insideAvailability checks the candidate interval against working
// hours minus approved overrides for that date.
func (ev *Evaluator) insideAvailability(c Candidate) Decision {
	hours, ok := c.Practitioner.WorkingHours[c.weekday]
	if !ok {
		return reject(fmt.Sprintf("availability: practitioner %s does not work on %s", c.Practitioner.ID, c.Date))
	}
	dayStart, err := timeutil.ParseTimeOfDay(hours.Start)
	if err != nil {
		return reject(fmt.Sprintf("availability: practitioner %s has malformed hours", c.Practitioner.ID))
	}
	dayEnd, err := timeutil.ParseTimeOfDay(hours.End)
	if err != nil {
		return reject(fmt.Sprintf("availability: practitioner %s has malformed hours", c.Practitioner.ID))
	}
	if c.startMin < dayStart || c.endMin > dayEnd {
		return reject(fmt.Sprintf("availability: %s-%s outside practitioner %s hours %s-%s", c.StartTime, c.EndTime, c.Practitioner.ID, hours.Start, hours.End))
	}

	for _, o := range ev.roster.Overrides[c.Practitioner.ID] {
		if o.Date != c.Date {
			continue
		}
		if o.WholeDay() {
			return reject(fmt.Sprintf("availability: practitioner %s is off on %s", c.Practitioner.ID, c.Date))
		}
		oStart, err1 := timeutil.ParseTimeOfDay(o.StartTime)
		oEnd, err2 := timeutil.ParseTimeOfDay(o.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if timeutil.Overlaps(c.startMin, c.endMin, oStart, oEnd) {
			return reject(fmt.Sprintf("availability: practitioner %s is off %s %s-%s", c.Practitioner.ID, o.Date, o.StartTime, o.EndTime))
		}
	}
	return Decision{OK: true}
}

// blockedWindows applies availability-category rules: recurring blocked
// wall-clock windows, optionally scoped to a practitioner or weekday.
func (ev *Evaluator) blockedWindows(c Candidate) Decision {
	for _, r := range ev.roster.Rules {
		if r.Availability == nil {
			continue
		}
		b := r.Availability
		if b.PractitionerID != "" && b.PractitionerID != c.Practitioner.ID {
			continue
		}
		if b.Weekday != nil && *b.Weekday != c.weekday {
			continue
		}
		bStart, err1 := timeutil.ParseTimeOfDay(b.StartTime)
		bEnd, err2 := timeutil.ParseTimeOfDay(b.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if timeutil.Overlaps(c.startMin, c.endMin, bStart, bEnd) {
			return reject(fmt.Sprintf("availability: window %s-%s is blocked by rule", b.StartTime, b.EndTime))
		}
	}
	return Decision{OK: true}
}

// sessionShape applies session-category rules to the practitioner's
// day as it would look with the candidate committed.
func (ev *Evaluator) sessionShape(c Candidate, inProgress []model.Session) Decision {
	var day []model.Session
	for _, s := range inProgress {
		if s.PractitionerID == c.Practitioner.ID && s.Date == c.Date {
			day = append(day, s)
		}
	}

	for _, r := range ev.roster.Rules {
		if r.SessionShape == nil {
			continue
		}
		shape := r.SessionShape

		if shape.MaxPerPractitionerPerDay > 0 && len(day)+1 > shape.MaxPerPractitionerPerDay {
			return reject(fmt.Sprintf("availability: practitioner %s at daily session limit %d", c.Practitioner.ID, shape.MaxPerPractitionerPerDay))
		}

		if shape.MinGapMinutes > 0 {
			for _, s := range day {
				sStart, err1 := timeutil.ParseTimeOfDay(s.StartTime)
				sEnd, err2 := timeutil.ParseTimeOfDay(s.EndTime)
				if err1 != nil || err2 != nil {
					continue
				}
				if timeutil.Overlaps(c.startMin-shape.MinGapMinutes, c.endMin+shape.MinGapMinutes, sStart, sEnd) {
					return reject(fmt.Sprintf("availability: less than %d minutes gap around %s-%s", shape.MinGapMinutes, s.StartTime, s.EndTime))
				}
			}
		}

		if shape.MaxConsecutiveMinutes > 0 {
			if run := consecutiveRun(day, c.startMin, c.endMin); run > shape.MaxConsecutiveMinutes {
				return reject(fmt.Sprintf("availability: %d consecutive minutes exceeds limit %d", run, shape.MaxConsecutiveMinutes))
			}
		}
	}
	return Decision{OK: true}
}

// consecutiveRun returns the length of the back-to-back block the
// candidate interval would join: existing sessions that touch it,
// directly or transitively, with zero gap.
func consecutiveRun(day []model.Session, startMin, endMin int) int {
	type span struct{ s, e int }
	spans := []span{{startMin, endMin}}
	for _, s := range day {
		a, err1 := timeutil.ParseTimeOfDay(s.StartTime)
		b, err2 := timeutil.ParseTimeOfDay(s.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		spans = append(spans, span{a, b})
	}

	run := span{startMin, endMin}
	for grew := true; grew; {
		grew = false
		for _, sp := range spans {
			if sp.s > run.e || sp.e < run.s {
				continue
			}
			if sp.s < run.s {
				run.s = sp.s
				grew = true
			}
			if sp.e > run.e {
				run.e = sp.e
				grew = true
			}
		}
	}
	return run.e - run.s
}

// Score sums soft contributions for a hard-feasible candidate. Client
// field preferences contribute a fixed base; rule contributions scale
// with rule priority so higher-priority rules dominate. Only ordering
// matters to callers.
func (ev *Evaluator) Score(c Candidate) float64 {
	var score float64

	if c.Client.PreferredRoomID != "" && c.Room != nil && c.Room.ID == c.Client.PreferredRoomID {
		score += 2
	}
	for _, w := range c.Client.PreferredTimeWindows {
		if timeutil.InWindow(c.StartTime, w) {
			score += 1
			break
		}
	}
	if c.Client.GenderPreference != "" && c.Practitioner.Gender == c.Client.GenderPreference {
		score += 1
	}

	for _, r := range ev.roster.Rules {
		weight := 1 + float64(r.Priority)
		switch {
		case r.GenderPairing != nil:
			if genderMatch(r.GenderPairing, c.Practitioner.Gender, c.Client.Gender) {
				score += weight
			}
		case r.SpecificPairing != nil:
			p := r.SpecificPairing
			if p.ClientID != c.Client.ID || p.PractitionerID != c.Practitioner.ID {
				continue
			}
			if p.Affinity == "prefer" {
				score += weight
			} else {
				score -= weight
			}
		}
	}
	return score
}

func genderMatch(p *rules.GenderPairing, practitionerGender, clientGender string) bool {
	if practitionerGender == "" || clientGender == "" {
		return false
	}
	switch p.Pairing {
	case "same":
		return practitionerGender == clientGender
	case "opposite":
		return practitionerGender != clientGender
	default:
		return practitionerGender == p.Pairing
	}
}

func missing(have, want []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, v := range have {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range want {
		if _, ok := set[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
