package engine

import (
	"context"
	"fmt"

	"caresched/internal/model"
	"caresched/internal/rules"
	"caresched/internal/timeutil"
)

// loadRoster assembles the working set for one organization and week.
// List order from the store is deterministic (sorted by id), which the
// candidate search depends on for reproducible output.
func (e *Engine) loadRoster(ctx context.Context, orgID, weekStart string) (*Roster, error) {
	org, err := e.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}

	week, err := timeutil.WeekDates(weekStart, org.Timezone)
	if err != nil {
		return nil, err
	}
	byWeekday := make(map[int]string, 7)
	for _, d := range week {
		dow, err := timeutil.DayOfWeek(d)
		if err != nil {
			return nil, err
		}
		byWeekday[dow] = d
	}

	practitioners, err := e.store.ListActivePractitioners(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	clients, err := e.store.ListActiveClients(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	rooms, err := e.store.ListActiveRooms(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	rawRules, err := e.store.ListActiveRules(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	holidays, err := e.store.ListHolidays(ctx, orgID, week[0], week[6])
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	holidaySet := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		holidaySet[h.Date] = true
	}

	overrides, err := e.store.ListApprovedOverrides(ctx, orgID, week)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	byPractitioner := make(map[string][]model.AvailabilityOverride)
	for _, o := range overrides {
		byPractitioner[o.PractitionerID] = append(byPractitioner[o.PractitionerID], o)
	}

	return &Roster{
		Org:           org,
		WeekStart:     weekStart,
		Week:          week,
		DateByWeekday: byWeekday,
		Practitioners: practitioners,
		Clients:       clients,
		Rooms:         rooms,
		Rules:         rules.Decode(rawRules),
		Holidays:      holidaySet,
		Overrides:     byPractitioner,
	}, nil
}

func (r *Roster) containsDate(date string) bool {
	for _, d := range r.Week {
		if d == date {
			return true
		}
	}
	return false
}

func (r *Roster) practitioner(id string) *model.Practitioner {
	for i := range r.Practitioners {
		if r.Practitioners[i].ID == id {
			return &r.Practitioners[i]
		}
	}
	return nil
}

func (r *Roster) client(id string) *model.Client {
	for i := range r.Clients {
		if r.Clients[i].ID == id {
			return &r.Clients[i]
		}
	}
	return nil
}

func (r *Roster) room(id string) *model.Room {
	for i := range r.Rooms {
		if r.Rooms[i].ID == id {
			return &r.Rooms[i]
		}
	}
	return nil
}
