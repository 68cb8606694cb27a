// Package timeutil is the temporal conversion layer between an
// organization's local calendar time and UTC instants. Every other
// component consumes dates and times exclusively through this package,
// so malformed input is rejected here and nowhere downstream.
package timeutil

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the wire format for local calendar dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format for local wall-clock times.
	TimeLayout = "15:04"

	minutesPerDay = 24 * 60
)

// Time-of-day windows used by client preferences.
const (
	WindowMorning   = "morning"   // [00:00, 12:00)
	WindowAfternoon = "afternoon" // [12:00, 17:00)
	WindowEvening   = "evening"   // [17:00, 24:00)
)

// ErrMalformed wraps all parse failures at the temporal boundary.
type ErrMalformed struct {
	Kind  string // "date", "time" or "timezone"
	Value string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed %s %q", e.Kind, e.Value)
}

// ParseDate validates a local calendar date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ErrMalformed{Kind: "date", Value: s}
	}
	return t, nil
}

// ParseTimeOfDay validates a wall-clock time string and returns its
// minute of day.
func ParseTimeOfDay(s string) (int, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, &ErrMalformed{Kind: "time", Value: s}
	}
	return t.Hour()*60 + t.Minute(), nil
}

// LoadLocation resolves an IANA timezone name.
func LoadLocation(tz string) (*time.Location, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, &ErrMalformed{Kind: "timezone", Value: tz}
	}
	return loc, nil
}

// ToUTC converts a local calendar date plus wall-clock time to a UTC
// instant, resolving the offset in effect at that specific instant.
// Nonexistent (spring-forward) or ambiguous (fall-back) wall-clock times
// resolve to the single interpretation time.Date picks for the location,
// which is deterministic for a given timezone database.
func ToUTC(localDate, localTime, tz string) (time.Time, error) {
	d, err := ParseDate(localDate)
	if err != nil {
		return time.Time{}, err
	}
	mod, err := ParseTimeOfDay(localTime)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	local := time.Date(d.Year(), d.Month(), d.Day(), mod/60, mod%60, 0, 0, loc)
	return local.UTC(), nil
}

// ToLocal converts a UTC instant to the local calendar date and
// wall-clock time in tz.
func ToLocal(instant time.Time, tz string) (string, string, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return "", "", err
	}
	local := instant.In(loc)
	return local.Format(DateLayout), local.Format(TimeLayout), nil
}

// DayOfWeek returns the weekday of a local calendar date,
// 0 = Sunday through 6 = Saturday.
func DayOfWeek(localDate string) (int, error) {
	d, err := ParseDate(localDate)
	if err != nil {
		return 0, err
	}
	return int(d.Weekday()), nil
}

// AddDays shifts a local calendar date by n days. Calendar arithmetic is
// offset-independent, so the timezone only matters for validation.
func AddDays(localDate string, n int, tz string) (string, error) {
	d, err := ParseDate(localDate)
	if err != nil {
		return "", err
	}
	if _, err := LoadLocation(tz); err != nil {
		return "", err
	}
	return d.AddDate(0, 0, n).Format(DateLayout), nil
}

// UTCRangeCoveringLocalDay returns the half-open UTC interval
// [start, end) spanning the full local calendar date in tz. On DST
// transition days the interval is 23 or 25 hours long.
func UTCRangeCoveringLocalDay(localDate, tz string) (time.Time, time.Time, error) {
	d, err := ParseDate(localDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC(), nil
}

// WeekDates lists the seven local calendar dates starting at weekStart.
func WeekDates(weekStart, tz string) ([]string, error) {
	d, err := ParseDate(weekStart)
	if err != nil {
		return nil, err
	}
	if _, err := LoadLocation(tz); err != nil {
		return nil, err
	}
	dates := make([]string, 7)
	for i := 0; i < 7; i++ {
		dates[i] = d.AddDate(0, 0, i).Format(DateLayout)
	}
	return dates, nil
}

// FormatMinuteOfDay renders a minute-of-day integer as "HH:MM",
// wrapping past midnight.
func FormatMinuteOfDay(mod int) string {
	mod = ((mod % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", mod/60, mod%60)
}

// AddMinutes adds n minutes to a wall-clock time with modular
// wraparound past midnight.
func AddMinutes(localTime string, n int) (string, error) {
	mod, err := ParseTimeOfDay(localTime)
	if err != nil {
		return "", err
	}
	return FormatMinuteOfDay(mod + n), nil
}

// Overlaps reports whether two [start, end) minute-of-day intervals
// intersect.
func Overlaps(start1, end1, start2, end2 int) bool {
	return start1 < end2 && start2 < end1
}

// InWindow reports whether a wall-clock start time falls inside a named
// coarse time-of-day window. Unknown window names never match.
func InWindow(localTime, window string) bool {
	mod, err := ParseTimeOfDay(localTime)
	if err != nil {
		return false
	}
	switch window {
	case WindowMorning:
		return mod < 12*60
	case WindowAfternoon:
		return mod >= 12*60 && mod < 17*60
	case WindowEvening:
		return mod >= 17*60
	default:
		return false
	}
}
