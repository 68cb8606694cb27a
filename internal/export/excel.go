// Package export renders schedules as downloadable workbooks.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"caresched/internal/model"
	"caresched/internal/timeutil"
)

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

var headerColumns = []string{"Start", "End", "Client", "Practitioner", "Room"}

// Names maps entity ids to display names. Missing entries fall back to
// the raw id so a renamed or retired entity never blanks a row.
type Names struct {
	Clients       map[string]string
	Practitioners map[string]string
	Rooms         map[string]string
}

func (n Names) client(id string) string       { return orID(n.Clients, id) }
func (n Names) practitioner(id string) string { return orID(n.Practitioners, id) }
func (n Names) room(id string) string         { return orID(n.Rooms, id) }

func orID(m map[string]string, id string) string {
	if name, ok := m[id]; ok {
		return name
	}
	return id
}

// WriteWeekWorkbook writes one sheet per weekday of the schedule's
// week, sessions in start order, with a bold header row. Days without
// sessions still get their sheet so the week reads complete.
func WriteWeekWorkbook(w io.Writer, sched *model.Schedule, sessions []model.Session, tz string, names Names) error {
	week, err := timeutil.WeekDates(sched.WeekStart, tz)
	if err != nil {
		return err
	}

	byDate := make(map[string][]model.Session)
	for _, s := range sessions {
		byDate[s.Date] = append(byDate[s.Date], s)
	}
	for _, day := range byDate {
		sort.Slice(day, func(i, j int) bool {
			if day[i].StartTime != day[j].StartTime {
				return day[i].StartTime < day[j].StartTime
			}
			return day[i].ID < day[j].ID
		})
	}

	f := excelize.NewFile()
	defer f.Close()

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, date := range week {
		dow, err := timeutil.DayOfWeek(date)
		if err != nil {
			return err
		}
		sheet := fmt.Sprintf("%s %s", weekdayNames[dow], date)
		if i == 0 {
			f.SetSheetName("Sheet1", sheet)
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}

		for col, name := range headerColumns {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, name); err != nil {
				return err
			}
		}
		endCell, _ := excelize.CoordinatesToCellName(len(headerColumns), 1)
		if err := f.SetCellStyle(sheet, "A1", endCell, boldStyle); err != nil {
			return err
		}

		for row, s := range byDate[date] {
			values := []interface{}{
				s.StartTime, s.EndTime,
				names.client(s.ClientID),
				names.practitioner(s.PractitionerID),
				names.room(s.RoomID),
			}
			for col, v := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, row+2)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			}
		}
	}

	return f.Write(w)
}
