package services

import (
	"time"

	"paycal/internal/core"
)

// GridWeeks is the number of week rows in a month grid. Six rows cover
// the worst case (a 31-day month starting on Saturday) and keep the grid
// height stable for months that would fit in four or five.
const GridWeeks = 6

const daysPerWeek = 7

// BuildMonth lays the month onto a GridWeeks x 7 grid, columns Sunday
// through Saturday, the first row beginning on the Sunday on or before
// the 1st. Each cell carries the merged events for its date (empty, not
// nil, when the date has none). The today parameter drives the IsToday
// flag; callers pass the current local date, tests pass a fixture. A
// zero today marks no cell.
func BuildMonth(year int, month time.Month, events map[string]*core.DayEvents, today core.Date) core.MonthMatrix {
	first := core.MonthStart(year, month)
	cursor := first.AddDays(-int(first.Weekday()))

	todayKey := ""
	if !today.IsZero() {
		todayKey = today.Key()
	}

	matrix := make(core.MonthMatrix, 0, GridWeeks)
	for week := 0; week < GridWeeks; week++ {
		row := make([]core.CalendarDay, 0, daysPerWeek)
		for day := 0; day < daysPerWeek; day++ {
			key := cursor.Key()
			cell := core.CalendarDay{
				Date:           cursor,
				IsCurrentMonth: cursor.Month() == month && cursor.Year() == year,
				IsToday:        key == todayKey,
			}
			if dayEvents, ok := events[key]; ok {
				cell.DayEvents = *dayEvents.Clone()
			} else {
				cell.DayEvents = *core.NewDayEvents()
			}
			row = append(row, cell)
			cursor = cursor.AddDays(1)
		}
		matrix = append(matrix, row)
	}
	return matrix
}
