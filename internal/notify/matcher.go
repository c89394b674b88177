package notify

import "memodate/internal/models"

// IsDueToday reports whether the event's alert date (occurrence minus lead
// time, in calendar days) lands exactly on today.
//
// Non-recurring events have a single occurrence on their stored date.
// Recurring events re-derive the occurrence from the stored month/day; both
// today's year and the next are candidates because a lead time can pull the
// alert window across a December→January boundary (a Jan-2 event with a
// 7-day lead alerts on Dec-26). daysBeforeAlert is clamped to 0–365 by the
// CRUD layer, so two candidate years are exhaustive.
func IsDueToday(e models.Event, today CalendarDate) bool {
	d := e.Date.UTC()

	if e.Recurring {
		for _, year := range []int{today.Year, today.Year + 1} {
			occurrence := CalendarDate{Year: year, Month: d.Month(), Day: d.Day()}
			if occurrence.AddDays(-e.DaysBeforeAlert) == today {
				return true
			}
		}
		return false
	}

	occurrence := CalendarDate{Year: d.Year(), Month: d.Month(), Day: d.Day()}
	return occurrence.AddDays(-e.DaysBeforeAlert) == today
}
