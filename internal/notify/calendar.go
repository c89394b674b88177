// Package notify implements the daily notification-eligibility engine:
// resolving each user's local calendar date, matching events whose alert date
// falls on it, composing push payloads and fanning them out to the user's
// subscriptions, pruning endpoints the push service reports as gone.
package notify

import (
	"fmt"
	"time"
)

// CalendarDate is a civil date: year, month and day with no time-of-day and
// no zone attached. All date arithmetic in the engine goes through this type
// so that matching is plain calendar math, never elapsed-time math.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// AddDays returns the date n calendar days after d (n may be negative).
// time.Date normalizes out-of-range days, so month and year boundaries roll
// correctly in both directions.
func (d CalendarDate) AddDays(n int) CalendarDate {
	t := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC)
	return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// LocalToday converts an absolute instant into "today" as seen in the given
// IANA timezone. An empty or unrecognized zone falls back to UTC so a single
// malformed timezone string can never abort a batch run.
func LocalToday(now time.Time, tz string) CalendarDate {
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	t := now.In(loc)
	return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}
