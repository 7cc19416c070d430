package gym

import (
	"fmt"
	"time"
)

// =============================================================================
// CALENDAR ARITHMETIC - Day-level conventions shared by both engines
// =============================================================================
//
// All day boundaries are computed in UTC: a "day" is the UTC calendar date
// of an instant, regardless of where the caller's timestamps came from.
// Pick one convention and apply it everywhere - mixed local/UTC truncation
// is how off-by-one-day billing bugs are born.

// DayOf truncates an instant to UTC midnight.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two instants fall on the same UTC calendar date.
func SameDay(a, b time.Time) bool { return DayOf(a).Equal(DayOf(b)) }

// DaysBetweenInclusive counts calendar days from a through b with BOTH
// endpoints included: Sept 15 .. Sept 30 is 16 days. Returns 0 when b is
// before a.
func DaysBetweenInclusive(a, b time.Time) int {
	da, db := DayOf(a), DayOf(b)
	if db.Before(da) {
		return 0
	}
	return int(db.Sub(da).Hours()/24) + 1
}

// ActiveDaysInWindow counts the days an entity lifespan [entityStart,
// entityEnd] overlaps a window [windowStart, windowEnd], inclusive on all
// ends. A nil entityEnd means open-ended (bounded by the window).
func ActiveDaysInWindow(entityStart time.Time, entityEnd *time.Time, windowStart, windowEnd time.Time) int {
	start := DayOf(entityStart)
	end := DayOf(windowEnd)
	if entityEnd != nil && DayOf(*entityEnd).Before(end) {
		end = DayOf(*entityEnd)
	}
	if DayOf(windowStart).After(start) {
		start = DayOf(windowStart)
	}
	if DayOf(windowEnd).Before(end) {
		end = DayOf(windowEnd)
	}
	if end.Before(start) {
		return 0
	}
	return DaysBetweenInclusive(start, end)
}

// PriorMonthWindow returns the calendar month immediately before the month
// of periodStart, as an inclusive [1st, last day] period. Billing treats
// this window as a fixed 30-day unit regardless of the month's actual
// length (28-31 days) - a deliberate convention, not a bug.
func PriorMonthWindow(periodStart time.Time) Period {
	firstOfThisMonth := time.Date(periodStart.UTC().Year(), periodStart.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	end := firstOfThisMonth.AddDate(0, 0, -1)
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: end}
}

// FixedMonthDays is the day count every prior-month window bills against.
const FixedMonthDays = 30

// TrailingWindow returns the inclusive window [periodStart - n days,
// periodStart]. Because both endpoints count, the window spans n+1 days:
// TrailingWindow(Sept 8, 7) is Sept 1 .. Sept 8, an 8-day window.
// Used for weekly/quarterly/yearly proration.
func TrailingWindow(periodStart time.Time, n int) Period {
	end := DayOf(periodStart)
	return Period{Start: end.AddDate(0, 0, -n), End: end}
}

// =============================================================================
// PERIOD - Inclusive day-level date range
// =============================================================================

// Period is an inclusive [Start, End] range of calendar days.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the day of t falls within the period.
func (p Period) Contains(t time.Time) bool {
	d := DayOf(t)
	return !d.Before(DayOf(p.Start)) && !d.After(DayOf(p.End))
}

// Days returns the inclusive day count of the period.
func (p Period) Days() int { return DaysBetweenInclusive(p.Start, p.End) }

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s]", DayOf(p.Start).Format("2006-01-02"), DayOf(p.End).Format("2006-01-02"))
}

// =============================================================================
// MONTH STEPPING - End-of-month aware month arithmetic
// =============================================================================

// AddMonthsClamped advances t by n months, clamping the day of month when the
// target month is shorter: Jan 31 + 1 month is the last day of February, not
// March 2/3 (which is what time.AddDate would produce).
func AddMonthsClamped(t time.Time, n int) time.Time {
	u := t.UTC()
	year, month := u.Year(), int(u.Month())
	month += n
	year += (month - 1) / 12
	month = (month-1)%12 + 1
	if month <= 0 {
		month += 12
		year--
	}
	day := u.Day()
	if last := lastDayOfMonth(year, time.Month(month)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day,
		u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
