package scheduling

import (
	"time"

	"github.com/clubops/gym-engine/gym"
)

// =============================================================================
// RECURRENCE EXPANSION - Pattern to concrete instances
// =============================================================================
//
// Expansion is bounded: no pattern, however malformed, may loop forever.
// maxExpansionSteps caps the walk; validation windows are at most a year,
// so the cap is never hit by well-formed input.
//
// Weekly patterns are expanded day-by-day, testing weekday membership on
// every day of an active week. Stepping a whole week at a time and
// filtering afterwards under-generates when DaysOfWeek holds more than
// one weekday - the walk must visit every matching weekday per interval,
// not just the anchor's.

const maxExpansionSteps = 1000

// Instance is one concrete occurrence of a schedule.
type Instance struct {
	ScheduleID gym.ScheduleID
	Start      time.Time
	End        time.Time
}

// ExpandInstances returns every occurrence of a schedule whose calendar day
// falls within [windowStart, windowEnd], both bounds inclusive at day
// level. The time of day is fixed from the schedule's StartDateTime; each
// instance ends classDuration later. The schedule's own EndDate (inclusive,
// date-level) further bounds the walk. Non-recurring schedules yield their
// single occurrence when it falls inside the window.
func ExpandInstances(s gym.Schedule, windowStart, windowEnd time.Time, classDuration time.Duration) []Instance {
	if classDuration <= 0 {
		classDuration = gym.DefaultClassDurationMinutes * time.Minute
	}

	if !s.Recurring || s.Pattern == nil {
		day := gym.DayOf(s.StartDateTime)
		if day.Before(gym.DayOf(windowStart)) || day.After(gym.DayOf(windowEnd)) {
			return nil
		}
		return []Instance{{ScheduleID: s.ID, Start: s.StartDateTime, End: s.StartDateTime.Add(classDuration)}}
	}

	interval := s.Pattern.Interval
	if interval < 1 {
		interval = 1
	}

	anchor := gym.DayOf(s.StartDateTime)
	from := gym.DayOf(windowStart)
	if anchor.After(from) {
		from = anchor
	}
	to := gym.DayOf(windowEnd)
	if s.EndDate != nil && gym.DayOf(*s.EndDate).Before(to) {
		to = gym.DayOf(*s.EndDate)
	}
	if to.Before(from) {
		return nil
	}

	var days []time.Time
	switch s.Pattern.Frequency {
	case gym.RecurDaily:
		days = dailyOccurrences(anchor, from, to, interval)
	case gym.RecurWeekly:
		days = weeklyOccurrences(anchor, from, to, interval, s.Pattern.DaysOfWeek, s.StartDateTime.UTC().Weekday())
	case gym.RecurMonthly:
		days = monthlyOccurrences(s.StartDateTime, from, to, interval)
	default:
		return nil
	}

	start := s.StartDateTime.UTC()
	instances := make([]Instance, 0, len(days))
	for _, day := range days {
		at := time.Date(day.Year(), day.Month(), day.Day(),
			start.Hour(), start.Minute(), start.Second(), 0, time.UTC)
		instances = append(instances, Instance{ScheduleID: s.ID, Start: at, End: at.Add(classDuration)})
	}
	return instances
}

// dailyOccurrences steps from the anchor in whole-interval jumps, emitting
// days inside [from, to]. The first occurrence on or after from is derived
// arithmetically so an anchor years in the past doesn't burn the step cap
// before the window is even reached.
func dailyOccurrences(anchor, from, to time.Time, interval int) []time.Time {
	current := anchor
	if gap := int(from.Sub(anchor).Hours() / 24); gap > 0 {
		k := (gap + interval - 1) / interval
		current = anchor.AddDate(0, 0, k*interval)
	}

	var out []time.Time
	for steps := 0; steps < maxExpansionSteps && !current.After(to); steps++ {
		out = append(out, current)
		current = current.AddDate(0, 0, interval)
	}
	return out
}

// weeklyOccurrences walks day-by-day and emits every day whose weekday is
// allowed and whose week is active for the interval. Weeks are counted
// from the Sunday on or before the anchor, so "every 2 weeks on Mon+Wed"
// emits both weekdays of each active week.
func weeklyOccurrences(anchor, from, to time.Time, interval int, daysOfWeek []time.Weekday, anchorWeekday time.Weekday) []time.Time {
	allowed := make(map[time.Weekday]bool, len(daysOfWeek))
	for _, wd := range daysOfWeek {
		allowed[wd] = true
	}
	if len(allowed) == 0 {
		allowed[anchorWeekday] = true
	}

	weekZero := startOfWeek(anchor)
	var out []time.Time
	current := from
	for steps := 0; steps < maxExpansionSteps && !current.After(to); steps++ {
		if allowed[current.Weekday()] {
			weekIndex := int(current.Sub(weekZero).Hours()/24) / 7
			if weekIndex >= 0 && weekIndex%interval == 0 {
				out = append(out, current)
			}
		}
		current = current.AddDate(0, 0, 1)
	}
	return out
}

// monthlyOccurrences re-derives each occurrence from the anchor so the day
// of month survives short months: Jan 31 every month visits Feb 28 (or 29)
// and then Mar 31, not Mar 2.
func monthlyOccurrences(anchorDateTime time.Time, from, to time.Time, interval int) []time.Time {
	anchor := gym.DayOf(anchorDateTime)
	var out []time.Time
	for k := 0; k < maxExpansionSteps; k++ {
		current := gym.AddMonthsClamped(anchor, k*interval)
		if current.After(to) {
			break
		}
		if !current.Before(from) {
			out = append(out, current)
		}
	}
	return out
}

// startOfWeek returns the Sunday on or before the given day.
func startOfWeek(day time.Time) time.Time {
	return day.AddDate(0, 0, -int(day.Weekday()))
}
