package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubops/gym-engine/gym"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func starts(instances []Instance) []time.Time {
	out := make([]time.Time, len(instances))
	for i, inst := range instances {
		out[i] = inst.Start
	}
	return out
}

func recurring(id string, start time.Time, pattern gym.RecurrencePattern, endDate *time.Time) gym.Schedule {
	return gym.Schedule{
		ID: gym.ScheduleID(id), ClassID: yogaClass, LocationID: studioA,
		StartDateTime: start, Recurring: true, Pattern: &pattern, EndDate: endDate,
	}
}

// =============================================================================
// NON-RECURRING
// =============================================================================

func TestExpandInstances_OneOffInsideWindow(t *testing.T) {
	s := gym.Schedule{ID: "s1", ClassID: yogaClass, LocationID: studioA,
		StartDateTime: at(2025, 9, 8, 9, 0)}

	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 30), time.Hour)

	require.Len(t, instances, 1)
	assert.Equal(t, at(2025, 9, 8, 9, 0), instances[0].Start)
	assert.Equal(t, at(2025, 9, 8, 10, 0), instances[0].End)
}

func TestExpandInstances_OneOffOutsideWindow(t *testing.T) {
	s := gym.Schedule{ID: "s1", StartDateTime: at(2025, 10, 8, 9, 0)}

	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 30), time.Hour)

	assert.Empty(t, instances)
}

// =============================================================================
// DAILY
// =============================================================================

func TestExpandInstances_DailyEveryOtherDay(t *testing.T) {
	// GIVEN an every-2-days 7:00 class anchored Sept 1
	s := recurring("s1", at(2025, 9, 1, 7, 0),
		gym.RecurrencePattern{Frequency: gym.RecurDaily, Interval: 2}, nil)

	// WHEN expanding Sept 1 .. Sept 8
	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 8), time.Hour)

	// THEN occurrences land on the odd days at the anchor time
	assert.Equal(t, []time.Time{
		at(2025, 9, 1, 7, 0), at(2025, 9, 3, 7, 0),
		at(2025, 9, 5, 7, 0), at(2025, 9, 7, 7, 0),
	}, starts(instances))
}

func TestExpandInstances_DailyWindowFarFromAnchor(t *testing.T) {
	// GIVEN a daily-every-3-days schedule anchored years before the window
	s := recurring("s1", at(2020, 1, 1, 7, 0),
		gym.RecurrencePattern{Frequency: gym.RecurDaily, Interval: 3}, nil)

	// WHEN expanding a week far from the anchor
	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 7), time.Hour)

	// THEN the walk reaches the window and every emitted day keeps phase
	// with the anchor
	require.NotEmpty(t, instances)
	for _, inst := range instances {
		gap := int(inst.Start.Sub(day(2020, 1, 1)).Hours() / 24)
		assert.Zero(t, gap%3)
	}
}

// =============================================================================
// WEEKLY
// =============================================================================

func TestExpandInstances_WeeklyMultipleDays(t *testing.T) {
	// GIVEN Mon+Wed 18:00 anchored Monday Sept 1
	s := recurring("s1", at(2025, 9, 1, 18, 0), gym.RecurrencePattern{
		Frequency: gym.RecurWeekly, Interval: 1,
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday},
	}, nil)

	// WHEN expanding two weeks
	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 14), time.Hour)

	// THEN BOTH weekdays of each week appear, not just the anchor's
	assert.Equal(t, []time.Time{
		at(2025, 9, 1, 18, 0), at(2025, 9, 3, 18, 0),
		at(2025, 9, 8, 18, 0), at(2025, 9, 10, 18, 0),
	}, starts(instances))
}

func TestExpandInstances_WeeklyDefaultsToAnchorWeekday(t *testing.T) {
	// GIVEN a weekly pattern with no explicit days, anchored a Thursday
	s := recurring("s1", at(2025, 9, 4, 12, 0),
		gym.RecurrencePattern{Frequency: gym.RecurWeekly, Interval: 1}, nil)

	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 18), time.Hour)

	assert.Equal(t, []time.Time{
		at(2025, 9, 4, 12, 0), at(2025, 9, 11, 12, 0), at(2025, 9, 18, 12, 0),
	}, starts(instances))
}

func TestExpandInstances_BiweeklySkipsOffWeeks(t *testing.T) {
	// GIVEN an every-2-weeks Monday class anchored Monday Sept 1
	s := recurring("s1", at(2025, 9, 1, 9, 0), gym.RecurrencePattern{
		Frequency: gym.RecurWeekly, Interval: 2, DaysOfWeek: []time.Weekday{time.Monday},
	}, nil)

	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 30), time.Hour)

	// Sept 8 and Sept 22 are off weeks
	assert.Equal(t, []time.Time{
		at(2025, 9, 1, 9, 0), at(2025, 9, 15, 9, 0), at(2025, 9, 29, 9, 0),
	}, starts(instances))
}

func TestExpandInstances_EndDateTruncates(t *testing.T) {
	end := day(2025, 9, 10)
	s := recurring("s1", at(2025, 9, 1, 9, 0), gym.RecurrencePattern{
		Frequency: gym.RecurWeekly, Interval: 1, DaysOfWeek: []time.Weekday{time.Monday},
	}, &end)

	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 30), time.Hour)

	// Sept 15+ is past the schedule's own end date
	assert.Equal(t, []time.Time{
		at(2025, 9, 1, 9, 0), at(2025, 9, 8, 9, 0),
	}, starts(instances))
}

// =============================================================================
// MONTHLY
// =============================================================================

func TestExpandInstances_MonthlyKeepsDayOfMonth(t *testing.T) {
	s := recurring("s1", at(2025, 9, 15, 10, 0),
		gym.RecurrencePattern{Frequency: gym.RecurMonthly, Interval: 1}, nil)

	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 12, 31), time.Hour)

	assert.Equal(t, []time.Time{
		at(2025, 9, 15, 10, 0), at(2025, 10, 15, 10, 0),
		at(2025, 11, 15, 10, 0), at(2025, 12, 15, 10, 0),
	}, starts(instances))
}

func TestExpandInstances_MonthlyClampsShortMonths(t *testing.T) {
	// GIVEN a monthly class anchored Jan 31
	s := recurring("s1", at(2025, 1, 31, 10, 0),
		gym.RecurrencePattern{Frequency: gym.RecurMonthly, Interval: 1}, nil)

	// WHEN expanding through March
	instances := ExpandInstances(s, day(2025, 1, 1), day(2025, 3, 31), time.Hour)

	// THEN February clamps to the 28th and March recovers the 31st
	assert.Equal(t, []time.Time{
		at(2025, 1, 31, 10, 0), at(2025, 2, 28, 10, 0), at(2025, 3, 31, 10, 0),
	}, starts(instances))
}

// =============================================================================
// BOUNDS AND DEFAULTS
// =============================================================================

func TestExpandInstances_AnchorAfterWindowYieldsNothing(t *testing.T) {
	s := recurring("s1", at(2025, 10, 1, 9, 0),
		gym.RecurrencePattern{Frequency: gym.RecurDaily, Interval: 1}, nil)

	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 30), time.Hour)

	assert.Empty(t, instances)
}

func TestExpandInstances_ZeroIntervalTreatedAsOne(t *testing.T) {
	s := recurring("s1", at(2025, 9, 1, 9, 0),
		gym.RecurrencePattern{Frequency: gym.RecurDaily, Interval: 0}, nil)

	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 3), time.Hour)

	assert.Len(t, instances, 3)
}

func TestExpandInstances_ExpansionIsCapped(t *testing.T) {
	// GIVEN a daily schedule and a window spanning many years
	s := recurring("s1", at(2020, 1, 1, 9, 0),
		gym.RecurrencePattern{Frequency: gym.RecurDaily, Interval: 1}, nil)

	instances := ExpandInstances(s, day(2020, 1, 1), day(2030, 1, 1), time.Hour)

	// THEN the walk stops at the step cap instead of looping for a decade
	assert.Len(t, instances, 1000)
}

func TestExpandInstances_UnknownFrequencyYieldsNothing(t *testing.T) {
	s := recurring("s1", at(2025, 9, 1, 9, 0),
		gym.RecurrencePattern{Frequency: "fortnightly", Interval: 1}, nil)

	assert.Empty(t, ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 30), time.Hour))
}

func TestExpandInstances_NonPositiveDurationUsesDefault(t *testing.T) {
	s := gym.Schedule{ID: "s1", StartDateTime: at(2025, 9, 8, 9, 0)}

	instances := ExpandInstances(s, day(2025, 9, 1), day(2025, 9, 30), 0)

	require.Len(t, instances, 1)
	assert.Equal(t, at(2025, 9, 8, 10, 0), instances[0].End)
}
