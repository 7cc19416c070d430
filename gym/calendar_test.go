package gym

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDayOf(t *testing.T) {
	// GIVEN an instant with a time-of-day component
	at := time.Date(2025, 9, 8, 17, 42, 9, 123, time.UTC)

	// WHEN truncating to a day
	day := DayOf(at)

	// THEN the result is UTC midnight of the same date
	assert.Equal(t, date(2025, 9, 8), day)
}

func TestDayOf_NonUTCInput(t *testing.T) {
	// GIVEN an instant in a western timezone late in its local evening
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2025, 9, 8, 23, 0, 0, 0, loc)

	// THEN the day is the UTC calendar date, which has already rolled over
	assert.Equal(t, date(2025, 9, 9), DayOf(at))
}

func TestDaysBetweenInclusive(t *testing.T) {
	// Both endpoints count: Sept 15 .. Sept 30 is 16 days.
	assert.Equal(t, 16, DaysBetweenInclusive(date(2025, 9, 15), date(2025, 9, 30)))
	assert.Equal(t, 1, DaysBetweenInclusive(date(2025, 9, 15), date(2025, 9, 15)))
	assert.Equal(t, 0, DaysBetweenInclusive(date(2025, 9, 16), date(2025, 9, 15)))
}

func TestActiveDaysInWindow(t *testing.T) {
	windowStart := date(2025, 9, 1)
	windowEnd := date(2025, 9, 30)

	t.Run("mid-window join, open-ended", func(t *testing.T) {
		// Joined Sept 15, still active: Sept 15 .. Sept 30 = 16 days.
		got := ActiveDaysInWindow(date(2025, 9, 15), nil, windowStart, windowEnd)
		assert.Equal(t, 16, got)
	})

	t.Run("started before window", func(t *testing.T) {
		got := ActiveDaysInWindow(date(2025, 7, 1), nil, windowStart, windowEnd)
		assert.Equal(t, 30, got)
	})

	t.Run("ended inside window", func(t *testing.T) {
		end := date(2025, 9, 10)
		got := ActiveDaysInWindow(date(2025, 7, 1), &end, windowStart, windowEnd)
		assert.Equal(t, 10, got)
	})

	t.Run("no overlap", func(t *testing.T) {
		end := date(2025, 8, 20)
		got := ActiveDaysInWindow(date(2025, 8, 1), &end, windowStart, windowEnd)
		assert.Equal(t, 0, got)
	})
}

func TestPriorMonthWindow(t *testing.T) {
	// GIVEN a period starting Oct 1
	w := PriorMonthWindow(date(2025, 10, 1))

	// THEN the window is all of September
	assert.Equal(t, date(2025, 9, 1), w.Start)
	assert.Equal(t, date(2025, 9, 30), w.End)
}

func TestPriorMonthWindow_JanuaryWrapsToDecember(t *testing.T) {
	w := PriorMonthWindow(date(2026, 1, 5))
	assert.Equal(t, date(2025, 12, 1), w.Start)
	assert.Equal(t, date(2025, 12, 31), w.End)
}

func TestTrailingWindow(t *testing.T) {
	// TrailingWindow(Sept 8, 7) is Sept 1 .. Sept 8: 8 countable days.
	w := TrailingWindow(date(2025, 9, 8), 7)
	assert.Equal(t, date(2025, 9, 1), w.Start)
	assert.Equal(t, date(2025, 9, 8), w.End)
	assert.Equal(t, 8, w.Days())
}

func TestPeriodContains(t *testing.T) {
	p := Period{Start: date(2025, 9, 1), End: date(2025, 9, 30)}
	assert.True(t, p.Contains(date(2025, 9, 1)))
	assert.True(t, p.Contains(time.Date(2025, 9, 30, 23, 59, 0, 0, time.UTC)))
	assert.False(t, p.Contains(date(2025, 10, 1)))
	assert.False(t, p.Contains(date(2025, 8, 31)))
}

func TestAddMonthsClamped(t *testing.T) {
	t.Run("clamps into short months", func(t *testing.T) {
		// Jan 31 + 1 month is Feb 28 (2025 is not a leap year).
		assert.Equal(t, date(2025, 2, 28), AddMonthsClamped(date(2025, 1, 31), 1))
	})

	t.Run("recovers the anchor day after a short month", func(t *testing.T) {
		// Jan 31 + 2 months is Mar 31, not Mar 2 or Mar 3.
		assert.Equal(t, date(2025, 3, 31), AddMonthsClamped(date(2025, 1, 31), 2))
	})

	t.Run("leap february", func(t *testing.T) {
		assert.Equal(t, date(2024, 2, 29), AddMonthsClamped(date(2024, 1, 31), 1))
	})

	t.Run("plain days pass through", func(t *testing.T) {
		assert.Equal(t, date(2025, 4, 15), AddMonthsClamped(date(2025, 1, 15), 3))
	})
}
