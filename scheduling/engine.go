/*
Package scheduling implements conflict validation for class schedules.

PURPOSE:
  Given a location, a start time, a duration and an optional recurrence
  rule, decide whether the proposed schedule overlaps anything already
  booked at that location. The engine is pure validation: it never
  mutates data, and a detected conflict is fatal to the create/update
  request - never retried automatically.

CONFLICT TYPES:
  direct:
    Overlap with another one-off schedule. Candidates are pre-filtered
    to start times in [start - 1h, end) - a coarse filter that assumes
    no class runs longer than 60 minutes - then tested for true overlap
    using each candidate's own class duration.

  recurring-instance:
    Overlap with one expanded occurrence of another recurring schedule.
    Only schedules whose active span covers the proposed calendar day
    are expanded.

  Two schedules at different locations never conflict, whatever their
  times. An exclude id removes the schedule being edited from both
  queries, so updates don't conflict with themselves.

SEE ALSO:
  - recurrence.go: Pattern expansion into concrete instances
  - gym/store.go: SchedulingStore interface
*/
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clubops/gym-engine/gym"
)

// =============================================================================
// ENGINE - Stateless conflict checker over a store snapshot
// =============================================================================

type Engine struct {
	Store gym.SchedulingStore
	Log   zerolog.Logger
}

func NewEngine(store gym.SchedulingStore, log zerolog.Logger) *Engine {
	return &Engine{Store: store, Log: log}
}

// directSlack is the backward pre-filter window for direct conflicts. It
// assumes no class exceeds 60 minutes; true overlap is still verified with
// the candidate's real duration.
const directSlack = time.Hour

// =============================================================================
// CONFLICT ERROR
// =============================================================================

type ConflictKind string

const (
	ConflictDirect            ConflictKind = "direct"
	ConflictRecurringInstance ConflictKind = "recurring-instance"
)

// ConflictError reports a time/location overlap with enough context for a
// caller to show an end user which booking is in the way.
type ConflictError struct {
	Kind         ConflictKind
	LocationID   gym.LocationID
	Start        time.Time
	End          time.Time
	WithSchedule gym.ScheduleID

	// Occurrence is set when validating a recurring proposal: the proposed
	// instance that collided.
	Occurrence *time.Time

	inner *ConflictError
}

func (e *ConflictError) Error() string {
	if e.Occurrence != nil && e.inner != nil {
		return fmt.Sprintf("recurring schedule conflicts on %s: %s",
			e.Occurrence.UTC().Format("2006-01-02 15:04"), e.inner.Error())
	}
	switch e.Kind {
	case ConflictRecurringInstance:
		return fmt.Sprintf("conflicts with an instance of recurring schedule %s at location %s (%s - %s)",
			e.WithSchedule, e.LocationID,
			e.Start.UTC().Format("2006-01-02 15:04"), e.End.UTC().Format("15:04"))
	default:
		return fmt.Sprintf("conflicts with schedule %s at location %s (%s - %s)",
			e.WithSchedule, e.LocationID,
			e.Start.UTC().Format("2006-01-02 15:04"), e.End.UTC().Format("15:04"))
	}
}

func (e *ConflictError) Unwrap() error {
	if e.inner != nil {
		return e.inner
	}
	return nil
}

// IsConflict reports whether err is (or wraps) a scheduling conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// =============================================================================
// VALIDATION - The single entry point for create AND update
// =============================================================================

// Proposal describes a schedule to validate. Exclude is set when editing an
// existing schedule so it doesn't conflict with itself.
type Proposal struct {
	LocationID      gym.LocationID
	Start           time.Time
	DurationMinutes int
	Pattern         *gym.RecurrencePattern
	EndDate         *time.Time
	Exclude         gym.ScheduleID
}

// ValidateSchedule checks a proposed schedule for conflicts. Returns nil on
// success or a *ConflictError describing the first collision. Non-recurring
// proposals are a single overlap check; recurring proposals are expanded
// into every instance between the start and the end date (or one year out)
// and checked instance by instance.
func (e *Engine) ValidateSchedule(ctx context.Context, p Proposal) error {
	if p.DurationMinutes <= 0 {
		return &gym.ValidationError{Field: "durationMinutes", Message: "must be positive"}
	}
	duration := time.Duration(p.DurationMinutes) * time.Minute

	if p.Pattern == nil {
		return e.CheckForConflicts(ctx, p.LocationID, p.Start, p.Start.Add(duration), p.Exclude)
	}

	windowEnd := p.Start.AddDate(0, 0, 365)
	if p.EndDate != nil {
		windowEnd = *p.EndDate
	}

	proposed := gym.Schedule{
		LocationID:    p.LocationID,
		StartDateTime: p.Start,
		Recurring:     true,
		Pattern:       p.Pattern,
		EndDate:       p.EndDate,
	}
	for _, inst := range ExpandInstances(proposed, p.Start, windowEnd, duration) {
		if err := e.CheckForConflicts(ctx, p.LocationID, inst.Start, inst.End, p.Exclude); err != nil {
			var ce *ConflictError
			if errors.As(err, &ce) {
				at := inst.Start
				return &ConflictError{
					Kind:         ce.Kind,
					LocationID:   ce.LocationID,
					Start:        ce.Start,
					End:          ce.End,
					WithSchedule: ce.WithSchedule,
					Occurrence:   &at,
					inner:        ce,
				}
			}
			return err
		}
	}
	return nil
}

// CheckForConflicts tests one concrete [start, end) slot at a location
// against every existing schedule there. exclude removes the schedule
// being edited from consideration.
func (e *Engine) CheckForConflicts(ctx context.Context, locationID gym.LocationID, start, end time.Time, exclude gym.ScheduleID) error {
	schedules, err := e.Store.SchedulesByLocation(ctx, locationID)
	if err != nil {
		return fmt.Errorf("loading schedules for location %s: %w", locationID, err)
	}

	for _, s := range schedules {
		if exclude != "" && s.ID == exclude {
			continue
		}
		if s.Recurring {
			if err := e.recurringConflict(ctx, s, locationID, start, end); err != nil {
				return err
			}
			continue
		}
		if err := e.directConflict(ctx, s, locationID, start, end); err != nil {
			return err
		}
	}
	return nil
}

// directConflict tests a one-off candidate: coarse start-time pre-filter
// first, then true overlap with the candidate's own duration.
func (e *Engine) directConflict(ctx context.Context, s gym.Schedule, locationID gym.LocationID, start, end time.Time) error {
	if s.StartDateTime.Before(start.Add(-directSlack)) || !s.StartDateTime.Before(end) {
		return nil
	}
	candEnd := s.StartDateTime.Add(e.classDuration(ctx, s.ClassID))
	if s.StartDateTime.Before(end) && candEnd.After(start) {
		return &ConflictError{
			Kind:         ConflictDirect,
			LocationID:   locationID,
			Start:        s.StartDateTime,
			End:          candEnd,
			WithSchedule: s.ID,
		}
	}
	return nil
}

// recurringConflict expands a recurring candidate for the proposed slot's
// calendar day(s) and tests true overlap per instance. The expansion
// window spans the day of start through the day of end so slots crossing
// midnight still see the next day's instances.
func (e *Engine) recurringConflict(ctx context.Context, s gym.Schedule, locationID gym.LocationID, start, end time.Time) error {
	day := gym.DayOf(start)
	if gym.DayOf(s.StartDateTime).After(gym.DayOf(end)) {
		return nil
	}
	if s.EndDate != nil && gym.DayOf(*s.EndDate).Before(day) {
		return nil
	}

	duration := e.classDuration(ctx, s.ClassID)
	for _, inst := range ExpandInstances(s, day, gym.DayOf(end), duration) {
		if inst.Start.Before(end) && inst.End.After(start) {
			return &ConflictError{
				Kind:         ConflictRecurringInstance,
				LocationID:   locationID,
				Start:        inst.Start,
				End:          inst.End,
				WithSchedule: s.ID,
			}
		}
	}
	return nil
}

// classDuration resolves a schedule's class duration, falling back to the
// default when the class is missing or malformed.
func (e *Engine) classDuration(ctx context.Context, id gym.ClassID) time.Duration {
	c, err := e.Store.ClassByID(ctx, id)
	if err != nil || c.DurationMinutes <= 0 {
		e.Log.Warn().
			Str("class_id", string(id)).
			Msg("class missing or invalid, using default duration")
		return gym.DefaultClassDurationMinutes * time.Minute
	}
	return time.Duration(c.DurationMinutes) * time.Minute
}
