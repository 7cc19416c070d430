/*
errors.go - Centralized error types for the gym domain

PURPOSE:
  All shared error types in one place for consistency and discoverability.
  Engine packages wrap these with additional context (billing.CommitError,
  scheduling.ConflictError).

ERROR CATEGORIES:
  1. Validation errors - malformed caller input, rejected before computation
  2. Not-found errors  - dangling references in the data snapshot
  3. Store errors      - database-level failures

USAGE:
  Callers classify with errors.Is():

    if errors.Is(err, gym.ErrInvalidPeriod) {
        // 400, not 500
    }
*/
package gym

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a billing period is malformed
	// (end on or before start).
	ErrInvalidPeriod = errors.New("invalid period: end must be after start")

	// ErrPlanNotFound is returned when a membership references a missing plan.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrMemberNotFound is returned when a charge references a missing member.
	ErrMemberNotFound = errors.New("member not found")

	// ErrMembershipNotFound is returned for a dangling membership reference.
	ErrMembershipNotFound = errors.New("membership not found")

	// ErrClassNotFound is returned when a schedule references a missing class.
	ErrClassNotFound = errors.New("class not found")

	// ErrScheduleNotFound is returned for a dangling schedule reference.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrChargeNotFound is returned when a one-time charge to be billed cannot
	// be matched against any unbilled row.
	ErrChargeNotFound = errors.New("charge not found")

	// ErrLocationNotFound is returned for a dangling location reference.
	ErrLocationNotFound = errors.New("location not found")

	// ErrGymNotFound is returned for an unknown gym identifier.
	ErrGymNotFound = errors.New("gym not found")

	// ErrDuplicatePeriodCharge is the store-level backstop against two
	// concurrent commits both writing a recurring charge for the same
	// (membership, period start).
	ErrDuplicatePeriodCharge = errors.New("recurring charge already exists for period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed caller input. The engines reject it
// before any computation starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// PeriodError reports an invalid billing period.
type PeriodError struct {
	Start time.Time
	End   time.Time
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("invalid billing period: start %s must precede end %s",
		DayOf(e.Start).Format("2006-01-02"), DayOf(e.End).Format("2006-01-02"))
}

func (e *PeriodError) Unwrap() error { return ErrInvalidPeriod }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a dangling reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrMembershipNotFound) ||
		errors.Is(err, ErrClassNotFound) ||
		errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrChargeNotFound) ||
		errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, ErrGymNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrInvalidPeriod) || errors.As(err, &ve)
}
