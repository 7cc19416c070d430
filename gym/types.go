/*
Package gym provides the core domain model for the gym billing and
scheduling engines.

PURPOSE:
  This package contains the entities both engines compute over: plans,
  memberships and charges on the billing side; classes, locations and
  schedules on the scheduling side. The engines treat every entity here
  as an immutable snapshot fetched by a store collaborator - they never
  own or mutate these records beyond the explicit commit operations
  (charge creation, lastBilledDate stamping).

KEY CONCEPTS IN THIS FILE (types.go):
  - Cents: money as integer minor currency units, end to end
  - Frequency: the billing cadence of a plan (weekly .. yearly)
  - Charge: a single monetary line item, one-time or plan-backed
  - Schedule: a one-off or recurring class booking at a location

DESIGN PRINCIPLES:
  1. Integer money: no floating point ever touches an amount
  2. Type safety: strong typing for IDs prevents mixing member/plan IDs
  3. Snapshots: engines receive read copies and return new records
  4. Auditability: every generated charge carries a note and a run reference

SEE ALSO:
  - calendar.go: Day-level temporal arithmetic shared by both engines
  - store.go: Snapshot and commit interfaces
  - billing/engine.go: Charge generation
  - scheduling/engine.go: Conflict detection and recurrence expansion
*/
package gym

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type GymID string
type MemberID string
type PlanID string
type MembershipID string
type ChargeID string
type BillingRunID string
type ClassID string
type LocationID string
type ScheduleID string

// =============================================================================
// MONEY - Integer minor currency units (cents)
// =============================================================================

// Cents is a monetary amount in minor currency units. All engine math is
// integer; proration uses decimal.Decimal internally and rounds back to Cents.
type Cents int64

// Decimal returns the amount as an exact decimal for intermediate arithmetic.
func (c Cents) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(c)) }

// String formats the amount as a major-unit string, e.g. 15333 -> "153.33".
func (c Cents) String() string {
	return decimal.NewFromInt(int64(c)).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// =============================================================================
// BILLING ENTITIES
// =============================================================================

// Frequency is the recurring cadence of a plan.
type Frequency string

const (
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// Plan is a recurring price point offered by a gym.
// Invariant: PriceCents >= 0.
type Plan struct {
	ID         PlanID
	GymID      GymID
	Name       string
	PriceCents Cents
	Period     Frequency
	Active     bool
}

// MemberStatus gates billing: only approved members are billed.
type MemberStatus string

const (
	MemberApproved  MemberStatus = "approved"
	MemberPending   MemberStatus = "pending"
	MemberSuspended MemberStatus = "suspended"
)

type Member struct {
	ID     MemberID
	GymID  GymID
	Name   string
	Email  string
	Status MemberStatus
}

// Membership links a member to a plan for a date range.
// StartDate and EndDate are inclusive calendar days; a nil EndDate means
// open-ended. LastBilledDate is nil until the first committed billing run.
// Invariant: if EndDate is set, EndDate >= StartDate.
type Membership struct {
	ID             MembershipID
	MemberID       MemberID
	PlanID         PlanID
	StartDate      time.Time
	EndDate        *time.Time
	LastBilledDate *time.Time
}

// ChargeType tags the bucket a generated charge came from.
type ChargeType string

const (
	ChargeOneTime   ChargeType = "one-time-charge"
	ChargeRecurring ChargeType = "recurring-plan"
	ChargeProrated  ChargeType = "pro-rated"
)

// Charge is a persisted monetary line item. A nil PlanID marks a one-time
// charge (personal training, late fee, ...). Invariant: AmountCents >= 0 and
// BilledDate is set iff Billed.
type Charge struct {
	ID           ChargeID
	MemberID     MemberID
	PlanID       *PlanID
	MembershipID *MembershipID
	AmountCents  Cents
	Note         string
	ChargeDate   time.Time
	Type         ChargeType
	Billed       bool
	BilledDate   *time.Time
	BillingRunID *BillingRunID
}

// BillingRun groups the charges committed for one billing period.
type BillingRun struct {
	ID          BillingRunID
	GymID       GymID
	PeriodStart time.Time
	PeriodEnd   time.Time
	CreatedAt   time.Time
}

// =============================================================================
// SCHEDULING ENTITIES
// =============================================================================

// Class describes what is being scheduled. DurationMinutes must be > 0;
// the scheduling engine falls back to 60 when a class cannot be resolved.
type Class struct {
	ID              ClassID
	GymID           GymID
	Name            string
	DurationMinutes int
}

type Location struct {
	ID    LocationID
	GymID GymID
	Name  string
}

// RecurrenceFrequency is the step unit of a recurrence pattern.
type RecurrenceFrequency string

const (
	RecurDaily   RecurrenceFrequency = "daily"
	RecurWeekly  RecurrenceFrequency = "weekly"
	RecurMonthly RecurrenceFrequency = "monthly"
)

// RecurrencePattern describes how a recurring schedule repeats.
// DaysOfWeek applies to weekly patterns only; empty means the weekday of
// the schedule's anchor StartDateTime.
type RecurrencePattern struct {
	Frequency  RecurrenceFrequency
	Interval   int
	DaysOfWeek []time.Weekday
}

// Schedule is a one-off or recurring booking of a class at a location.
// StartDateTime is the first (or only) occurrence and fixes the time of day
// for every recurring instance. EndDate, when set, is an inclusive date-level
// bound on the recurrence.
type Schedule struct {
	ID            ScheduleID
	ClassID       ClassID
	LocationID    LocationID
	StartDateTime time.Time
	Recurring     bool
	Pattern       *RecurrencePattern
	EndDate       *time.Time
}

// DefaultClassDurationMinutes is used when a schedule's class is missing.
const DefaultClassDurationMinutes = 60
