/*
store.go - Persistence interfaces for the billing and scheduling engines

PURPOSE:
  Defines the boundary between the pure engines and the database. The
  engines never open connections or hold global state; they receive a
  store (dependency injection) and compute over the snapshot it returns.

KEY INTERFACES:
  BillingStore:    Snapshot reads + commit writes for the billing engine
  SchedulingStore: Schedule/class reads for the conflict checker
  Store:           Union used by the API layer, plus entity CRUD

SNAPSHOT CONTRACT:
  Read methods return copies. An engine run sees one consistent snapshot;
  it never observes writes made while it computes. Serializing the
  read-check-write sequence per (membership, period) and per (location,
  window) is the caller's job - the sqlite store adds a uniqueness index
  as a backstop for recurring charges.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - gym/store/memory.go:    In-memory for tests and dev

SEE ALSO:
  - billing/engine.go: Consumes BillingStore
  - scheduling/engine.go: Consumes SchedulingStore
*/
package gym

import (
	"context"
	"time"
)

// =============================================================================
// BILLING STORE - Snapshot reads and commit writes
// =============================================================================

// BillingStore is everything the billing engine needs. Read methods feed
// GenerateCharges; write methods are only touched by CreateChargeRecords.
type BillingStore interface {
	// ApprovedMembers returns the gym's members with status approved.
	ApprovedMembers(ctx context.Context, gymID GymID) ([]Member, error)

	// MembershipsByGym returns all memberships whose member belongs to the gym.
	MembershipsByGym(ctx context.Context, gymID GymID) ([]Membership, error)

	// PlanByID resolves a plan. Returns ErrPlanNotFound for dangling refs.
	PlanByID(ctx context.Context, id PlanID) (*Plan, error)

	// UnbilledCharges returns every charge in the gym with Billed == false.
	UnbilledCharges(ctx context.Context, gymID GymID) ([]Charge, error)

	// CreateBillingRun persists a new run record.
	CreateBillingRun(ctx context.Context, run BillingRun) error

	// InsertCharge persists a new charge row. Returns
	// ErrDuplicatePeriodCharge when the (membership, charge date) backstop
	// index rejects a recurring duplicate.
	InsertCharge(ctx context.Context, ch Charge) error

	// MarkChargeBilled finds the unbilled charge matching (member, amount,
	// charge date) and flips it to billed, stamping the run and billed date.
	// Returns ErrChargeNotFound when no row matches.
	MarkChargeBilled(ctx context.Context, memberID MemberID, amount Cents, chargeDate time.Time, runID BillingRunID, billedAt time.Time) error

	// SetMembershipLastBilled stamps a membership's lastBilledDate.
	SetMembershipLastBilled(ctx context.Context, id MembershipID, at time.Time) error
}

// =============================================================================
// SCHEDULING STORE - Read-only view for conflict checks
// =============================================================================

// SchedulingStore is everything the scheduling engine needs. The engine
// never writes; persistence of validated schedules is the caller's job.
type SchedulingStore interface {
	// SchedulesByLocation returns every schedule booked at a location.
	// Schedules at other locations never conflict and are never fetched.
	SchedulesByLocation(ctx context.Context, id LocationID) ([]Schedule, error)

	// ClassByID resolves a class for its duration. Returns ErrClassNotFound
	// for dangling refs; the engine then falls back to the default duration.
	ClassByID(ctx context.Context, id ClassID) (*Class, error)
}

// =============================================================================
// FULL STORE - Engines plus the entity CRUD the API layer needs
// =============================================================================

// Store is the full persistence surface implemented by the sqlite and
// memory stores.
type Store interface {
	BillingStore
	SchedulingStore

	// Members
	CreateMember(ctx context.Context, m Member) error
	MemberByID(ctx context.Context, id MemberID) (*Member, error)
	MembersByGym(ctx context.Context, gymID GymID) ([]Member, error)

	// Plans
	CreatePlan(ctx context.Context, p Plan) error
	PlansByGym(ctx context.Context, gymID GymID) ([]Plan, error)

	// Memberships
	CreateMembership(ctx context.Context, m Membership) error
	MembershipByID(ctx context.Context, id MembershipID) (*Membership, error)

	// Charges
	CreateCharge(ctx context.Context, ch Charge) error
	ChargesByMember(ctx context.Context, id MemberID) ([]Charge, error)

	// Billing runs
	BillingRunsByGym(ctx context.Context, gymID GymID) ([]BillingRun, error)

	// Classes and locations
	CreateClass(ctx context.Context, c Class) error
	CreateLocation(ctx context.Context, l Location) error
	LocationsByGym(ctx context.Context, gymID GymID) ([]Location, error)
	ClassesByGym(ctx context.Context, gymID GymID) ([]Class, error)

	// Schedules
	CreateSchedule(ctx context.Context, s Schedule) error
	ScheduleByID(ctx context.Context, id ScheduleID) (*Schedule, error)

	// Gyms with at least one active plan, for the billing scheduler.
	GymsWithActivePlans(ctx context.Context) ([]GymID, error)
}
