/*
Package billing implements the charge generation engine.

PURPOSE:
  Given a gym and a billing period, compute every charge due: one-time
  charges that were never billed, recurring plan charges for the new
  period, and pro-rated catch-up charges for memberships that started or
  ended mid-period. Generation is a pure preview - running it twice for
  the same period produces identical results and writes nothing. The
  commit step (commit.go) is the only place records are persisted.

CHARGE BUCKETS:
  one-time-charge:
    Existing unbilled charges with no plan reference, surfaced regardless
    of age as long as they fall on or before the period end.

  recurring-plan:
    One full-price charge per eligible membership, dated at the period
    start. A grace window keyed by plan frequency suppresses memberships
    billed recently enough to already cover this period.

  pro-rated:
    Catch-up for never-billed memberships that joined or departed inside
    the prior window. Monthly plans bill against the prior calendar month
    as a fixed 30-day unit; other frequencies bill against a trailing
    window of their natural length.

DATA INTEGRITY:
  A membership referencing a missing or inactive plan, or a charge
  referencing a missing member, is logged and skipped - never fatal to
  the whole run.

SEE ALSO:
  - proration.go: Window selection and exact amount arithmetic
  - commit.go: Persisting a generated run
  - gym/calendar.go: Day-counting conventions
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clubops/gym-engine/gym"
)

// =============================================================================
// ENGINE - Stateless charge generator over a store snapshot
// =============================================================================

// Engine generates and commits billing charges. It holds no state beyond
// its collaborators; every operation computes over a fresh store snapshot.
type Engine struct {
	Store gym.BillingStore
	Log   zerolog.Logger

	// Now is the commit clock. Overridable in tests; defaults to time.Now.
	Now func() time.Time
}

func NewEngine(store gym.BillingStore, log zerolog.Logger) *Engine {
	return &Engine{Store: store, Log: log, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// ChargeItem is one generated charge descriptor. It references entities by
// ID only; nothing is persisted until commit.
type ChargeItem struct {
	MemberID     gym.MemberID
	PlanID       *gym.PlanID
	MembershipID *gym.MembershipID
	AmountCents  gym.Cents
	Note         string
	ChargeDate   time.Time
	Type         gym.ChargeType
}

// Summary aggregates a generated run.
type Summary struct {
	OneTimeCount   int
	RecurringCount int
	ProratedCount  int
	TotalCents     gym.Cents
}

// Run is the full preview result for one gym and period.
type Run struct {
	GymID       gym.GymID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Charges     []ChargeItem
	Summary     Summary
}

// =============================================================================
// GRACE WINDOWS - Minimum days since last billing before billing again
// =============================================================================

// graceWindowDays returns how close to the period start a previous billing
// may be before the membership counts as already billed for this cadence.
// The windows sit just under each cadence length so clock drift between
// runs never double-bills a period.
func graceWindowDays(f gym.Frequency) int {
	switch f {
	case gym.Weekly:
		return 6
	case gym.Monthly:
		return 25
	case gym.Quarterly:
		return 80
	case gym.Yearly:
		return 350
	default:
		// Unknown cadence: treat as monthly.
		return 30
	}
}

// =============================================================================
// GENERATE - The pure preview operation
// =============================================================================

// GenerateCharges computes all charges due for the gym in [periodStart,
// periodEnd]. Returns a ValidationError (wrapping gym.ErrInvalidPeriod)
// when the period is malformed. Never writes.
func (e *Engine) GenerateCharges(ctx context.Context, gymID gym.GymID, periodStart, periodEnd time.Time) (*Run, error) {
	if !periodEnd.After(periodStart) {
		return nil, &gym.PeriodError{Start: periodStart, End: periodEnd}
	}

	members, err := e.Store.ApprovedMembers(ctx, gymID)
	if err != nil {
		return nil, fmt.Errorf("loading approved members: %w", err)
	}
	approved := make(map[gym.MemberID]bool, len(members))
	for _, m := range members {
		approved[m.ID] = true
	}

	run := &Run{GymID: gymID, PeriodStart: periodStart, PeriodEnd: periodEnd}

	oneTime, err := e.oneTimeCharges(ctx, gymID, approved, periodEnd)
	if err != nil {
		return nil, err
	}
	recurring, prorated, err := e.membershipCharges(ctx, gymID, approved, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	run.Charges = append(run.Charges, oneTime...)
	run.Charges = append(run.Charges, recurring...)
	run.Charges = append(run.Charges, prorated...)

	run.Summary = Summary{
		OneTimeCount:   len(oneTime),
		RecurringCount: len(recurring),
		ProratedCount:  len(prorated),
	}
	for _, ch := range run.Charges {
		run.Summary.TotalCents += ch.AmountCents
	}
	return run, nil
}

// oneTimeCharges surfaces every unbilled plan-less charge dated on or
// before the period end. No lower bound: stale unbilled charges keep
// showing up until someone bills them.
func (e *Engine) oneTimeCharges(ctx context.Context, gymID gym.GymID, approved map[gym.MemberID]bool, periodEnd time.Time) ([]ChargeItem, error) {
	charges, err := e.Store.UnbilledCharges(ctx, gymID)
	if err != nil {
		return nil, fmt.Errorf("loading unbilled charges: %w", err)
	}

	var out []ChargeItem
	for _, ch := range charges {
		if ch.PlanID != nil || ch.Billed {
			continue
		}
		if gym.DayOf(ch.ChargeDate).After(gym.DayOf(periodEnd)) {
			continue
		}
		if !approved[ch.MemberID] {
			e.Log.Warn().
				Str("charge_id", string(ch.ID)).
				Str("member_id", string(ch.MemberID)).
				Msg("skipping one-time charge: member missing or not approved")
			continue
		}
		out = append(out, ChargeItem{
			MemberID:    ch.MemberID,
			AmountCents: ch.AmountCents,
			Note:        ch.Note,
			ChargeDate:  ch.ChargeDate,
			Type:        gym.ChargeOneTime,
		})
	}
	return out, nil
}

// membershipCharges walks the gym's memberships once and produces both the
// recurring and the pro-rated buckets. The two generators are independent:
// a membership that joined mid-prior-month legitimately receives a full
// recurring charge AND a pro-rated catch-up in the same run.
func (e *Engine) membershipCharges(ctx context.Context, gymID gym.GymID, approved map[gym.MemberID]bool, periodStart, periodEnd time.Time) (recurring, prorated []ChargeItem, err error) {
	memberships, err := e.Store.MembershipsByGym(ctx, gymID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading memberships: %w", err)
	}

	for _, ms := range memberships {
		if !approved[ms.MemberID] {
			continue
		}

		plan, err := e.Store.PlanByID(ctx, ms.PlanID)
		if err != nil {
			if errors.Is(err, gym.ErrPlanNotFound) {
				e.Log.Warn().
					Str("membership_id", string(ms.ID)).
					Str("plan_id", string(ms.PlanID)).
					Msg("skipping membership: plan not found")
				continue
			}
			return nil, nil, fmt.Errorf("loading plan %s: %w", ms.PlanID, err)
		}

		if item, ok := e.recurringCharge(ms, plan, periodStart, periodEnd); ok {
			recurring = append(recurring, item)
		}
		if item, ok := e.proratedCharge(ms, plan, periodStart); ok {
			prorated = append(prorated, item)
		}
	}
	return recurring, prorated, nil
}

// recurringCharge emits the full-price period charge for an eligible
// membership, or reports ineligibility.
func (e *Engine) recurringCharge(ms gym.Membership, plan *gym.Plan, periodStart, periodEnd time.Time) (ChargeItem, bool) {
	if !plan.Active {
		return ChargeItem{}, false
	}

	start := gym.DayOf(ms.StartDate)
	pStart := gym.DayOf(periodStart)
	pEnd := gym.DayOf(periodEnd)

	if start.After(pStart) || start.After(pEnd) {
		// Not yet started as of this period.
		return ChargeItem{}, false
	}
	if ms.EndDate != nil && !gym.DayOf(*ms.EndDate).After(pStart) {
		// Ended on or before the period start.
		return ChargeItem{}, false
	}

	// Grace window: a recent-enough previous billing already covers this
	// period for the plan's cadence.
	if ms.LastBilledDate != nil {
		graceFloor := pStart.AddDate(0, 0, -graceWindowDays(plan.Period))
		if !gym.DayOf(*ms.LastBilledDate).Before(graceFloor) {
			return ChargeItem{}, false
		}
	}

	msID := ms.ID
	planID := plan.ID
	return ChargeItem{
		MemberID:     ms.MemberID,
		PlanID:       &planID,
		MembershipID: &msID,
		AmountCents:  plan.PriceCents,
		Note:         fmt.Sprintf("%s plan (%s) charge for period starting %s", plan.Name, plan.Period, pStart.Format("2006-01-02")),
		ChargeDate:   periodStart,
		Type:         gym.ChargeRecurring,
	}, true
}
