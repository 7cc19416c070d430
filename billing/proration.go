package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubops/gym-engine/gym"
)

// =============================================================================
// PRO-RATED CHARGES - Catch-up billing for partial prior periods
// =============================================================================
//
// Only memberships that have never been billed are candidates, and only in
// two shapes relative to the prior calendar month:
//
//   mid-month join:      started strictly after the 1st of the prior month
//                        and strictly before the period start
//   mid-month departure: ended on or after the 1st of the prior month but
//                        before the period start, having started earlier
//
// A monthly membership that started exactly on the 1st of the prior month
// is excluded: the regular recurring generator owns that case, and
// pro-rating it too would double-bill.

// proratedCharge emits the catch-up charge for a membership, or reports
// that none is due. Amounts of zero or less are dropped.
func (e *Engine) proratedCharge(ms gym.Membership, plan *gym.Plan, periodStart time.Time) (ChargeItem, bool) {
	if ms.LastBilledDate != nil {
		return ChargeItem{}, false
	}

	start := gym.DayOf(ms.StartDate)
	pStart := gym.DayOf(periodStart)

	// Candidate shapes are tested against the prior calendar month for
	// every frequency; only the amount window below is frequency-specific.
	priorFirst := gym.PriorMonthWindow(periodStart).Start

	midJoin := start.After(priorFirst) && start.Before(pStart)
	midDeparture := ms.EndDate != nil &&
		!gym.DayOf(*ms.EndDate).Before(priorFirst) &&
		gym.DayOf(*ms.EndDate).Before(pStart) &&
		start.Before(priorFirst)

	if !midJoin && !midDeparture {
		return ChargeItem{}, false
	}
	// Started on the 1st of the prior month on a monthly plan: the regular
	// recurring generator owns that case in full.
	if plan.Period == gym.Monthly && start.Equal(priorFirst) {
		return ChargeItem{}, false
	}

	window, totalDays := prorationWindow(plan.Period, periodStart)

	activeDays := gym.ActiveDaysInWindow(ms.StartDate, ms.EndDate, window.Start, window.End)
	amount := prorateAmount(plan.PriceCents, activeDays, totalDays)
	if amount <= 0 {
		return ChargeItem{}, false
	}

	msID := ms.ID
	planID := plan.ID
	return ChargeItem{
		MemberID:     ms.MemberID,
		PlanID:       &planID,
		MembershipID: &msID,
		AmountCents:  amount,
		Note: fmt.Sprintf("pro-rated %s plan charge: %d of %d days in %s",
			plan.Name, activeDays, totalDays, window),
		ChargeDate: periodStart,
		Type:       gym.ChargeProrated,
	}, true
}

// prorationWindow picks the prior window and its billable day count for a
// plan frequency. Monthly plans bill against the prior calendar month as a
// fixed 30-day unit regardless of the month's real length; the window runs
// from the 1st of the prior month through the day before the period start.
// Other frequencies bill against an inclusive trailing window of their
// natural length (7/90/365 days back, so 8/91/366 countable days).
func prorationWindow(f gym.Frequency, periodStart time.Time) (gym.Period, int) {
	switch f {
	case gym.Monthly:
		prior := gym.PriorMonthWindow(periodStart)
		window := gym.Period{Start: prior.Start, End: gym.DayOf(periodStart).AddDate(0, 0, -1)}
		return window, gym.FixedMonthDays
	case gym.Weekly:
		w := gym.TrailingWindow(periodStart, 7)
		return w, w.Days()
	case gym.Quarterly:
		w := gym.TrailingWindow(periodStart, 90)
		return w, w.Days()
	case gym.Yearly:
		w := gym.TrailingWindow(periodStart, 365)
		return w, w.Days()
	default:
		prior := gym.PriorMonthWindow(periodStart)
		window := gym.Period{Start: prior.Start, End: gym.DayOf(periodStart).AddDate(0, 0, -1)}
		return window, gym.FixedMonthDays
	}
}

// prorateAmount computes round-half-up(price * activeDays / totalDays) in
// exact decimal arithmetic. No floats anywhere near money.
func prorateAmount(price gym.Cents, activeDays, totalDays int) gym.Cents {
	if activeDays <= 0 || totalDays <= 0 {
		return 0
	}
	amount := price.Decimal().
		Mul(decimal.NewFromInt(int64(activeDays))).
		Div(decimal.NewFromInt(int64(totalDays))).
		Round(0)
	return gym.Cents(amount.IntPart())
}
