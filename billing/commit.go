package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clubops/gym-engine/gym"
)

// =============================================================================
// COMMIT - Persisting a generated run
// =============================================================================
//
// Each charge write is an independent operation: a failure on one charge
// does not roll back the others. Partial commits are therefore possible
// and are surfaced as a CommitError ("N of M succeeded") rather than
// silently swallowed. Re-running a failed commit is the caller's call;
// the grace window and the one-time billed flag keep a re-run from
// double-billing what already succeeded.

// CommitResult reports what a commit actually did.
type CommitResult struct {
	RunID        gym.BillingRunID
	CreatedRows  int // new charge rows inserted (recurring + pro-rated)
	BilledOnline int // existing one-time charges flipped to billed
	Total        int
}

// CommitError reports a partially failed commit.
type CommitError struct {
	Succeeded int
	Total     int
	Failures  []ChargeFailure
}

// ChargeFailure ties one failed write back to its charge descriptor.
type ChargeFailure struct {
	Charge ChargeItem
	Err    error
}

func (e *CommitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "billing commit incomplete: %d of %d charges succeeded", e.Succeeded, e.Total)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s for member %s: %v", f.Charge.Type, f.Charge.MemberID, f.Err)
	}
	return b.String()
}

// Commit persists a generated run: creates the BillingRun record, then
// writes every charge via CreateChargeRecords.
func (e *Engine) Commit(ctx context.Context, run *Run) (*CommitResult, error) {
	now := e.now()
	runID := gym.BillingRunID(uuid.NewString())

	if err := e.Store.CreateBillingRun(ctx, gym.BillingRun{
		ID:          runID,
		GymID:       run.GymID,
		PeriodStart: run.PeriodStart,
		PeriodEnd:   run.PeriodEnd,
		CreatedAt:   now,
	}); err != nil {
		return nil, fmt.Errorf("creating billing run: %w", err)
	}

	result, err := e.CreateChargeRecords(ctx, run.Charges, runID)
	if result != nil {
		result.RunID = runID
	}
	return result, err
}

// CreateChargeRecords writes the charges of a run under a billing run id.
//
// one-time-charge items flip the matching existing unbilled row to billed;
// everything else inserts a new, already-billed charge row. Charges that
// carry a membership reference stamp that membership's lastBilledDate with
// the commit instant, not the period start.
func (e *Engine) CreateChargeRecords(ctx context.Context, charges []ChargeItem, runID gym.BillingRunID) (*CommitResult, error) {
	if err := validateChargeItems(charges, runID); err != nil {
		return nil, err
	}

	now := e.now()
	result := &CommitResult{Total: len(charges)}
	var failures []ChargeFailure

	for _, ch := range charges {
		if err := e.persistCharge(ctx, ch, runID, now); err != nil {
			e.Log.Error().
				Err(err).
				Str("member_id", string(ch.MemberID)).
				Str("charge_type", string(ch.Type)).
				Msg("charge write failed")
			failures = append(failures, ChargeFailure{Charge: ch, Err: err})
			continue
		}
		if ch.Type == gym.ChargeOneTime {
			result.BilledOnline++
		} else {
			result.CreatedRows++
		}
	}

	if len(failures) > 0 {
		return result, &CommitError{
			Succeeded: result.Total - len(failures),
			Total:     result.Total,
			Failures:  failures,
		}
	}
	return result, nil
}

func (e *Engine) persistCharge(ctx context.Context, ch ChargeItem, runID gym.BillingRunID, now time.Time) error {
	if ch.Type == gym.ChargeOneTime {
		return e.Store.MarkChargeBilled(ctx, ch.MemberID, ch.AmountCents, ch.ChargeDate, runID, now)
	}

	billedAt := now
	if err := e.Store.InsertCharge(ctx, gym.Charge{
		ID:           gym.ChargeID(uuid.NewString()),
		MemberID:     ch.MemberID,
		PlanID:       ch.PlanID,
		MembershipID: ch.MembershipID,
		AmountCents:  ch.AmountCents,
		Note:         ch.Note,
		ChargeDate:   ch.ChargeDate,
		Type:         ch.Type,
		Billed:       true,
		BilledDate:   &billedAt,
		BillingRunID: &runID,
	}); err != nil {
		return err
	}

	if ch.MembershipID != nil {
		if err := e.Store.SetMembershipLastBilled(ctx, *ch.MembershipID, now); err != nil {
			return fmt.Errorf("stamping lastBilledDate: %w", err)
		}
	}
	return nil
}

// validateChargeItems rejects malformed descriptors before any write
// happens. Malformed identifiers are a data-integrity error for the whole
// request, not a per-item failure.
func validateChargeItems(charges []ChargeItem, runID gym.BillingRunID) error {
	if runID == "" {
		return &gym.ValidationError{Field: "billingRunId", Message: "must not be empty"}
	}
	for i, ch := range charges {
		if ch.MemberID == "" {
			return &gym.ValidationError{Field: fmt.Sprintf("charges[%d].memberId", i), Message: "must not be empty"}
		}
		if ch.AmountCents < 0 {
			return &gym.ValidationError{Field: fmt.Sprintf("charges[%d].amount", i), Message: "must not be negative"}
		}
		if ch.Type != gym.ChargeOneTime && ch.Type != gym.ChargeRecurring && ch.Type != gym.ChargeProrated {
			return &gym.ValidationError{Field: fmt.Sprintf("charges[%d].type", i), Message: fmt.Sprintf("unknown charge type %q", ch.Type)}
		}
		if ch.Type != gym.ChargeOneTime && ch.MembershipID != nil && *ch.MembershipID == "" {
			return &gym.ValidationError{Field: fmt.Sprintf("charges[%d].membershipId", i), Message: "must not be empty when set"}
		}
	}
	return nil
}
