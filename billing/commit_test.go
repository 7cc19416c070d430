package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubops/gym-engine/gym"
)

// =============================================================================
// COMMIT - Full generate-then-commit cycles against the memory store
// =============================================================================

func TestCommit_PersistsGeneratedRun(t *testing.T) {
	// GIVEN a preview with one of each charge type
	f := newFixture(t)
	memberID := f.addMember(t, "m1", gym.MemberApproved)
	planID := f.addPlan(t, "p1", 10000, gym.Monthly, true)
	f.addMembership(t, "ms1", memberID, planID, date(2025, 9, 15), nil, nil)
	f.addOneTimeCharge(t, "c1", memberID, 500, date(2025, 10, 3))

	run, err := f.engine.GenerateCharges(f.ctx, testGym, date(2025, 10, 1), date(2025, 10, 31))
	require.NoError(t, err)
	require.Len(t, run.Charges, 3)

	// WHEN committing
	result, err := f.engine.Commit(f.ctx, run)
	require.NoError(t, err)

	// THEN the one-time charge flipped in place and two new rows landed
	assert.Equal(t, 1, result.BilledOnline)
	assert.Equal(t, 2, result.CreatedRows)
	assert.Equal(t, 3, result.Total)
	assert.NotEmpty(t, result.RunID)

	charges, err := f.store.ChargesByMember(f.ctx, memberID)
	require.NoError(t, err)
	require.Len(t, charges, 3)
	for _, ch := range charges {
		assert.True(t, ch.Billed)
		require.NotNil(t, ch.BillingRunID)
		assert.Equal(t, result.RunID, *ch.BillingRunID)
	}

	runs, err := f.store.BillingRunsByGym(f.ctx, testGym)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, date(2025, 10, 1), runs[0].PeriodStart)
}

func TestCommit_StampsLastBilledDateWithCommitInstant(t *testing.T) {
	// GIVEN an engine whose clock is pinned past the period start
	f := newFixture(t)
	commitAt := time.Date(2025, 10, 5, 9, 30, 0, 0, time.UTC)
	f.engine.Now = func() time.Time { return commitAt }

	memberID := f.addMember(t, "m1", gym.MemberApproved)
	planID := f.addPlan(t, "p1", 10000, gym.Monthly, true)
	msID := f.addMembership(t, "ms1", memberID, planID, date(2025, 8, 1), nil, nil)

	run, err := f.engine.GenerateCharges(f.ctx, testGym, date(2025, 10, 1), date(2025, 10, 31))
	require.NoError(t, err)

	// WHEN committing
	_, err = f.engine.Commit(f.ctx, run)
	require.NoError(t, err)

	// THEN lastBilledDate carries the commit instant, not the period start
	ms, err := f.store.MembershipByID(f.ctx, msID)
	require.NoError(t, err)
	require.NotNil(t, ms.LastBilledDate)
	assert.Equal(t, commitAt, *ms.LastBilledDate)
}

func TestCommit_NextRunSuppressedByStampedMembership(t *testing.T) {
	// GIVEN a committed October run
	f := newFixture(t)
	memberID := f.addMember(t, "m1", gym.MemberApproved)
	planID := f.addPlan(t, "p1", 10000, gym.Monthly, true)
	f.addMembership(t, "ms1", memberID, planID, date(2025, 9, 15), nil, nil)

	run, err := f.engine.GenerateCharges(f.ctx, testGym, date(2025, 10, 1), date(2025, 10, 31))
	require.NoError(t, err)
	_, err = f.engine.Commit(f.ctx, run)
	require.NoError(t, err)

	// WHEN previewing October again
	again, err := f.engine.GenerateCharges(f.ctx, testGym, date(2025, 10, 1), date(2025, 10, 31))
	require.NoError(t, err)

	// THEN the grace window suppresses the recurring charge AND the
	// stamped lastBilledDate disqualifies re-proration
	assert.Empty(t, again.Charges)
}

func TestCommit_RecurringAndProratedPairBothLand(t *testing.T) {
	// The same membership legitimately carries a recurring charge and a
	// pro-rated catch-up dated the same day; the duplicate backstop must
	// not reject the pair.
	f := newFixture(t)
	memberID := f.addMember(t, "m1", gym.MemberApproved)
	planID := f.addPlan(t, "p1", 10000, gym.Monthly, true)
	f.addMembership(t, "ms1", memberID, planID, date(2025, 9, 15), nil, nil)

	run, err := f.engine.GenerateCharges(f.ctx, testGym, date(2025, 10, 1), date(2025, 10, 31))
	require.NoError(t, err)
	require.Len(t, run.Charges, 2)

	result, err := f.engine.Commit(f.ctx, run)
	require.NoError(t, err)
	assert.Equal(t, 2, result.CreatedRows)
}

// =============================================================================
// PARTIAL FAILURE
// =============================================================================

func TestCreateChargeRecords_PartialFailureReportsCounts(t *testing.T) {
	// GIVEN two descriptors where the one-time item has no matching
	// unbilled charge row to flip
	f := newFixture(t)
	memberID := f.addMember(t, "m1", gym.MemberApproved)
	planID := f.addPlan(t, "p1", 10000, gym.Monthly, true)
	msID := f.addMembership(t, "ms1", memberID, planID, date(2025, 8, 1), nil, nil)

	charges := []ChargeItem{
		{MemberID: memberID, AmountCents: 999, ChargeDate: date(2025, 10, 3), Type: gym.ChargeOneTime},
		{MemberID: memberID, PlanID: &planID, MembershipID: &msID, AmountCents: 10000,
			ChargeDate: date(2025, 10, 1), Type: gym.ChargeRecurring},
	}

	// WHEN writing under a run id
	result, err := f.engine.CreateChargeRecords(f.ctx, charges, gym.BillingRunID("run-1"))

	// THEN the failure is reported without rolling back the success
	require.Error(t, err)
	var commitErr *CommitError
	require.True(t, errors.As(err, &commitErr))
	assert.Equal(t, 1, commitErr.Succeeded)
	assert.Equal(t, 2, commitErr.Total)
	assert.Contains(t, commitErr.Error(), "1 of 2 charges succeeded")

	require.NotNil(t, result)
	assert.Equal(t, 1, result.CreatedRows)
	assert.Equal(t, 0, result.BilledOnline)
}

func TestCreateChargeRecords_ValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		charges []ChargeItem
		runID   gym.BillingRunID
	}{
		{"empty run id", []ChargeItem{{MemberID: "m1", Type: gym.ChargeOneTime}}, ""},
		{"empty member id", []ChargeItem{{Type: gym.ChargeOneTime}}, "run-1"},
		{"negative amount", []ChargeItem{{MemberID: "m1", AmountCents: -1, Type: gym.ChargeOneTime}}, "run-1"},
		{"unknown type", []ChargeItem{{MemberID: "m1", Type: "mystery"}}, "run-1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.CreateChargeRecords(context.Background(), tc.charges, tc.runID)

			// Malformed descriptors fail the whole request up front
			var verr *gym.ValidationError
			require.True(t, errors.As(err, &verr))
		})
	}
}

func TestCommit_DuplicateRecurringRejectedByBackstop(t *testing.T) {
	// GIVEN a recurring charge already persisted for the membership and day
	f := newFixture(t)
	memberID := f.addMember(t, "m1", gym.MemberApproved)
	planID := f.addPlan(t, "p1", 10000, gym.Monthly, true)
	msID := f.addMembership(t, "ms1", memberID, planID, date(2025, 8, 1), nil, nil)

	item := ChargeItem{MemberID: memberID, PlanID: &planID, MembershipID: &msID,
		AmountCents: 10000, ChargeDate: date(2025, 10, 1), Type: gym.ChargeRecurring}

	_, err := f.engine.CreateChargeRecords(f.ctx, []ChargeItem{item}, gym.BillingRunID("run-1"))
	require.NoError(t, err)

	// WHEN a second commit races in the same charge
	_, err = f.engine.CreateChargeRecords(f.ctx, []ChargeItem{item}, gym.BillingRunID("run-2"))

	// THEN the store backstop rejects it
	require.Error(t, err)
	var commitErr *CommitError
	require.True(t, errors.As(err, &commitErr))
	require.Len(t, commitErr.Failures, 1)
	assert.ErrorIs(t, commitErr.Failures[0].Err, gym.ErrDuplicatePeriodCharge)
}
