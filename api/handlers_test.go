package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubops/gym-engine/gym"
	memstore "github.com/clubops/gym-engine/gym/store"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

const testGym = "gym-1"

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type harness struct {
	store  *memstore.Memory
	router http.Handler
	ctx    context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.NewMemory()
	handler := NewHandler(store, zerolog.Nop())
	handler.Billing.Now = func() time.Time { return date(2025, 10, 5) }
	return &harness{store: store, router: NewRouter(handler), ctx: context.Background()}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func (h *harness) seedBilling(t *testing.T) {
	t.Helper()
	require.NoError(t, h.store.CreateMember(h.ctx, gym.Member{
		ID: "m1", GymID: testGym, Name: "Ada", Status: gym.MemberApproved,
	}))
	require.NoError(t, h.store.CreatePlan(h.ctx, gym.Plan{
		ID: "p1", GymID: testGym, Name: "Standard", PriceCents: 10000,
		Period: gym.Monthly, Active: true,
	}))
	require.NoError(t, h.store.CreateMembership(h.ctx, gym.Membership{
		ID: "ms1", MemberID: "m1", PlanID: "p1", StartDate: date(2025, 9, 15),
	}))
}

// =============================================================================
// BILLING ENDPOINTS
// =============================================================================

func TestGenerateChargesEndpoint(t *testing.T) {
	// GIVEN a gym with a never-billed mid-September join
	h := newHarness(t)
	h.seedBilling(t)

	// WHEN previewing October
	rec := h.do(t, http.MethodPost, "/api/billing/generate", GenerateChargesRequest{
		GymID: testGym, PeriodStart: "2025-10-01", PeriodEnd: "2025-10-31",
	})

	// THEN the preview carries the recurring charge plus the catch-up
	require.Equal(t, http.StatusOK, rec.Code)
	var resp GenerateChargesResponse
	decodeInto(t, rec, &resp)
	assert.Equal(t, 1, resp.Summary.RecurringCount)
	assert.Equal(t, 1, resp.Summary.ProratedCount)
	assert.Equal(t, int64(15333), resp.Summary.TotalCents)
	assert.Len(t, resp.Charges, 2)
}

func TestGenerateChargesEndpoint_InvalidPeriodIs400(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/billing/generate", GenerateChargesRequest{
		GymID: testGym, PeriodStart: "2025-10-31", PeriodEnd: "2025-10-01",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateChargesEndpoint_MissingFieldsAre400(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/billing/generate", map[string]string{
		"gymId": testGym,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitChargesEndpoint_PreviewThenCommit(t *testing.T) {
	// GIVEN a previewed October run
	h := newHarness(t)
	h.seedBilling(t)

	rec := h.do(t, http.MethodPost, "/api/billing/generate", GenerateChargesRequest{
		GymID: testGym, PeriodStart: "2025-10-01", PeriodEnd: "2025-10-31",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var preview GenerateChargesResponse
	decodeInto(t, rec, &preview)

	// WHEN committing the preview verbatim
	rec = h.do(t, http.MethodPost, "/api/billing/commit", CommitChargesRequest{
		GymID: testGym, PeriodStart: "2025-10-01", PeriodEnd: "2025-10-31",
		Charges: preview.Charges,
	})

	// THEN the run lands and is listed
	require.Equal(t, http.StatusOK, rec.Code)
	var commit CommitChargesResponse
	decodeInto(t, rec, &commit)
	assert.Equal(t, 2, commit.CreatedRows)
	assert.NotEmpty(t, commit.BillingRunID)

	rec = h.do(t, http.MethodGet, "/api/gyms/"+testGym+"/billing-runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []BillingRunDTO
	decodeInto(t, rec, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, commit.BillingRunID, runs[0].ID)
}

func TestCommitChargesEndpoint_EmptyChargesIs400(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/billing/commit", CommitChargesRequest{
		GymID: testGym, PeriodStart: "2025-10-01", PeriodEnd: "2025-10-31",
		Charges: []ChargeItemDTO{},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCHEDULING ENDPOINTS
// =============================================================================

func (h *harness) seedScheduling(t *testing.T) {
	t.Helper()
	require.NoError(t, h.store.CreateClass(h.ctx, gym.Class{
		ID: "yoga", GymID: testGym, Name: "Yoga", DurationMinutes: 60,
	}))
	require.NoError(t, h.store.CreateLocation(h.ctx, gym.Location{
		ID: "studio-a", GymID: testGym, Name: "Studio A",
	}))
}

func TestCreateScheduleEndpoint(t *testing.T) {
	h := newHarness(t)
	h.seedScheduling(t)

	rec := h.do(t, http.MethodPost, "/api/schedules/", CreateScheduleRequest{
		ClassID: "yoga", LocationID: "studio-a",
		StartDateTime: "2025-09-08T09:00:00Z",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var created ScheduleDTO
	decodeInto(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Recurring)
}

func TestCreateScheduleEndpoint_ConflictIs409(t *testing.T) {
	// GIVEN an existing 9:00 booking
	h := newHarness(t)
	h.seedScheduling(t)
	rec := h.do(t, http.MethodPost, "/api/schedules/", CreateScheduleRequest{
		ClassID: "yoga", LocationID: "studio-a",
		StartDateTime: "2025-09-08T09:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN booking an overlapping slot
	rec = h.do(t, http.MethodPost, "/api/schedules/", CreateScheduleRequest{
		ClassID: "yoga", LocationID: "studio-a",
		StartDateTime: "2025-09-08T09:30:00Z",
	})

	// THEN 409 with the blocking schedule named
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict ConflictResponse
	decodeInto(t, rec, &conflict)
	assert.Equal(t, "direct", conflict.Kind)
	assert.NotEmpty(t, conflict.WithSchedule)
}

func TestValidateScheduleEndpoint_ExcludeAllowsReschedule(t *testing.T) {
	// GIVEN an existing booking being moved 30 minutes later
	h := newHarness(t)
	h.seedScheduling(t)
	rec := h.do(t, http.MethodPost, "/api/schedules/", CreateScheduleRequest{
		ClassID: "yoga", LocationID: "studio-a",
		StartDateTime: "2025-09-08T09:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ScheduleDTO
	decodeInto(t, rec, &created)

	// WHEN validating the move with the schedule excluded
	rec = h.do(t, http.MethodPost, "/api/schedules/validate", CreateScheduleRequest{
		ClassID: "yoga", LocationID: "studio-a",
		StartDateTime:     "2025-09-08T09:30:00Z",
		ExcludeScheduleID: created.ID,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListInstancesEndpoint(t *testing.T) {
	// GIVEN a weekly Monday class anchored Monday Sept 1
	h := newHarness(t)
	h.seedScheduling(t)
	rec := h.do(t, http.MethodPost, "/api/schedules/", CreateScheduleRequest{
		ClassID: "yoga", LocationID: "studio-a",
		StartDateTime: "2025-09-01T09:00:00Z",
		Pattern:       &RecurrencePatternDTO{Frequency: "weekly", Interval: 1, DaysOfWeek: []int{1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ScheduleDTO
	decodeInto(t, rec, &created)

	// WHEN expanding September
	rec = h.do(t, http.MethodGet,
		"/api/schedules/"+created.ID+"/instances?from=2025-09-01&to=2025-09-30", nil)

	// THEN all five September Mondays come back
	require.Equal(t, http.StatusOK, rec.Code)
	var instances []InstanceDTO
	decodeInto(t, rec, &instances)
	require.Len(t, instances, 5)
	assert.Equal(t, "2025-09-01T09:00:00Z", instances[0].Start)
	assert.Equal(t, "2025-09-29T09:00:00Z", instances[4].Start)
}

func TestListInstancesEndpoint_UnknownScheduleIs404(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/schedules/ghost/instances", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ENTITY ENDPOINTS
// =============================================================================

func TestCreateMemberEndpoint_DefaultsToPending(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/members/", CreateMemberRequest{
		GymID: testGym, Name: "Ada",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var created gym.Member
	decodeInto(t, rec, &created)
	assert.Equal(t, gym.MemberPending, created.Status)
}

func TestCreateMembershipEndpoint_UnknownPlanIs404(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.CreateMember(h.ctx, gym.Member{
		ID: "m1", GymID: testGym, Name: "Ada", Status: gym.MemberApproved,
	}))

	rec := h.do(t, http.MethodPost, "/api/memberships", CreateMembershipRequest{
		MemberID: "m1", PlanID: "ghost", StartDate: "2025-09-01",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}
