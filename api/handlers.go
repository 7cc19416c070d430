/*
handlers.go - HTTP handler implementations

PURPOSE:
  Decodes requests, validates them, calls the billing/scheduling engines
  and the store, and encodes responses. Handlers contain no business
  logic - a handler that computes something belongs in an engine.

ERROR MAPPING:
  gym.ValidationError / malformed period  -> 400
  not-found sentinels                     -> 404
  scheduling.ConflictError                -> 409
  billing.CommitError (partial commit)    -> 207 with detail
  anything else                           -> 500

SEE ALSO:
  - dto.go: Wire types and validation rules
  - server.go: Route wiring
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clubops/gym-engine/billing"
	"github.com/clubops/gym-engine/gym"
	"github.com/clubops/gym-engine/metrics"
	"github.com/clubops/gym-engine/scheduling"
)

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	Store      gym.Store
	Billing    *billing.Engine
	Scheduling *scheduling.Engine
	Log        zerolog.Logger

	validate *validator.Validate
}

// NewHandler creates a handler with all dependencies wired.
func NewHandler(store gym.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Store:      store,
		Billing:    billing.NewEngine(store, log),
		Scheduling: scheduling.NewEngine(store, log),
		Log:        log,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// GenerateCharges previews all charges due for a gym and period. Pure
// read: nothing is persisted.
func (h *Handler) GenerateCharges(w http.ResponseWriter, r *http.Request) {
	var req GenerateChargesRequest
	if !h.decode(w, r, &req) {
		return
	}

	periodStart, periodEnd, ok := h.parsePeriod(w, req.PeriodStart, req.PeriodEnd)
	if !ok {
		return
	}

	run, err := h.Billing.GenerateCharges(r.Context(), gym.GymID(req.GymID), periodStart, periodEnd)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := GenerateChargesResponse{
		GymID:       string(run.GymID),
		PeriodStart: run.PeriodStart.UTC().Format(dateLayout),
		PeriodEnd:   run.PeriodEnd.UTC().Format(dateLayout),
		Charges:     []ChargeItemDTO{},
		Summary: SummaryDTO{
			OneTimeCount:   run.Summary.OneTimeCount,
			RecurringCount: run.Summary.RecurringCount,
			ProratedCount:  run.Summary.ProratedCount,
			TotalCents:     int64(run.Summary.TotalCents),
		},
	}
	for _, ch := range run.Charges {
		resp.Charges = append(resp.Charges, toChargeItemDTO(ch))
		metrics.ChargesGeneratedTotal.WithLabelValues(string(ch.Type)).Inc()
		metrics.ChargeCentsTotal.WithLabelValues(string(ch.Type)).Add(float64(ch.AmountCents))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CommitCharges persists a previewed set of charges under a new billing
// run. Partial failures come back as 207 with the run id and counts, so
// the caller can see what did land.
func (h *Handler) CommitCharges(w http.ResponseWriter, r *http.Request) {
	var req CommitChargesRequest
	if !h.decode(w, r, &req) {
		return
	}

	periodStart, periodEnd, ok := h.parsePeriod(w, req.PeriodStart, req.PeriodEnd)
	if !ok {
		return
	}

	charges := make([]billing.ChargeItem, 0, len(req.Charges))
	for _, dto := range req.Charges {
		item, err := fromChargeItemDTO(dto)
		if err != nil {
			h.writeError(w, &gym.ValidationError{Field: "charges", Message: err.Error()})
			return
		}
		charges = append(charges, item)
	}

	run := &billing.Run{
		GymID:       gym.GymID(req.GymID),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Charges:     charges,
	}
	result, err := h.Billing.Commit(r.Context(), run)

	var commitErr *billing.CommitError
	switch {
	case err == nil:
		metrics.BillingRunsTotal.WithLabelValues("ok").Inc()
		h.writeJSON(w, http.StatusOK, CommitChargesResponse{
			BillingRunID: string(result.RunID),
			CreatedRows:  result.CreatedRows,
			BilledOnline: result.BilledOnline,
			Total:        result.Total,
		})
	case errors.As(err, &commitErr):
		metrics.BillingRunsTotal.WithLabelValues("partial").Inc()
		h.writeJSON(w, http.StatusMultiStatus, map[string]any{
			"billingRunId": string(result.RunID),
			"createdRows":  result.CreatedRows,
			"billedOnline": result.BilledOnline,
			"total":        result.Total,
			"error":        commitErr.Error(),
		})
	default:
		metrics.BillingRunsTotal.WithLabelValues("error").Inc()
		h.writeError(w, err)
	}
}

// ListBillingRuns returns every committed run for a gym.
func (h *Handler) ListBillingRuns(w http.ResponseWriter, r *http.Request) {
	gymID := gym.GymID(chi.URLParam(r, "gymID"))
	runs, err := h.Store.BillingRunsByGym(r.Context(), gymID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := []BillingRunDTO{}
	for _, run := range runs {
		out = append(out, BillingRunDTO{
			ID:          string(run.ID),
			GymID:       string(run.GymID),
			PeriodStart: run.PeriodStart.UTC().Format(dateLayout),
			PeriodEnd:   run.PeriodEnd.UTC().Format(dateLayout),
			CreatedAt:   run.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// SCHEDULING HANDLERS
// =============================================================================

// ValidateSchedule dry-runs conflict detection for a proposed schedule.
// 200 with {"valid": true} or 409 with conflict detail.
func (h *Handler) ValidateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.checkProposal(w, r, req); err != nil {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// CreateSchedule validates and persists a schedule in one call.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.checkProposal(w, r, req)
	if err != nil {
		return
	}

	sched := gym.Schedule{
		ID:            gym.ScheduleID(uuid.NewString()),
		ClassID:       gym.ClassID(req.ClassID),
		LocationID:    p.LocationID,
		StartDateTime: p.Start,
		Recurring:     p.Pattern != nil,
		Pattern:       p.Pattern,
		EndDate:       p.EndDate,
	}
	if err := h.Store.CreateSchedule(r.Context(), sched); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toScheduleDTO(sched))
}

// checkProposal maps a request to a scheduling.Proposal, runs conflict
// validation, and writes the error response on failure.
func (h *Handler) checkProposal(w http.ResponseWriter, r *http.Request, req CreateScheduleRequest) (scheduling.Proposal, error) {
	start, err := time.Parse(time.RFC3339, req.StartDateTime)
	if err != nil {
		verr := &gym.ValidationError{Field: "startDateTime", Message: "must be RFC3339"}
		h.writeError(w, verr)
		return scheduling.Proposal{}, verr
	}
	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		verr := &gym.ValidationError{Field: "endDate", Message: "must be YYYY-MM-DD"}
		h.writeError(w, verr)
		return scheduling.Proposal{}, verr
	}

	duration := gym.DefaultClassDurationMinutes
	if c, err := h.Store.ClassByID(r.Context(), gym.ClassID(req.ClassID)); err == nil && c.DurationMinutes > 0 {
		duration = c.DurationMinutes
	}

	p := scheduling.Proposal{
		LocationID:      gym.LocationID(req.LocationID),
		Start:           start,
		DurationMinutes: duration,
		Pattern:         fromPatternDTO(req.Pattern),
		EndDate:         endDate,
		Exclude:         gym.ScheduleID(req.ExcludeScheduleID),
	}

	if err := h.Scheduling.ValidateSchedule(r.Context(), p); err != nil {
		if scheduling.IsConflict(err) {
			metrics.ScheduleValidationsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.ScheduleValidationsTotal.WithLabelValues("error").Inc()
		}
		h.writeError(w, err)
		return scheduling.Proposal{}, err
	}
	metrics.ScheduleValidationsTotal.WithLabelValues("ok").Inc()
	return p, nil
}

// ListInstances expands a schedule's occurrences inside ?from=&to= (dates,
// both inclusive; defaults to the next 30 days).
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Store.ScheduleByID(r.Context(), gym.ScheduleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}

	from := gym.DayOf(time.Now())
	to := from.AddDate(0, 0, 30)
	if s := r.URL.Query().Get("from"); s != "" {
		if from, err = parseDate(s); err != nil {
			h.writeError(w, &gym.ValidationError{Field: "from", Message: "must be YYYY-MM-DD"})
			return
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if to, err = parseDate(s); err != nil {
			h.writeError(w, &gym.ValidationError{Field: "to", Message: "must be YYYY-MM-DD"})
			return
		}
	}

	duration := time.Duration(gym.DefaultClassDurationMinutes) * time.Minute
	if c, err := h.Store.ClassByID(r.Context(), sched.ClassID); err == nil && c.DurationMinutes > 0 {
		duration = time.Duration(c.DurationMinutes) * time.Minute
	}

	out := []InstanceDTO{}
	for _, inst := range scheduling.ExpandInstances(*sched, from, to, duration) {
		out = append(out, InstanceDTO{
			ScheduleID: string(inst.ScheduleID),
			Start:      inst.Start.UTC().Format(time.RFC3339),
			End:        inst.End.UTC().Format(time.RFC3339),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// ENTITY HANDLERS
// =============================================================================

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	status := gym.MemberStatus(req.Status)
	if status == "" {
		status = gym.MemberPending
	}
	m := gym.Member{
		ID:     gym.MemberID(uuid.NewString()),
		GymID:  gym.GymID(req.GymID),
		Name:   req.Name,
		Email:  req.Email,
		Status: status,
	}
	if err := h.Store.CreateMember(r.Context(), m); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.MembersByGym(r.Context(), gym.GymID(chi.URLParam(r, "gymID")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, members)
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Store.MemberByID(r.Context(), gym.MemberID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p := gym.Plan{
		ID:         gym.PlanID(uuid.NewString()),
		GymID:      gym.GymID(req.GymID),
		Name:       req.Name,
		PriceCents: gym.Cents(req.PriceCents),
		Period:     gym.Frequency(req.Period),
		Active:     active,
	}
	if err := h.Store.CreatePlan(r.Context(), p); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.PlansByGym(r.Context(), gym.GymID(chi.URLParam(r, "gymID")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, plans)
}

func (h *Handler) CreateMembership(w http.ResponseWriter, r *http.Request) {
	var req CreateMembershipRequest
	if !h.decode(w, r, &req) {
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		h.writeError(w, &gym.ValidationError{Field: "startDate", Message: "must be YYYY-MM-DD"})
		return
	}
	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		h.writeError(w, &gym.ValidationError{Field: "endDate", Message: "must be YYYY-MM-DD"})
		return
	}
	// Referential sanity before insert.
	if _, err := h.Store.MemberByID(r.Context(), gym.MemberID(req.MemberID)); err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.Store.PlanByID(r.Context(), gym.PlanID(req.PlanID)); err != nil {
		h.writeError(w, err)
		return
	}
	ms := gym.Membership{
		ID:        gym.MembershipID(uuid.NewString()),
		MemberID:  gym.MemberID(req.MemberID),
		PlanID:    gym.PlanID(req.PlanID),
		StartDate: startDate,
		EndDate:   endDate,
	}
	if err := h.Store.CreateMembership(r.Context(), ms); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, ms)
}

func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var req CreateChargeRequest
	if !h.decode(w, r, &req) {
		return
	}
	chargeDate, err := parseDate(req.ChargeDate)
	if err != nil {
		h.writeError(w, &gym.ValidationError{Field: "chargeDate", Message: "must be YYYY-MM-DD"})
		return
	}
	if _, err := h.Store.MemberByID(r.Context(), gym.MemberID(req.MemberID)); err != nil {
		h.writeError(w, err)
		return
	}
	ch := gym.Charge{
		ID:          gym.ChargeID(uuid.NewString()),
		MemberID:    gym.MemberID(req.MemberID),
		AmountCents: gym.Cents(req.AmountCents),
		Note:        req.Note,
		ChargeDate:  chargeDate,
		Type:        gym.ChargeOneTime,
	}
	if err := h.Store.CreateCharge(r.Context(), ch); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, ch)
}

func (h *Handler) ListCharges(w http.ResponseWriter, r *http.Request) {
	charges, err := h.Store.ChargesByMember(r.Context(), gym.MemberID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, charges)
}

func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := gym.Class{
		ID:              gym.ClassID(uuid.NewString()),
		GymID:           gym.GymID(req.GymID),
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.Store.CreateClass(r.Context(), c); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.Store.ClassesByGym(r.Context(), gym.GymID(chi.URLParam(r, "gymID")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, classes)
}

func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	l := gym.Location{
		ID:    gym.LocationID(uuid.NewString()),
		GymID: gym.GymID(req.GymID),
		Name:  req.Name,
	}
	if err := h.Store.CreateLocation(r.Context(), l); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, l)
}

func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Store.LocationsByGym(r.Context(), gym.GymID(chi.URLParam(r, "gymID")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, locations)
}

// =============================================================================
// PLUMBING
// =============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) parsePeriod(w http.ResponseWriter, startStr, endStr string) (time.Time, time.Time, bool) {
	start, err := parseDate(startStr)
	if err != nil {
		h.writeError(w, &gym.ValidationError{Field: "periodStart", Message: "must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	end, err := parseDate(endStr)
	if err != nil {
		h.writeError(w, &gym.ValidationError{Field: "periodEnd", Message: "must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error().Err(err).Msg("encoding response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var conflict *scheduling.ConflictError
	if errors.As(err, &conflict) {
		resp := ConflictResponse{
			Error:        err.Error(),
			Kind:         string(conflict.Kind),
			WithSchedule: string(conflict.WithSchedule),
		}
		if conflict.Occurrence != nil {
			resp.Occurrence = conflict.Occurrence.UTC().Format(time.RFC3339)
		}
		h.writeJSON(w, http.StatusConflict, resp)
		return
	}

	switch {
	case gym.IsClientError(err):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case gym.IsNotFound(err):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		h.Log.Error().Err(err).Msg("internal error")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
