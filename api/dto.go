/*
dto.go - Request/response types for the HTTP API

PURPOSE:
  Wire-format structs with JSON tags and validation rules. Handlers decode
  into these, validate with go-playground/validator, then map to domain
  types. Domain types never carry JSON tags.

DATE FORMATS:
  Dates (billing periods, membership start/end) are "2006-01-02" and are
  interpreted as UTC midnight. Schedule start times are RFC3339.

SEE ALSO:
  - handlers.go: Handler implementations
*/
package api

import (
	"time"

	"github.com/clubops/gym-engine/billing"
	"github.com/clubops/gym-engine/gym"
)

const dateLayout = "2006-01-02"

// =============================================================================
// BILLING
// =============================================================================

// GenerateChargesRequest asks for a billing preview for one gym and period.
type GenerateChargesRequest struct {
	GymID       string `json:"gymId" validate:"required"`
	PeriodStart string `json:"periodStart" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"periodEnd" validate:"required,datetime=2006-01-02"`
}

// CommitChargesRequest persists a previously previewed run.
type CommitChargesRequest struct {
	GymID       string          `json:"gymId" validate:"required"`
	PeriodStart string          `json:"periodStart" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string          `json:"periodEnd" validate:"required,datetime=2006-01-02"`
	Charges     []ChargeItemDTO `json:"charges" validate:"required,min=1,dive"`
}

// ChargeItemDTO is one charge descriptor on the wire.
type ChargeItemDTO struct {
	MemberID     string `json:"memberId" validate:"required"`
	PlanID       string `json:"planId,omitempty"`
	MembershipID string `json:"membershipId,omitempty"`
	AmountCents  int64  `json:"amountCents" validate:"min=0"`
	Note         string `json:"note,omitempty"`
	ChargeDate   string `json:"chargeDate" validate:"required,datetime=2006-01-02"`
	Type         string `json:"type" validate:"required,oneof=one-time-charge recurring-plan pro-rated"`
}

// GenerateChargesResponse is the preview result.
type GenerateChargesResponse struct {
	GymID       string          `json:"gymId"`
	PeriodStart string          `json:"periodStart"`
	PeriodEnd   string          `json:"periodEnd"`
	Charges     []ChargeItemDTO `json:"charges"`
	Summary     SummaryDTO      `json:"summary"`
}

type SummaryDTO struct {
	OneTimeCount   int   `json:"oneTimeCount"`
	RecurringCount int   `json:"recurringCount"`
	ProratedCount  int   `json:"proratedCount"`
	TotalCents     int64 `json:"totalCents"`
}

// CommitChargesResponse reports what the commit persisted.
type CommitChargesResponse struct {
	BillingRunID string `json:"billingRunId"`
	CreatedRows  int    `json:"createdRows"`
	BilledOnline int    `json:"billedOnline"`
	Total        int    `json:"total"`
}

// BillingRunDTO is one committed run in a listing.
type BillingRunDTO struct {
	ID          string `json:"id"`
	GymID       string `json:"gymId"`
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
	CreatedAt   string `json:"createdAt"`
}

// =============================================================================
// SCHEDULING
// =============================================================================

// RecurrencePatternDTO mirrors gym.RecurrencePattern on the wire. Days of
// week use 0-6, Sunday = 0.
type RecurrencePatternDTO struct {
	Frequency  string `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	Interval   int    `json:"interval" validate:"min=1"`
	DaysOfWeek []int  `json:"daysOfWeek,omitempty" validate:"dive,min=0,max=6"`
}

// CreateScheduleRequest creates (or validates, via /validate) a schedule.
type CreateScheduleRequest struct {
	ClassID       string                `json:"classId" validate:"required"`
	LocationID    string                `json:"locationId" validate:"required"`
	StartDateTime string                `json:"startDateTime" validate:"required"`
	Pattern       *RecurrencePatternDTO `json:"pattern,omitempty"`
	EndDate       string                `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`

	// ExcludeScheduleID removes the schedule being edited from conflict
	// checks, so updates don't collide with themselves.
	ExcludeScheduleID string `json:"excludeScheduleId,omitempty"`
}

// ScheduleDTO is one schedule on the wire.
type ScheduleDTO struct {
	ID            string                `json:"id"`
	ClassID       string                `json:"classId"`
	LocationID    string                `json:"locationId"`
	StartDateTime string                `json:"startDateTime"`
	Recurring     bool                  `json:"recurring"`
	Pattern       *RecurrencePatternDTO `json:"pattern,omitempty"`
	EndDate       string                `json:"endDate,omitempty"`
}

// InstanceDTO is one expanded occurrence.
type InstanceDTO struct {
	ScheduleID string `json:"scheduleId"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// ConflictResponse describes a rejected schedule.
type ConflictResponse struct {
	Error        string `json:"error"`
	Kind         string `json:"kind"`
	WithSchedule string `json:"withScheduleId"`
	Occurrence   string `json:"occurrence,omitempty"`
}

// =============================================================================
// ENTITIES
// =============================================================================

type CreateMemberRequest struct {
	GymID  string `json:"gymId" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=approved pending suspended"`
}

type CreatePlanRequest struct {
	GymID      string `json:"gymId" validate:"required"`
	Name       string `json:"name" validate:"required"`
	PriceCents int64  `json:"priceCents" validate:"min=0"`
	Period     string `json:"period" validate:"required,oneof=weekly monthly quarterly yearly"`
	Active     *bool  `json:"active,omitempty"`
}

type CreateMembershipRequest struct {
	MemberID  string `json:"memberId" validate:"required"`
	PlanID    string `json:"planId" validate:"required"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type CreateChargeRequest struct {
	MemberID    string `json:"memberId" validate:"required"`
	AmountCents int64  `json:"amountCents" validate:"min=0"`
	Note        string `json:"note,omitempty"`
	ChargeDate  string `json:"chargeDate" validate:"required,datetime=2006-01-02"`
}

type CreateClassRequest struct {
	GymID           string `json:"gymId" validate:"required"`
	Name            string `json:"name" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" validate:"min=1"`
}

type CreateLocationRequest struct {
	GymID string `json:"gymId" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

// =============================================================================
// MAPPING HELPERS
// =============================================================================

func toChargeItemDTO(ch billing.ChargeItem) ChargeItemDTO {
	dto := ChargeItemDTO{
		MemberID:    string(ch.MemberID),
		AmountCents: int64(ch.AmountCents),
		Note:        ch.Note,
		ChargeDate:  ch.ChargeDate.UTC().Format(dateLayout),
		Type:        string(ch.Type),
	}
	if ch.PlanID != nil {
		dto.PlanID = string(*ch.PlanID)
	}
	if ch.MembershipID != nil {
		dto.MembershipID = string(*ch.MembershipID)
	}
	return dto
}

func fromChargeItemDTO(dto ChargeItemDTO) (billing.ChargeItem, error) {
	chargeDate, err := time.ParseInLocation(dateLayout, dto.ChargeDate, time.UTC)
	if err != nil {
		return billing.ChargeItem{}, err
	}
	item := billing.ChargeItem{
		MemberID:    gym.MemberID(dto.MemberID),
		AmountCents: gym.Cents(dto.AmountCents),
		Note:        dto.Note,
		ChargeDate:  chargeDate,
		Type:        gym.ChargeType(dto.Type),
	}
	if dto.PlanID != "" {
		id := gym.PlanID(dto.PlanID)
		item.PlanID = &id
	}
	if dto.MembershipID != "" {
		id := gym.MembershipID(dto.MembershipID)
		item.MembershipID = &id
	}
	return item, nil
}

func toScheduleDTO(s gym.Schedule) ScheduleDTO {
	dto := ScheduleDTO{
		ID:            string(s.ID),
		ClassID:       string(s.ClassID),
		LocationID:    string(s.LocationID),
		StartDateTime: s.StartDateTime.UTC().Format(time.RFC3339),
		Recurring:     s.Recurring,
	}
	if s.Pattern != nil {
		dto.Pattern = &RecurrencePatternDTO{
			Frequency: string(s.Pattern.Frequency),
			Interval:  s.Pattern.Interval,
		}
		for _, wd := range s.Pattern.DaysOfWeek {
			dto.Pattern.DaysOfWeek = append(dto.Pattern.DaysOfWeek, int(wd))
		}
	}
	if s.EndDate != nil {
		dto.EndDate = s.EndDate.UTC().Format(dateLayout)
	}
	return dto
}

func fromPatternDTO(dto *RecurrencePatternDTO) *gym.RecurrencePattern {
	if dto == nil {
		return nil
	}
	p := &gym.RecurrencePattern{
		Frequency: gym.RecurrenceFrequency(dto.Frequency),
		Interval:  dto.Interval,
	}
	for _, d := range dto.DaysOfWeek {
		p.DaysOfWeek = append(p.DaysOfWeek, time.Weekday(d))
	}
	return p
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
