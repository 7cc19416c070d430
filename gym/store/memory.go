// Package store provides an in-memory gym.Store implementation for tests
// and development. The sqlite store is the production implementation.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clubops/gym-engine/gym"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	members     map[gym.MemberID]gym.Member
	plans       map[gym.PlanID]gym.Plan
	memberships map[gym.MembershipID]gym.Membership
	charges     map[gym.ChargeID]gym.Charge
	runs        map[gym.BillingRunID]gym.BillingRun
	classes     map[gym.ClassID]gym.Class
	locations   map[gym.LocationID]gym.Location
	schedules   map[gym.ScheduleID]gym.Schedule
}

var _ gym.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		members:     make(map[gym.MemberID]gym.Member),
		plans:       make(map[gym.PlanID]gym.Plan),
		memberships: make(map[gym.MembershipID]gym.Membership),
		charges:     make(map[gym.ChargeID]gym.Charge),
		runs:        make(map[gym.BillingRunID]gym.BillingRun),
		classes:     make(map[gym.ClassID]gym.Class),
		locations:   make(map[gym.LocationID]gym.Location),
		schedules:   make(map[gym.ScheduleID]gym.Schedule),
	}
}

// =============================================================================
// BILLING SNAPSHOT READS
// =============================================================================

func (m *Memory) ApprovedMembers(_ context.Context, gymID gym.GymID) ([]gym.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []gym.Member
	for _, mb := range m.members {
		if mb.GymID == gymID && mb.Status == gym.MemberApproved {
			out = append(out, mb)
		}
	}
	sortByID(out, func(mb gym.Member) string { return string(mb.ID) })
	return out, nil
}

func (m *Memory) MembershipsByGym(_ context.Context, gymID gym.GymID) ([]gym.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []gym.Membership
	for _, ms := range m.memberships {
		member, ok := m.members[ms.MemberID]
		if !ok || member.GymID != gymID {
			continue
		}
		out = append(out, cloneMembership(ms))
	}
	sortByID(out, func(ms gym.Membership) string { return string(ms.ID) })
	return out, nil
}

func (m *Memory) PlanByID(_ context.Context, id gym.PlanID) (*gym.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[id]
	if !ok {
		return nil, gym.ErrPlanNotFound
	}
	return &p, nil
}

func (m *Memory) UnbilledCharges(_ context.Context, gymID gym.GymID) ([]gym.Charge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []gym.Charge
	for _, ch := range m.charges {
		member, ok := m.members[ch.MemberID]
		if !ok || member.GymID != gymID || ch.Billed {
			continue
		}
		out = append(out, cloneCharge(ch))
	}
	sortByID(out, func(ch gym.Charge) string { return string(ch.ID) })
	return out, nil
}

// =============================================================================
// BILLING COMMIT WRITES
// =============================================================================

func (m *Memory) CreateBillingRun(_ context.Context, run gym.BillingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) InsertCharge(_ context.Context, ch gym.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Backstop: one recurring charge per (membership, charge date). Scoped
	// to recurring charges so the legitimate recurring + pro-rated pair for
	// the same membership and period start is not rejected.
	if ch.Type == gym.ChargeRecurring && ch.MembershipID != nil {
		for _, existing := range m.charges {
			if existing.Type == gym.ChargeRecurring &&
				existing.MembershipID != nil && *existing.MembershipID == *ch.MembershipID &&
				gym.SameDay(existing.ChargeDate, ch.ChargeDate) {
				return gym.ErrDuplicatePeriodCharge
			}
		}
	}
	m.charges[ch.ID] = cloneCharge(ch)
	return nil
}

func (m *Memory) MarkChargeBilled(_ context.Context, memberID gym.MemberID, amount gym.Cents, chargeDate time.Time, runID gym.BillingRunID, billedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ch := range m.charges {
		if ch.Billed || ch.MemberID != memberID || ch.AmountCents != amount || !gym.SameDay(ch.ChargeDate, chargeDate) {
			continue
		}
		ch.Billed = true
		ch.BilledDate = &billedAt
		ch.BillingRunID = &runID
		m.charges[id] = ch
		return nil
	}
	return gym.ErrChargeNotFound
}

func (m *Memory) SetMembershipLastBilled(_ context.Context, id gym.MembershipID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.memberships[id]
	if !ok {
		return gym.ErrMembershipNotFound
	}
	ms.LastBilledDate = &at
	m.memberships[id] = ms
	return nil
}

// =============================================================================
// SCHEDULING READS
// =============================================================================

func (m *Memory) SchedulesByLocation(_ context.Context, id gym.LocationID) ([]gym.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []gym.Schedule
	for _, s := range m.schedules {
		if s.LocationID == id {
			out = append(out, cloneSchedule(s))
		}
	}
	sortByID(out, func(s gym.Schedule) string { return string(s.ID) })
	return out, nil
}

func (m *Memory) ClassByID(_ context.Context, id gym.ClassID) (*gym.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.classes[id]
	if !ok {
		return nil, gym.ErrClassNotFound
	}
	return &c, nil
}

// =============================================================================
// ENTITY CRUD
// =============================================================================

func (m *Memory) CreateMember(_ context.Context, mb gym.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[mb.ID] = mb
	return nil
}

func (m *Memory) MemberByID(_ context.Context, id gym.MemberID) (*gym.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mb, ok := m.members[id]
	if !ok {
		return nil, gym.ErrMemberNotFound
	}
	return &mb, nil
}

func (m *Memory) MembersByGym(_ context.Context, gymID gym.GymID) ([]gym.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []gym.Member
	for _, mb := range m.members {
		if mb.GymID == gymID {
			out = append(out, mb)
		}
	}
	sortByID(out, func(mb gym.Member) string { return string(mb.ID) })
	return out, nil
}

func (m *Memory) CreatePlan(_ context.Context, p gym.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
	return nil
}

func (m *Memory) PlansByGym(_ context.Context, gymID gym.GymID) ([]gym.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []gym.Plan
	for _, p := range m.plans {
		if p.GymID == gymID {
			out = append(out, p)
		}
	}
	sortByID(out, func(p gym.Plan) string { return string(p.ID) })
	return out, nil
}

func (m *Memory) CreateMembership(_ context.Context, ms gym.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberships[ms.ID] = cloneMembership(ms)
	return nil
}

func (m *Memory) MembershipByID(_ context.Context, id gym.MembershipID) (*gym.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.memberships[id]
	if !ok {
		return nil, gym.ErrMembershipNotFound
	}
	out := cloneMembership(ms)
	return &out, nil
}

func (m *Memory) CreateCharge(_ context.Context, ch gym.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges[ch.ID] = cloneCharge(ch)
	return nil
}

func (m *Memory) ChargesByMember(_ context.Context, id gym.MemberID) ([]gym.Charge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []gym.Charge
	for _, ch := range m.charges {
		if ch.MemberID == id {
			out = append(out, cloneCharge(ch))
		}
	}
	sortByID(out, func(ch gym.Charge) string { return string(ch.ID) })
	return out, nil
}

func (m *Memory) BillingRunsByGym(_ context.Context, gymID gym.GymID) ([]gym.BillingRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []gym.BillingRun
	for _, r := range m.runs {
		if r.GymID == gymID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateClass(_ context.Context, c gym.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[c.ID] = c
	return nil
}

func (m *Memory) CreateLocation(_ context.Context, l gym.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[l.ID] = l
	return nil
}

func (m *Memory) LocationsByGym(_ context.Context, gymID gym.GymID) ([]gym.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []gym.Location
	for _, l := range m.locations {
		if l.GymID == gymID {
			out = append(out, l)
		}
	}
	sortByID(out, func(l gym.Location) string { return string(l.ID) })
	return out, nil
}

func (m *Memory) ClassesByGym(_ context.Context, gymID gym.GymID) ([]gym.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []gym.Class
	for _, c := range m.classes {
		if c.GymID == gymID {
			out = append(out, c)
		}
	}
	sortByID(out, func(c gym.Class) string { return string(c.ID) })
	return out, nil
}

func (m *Memory) CreateSchedule(_ context.Context, s gym.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = cloneSchedule(s)
	return nil
}

func (m *Memory) ScheduleByID(_ context.Context, id gym.ScheduleID) (*gym.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, gym.ErrScheduleNotFound
	}
	out := cloneSchedule(s)
	return &out, nil
}

func (m *Memory) GymsWithActivePlans(_ context.Context) ([]gym.GymID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[gym.GymID]bool)
	var out []gym.GymID
	for _, p := range m.plans {
		if p.Active && !seen[p.GymID] {
			seen[p.GymID] = true
			out = append(out, p.GymID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// =============================================================================
// COPY HELPERS - Readers must never share pointers with the store
// =============================================================================

func cloneMembership(ms gym.Membership) gym.Membership {
	ms.EndDate = cloneTime(ms.EndDate)
	ms.LastBilledDate = cloneTime(ms.LastBilledDate)
	return ms
}

func cloneCharge(ch gym.Charge) gym.Charge {
	ch.BilledDate = cloneTime(ch.BilledDate)
	if ch.PlanID != nil {
		v := *ch.PlanID
		ch.PlanID = &v
	}
	if ch.MembershipID != nil {
		v := *ch.MembershipID
		ch.MembershipID = &v
	}
	if ch.BillingRunID != nil {
		v := *ch.BillingRunID
		ch.BillingRunID = &v
	}
	return ch
}

func cloneSchedule(s gym.Schedule) gym.Schedule {
	s.EndDate = cloneTime(s.EndDate)
	if s.Pattern != nil {
		p := *s.Pattern
		p.DaysOfWeek = append([]time.Weekday(nil), s.Pattern.DaysOfWeek...)
		s.Pattern = &p
	}
	return s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func sortByID[T any](items []T, id func(T) string) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}
