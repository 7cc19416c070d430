/*
Package sqlite provides a SQLite-backed implementation of gym.Store.

PURPOSE:
  Production persistence for the billing and scheduling engines. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  members:      Gym members with approval status
  plans:        Recurring price points
  memberships:  Member-to-plan links with billing bookkeeping
  charges:      Monetary line items, one-time and plan-backed
  billing_runs: One row per committed billing period
  classes:      Schedulable classes with durations
  locations:    Rooms/areas schedules are booked into
  schedules:    One-off and recurring bookings

CONCURRENCY BACKSTOP:
  idx_charges_membership_period is a UNIQUE index on (membership_id,
  DATE(charge_date)). Two concurrent billing commits that both passed the
  grace-window check cannot both insert a recurring charge for the same
  membership and period start - the second insert fails with
  gym.ErrDuplicatePeriodCharge. The engines take no locks; this index is
  the last line of defense.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

DATE STORAGE:
  Instants are stored as RFC3339 UTC strings. Day-level comparisons use
  DATE() over those strings, matching the engines' UTC-midnight
  convention.

USAGE:
  store, err := sqlite.New("./data/gym.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - gym/store.go: Interface definitions
  - gym/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clubops/gym-engine/gym"
)

// Store implements gym.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ gym.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		gym_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_members_gym_status
		ON members(gym_id, status);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		gym_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
		period TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_plans_gym_active
		ON plans(gym_id, active);

	CREATE TABLE IF NOT EXISTS memberships (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL REFERENCES members(id),
		plan_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		last_billed_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_member
		ON memberships(member_id);

	CREATE TABLE IF NOT EXISTS charges (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL REFERENCES members(id),
		plan_id TEXT,
		membership_id TEXT,
		amount_cents INTEGER NOT NULL CHECK (amount_cents >= 0),
		note TEXT,
		charge_date TEXT NOT NULL,
		charge_type TEXT NOT NULL DEFAULT 'one-time-charge',
		billed BOOLEAN NOT NULL DEFAULT FALSE,
		billed_date TEXT,
		billing_run_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_charges_member_billed
		ON charges(member_id, billed);
	CREATE INDEX IF NOT EXISTS idx_charges_run
		ON charges(billing_run_id) WHERE billing_run_id IS NOT NULL;

	-- Backstop: one recurring charge per (membership, charge day).
	-- Concurrent commits that both passed the grace-window check cannot
	-- both insert. Scoped to recurring charges so the legitimate
	-- recurring + pro-rated pair for one membership is not rejected.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_charges_membership_period
		ON charges(membership_id, DATE(charge_date))
		WHERE membership_id IS NOT NULL AND charge_type = 'recurring-plan';

	CREATE TABLE IF NOT EXISTS billing_runs (
		id TEXT PRIMARY KEY,
		gym_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_billing_runs_gym
		ON billing_runs(gym_id, created_at);

	CREATE TABLE IF NOT EXISTS classes (
		id TEXT PRIMARY KEY,
		gym_id TEXT NOT NULL,
		name TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0)
	);

	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		gym_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		start_date_time TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		frequency TEXT,
		interval INTEGER,
		days_of_week TEXT,
		end_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_location
		ON schedules(location_id, start_date_time);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BILLING SNAPSHOT READS
// =============================================================================

func (s *Store) ApprovedMembers(ctx context.Context, gymID gym.GymID) ([]gym.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, gym_id, name, COALESCE(email, ''), status
		 FROM members WHERE gym_id = ? AND status = ? ORDER BY id`,
		string(gymID), string(gym.MemberApproved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gym.Member
	for rows.Next() {
		var m gym.Member
		if err := rows.Scan(&m.ID, &m.GymID, &m.Name, &m.Email, &m.Status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) MembershipsByGym(ctx context.Context, gymID gym.GymID) ([]gym.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT ms.id, ms.member_id, ms.plan_id, ms.start_date, ms.end_date, ms.last_billed_date
		 FROM memberships ms
		 JOIN members m ON m.id = ms.member_id
		 WHERE m.gym_id = ? ORDER BY ms.id`,
		string(gymID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gym.Membership
	for rows.Next() {
		var ms gym.Membership
		var start string
		var end, lastBilled sql.NullString
		if err := rows.Scan(&ms.ID, &ms.MemberID, &ms.PlanID, &start, &end, &lastBilled); err != nil {
			return nil, err
		}
		if ms.StartDate, err = parseTime(start); err != nil {
			return nil, err
		}
		if ms.EndDate, err = parseNullTime(end); err != nil {
			return nil, err
		}
		if ms.LastBilledDate, err = parseNullTime(lastBilled); err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}

func (s *Store) PlanByID(ctx context.Context, id gym.PlanID) (*gym.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p gym.Plan
	err := s.db.QueryRowContext(ctx,
		`SELECT id, gym_id, name, price_cents, period, active FROM plans WHERE id = ?`,
		string(id)).Scan(&p.ID, &p.GymID, &p.Name, &p.PriceCents, &p.Period, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gym.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UnbilledCharges(ctx context.Context, gymID gym.GymID) ([]gym.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.member_id, c.plan_id, c.membership_id, c.amount_cents,
		        COALESCE(c.note, ''), c.charge_date, c.charge_type, c.billed, c.billed_date, c.billing_run_id
		 FROM charges c
		 JOIN members m ON m.id = c.member_id
		 WHERE m.gym_id = ? AND c.billed = FALSE ORDER BY c.id`,
		string(gymID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCharges(rows)
}

// =============================================================================
// BILLING COMMIT WRITES
// =============================================================================

func (s *Store) CreateBillingRun(ctx context.Context, run gym.BillingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO billing_runs (id, gym_id, period_start, period_end, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(run.ID), string(run.GymID),
		formatTime(run.PeriodStart), formatTime(run.PeriodEnd), formatTime(run.CreatedAt))
	return err
}

func (s *Store) InsertCharge(ctx context.Context, ch gym.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertChargeLocked(ctx, ch)
}

func (s *Store) insertChargeLocked(ctx context.Context, ch gym.Charge) error {
	chargeType := ch.Type
	if chargeType == "" {
		chargeType = gym.ChargeOneTime
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO charges (id, member_id, plan_id, membership_id, amount_cents,
		                      note, charge_date, charge_type, billed, billed_date, billing_run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ch.ID), string(ch.MemberID),
		nullableString(ch.PlanID), nullableString(ch.MembershipID),
		int64(ch.AmountCents), ch.Note, formatTime(ch.ChargeDate), string(chargeType),
		ch.Billed, formatNullTime(ch.BilledDate), nullableString(ch.BillingRunID))
	if err != nil && strings.Contains(err.Error(), "idx_charges_membership_period") {
		return gym.ErrDuplicatePeriodCharge
	}
	return err
}

func (s *Store) MarkChargeBilled(ctx context.Context, memberID gym.MemberID, amount gym.Cents, chargeDate time.Time, runID gym.BillingRunID, billedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE charges SET billed = TRUE, billed_date = ?, billing_run_id = ?
		 WHERE id IN (
		 	SELECT id FROM charges
		 	WHERE member_id = ? AND amount_cents = ? AND DATE(charge_date) = DATE(?)
		 	  AND billed = FALSE
		 	LIMIT 1
		 )`,
		formatTime(billedAt), string(runID),
		string(memberID), int64(amount), formatTime(chargeDate))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return gym.ErrChargeNotFound
	}
	return nil
}

func (s *Store) SetMembershipLastBilled(ctx context.Context, id gym.MembershipID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET last_billed_date = ? WHERE id = ?`,
		formatTime(at), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return gym.ErrMembershipNotFound
	}
	return nil
}

// =============================================================================
// SCHEDULING READS
// =============================================================================

func (s *Store) SchedulesByLocation(ctx context.Context, id gym.LocationID) ([]gym.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, class_id, location_id, start_date_time, recurring,
		        frequency, interval, days_of_week, end_date
		 FROM schedules WHERE location_id = ? ORDER BY start_date_time`,
		string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gym.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

func (s *Store) ClassByID(ctx context.Context, id gym.ClassID) (*gym.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c gym.Class
	err := s.db.QueryRowContext(ctx,
		`SELECT id, gym_id, name, duration_minutes FROM classes WHERE id = ?`,
		string(id)).Scan(&c.ID, &c.GymID, &c.Name, &c.DurationMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gym.ErrClassNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// =============================================================================
// ENTITY CRUD
// =============================================================================

func (s *Store) CreateMember(ctx context.Context, m gym.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (id, gym_id, name, email, status) VALUES (?, ?, ?, ?, ?)`,
		string(m.ID), string(m.GymID), m.Name, m.Email, string(m.Status))
	return err
}

func (s *Store) MemberByID(ctx context.Context, id gym.MemberID) (*gym.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var m gym.Member
	err := s.db.QueryRowContext(ctx,
		`SELECT id, gym_id, name, COALESCE(email, ''), status FROM members WHERE id = ?`,
		string(id)).Scan(&m.ID, &m.GymID, &m.Name, &m.Email, &m.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gym.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) MembersByGym(ctx context.Context, gymID gym.GymID) ([]gym.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, gym_id, name, COALESCE(email, ''), status FROM members WHERE gym_id = ? ORDER BY id`,
		string(gymID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gym.Member
	for rows.Next() {
		var m gym.Member
		if err := rows.Scan(&m.ID, &m.GymID, &m.Name, &m.Email, &m.Status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CreatePlan(ctx context.Context, p gym.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plans (id, gym_id, name, price_cents, period, active) VALUES (?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.GymID), p.Name, int64(p.PriceCents), string(p.Period), p.Active)
	return err
}

func (s *Store) PlansByGym(ctx context.Context, gymID gym.GymID) ([]gym.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, gym_id, name, price_cents, period, active FROM plans WHERE gym_id = ? ORDER BY id`,
		string(gymID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gym.Plan
	for rows.Next() {
		var p gym.Plan
		if err := rows.Scan(&p.ID, &p.GymID, &p.Name, &p.PriceCents, &p.Period, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateMembership(ctx context.Context, ms gym.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (id, member_id, plan_id, start_date, end_date, last_billed_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(ms.ID), string(ms.MemberID), string(ms.PlanID),
		formatTime(ms.StartDate), formatNullTime(ms.EndDate), formatNullTime(ms.LastBilledDate))
	return err
}

func (s *Store) MembershipByID(ctx context.Context, id gym.MembershipID) (*gym.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ms gym.Membership
	var start string
	var end, lastBilled sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, member_id, plan_id, start_date, end_date, last_billed_date
		 FROM memberships WHERE id = ?`,
		string(id)).Scan(&ms.ID, &ms.MemberID, &ms.PlanID, &start, &end, &lastBilled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gym.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	if ms.StartDate, err = parseTime(start); err != nil {
		return nil, err
	}
	if ms.EndDate, err = parseNullTime(end); err != nil {
		return nil, err
	}
	if ms.LastBilledDate, err = parseNullTime(lastBilled); err != nil {
		return nil, err
	}
	return &ms, nil
}

func (s *Store) CreateCharge(ctx context.Context, ch gym.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertChargeLocked(ctx, ch)
}

func (s *Store) ChargesByMember(ctx context.Context, id gym.MemberID) ([]gym.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, member_id, plan_id, membership_id, amount_cents,
		        COALESCE(note, ''), charge_date, charge_type, billed, billed_date, billing_run_id
		 FROM charges WHERE member_id = ? ORDER BY charge_date`,
		string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCharges(rows)
}

func (s *Store) BillingRunsByGym(ctx context.Context, gymID gym.GymID) ([]gym.BillingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, gym_id, period_start, period_end, created_at
		 FROM billing_runs WHERE gym_id = ? ORDER BY created_at`,
		string(gymID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gym.BillingRun
	for rows.Next() {
		var r gym.BillingRun
		var start, end, created string
		if err := rows.Scan(&r.ID, &r.GymID, &start, &end, &created); err != nil {
			return nil, err
		}
		if r.PeriodStart, err = parseTime(start); err != nil {
			return nil, err
		}
		if r.PeriodEnd, err = parseTime(end); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CreateClass(ctx context.Context, c gym.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO classes (id, gym_id, name, duration_minutes) VALUES (?, ?, ?, ?)`,
		string(c.ID), string(c.GymID), c.Name, c.DurationMinutes)
	return err
}

func (s *Store) CreateLocation(ctx context.Context, l gym.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (id, gym_id, name) VALUES (?, ?, ?)`,
		string(l.ID), string(l.GymID), l.Name)
	return err
}

func (s *Store) LocationsByGym(ctx context.Context, gymID gym.GymID) ([]gym.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, gym_id, name FROM locations WHERE gym_id = ? ORDER BY id`,
		string(gymID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gym.Location
	for rows.Next() {
		var l gym.Location
		if err := rows.Scan(&l.ID, &l.GymID, &l.Name); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ClassesByGym(ctx context.Context, gymID gym.GymID) ([]gym.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, gym_id, name, duration_minutes FROM classes WHERE gym_id = ? ORDER BY id`,
		string(gymID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gym.Class
	for rows.Next() {
		var c gym.Class
		if err := rows.Scan(&c.ID, &c.GymID, &c.Name, &c.DurationMinutes); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateSchedule(ctx context.Context, sched gym.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var frequency, daysOfWeek sql.NullString
	var interval sql.NullInt64
	if sched.Pattern != nil {
		frequency = sql.NullString{String: string(sched.Pattern.Frequency), Valid: true}
		interval = sql.NullInt64{Int64: int64(sched.Pattern.Interval), Valid: true}
		daysOfWeek = sql.NullString{String: encodeWeekdays(sched.Pattern.DaysOfWeek), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (id, class_id, location_id, start_date_time, recurring,
		                        frequency, interval, days_of_week, end_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sched.ID), string(sched.ClassID), string(sched.LocationID),
		formatTime(sched.StartDateTime), sched.Recurring,
		frequency, interval, daysOfWeek, formatNullTime(sched.EndDate))
	return err
}

func (s *Store) ScheduleByID(ctx context.Context, id gym.ScheduleID) (*gym.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, class_id, location_id, start_date_time, recurring,
		        frequency, interval, days_of_week, end_date
		 FROM schedules WHERE id = ?`,
		string(id))
	sched, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gym.ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

func (s *Store) GymsWithActivePlans(ctx context.Context) ([]gym.GymID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT gym_id FROM plans WHERE active = TRUE ORDER BY gym_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gym.GymID
	for rows.Next() {
		var id gym.GymID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// =============================================================================
// SCAN / FORMAT HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharges(rows *sql.Rows) ([]gym.Charge, error) {
	var out []gym.Charge
	for rows.Next() {
		var ch gym.Charge
		var planID, membershipID, runID, billedDate sql.NullString
		var chargeDate string
		if err := rows.Scan(&ch.ID, &ch.MemberID, &planID, &membershipID,
			&ch.AmountCents, &ch.Note, &chargeDate, &ch.Type, &ch.Billed, &billedDate, &runID); err != nil {
			return nil, err
		}
		var err error
		if ch.ChargeDate, err = parseTime(chargeDate); err != nil {
			return nil, err
		}
		if ch.BilledDate, err = parseNullTime(billedDate); err != nil {
			return nil, err
		}
		if planID.Valid {
			v := gym.PlanID(planID.String)
			ch.PlanID = &v
		}
		if membershipID.Valid {
			v := gym.MembershipID(membershipID.String)
			ch.MembershipID = &v
		}
		if runID.Valid {
			v := gym.BillingRunID(runID.String)
			ch.BillingRunID = &v
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func scanSchedule(row rowScanner) (gym.Schedule, error) {
	var sched gym.Schedule
	var start string
	var frequency, daysOfWeek, endDate sql.NullString
	var interval sql.NullInt64
	if err := row.Scan(&sched.ID, &sched.ClassID, &sched.LocationID, &start,
		&sched.Recurring, &frequency, &interval, &daysOfWeek, &endDate); err != nil {
		return gym.Schedule{}, err
	}
	var err error
	if sched.StartDateTime, err = parseTime(start); err != nil {
		return gym.Schedule{}, err
	}
	if sched.EndDate, err = parseNullTime(endDate); err != nil {
		return gym.Schedule{}, err
	}
	if frequency.Valid && frequency.String != "" {
		sched.Pattern = &gym.RecurrencePattern{
			Frequency: gym.RecurrenceFrequency(frequency.String),
			Interval:  int(interval.Int64),
		}
		if daysOfWeek.Valid {
			sched.Pattern.DaysOfWeek = decodeWeekdays(daysOfWeek.String)
		}
	}
	return sched, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// nullableString maps a nil typed-ID pointer to SQL NULL.
func nullableString[T ~string](id *T) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// encodeWeekdays stores weekdays as a comma list of 0-6 (Sunday = 0).
func encodeWeekdays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprintf("%d", int(d))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) []time.Weekday {
	if s == "" {
		return nil
	}
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &n); err == nil && n >= 0 && n <= 6 {
			out = append(out, time.Weekday(n))
		}
	}
	return out
}
