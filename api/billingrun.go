/*
billingrun.go - Automated monthly billing scheduler

PURPOSE:
  Periodically finds gyms with active plans and, once per calendar month,
  generates and commits their recurring billing run. A gym whose latest
  committed run already covers the current month is skipped.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Bills the current calendar month: [1st, last day], both UTC
  - Skips gyms already billed for the month (idempotent re-checks)
  - Partial commits are logged and counted; the next check does not
    retry them automatically - what landed is protected by the grace
    window and the duplicate-period backstop

USAGE:
  scheduler := NewBillingScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Manual generate/commit endpoints
  - billing/engine.go: Charge generation
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clubops/gym-engine/billing"
	"github.com/clubops/gym-engine/gym"
	"github.com/clubops/gym-engine/metrics"
)

// BillingScheduler handles automated monthly billing.
type BillingScheduler struct {
	Store         gym.Store
	Handler       *Handler
	Log           zerolog.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Now is the scheduling clock. Overridable in tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBillingScheduler creates a new scheduler.
func NewBillingScheduler(store gym.Store, handler *Handler, log zerolog.Logger) *BillingScheduler {
	return &BillingScheduler{
		Store:         store,
		Handler:       handler,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		bs.Log.Info().Msg("billing scheduler disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)
	go bs.run()

	bs.Log.Info().Dur("interval", bs.CheckInterval).Msg("billing scheduler started")
}

// Stop stops the scheduler.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.Log.Info().Msg("billing scheduler stopped")
	}
}

func (bs *BillingScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.checkAndProcess()

	for {
		select {
		case <-bs.ticker.C:
			bs.checkAndProcess()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BillingScheduler) checkAndProcess() {
	ctx := context.Background()
	periodStart, periodEnd := currentMonth(bs.Now())

	gyms, err := bs.Store.GymsWithActivePlans(ctx)
	if err != nil {
		bs.Log.Error().Err(err).Msg("listing gyms with active plans")
		return
	}

	processed := 0
	skipped := 0
	for _, gymID := range gyms {
		billed, err := bs.alreadyBilled(ctx, gymID, periodStart)
		if err != nil {
			bs.Log.Error().Err(err).Str("gym_id", string(gymID)).Msg("checking billing history")
			continue
		}
		if billed {
			skipped++
			continue
		}
		if err := bs.processGym(ctx, gymID, periodStart, periodEnd); err != nil {
			bs.Log.Error().Err(err).Str("gym_id", string(gymID)).Msg("automated billing failed")
			continue
		}
		processed++
	}

	if processed > 0 || skipped > 0 {
		bs.Log.Info().
			Int("processed", processed).
			Int("skipped", skipped).
			Msg("billing check completed")
	}
}

// alreadyBilled reports whether the gym has a committed run whose period
// start falls in the month being billed.
func (bs *BillingScheduler) alreadyBilled(ctx context.Context, gymID gym.GymID, periodStart time.Time) (bool, error) {
	runs, err := bs.Store.BillingRunsByGym(ctx, gymID)
	if err != nil {
		return false, err
	}
	for _, run := range runs {
		s := run.PeriodStart.UTC()
		if s.Year() == periodStart.Year() && s.Month() == periodStart.Month() {
			return true, nil
		}
	}
	return false, nil
}

func (bs *BillingScheduler) processGym(ctx context.Context, gymID gym.GymID, periodStart, periodEnd time.Time) error {
	run, err := bs.Handler.Billing.GenerateCharges(ctx, gymID, periodStart, periodEnd)
	if err != nil {
		return err
	}
	if len(run.Charges) == 0 {
		return nil
	}

	result, err := bs.Handler.Billing.Commit(ctx, run)

	var commitErr *billing.CommitError
	switch {
	case err == nil:
		metrics.BillingRunsTotal.WithLabelValues("ok").Inc()
	case errors.As(err, &commitErr):
		metrics.BillingRunsTotal.WithLabelValues("partial").Inc()
		bs.Log.Warn().
			Str("gym_id", string(gymID)).
			Int("succeeded", commitErr.Succeeded).
			Int("total", commitErr.Total).
			Msg("automated billing committed partially")
	default:
		metrics.BillingRunsTotal.WithLabelValues("error").Inc()
		return err
	}

	bs.Log.Info().
		Str("gym_id", string(gymID)).
		Str("run_id", string(result.RunID)).
		Int("created", result.CreatedRows).
		Int("billed_online", result.BilledOnline).
		Msg("automated billing run committed")
	return nil
}

// RunNow triggers an immediate check (for testing/admin).
func (bs *BillingScheduler) RunNow() {
	bs.checkAndProcess()
}

// currentMonth returns the UTC calendar month containing now, as
// [1st, last day] at midnight.
func currentMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}
