/*
scheduler.go - Automated month recalculation

PURPOSE:
  Periodically re-saves every fee record of the current billing month so
  that holiday ranges, rate cards, or activity schedules edited after a
  fee was first saved are reflected without manual re-saves.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick calls billing.Recalculator.RecalculateMonth for the month
    containing Now()
  - Saves go through billing.Writer, so every record is recomputed from
    scratch and upserted under its original key (same record ID)
  - Individual record failures are logged and counted, never fatal

USAGE:
  scheduler := NewRecalculationScheduler(handler.Recalculator, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Recalculate endpoint (manual trigger)
  - billing/recalc.go: Recalculator
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/generic"
)

// RecalculationScheduler recalculates the current month on a timer.
type RecalculationScheduler struct {
	Recalculator  *billing.Recalculator
	CheckInterval time.Duration
	Enabled       bool
	Logger        *zap.Logger
	Metrics       *Metrics
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastResult billing.RecalcResult
	lastRun    time.Time
}

// NewRecalculationScheduler creates a new scheduler.
func NewRecalculationScheduler(recalc *billing.Recalculator, logger *zap.Logger) *RecalculationScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecalculationScheduler{
		Recalculator:  recalc,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Logger:        logger,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (rs *RecalculationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("recalculation scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)
	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("recalculation scheduler started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (rs *RecalculationScheduler) Stop() {
	rs.mu.Lock()
	if rs.ticker == nil {
		rs.mu.Unlock()
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.ticker = nil
	rs.mu.Unlock()

	rs.wg.Wait()
	rs.Logger.Info("recalculation scheduler stopped")
}

func (rs *RecalculationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	rs.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			rs.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow recalculates the current month synchronously (for testing/admin).
func (rs *RecalculationScheduler) RunNow(ctx context.Context) (billing.RecalcResult, error) {
	month := generic.MonthOf(generic.FromTime(rs.Now())).Start

	result, err := rs.Recalculator.RecalculateMonth(ctx, month)
	if err != nil {
		rs.Logger.Error("scheduled recalculation failed", zap.Stringer("month", month), zap.Error(err))
		return result, err
	}
	if rs.Metrics != nil {
		rs.Metrics.ObserveRecalc(result)
	}

	rs.mu.Lock()
	rs.lastResult = result
	rs.lastRun = rs.Now()
	rs.mu.Unlock()
	return result, nil
}

// LastResult returns the most recent successful run and when it happened.
func (rs *RecalculationScheduler) LastResult() (billing.RecalcResult, time.Time) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastResult, rs.lastRun
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *RecalculationScheduler) GetNextRunTime() time.Time {
	return rs.Now().Add(rs.CheckInterval)
}
