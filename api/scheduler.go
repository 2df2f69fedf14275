/*
scheduler.go - Automated case synchronization scheduler

PURPOSE:
  Periodically compares the case repository with the stored SyncRecords and
  repairs whatever drifted: cases that were never synchronized, assignees
  changed behind the controller's back, and records left PENDING or ERROR.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each pass is recorded in sync_runs for audit and UI display
  - A failed case is flagged ERROR on its record and counted; the pass
    continues with the next case
  - The comparison for each case runs under the controller's case lock

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSyncScheduler(controller, store, logger, metrics)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSync endpoint (manual run)
  - access/controller.go: ReconcileCase
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/customs-les/case-engine/access"
	"github.com/customs-les/case-engine/store/sqlite"
)

// SyncScheduler reconciles cases with their access records.
type SyncScheduler struct {
	Controller    *access.Controller
	Store         *sqlite.Store
	Logger        *zap.Logger
	Metrics       *Metrics
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// running serializes passes started by the ticker and by RunNow.
	running sync.Mutex
}

// NewSyncScheduler creates a new scheduler. The controller must have a
// case repository.
func NewSyncScheduler(ctl *access.Controller, store *sqlite.Store, logger *zap.Logger, metrics *Metrics) *SyncScheduler {
	return &SyncScheduler{
		Controller:    ctl,
		Store:         store,
		Logger:        logger,
		Metrics:       metrics,
		CheckInterval: time.Minute,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("sync scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	s.Logger.Info("sync scheduler started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for the current pass to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("sync scheduler stopped")
	}
}

func (s *SyncScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.pass()

	for {
		select {
		case <-s.ticker.C:
			s.pass()
		case <-s.stop:
			return
		}
	}
}

func (s *SyncScheduler) pass() {
	if _, err := s.RunNow(context.Background()); err != nil {
		s.Logger.Error("sync pass failed", zap.Error(err))
	}
}

// RunNow performs one pass and returns its run record.
func (s *SyncScheduler) RunNow(ctx context.Context) (sqlite.SyncRun, error) {
	s.running.Lock()
	defer s.running.Unlock()

	if s.Controller.Cases == nil {
		return sqlite.SyncRun{}, errors.New("sync scheduler needs a case repository")
	}

	run := sqlite.SyncRun{
		ID:        fmt.Sprintf("sync-%d", time.Now().UnixNano()),
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	s.saveRun(ctx, run)

	err := s.reconcile(ctx, &run)

	completed := time.Now().UTC()
	run.CompletedAt = &completed
	run.Status = "completed"
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
	}
	s.saveRun(ctx, run)

	if s.Metrics != nil {
		s.Metrics.SyncRunsTotal.WithLabelValues(run.Status).Inc()
		s.Metrics.SyncRunCases.WithLabelValues("scanned").Set(float64(run.Scanned))
		s.Metrics.SyncRunCases.WithLabelValues("synchronized").Set(float64(run.Synchronized))
		s.Metrics.SyncRunCases.WithLabelValues("reassigned").Set(float64(run.Reassigned))
		s.Metrics.SyncRunCases.WithLabelValues("failed").Set(float64(run.Failed))
	}

	if run.Synchronized > 0 || run.Reassigned > 0 || run.Failed > 0 {
		s.Logger.Info("sync pass completed",
			zap.String("run_id", run.ID),
			zap.Int("scanned", run.Scanned),
			zap.Int("synchronized", run.Synchronized),
			zap.Int("reassigned", run.Reassigned),
			zap.Int("failed", run.Failed))
	}
	return run, err
}

// reconcile fails only when the repository or record store cannot be read.
// The listing only supplies IDs; each case is compared and repaired under
// its own lock.
func (s *SyncScheduler) reconcile(ctx context.Context, run *sqlite.SyncRun) error {
	cases, err := s.Controller.Cases.ListCases(ctx)
	if err != nil {
		return fmt.Errorf("list cases: %w", err)
	}

	for _, c := range cases {
		run.Scanned++

		action, err := s.Controller.ReconcileCase(ctx, c.ID)
		switch {
		case action == access.ReconcileNone && err == nil:
			continue
		case action == access.ReconcileNone && access.IsNotFound(err):
			// Removed since the listing.
			continue
		case action == access.ReconcileNone:
			return fmt.Errorf("reconcile case %s: %w", c.ID, err)
		}

		s.observe(string(action), err)
		if err != nil {
			run.Failed++
			s.Logger.Warn("case sync failed",
				zap.String("case_id", c.ID),
				zap.String("action", string(action)),
				zap.Error(err))
			continue
		}
		if action == access.ReconcileReassign {
			run.Reassigned++
		} else {
			run.Synchronized++
		}
	}
	return nil
}

func (s *SyncScheduler) observe(operation string, err error) {
	if s.Metrics != nil {
		s.Metrics.CaseSyncsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
	}
}

func (s *SyncScheduler) saveRun(ctx context.Context, run sqlite.SyncRun) {
	if s.Store == nil {
		return
	}
	if err := s.Store.SaveSyncRun(ctx, run); err != nil {
		s.Logger.Error("save sync run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// GetNextRunTime returns when the next scheduled check will occur.
func (s *SyncScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(s.CheckInterval)
}
