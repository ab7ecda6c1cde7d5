// Package scheduler runs the background maintenance jobs: a daily sweep of
// expired export artifacts and an hourly staleness check on stored results.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/avasseur/ipd-api/interfaces"
	"github.com/avasseur/ipd-api/logging"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles export retention and result staleness monitoring.
type Scheduler struct {
	store           interfaces.StudyStore
	exporter        interfaces.Exporter
	retention       time.Duration
	staleThreshold  time.Duration
	scheduler       *gocron.Scheduler
	stopMonitor     chan struct{}
	monitorInterval time.Duration
}

// NewScheduler creates a scheduler instance with injected dependencies.
func NewScheduler(store interfaces.StudyStore, exporter interfaces.Exporter, retentionDays int) *Scheduler {
	return &Scheduler{
		store:           store,
		exporter:        exporter,
		retention:       time.Duration(retentionDays) * 24 * time.Hour,
		staleThreshold:  7 * 24 * time.Hour,
		scheduler:       gocron.NewScheduler(time.Local),
		stopMonitor:     make(chan struct{}),
		monitorInterval: 1 * time.Hour,
	}
}

// Start schedules the retention sweep and begins staleness monitoring.
func (s *Scheduler) Start() error {
	// Initial sweep so restarts do not accumulate stale artifacts
	s.sweepExports()

	_, err := s.scheduler.Every(1).Days().At("03:00").Do(s.sweepExports)
	if err != nil {
		logging.Error("Failed to schedule export retention sweep", "error", err)
		return fmt.Errorf("failed to schedule export retention sweep: %w", err)
	}

	s.scheduler.StartAsync()

	s.startStalenessMonitoring()

	return nil
}

// Stop stops the scheduler and the staleness monitor.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	close(s.stopMonitor)
}

// sweepExports deletes export files older than the retention period.
func (s *Scheduler) sweepExports() {
	removed, err := s.exporter.Sweep(s.retention)
	if err != nil {
		logging.Error("Export retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		logging.Info("Export retention sweep completed", "removed", removed)
	}
}

// startStalenessMonitoring warns when stored results are old enough that the
// source study has likely moved on.
func (s *Scheduler) startStalenessMonitoring() {
	go func() {
		ticker := time.NewTicker(s.monitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopMonitor:
				return
			case <-ticker.C:
				last := s.store.GetLastReconstructed()
				if !last.IsZero() && time.Since(last) > s.staleThreshold {
					logging.Warn("Stored reconstruction results are stale",
						"last_reconstruction", last.Format(time.RFC3339),
						"age", time.Since(last).String())
				}
			}
		}
	}()
}
