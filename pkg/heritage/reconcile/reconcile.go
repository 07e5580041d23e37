// Package reconcile repairs drift between category counts and the entries
// that actually reference each category.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/swadeshi/heritage/pkg/heritage"
)

// Repair records one count correction.
type Repair = heritage.CountRepair

// Reconciler recomputes category counts from the entry set.
type Reconciler struct {
	repository heritage.Repository
	logger     heritage.Logger
}

// New creates a reconciler over repo.
func New(repo heritage.Repository, logger heritage.Logger) *Reconciler {
	return &Reconciler{repository: repo, logger: logger}
}

// Run sets every category count to the number of entries referencing it
// and returns the corrections made. Counting and repairing happen in one
// store operation, so entries written during a pass are never lost from a
// count.
func (r *Reconciler) Run(ctx context.Context) ([]Repair, error) {
	repairs, err := r.repository.RecountCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to recount categories: %w", err)
	}
	for _, repair := range repairs {
		r.logger.Warnf("category %s count drifted: %d -> %d", repair.Name, repair.From, repair.To)
	}
	return repairs, nil
}

// Scheduler runs a Reconciler on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *Reconciler
	logger     heritage.Logger
	mu         sync.Mutex
}

// NewScheduler registers the reconciler under schedule (standard cron syntax or
// descriptors such as "@every 1h"). An empty schedule returns nil, nil.
func NewScheduler(schedule string, reconciler *Reconciler, logger heritage.Logger) (*Scheduler, error) {
	if schedule == "" {
		return nil, nil
	}
	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		reconciler: reconciler,
		logger:     logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return s, nil
}

// tick serializes runs so a slow pass is never overlapped by the next one.
func (s *Scheduler) tick() {
	if !s.mu.TryLock() {
		s.logger.Warnf("reconcile still running, skipping tick")
		return
	}
	defer s.mu.Unlock()

	repairs, err := s.reconciler.Run(context.Background())
	if err != nil {
		s.logger.Errorf("reconcile failed: %v", err)
		return
	}
	if len(repairs) > 0 {
		s.logger.Infof("reconcile repaired %d category counts", len(repairs))
	}
}

// Start begins the schedule in its own goroutine. Safe on a nil Scheduler.
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}
