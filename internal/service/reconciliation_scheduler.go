package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/jobs"
)

const reconcileJobType = "approval_reconcile"

type reconciler interface {
	Reconcile(ctx context.Context, opts ReconcileOptions) (*models.ReconcileReport, error)
}

// SchedulerConfig configures periodic reconciliation.
type SchedulerConfig struct {
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// ReconciliationScheduler enqueues a frozen-timesheet sweep on every tick.
// The queue has a single worker so runs never overlap in this process.
type ReconciliationScheduler struct {
	reconciler reconciler
	queue      *jobs.Queue
	interval   time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconciliationScheduler builds a scheduler; it does nothing until Start.
func NewReconciliationScheduler(r reconciler, logger *zap.Logger, cfg SchedulerConfig) *ReconciliationScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReconciliationScheduler{
		reconciler: r,
		interval:   cfg.Interval,
		logger:     logger.With(zap.String("component", "reconcile_scheduler")),
	}
	s.queue = jobs.NewQueue("approval-reconcile", s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 1,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the queue and the ticker. A non-positive interval disables
// scheduling.
func (s *ReconciliationScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("scheduled reconciliation disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.queue.Start(ctx)

	go s.loop(ctx)
	s.logger.Info("scheduled reconciliation started", zap.Duration("interval", s.interval))
}

// Stop halts the ticker and waits for the in-flight job.
func (s *ReconciliationScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.queue.Stop()
}

// Trigger enqueues an immediate run. It reports false when a run is already queued.
func (s *ReconciliationScheduler) Trigger() bool {
	err := s.queue.TryEnqueue(jobs.Job{Type: reconcileJobType})
	if err != nil {
		if !errors.Is(err, jobs.ErrQueueFull) {
			s.logger.Warn("failed to enqueue reconciliation", zap.Error(err))
		}
		return false
	}
	return true
}

func (s *ReconciliationScheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Trigger() {
				s.logger.Debug("reconciliation tick skipped, previous run still queued")
			}
		}
	}
}

func (s *ReconciliationScheduler) handle(ctx context.Context, job jobs.Job) error {
	report, err := s.reconciler.Reconcile(ctx, ReconcileOptions{})
	if err != nil {
		if errors.Is(err, appErrors.ErrReconcileInProgress) {
			// another instance owns this tick
			return nil
		}
		return err
	}
	s.logger.Debug("scheduled reconciliation done",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Int64("modified", report.Modified),
	)
	return nil
}
