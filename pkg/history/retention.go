package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls scheduled history pruning.
type RetentionConfig struct {
	// Schedule is a standard cron expression, e.g. "0 3 * * *" for daily
	// at 3 AM. Empty disables scheduled pruning.
	Schedule string

	// Window is how long records are kept. Default: 30 days.
	Window time.Duration
}

// Scheduler prunes old history records on a cron schedule.
type Scheduler struct {
	store  *Store
	config RetentionConfig
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a retention scheduler for the store.
func NewScheduler(store *Store, config RetentionConfig, logger *slog.Logger) *Scheduler {
	if config.Window <= 0 {
		config.Window = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		config: config,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start begins scheduled pruning. With an empty schedule it does nothing.
// The scheduler stops itself when the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" {
		s.logger.Info("history prune schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}
	if _, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runPruning(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule history pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("history retention scheduler started",
		"schedule", s.config.Schedule,
		"window", s.config.Window,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runPruning(ctx context.Context) {
	deleted, err := s.store.Prune(ctx, s.config.Window)
	if err != nil {
		s.logger.Error("scheduled history pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("scheduled history pruning completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("scheduled history pruning completed, nothing to delete")
	}
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
	s.logger.Info("history retention scheduler stopped")
}
