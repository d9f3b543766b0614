package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named sweep executed on a cron schedule. Jobs are fault
// isolated: a panic or error in one never stops the others.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler drives the periodic compliance sweeps (retention execution,
// export cleanup and requeue, deletion dispatch, consent expiry) on cron
// expressions.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// Register validates the job's cron expression and adds it. Jobs with an
// empty schedule are skipped so individual sweeps can be disabled.
func (s *Scheduler) Register(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.Schedule == "" {
		s.logger.Info("job has no schedule, skipping", slog.String("job", job.Name))
		return nil
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q for job %s: %w", job.Schedule, job.Name, err)
	}

	_, err := s.cron.AddFunc(job.Schedule, func() {
		s.runJob(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
	}

	s.logger.Info("job registered",
		slog.String("job", job.Name),
		slog.String("schedule", job.Schedule))
	return nil
}

// Start begins executing registered jobs and stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRuns returns the next fire time of each registered entry, for health
// and debug surfaces.
func (s *Scheduler) NextRuns() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, entry := range entries {
		next = append(next, entry.Next)
	}
	return next
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked",
				slog.String("job", job.Name),
				slog.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed",
			slog.String("job", job.Name),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
		return
	}
	s.logger.Debug("job completed",
		slog.String("job", job.Name),
		slog.Duration("elapsed", time.Since(start)))
}
