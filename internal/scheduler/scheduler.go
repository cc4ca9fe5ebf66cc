package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Status describes the scheduler's most recent run.
type Status struct {
	Runs        int64     `json:"runs"`
	Failures    int64     `json:"failures"`
	Running     bool      `json:"running"`
	LastStarted time.Time `json:"last_started,omitzero"`
	LastEnded   time.Time `json:"last_ended,omitzero"`
	LastSuccess time.Time `json:"last_success,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
}

// Healthy reports whether the last finished run succeeded. A scheduler that
// has not finished a run yet counts as healthy.
func (s Status) Healthy() bool {
	return s.LastError == ""
}

// Scheduler runs a Job every interval.
type Scheduler struct {
	interval time.Duration
	job      Job
	logger   *slog.Logger

	mu     sync.Mutex
	status Status

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. The interval must be positive.
func New(interval time.Duration, job Job, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{interval: interval, job: job, logger: logger}, nil
}

// Start begins the run loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop cancels the current run and waits for the loop to exit.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the run state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	start := time.Now()

	s.mu.Lock()
	s.status.Running = true
	s.status.LastStarted = start
	s.mu.Unlock()

	err := s.job(s.ctx)
	end := time.Now()

	s.mu.Lock()
	s.status.Running = false
	s.status.LastEnded = end
	s.status.Runs++
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
	} else {
		s.status.LastSuccess = end
		s.status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		if s.ctx.Err() != nil {
			s.logger.Info("scheduled run cancelled", "error", err)
			return
		}
		s.logger.Error("scheduled run failed", "error", err, "duration", end.Sub(start))
		return
	}
	s.logger.Info("scheduled run finished", "duration", end.Sub(start))
}
