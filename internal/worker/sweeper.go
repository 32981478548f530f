// Package worker schedules the reconciliation sweep.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tutorly/config"
	"tutorly/internal/lock"
	"tutorly/internal/service"

	"github.com/robfig/cron/v3"
)

const sweepLockName = "sweep"

// Runner performs one sweep pass.
type Runner interface {
	Run(ctx context.Context) service.SweepReport
}

// Sweeper runs the sweep on a cron schedule. Across instances only the
// holder of the sweep lease runs a pass.
type Sweeper struct {
	runner Runner
	locker lock.Locker
	cfg    config.SweepConfig
	cron   *cron.Cron
	log    *slog.Logger
}

func NewSweeper(runner Runner, locker lock.Locker, cfg config.SweepConfig, log *slog.Logger) *Sweeper {
	return &Sweeper{
		runner: runner,
		locker: locker,
		cfg:    cfg,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		log:    log.With("component", "sweeper"),
	}
}

// Start registers the schedule and starts the cron loop.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.tick); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.log.Info("sweeper started", "schedule", s.cfg.Schedule)
	return nil
}

// Stop waits for a running pass to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("sweeper stop timed out")
	}
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LockTTL)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce runs a pass if the lease is free. It reports whether it ran.
func (s *Sweeper) RunOnce(ctx context.Context) bool {
	release, ok, err := s.locker.TryAcquire(ctx, sweepLockName, s.cfg.LockTTL)
	if err != nil {
		s.log.ErrorContext(ctx, "acquire sweep lock", "err", err)
		return false
	}
	if !ok {
		s.log.DebugContext(ctx, "sweep lock held elsewhere")
		return false
	}
	defer release()
	start := time.Now()
	r := s.runner.Run(ctx)
	s.log.InfoContext(ctx, "sweep pass", "took", time.Since(start), "settled", r.SettledSessions, "cancelled", r.CancelledUnpaid)
	return true
}
