package worker

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"tutorly/config"
	"tutorly/internal/lock"
	"tutorly/internal/service"
)

type countingRunner struct {
	runs  atomic.Int32
	block chan struct{}
}

func (r *countingRunner) Run(ctx context.Context) service.SweepReport {
	r.runs.Add(1)
	if r.block != nil {
		<-r.block
	}
	return service.SweepReport{SettledSessions: 1}
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunOnceRunsWhenLeaseFree(t *testing.T) {
	r := &countingRunner{}
	s := NewSweeper(r, lock.NewLocalLocker(), config.SweepConfig{Schedule: "@every 1m", LockTTL: time.Second}, quietLogger())
	if !s.RunOnce(context.Background()) || !s.RunOnce(context.Background()) {
		t.Fatal("sweep did not run")
	}
	if got := r.runs.Load(); got != 2 {
		t.Fatalf("runs %d", got)
	}
}

func TestRunOnceSkipsWhileAnotherPassHoldsLease(t *testing.T) {
	r := &countingRunner{block: make(chan struct{})}
	locker := lock.NewLocalLocker()
	s := NewSweeper(r, locker, config.SweepConfig{Schedule: "@every 1m", LockTTL: time.Second}, quietLogger())

	done := make(chan bool)
	go func() { done <- s.RunOnce(context.Background()) }()
	for r.runs.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if s.RunOnce(context.Background()) {
		t.Fatal("second pass ran while the first held the lease")
	}
	close(r.block)
	if !<-done {
		t.Fatal("first pass reported skipped")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewSweeper(&countingRunner{}, lock.NewLocalLocker(), config.SweepConfig{Schedule: "every now and then"}, quietLogger())
	if err := s.Start(); err == nil {
		t.Fatal("expected schedule error")
	}
}
