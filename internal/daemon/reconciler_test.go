package daemon

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingSweeper struct {
	calls atomic.Int32
	found int
}

func (s *countingSweeper) Sweep() int {
	s.calls.Add(1)
	return s.found
}

type panickingSweeper struct{}

func (panickingSweeper) Sweep() int { panic("sweep exploded") }

func TestReconciler_ReconcileNowReturnsSweepCount(t *testing.T) {
	s := &countingSweeper{found: 2}
	r := NewReconciler(ReconcilerConfig{Logger: testLogger()}, s)

	if got := r.ReconcileNow(); got != 2 {
		t.Fatalf("ReconcileNow = %d, want 2", got)
	}
	if r.interval != 10*time.Second {
		t.Fatalf("expected default interval, got %s", r.interval)
	}
}

func TestReconciler_RecoversFromPanics(t *testing.T) {
	r := NewReconciler(ReconcilerConfig{Logger: testLogger()}, panickingSweeper{})
	if got := r.ReconcileNow(); got != 0 {
		t.Fatalf("expected 0 after a panic, got %d", got)
	}
}

func TestReconciler_RunSweepsOnInterval(t *testing.T) {
	s := &countingSweeper{}
	r := NewReconciler(ReconcilerConfig{Interval: 5 * time.Millisecond, Logger: testLogger()}, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if s.calls.Load() < 3 {
		t.Fatalf("expected at least 3 sweeps, got %d", s.calls.Load())
	}
}
