package coordinator

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRevealer_ReadyBeforeArmShowsOnArm(t *testing.T) {
	var shows atomic.Int32
	r := newRevealer(func() { shows.Add(1) })

	r.ready()
	if shows.Load() != 0 {
		t.Fatalf("expected no show before arm")
	}
	r.arm(time.Hour)
	if shows.Load() != 1 {
		t.Fatalf("expected show on arm, got %d", shows.Load())
	}
}

func TestRevealer_FallbackAndReadyShowOnce(t *testing.T) {
	var shows atomic.Int32
	r := newRevealer(func() { shows.Add(1) })

	r.arm(10 * time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	r.ready()
	r.fire()

	if got := shows.Load(); got != 1 {
		t.Fatalf("expected exactly one show, got %d", got)
	}
}

func TestRevealer_CancelStopsFallback(t *testing.T) {
	var shows atomic.Int32
	r := newRevealer(func() { shows.Add(1) })

	r.arm(10 * time.Millisecond)
	r.cancel()
	time.Sleep(40 * time.Millisecond)
	r.ready()

	if got := shows.Load(); got != 0 {
		t.Fatalf("expected no show after cancel, got %d", got)
	}
}

func TestRevealer_ZeroFallbackShowsImmediately(t *testing.T) {
	var shows atomic.Int32
	r := newRevealer(func() { shows.Add(1) })

	r.arm(0)
	r.arm(0)
	if got := shows.Load(); got != 1 {
		t.Fatalf("expected one show, got %d", got)
	}
}
