package daemon

import (
	"context"
	"log/slog"
	"time"
)

const defaultReconcileInterval = 10 * time.Second

// Sweeper releases windows that were destroyed without a lifecycle signal
// and reports how many it found.
type Sweeper interface {
	Sweep() int
}

// ReconcilerConfig configures a Reconciler. A zero Interval means every ten
// seconds.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler sweeps for lost windows on a fixed interval.
type Reconciler struct {
	interval time.Duration
	sweeper  Sweeper
	logger   *slog.Logger
}

func NewReconciler(cfg ReconcilerConfig, sweeper Sweeper) *Reconciler {
	r := &Reconciler{interval: cfg.Interval, sweeper: sweeper, logger: cfg.Logger}
	if r.interval <= 0 {
		r.interval = defaultReconcileInterval
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run sweeps until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.logger.Debug("reconciler running", "interval", r.interval)
	for {
		select {
		case <-t.C:
			r.ReconcileNow()
		case <-ctx.Done():
			r.logger.Debug("reconciler done")
			return
		}
	}
}

// ReconcileNow sweeps once and returns the number of stale windows. A
// panicking sweeper counts as zero.
func (r *Reconciler) ReconcileNow() (stale int) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("sweep panicked", "panic", p)
			stale = 0
		}
	}()

	if stale = r.sweeper.Sweep(); stale > 0 {
		r.logger.Info("released windows destroyed without a signal", "count", stale)
	}
	return stale
}
