package coordinator

import (
	"sync"
	"time"
)

type revealMode int

const (
	// revealManual leaves showing to the caller.
	revealManual revealMode = iota
	// revealImmediate shows the window as soon as it is registered.
	revealImmediate
	// revealOnReady shows the window on the content-ready signal, or when
	// the fallback delay elapses first.
	revealOnReady
)

func (m revealMode) String() string {
	switch m {
	case revealImmediate:
		return "immediate"
	case revealOnReady:
		return "on-ready"
	default:
		return "manual"
	}
}

// revealer races the content-ready signal against a fallback timer. Both
// paths end in the same show func, which runs at most once.
type revealer struct {
	show func()
	once sync.Once

	mu        sync.Mutex
	readySeen bool
	armed     bool
	stopped   bool
	timer     *time.Timer
}

func newRevealer(show func()) *revealer {
	return &revealer{show: show}
}

// ready records the content-ready signal. It may arrive before arm.
func (r *revealer) ready() {
	r.mu.Lock()
	r.readySeen = true
	armed := r.armed
	r.mu.Unlock()
	if armed {
		r.fire()
	}
}

// arm starts the race. A ready signal seen earlier wins immediately.
func (r *revealer) arm(fallback time.Duration) {
	r.mu.Lock()
	if r.stopped || r.armed {
		r.mu.Unlock()
		return
	}
	r.armed = true
	now := r.readySeen || fallback <= 0
	if !now {
		r.timer = time.AfterFunc(fallback, r.fire)
	}
	r.mu.Unlock()
	if now {
		r.fire()
	}
}

func (r *revealer) fire() {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return
	}
	r.once.Do(func() {
		r.stop()
		r.show()
	})
}

// stop cancels a pending fallback timer.
func (r *revealer) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// cancel stops the revealer for good.
func (r *revealer) cancel() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.stop()
}
