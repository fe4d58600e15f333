package coordinator

import (
	"context"
	"sync"

	"github.com/1broseidon/wincoord/internal/platform"
)

// eventQueue is an unbounded FIFO. push never blocks, so presentation-layer
// callbacks can deliver signals from any goroutine.
type eventQueue struct {
	mu    sync.Mutex
	items []platform.Event
	wake  chan struct{}
}

func (q *eventQueue) push(ev platform.Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []platform.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Dispatch queues a lifecycle signal for Run. It is the EventSink handed to
// the presentation layer for every window.
func (c *Coordinator) Dispatch(ev platform.Event) {
	c.queue.push(ev)
}

// Run processes lifecycle signals until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("coordinator started")
	for {
		for _, ev := range c.queue.drain() {
			c.handle(ev)
		}
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopped")
			return
		case <-c.queue.wake:
		}
	}
}

func (c *Coordinator) handle(ev platform.Event) {
	defer func() {
		if err := recover(); err != nil {
			c.logger.Error("event handler panic recovered", "event", ev.Type, "window", ev.Window, "error", err)
		}
	}()

	switch ev.Type {
	case platform.EventReady:
		if rec := c.record(ev.Window); rec != nil {
			c.logger.Debug("content ready", "slot", rec.slot, "window", ev.Window)
			rec.reveal.ready()
		}
	case platform.EventShown:
		if rec := c.record(ev.Window); rec != nil {
			c.logger.Debug("window shown", "slot", rec.slot, "window", ev.Window)
		}
	case platform.EventDestroyed:
		c.handleDestroyed(ev.Window)
	}
}

func (c *Coordinator) record(id platform.WindowID) *record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byID[id]
}

// handleDestroyed forgets a destroyed window. The slot is only emptied if it
// still holds this window, so a late signal for a replaced window is
// harmless. A dialog's parent is notified if it is still alive.
func (c *Coordinator) handleDestroyed(id platform.WindowID) {
	c.mu.Lock()
	rec, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.byID, id)
	if c.slots[rec.slot] == rec {
		delete(c.slots, rec.slot)
	}
	notify := rec.notifyChannel != "" && !rec.discarded
	c.mu.Unlock()

	rec.reveal.cancel()
	c.logger.Debug("window destroyed", "slot", rec.slot, "window", id)

	parent := rec.parent
	if parent == nil || parent.IsDestroyed() {
		return
	}
	if notify {
		c.bestEffort("notify "+string(rec.parentSlot), func() error {
			return parent.Send(rec.notifyChannel, ChildClosed{Action: ActionManageClosed})
		})
		c.logger.Debug("parent notified", "slot", rec.slot, "parent", rec.parentSlot, "channel", rec.notifyChannel)
	}
	if rec.restoreParentTop {
		c.bestEffort("restore parent always-on-top", func() error {
			return parent.SetAlwaysOnTop(true, platform.LevelFloating)
		})
	}
}

// Sweep queues a destroy signal for every window that was destroyed without
// one and returns how many it found.
func (c *Coordinator) Sweep() int {
	c.mu.Lock()
	var dead []platform.WindowID
	for id, rec := range c.byID {
		if rec.win.IsDestroyed() {
			dead = append(dead, id)
		}
	}
	c.mu.Unlock()

	for _, id := range dead {
		c.Dispatch(platform.Event{Type: platform.EventDestroyed, Window: id})
	}
	return len(dead)
}
