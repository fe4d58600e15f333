// Package coordinator owns the application's window slots. It creates windows
// on demand, keeps at most one live window per slot, collapses concurrent
// creation requests, and relays lifecycle signals between related windows.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/1broseidon/wincoord/internal/config"
	"github.com/1broseidon/wincoord/internal/platform"
)

var (
	ErrUnknownSlot              = errors.New("unknown window slot")
	ErrPrerequisiteMissing      = errors.New("required window is not open")
	ErrContentLoad              = errors.New("window content failed to load")
	ErrClosedDuringConstruction = errors.New("window closed during construction")
	ErrNotOpen                  = errors.New("window is not open")
)

// reshowDelay is how long after bringing a window forward it is shown again
// if it still is not visible.
const reshowDelay = 50 * time.Millisecond

// record tracks one constructed window from creation until its destroy
// signal is handled.
type record struct {
	slot   Slot
	win    platform.Window
	reveal *revealer

	showOnEnsure  bool
	focusOnReveal bool

	parent           platform.Window
	parentSlot       Slot
	notifyChannel    string
	restoreParentTop bool

	// discarded is set when construction failed; guarded by Coordinator.mu.
	discarded bool
}

// construction marks a slot whose window is being built.
type construction struct {
	closeRequested bool
}

// Coordinator is the single owner of the slot registry.
type Coordinator struct {
	backend platform.Backend
	logger  *slog.Logger
	goos    string

	flight singleflight.Group
	queue  eventQueue

	mu      sync.Mutex
	cfg     *config.Config
	slots   map[Slot]*record
	byID    map[platform.WindowID]*record
	pending map[Slot]*construction
}

// New creates a coordinator. Run must be started for lifecycle signals to be
// processed.
func New(backend platform.Backend, cfg *config.Config, logger *slog.Logger) *Coordinator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		backend: backend,
		logger:  logger,
		goos:    runtime.GOOS,
		queue:   eventQueue{wake: make(chan struct{}, 1)},
		cfg:     cfg,
		slots:   make(map[Slot]*record),
		byID:    make(map[platform.WindowID]*record),
		pending: make(map[Slot]*construction),
	}
}

// Config returns the configuration used for new windows.
func (c *Coordinator) Config() *config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetConfig swaps the configuration used for future constructions. Live
// windows are left as they are.
func (c *Coordinator) SetConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	c.logger.Info("configuration updated")
}

// Ensure returns the live window in slot, bringing it to the front, or
// constructs one. Concurrent calls for the same slot share one construction.
func (c *Coordinator) Ensure(ctx context.Context, slot Slot, s Settings, o Options) (platform.Window, error) {
	if _, ok := ParseSlot(string(slot)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	if o.Replace {
		if err := c.close(slot, false); err != nil {
			c.logger.Debug("replace: close failed", "slot", slot, "error", err)
		}
	}
	if rec := c.live(slot); rec != nil {
		c.bringToFront(rec)
		return rec.win, nil
	}

	// The construction outlives any single caller.
	buildCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(string(slot), func() (any, error) {
		w, err := c.construct(buildCtx, slot, s, o)
		if err != nil {
			return nil, err
		}
		return w, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(platform.Window), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) construct(ctx context.Context, slot Slot, s Settings, o Options) (platform.Window, error) {
	c.mu.Lock()
	if rec := c.liveLocked(slot); rec != nil {
		c.mu.Unlock()
		c.bringToFront(rec)
		return rec.win, nil
	}
	cfg := c.cfg
	pend := &construction{}
	c.pending[slot] = pend
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.pending[slot] == pend {
			delete(c.pending, slot)
		}
		c.mu.Unlock()
	}()

	p, err := c.plan(slot, cfg, s, o)
	if err != nil {
		c.logger.Warn("window construction failed", "slot", slot, "error", err)
		return nil, err
	}

	win, err := c.backend.CreateWindow(p.attrs, c.Dispatch)
	if err != nil {
		c.logger.Warn("window construction failed", "slot", slot, "error", err)
		return nil, fmt.Errorf("creating %s window: %w", slot, err)
	}

	rec := &record{
		slot:             slot,
		win:              win,
		showOnEnsure:     p.showOnEnsure,
		focusOnReveal:    p.focusOnReveal,
		parent:           p.parent,
		parentSlot:       p.parentSlot,
		notifyChannel:    p.notifyChannel,
		restoreParentTop: p.clearParentTop,
	}
	rec.reveal = newRevealer(func() { c.show(rec) })

	c.mu.Lock()
	c.byID[win.ID()] = rec
	c.mu.Unlock()

	c.logger.Debug("window created",
		"slot", slot,
		"window", win.ID(),
		"bounds", p.attrs.Bounds,
		"positioned", p.attrs.HasPosition,
		"reveal", p.reveal)

	if p.clearParentTop {
		c.bestEffort("clear parent always-on-top", func() error {
			return p.parent.SetAlwaysOnTop(false, platform.LevelNormal)
		})
	}

	if err := win.Load(ctx, p.content); err != nil {
		c.discard(rec)
		c.logger.Warn("window content failed to load", "slot", slot, "content", p.content, "error", err)
		return nil, fmt.Errorf("%w: %s (%s): %w", ErrContentLoad, slot, p.content, err)
	}

	for _, cm := range p.cosmetics {
		c.bestEffort(cm.name, func() error { return cm.apply(win) })
	}
	if p.afterLoad != nil {
		p.afterLoad(win)
	}

	c.mu.Lock()
	if pend.closeRequested || win.IsDestroyed() {
		c.mu.Unlock()
		c.discard(rec)
		c.logger.Debug("window closed during construction", "slot", slot, "window", win.ID())
		return nil, fmt.Errorf("%s: %w", slot, ErrClosedDuringConstruction)
	}
	c.slots[slot] = rec
	delete(c.pending, slot)
	c.mu.Unlock()

	switch p.reveal {
	case revealImmediate:
		rec.reveal.arm(0)
	case revealOnReady:
		rec.reveal.arm(p.fallback)
	}
	return win, nil
}

// discard tears down a window whose construction did not complete.
func (c *Coordinator) discard(rec *record) {
	c.mu.Lock()
	rec.discarded = true
	c.mu.Unlock()

	rec.reveal.cancel()
	if !rec.win.IsDestroyed() {
		c.bestEffort("close", rec.win.Close)
	}
}

func (c *Coordinator) show(rec *record) {
	if rec.win.IsDestroyed() {
		return
	}
	if err := rec.win.Show(); err != nil {
		c.logger.Debug("show failed", "slot", rec.slot, "window", rec.win.ID(), "error", err)
		return
	}
	if rec.focusOnReveal {
		c.bestEffort("focus", rec.win.Focus)
		c.bestEffort("raise", rec.win.Raise)
	}
	c.logger.Debug("window revealed", "slot", rec.slot, "window", rec.win.ID())
}

// bringToFront restores, raises and focuses a live window. Windows that are
// not caller-shown overlays are also shown, and shown again shortly after if
// the window manager swallowed the first request.
func (c *Coordinator) bringToFront(rec *record) {
	w := rec.win
	if w.IsMinimized() {
		c.bestEffort("restore", w.Restore)
	}
	if rec.showOnEnsure {
		c.bestEffort("show", w.Show)
	}
	c.bestEffort("raise", w.Raise)
	c.bestEffort("focus", w.Focus)

	if rec.showOnEnsure {
		time.AfterFunc(reshowDelay, func() {
			if w.IsDestroyed() || w.IsVisible() {
				return
			}
			c.bestEffort("show", w.Show)
			c.bestEffort("focus", w.Focus)
		})
	}
}

// Get returns the live window in slot, or nil.
func (c *Coordinator) Get(slot Slot) platform.Window {
	if rec := c.live(slot); rec != nil {
		return rec.win
	}
	return nil
}

func (c *Coordinator) live(slot Slot) *record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(slot)
}

func (c *Coordinator) liveLocked(slot Slot) *record {
	rec := c.slots[slot]
	if rec == nil || rec.win.IsDestroyed() {
		return nil
	}
	return rec
}

// Close closes the window in slot and empties the slot before returning. A
// construction in progress for the slot is closed as soon as it finishes.
// Closing an empty slot does nothing.
func (c *Coordinator) Close(slot Slot) {
	if err := c.close(slot, true); err != nil {
		c.logger.Debug("close failed", "slot", slot, "error", err)
	}
}

func (c *Coordinator) close(slot Slot, cancelPending bool) error {
	c.mu.Lock()
	if pend := c.pending[slot]; pend != nil && cancelPending {
		pend.closeRequested = true
		// The doomed build keeps running; the next Ensure starts a new one.
		c.flight.Forget(string(slot))
	}
	rec := c.slots[slot]
	delete(c.slots, slot)
	c.mu.Unlock()

	if rec == nil || rec.win.IsDestroyed() {
		return nil
	}
	rec.reveal.cancel()
	c.logger.Debug("closing window", "slot", slot, "window", rec.win.ID())
	if err := rec.win.Close(); err != nil {
		return fmt.Errorf("closing %s window: %w", slot, err)
	}
	return nil
}

// CloseAll closes every slot. Every slot is emptied even when the
// presentation layer reports errors; those are returned together.
func (c *Coordinator) CloseAll() error {
	var result *multierror.Error
	for _, slot := range Slots() {
		if err := c.close(slot, true); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// HasOpen reports whether any slot holds a live window.
func (c *Coordinator) HasOpen() bool {
	return c.Count() > 0
}

// Count returns the number of slots holding a live window.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, rec := range c.slots {
		if !rec.win.IsDestroyed() {
			n++
		}
	}
	return n
}

// Snapshot reports the state of every slot.
func (c *Coordinator) Snapshot() []SlotStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SlotStatus, 0, len(c.slots))
	for _, slot := range Slots() {
		st := SlotStatus{Slot: slot, Pending: c.pending[slot] != nil}
		if rec := c.liveLocked(slot); rec != nil {
			st.Open = true
			st.WindowID = rec.win.ID()
			st.Visible = rec.win.IsVisible()
			st.Minimized = rec.win.IsMinimized()
			if b, err := rec.win.Bounds(); err == nil {
				st.Bounds = b
			}
		}
		out = append(out, st)
	}
	return out
}

// Displays lists the displays known to the presentation layer.
func (c *Coordinator) Displays() ([]platform.Display, error) {
	return c.backend.Displays()
}

// Icon returns the application icon for the running platform.
func (c *Coordinator) Icon() string {
	return c.Config().IconPath(c.goos)
}

// Show makes the window in slot visible and focuses it.
func (c *Coordinator) Show(slot Slot) error {
	w, err := c.open(slot)
	if err != nil {
		return err
	}
	if err := w.Show(); err != nil {
		return fmt.Errorf("showing %s window: %w", slot, err)
	}
	c.bestEffort("focus", w.Focus)
	return nil
}

// Hide hides the window in slot without closing it.
func (c *Coordinator) Hide(slot Slot) error {
	w, err := c.open(slot)
	if err != nil {
		return err
	}
	if err := w.Hide(); err != nil {
		return fmt.Errorf("hiding %s window: %w", slot, err)
	}
	return nil
}

// Minimize minimizes the window in slot.
func (c *Coordinator) Minimize(slot Slot) error {
	w, err := c.open(slot)
	if err != nil {
		return err
	}
	if err := w.Minimize(); err != nil {
		return fmt.Errorf("minimizing %s window: %w", slot, err)
	}
	return nil
}

// MoveBy shifts the window in slot by dx, dy.
func (c *Coordinator) MoveBy(slot Slot, dx, dy int) error {
	w, err := c.open(slot)
	if err != nil {
		return err
	}
	b, err := w.Bounds()
	if err != nil {
		return fmt.Errorf("reading %s bounds: %w", slot, err)
	}
	b.X += dx
	b.Y += dy
	if err := w.SetBounds(b); err != nil {
		return fmt.Errorf("moving %s window: %w", slot, err)
	}
	return nil
}

// Resize changes the size of the window in slot, keeping its top-left corner.
func (c *Coordinator) Resize(slot Slot, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid size %dx%d", width, height)
	}
	w, err := c.open(slot)
	if err != nil {
		return err
	}
	b, err := w.Bounds()
	if err != nil {
		return fmt.Errorf("reading %s bounds: %w", slot, err)
	}
	b.Width = width
	b.Height = height
	if err := w.SetBounds(b); err != nil {
		return fmt.Errorf("resizing %s window: %w", slot, err)
	}
	return nil
}

func (c *Coordinator) open(slot Slot) (platform.Window, error) {
	if _, ok := ParseSlot(string(slot)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	w := c.Get(slot)
	if w == nil {
		return nil, fmt.Errorf("%s: %w", slot, ErrNotOpen)
	}
	return w, nil
}

// bestEffort runs a non-essential presentation call. Errors and panics are
// logged at debug level and never reach the caller.
func (c *Coordinator) bestEffort(op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("best-effort call panicked", "op", op, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		c.logger.Debug("best-effort call failed", "op", op, "error", err)
	}
}
