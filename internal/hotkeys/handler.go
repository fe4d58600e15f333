// Package hotkeys binds global X11 key sequences to window slots.
package hotkeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/hashicorp/go-multierror"

	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/platform"
)

// ErrNoX11 is returned for backends that do not expose an X connection.
var ErrNoX11 = errors.New("hotkeys need an X11 backend")

const ensureTimeout = 30 * time.Second

// Controller is the part of the coordinator a hotkey drives.
type Controller interface {
	Ensure(ctx context.Context, slot coordinator.Slot, s coordinator.Settings, o coordinator.Options) (platform.Window, error)
	Get(slot coordinator.Slot) platform.Window
	Show(slot coordinator.Slot) error
	Hide(slot coordinator.Slot) error
}

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts.
type Handler struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	ctrl   Controller
	logger *slog.Logger
}

var ignoreModsOnce sync.Once

// NewHandler creates a hotkey handler on backend's X connection.
func NewHandler(backend platform.Backend, ctrl Controller, logger *slog.Logger) (*Handler, error) {
	accessor, ok := backend.(x11Accessor)
	if !ok || accessor.XUtil() == nil {
		return nil, ErrNoX11
	}
	if logger == nil {
		logger = slog.Default()
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:     xu,
		root:   accessor.RootWindow(),
		ctrl:   ctrl,
		logger: logger,
	}, nil
}

// Bind registers every slot -> key sequence pair. Bindings that fail are
// reported together; the rest stay registered.
func (h *Handler) Bind(bindings map[string]string) error {
	slots := make([]string, 0, len(bindings))
	for slot := range bindings {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	var errs *multierror.Error
	for _, name := range slots {
		slot, ok := coordinator.ParseSlot(name)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: %q", coordinator.ErrUnknownSlot, name))
			continue
		}
		keys := bindings[name]
		if err := h.RegisterFunc(keys, func() {
			// Construction waits on content, which must not block the X event loop.
			go h.Toggle(slot)
		}); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("bind %s to %s: %w", keys, slot, err))
			continue
		}
		h.logger.Info("hotkey registered", "slot", slot, "keys", keys)
	}
	return errs.ErrorOrNil()
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

// Toggle hides the slot's window when it is visible and otherwise opens and
// shows it.
func (h *Handler) Toggle(slot coordinator.Slot) {
	toggle(h.ctrl, slot, h.logger)
}

func toggle(ctrl Controller, slot coordinator.Slot, logger *slog.Logger) {
	if w := ctrl.Get(slot); w != nil && w.IsVisible() && !w.IsMinimized() {
		if err := ctrl.Hide(slot); err != nil {
			logger.Warn("hotkey hide failed", "slot", slot, "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ensureTimeout)
	defer cancel()
	if _, err := ctrl.Ensure(ctx, slot, coordinator.Settings{}, coordinator.Options{}); err != nil {
		logger.Warn("hotkey open failed", "slot", slot, "error", err)
		return
	}
	if err := ctrl.Show(slot); err != nil {
		logger.Warn("hotkey show failed", "slot", slot, "error", err)
	}
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
