package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// GetCurrentDesktop returns the current virtual desktop number (0-indexed).
// Uses _NET_CURRENT_DESKTOP atom. Returns 0 with an error if detection fails.
func (c *Connection) GetCurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

// IsSticky reports whether a window is shown on every desktop.
func (c *Connection) IsSticky(windowID xproto.Window) bool {
	desktop, err := ewmh.WmDesktopGet(c.XUtil, windowID)
	if err == nil && desktop == allDesktops {
		return true
	}
	return c.HasState(windowID, StateSticky)
}

// SetSticky pins a window to every desktop, or returns it to the current
// one. Before the window is mapped the property is written directly; after
// that the window manager is asked.
func (c *Connection) SetSticky(windowID xproto.Window, mapped, sticky bool) error {
	desktop := allDesktops
	if !sticky {
		current, err := c.GetCurrentDesktop()
		if err != nil {
			current = 0
		}
		desktop = current
	}

	if !mapped {
		if err := ewmh.WmDesktopSet(c.XUtil, windowID, uint(desktop)); err != nil {
			return fmt.Errorf("failed to set window desktop: %w", err)
		}
		return c.SetState(windowID, false, sticky, StateSticky)
	}

	if err := c.SetWindowDesktop(windowID, desktop); err != nil {
		return err
	}
	return c.SetState(windowID, true, sticky, StateSticky)
}

// SetWindowDesktop moves a window to the specified virtual desktop.
// Sends a _NET_WM_DESKTOP client message to the root window per EWMH spec.
// We build the message manually because the xgbutil ewmh.WmDesktopReq
// helper panics on this library version (uint vs int type assertion).
func (c *Connection) SetWindowDesktop(windowID xproto.Window, desktop int) error {
	return c.sendRootMessage("_NET_WM_DESKTOP", windowID, uint32(desktop), sourceIndication)
}

// FocusWindow activates and raises a window using _NET_ACTIVE_WINDOW.
// Built by hand for the same reason as SetWindowDesktop.
func (c *Connection) FocusWindow(windowID xproto.Window) error {
	return c.sendRootMessage("_NET_ACTIVE_WINDOW", windowID, sourceIndication)
}

// sendRootMessage sends a 32-bit client message about windowID to the root
// window, where the window manager picks it up.
func (c *Connection) sendRootMessage(atom string, windowID xproto.Window, data ...uint32) error {
	atomReply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len(atom)), atom).Reply()
	if err != nil {
		return fmt.Errorf("failed to intern %s: %w", atom, err)
	}

	payload := make([]uint32, 5)
	copy(payload, data)
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   atomReply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New(payload),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}
