package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/motif"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// EWMH state atoms used for top-level windows.
const (
	StateAbove        = "_NET_WM_STATE_ABOVE"
	StateSticky       = "_NET_WM_STATE_STICKY"
	StateSkipTaskbar  = "_NET_WM_STATE_SKIP_TASKBAR"
	StateSkipPager    = "_NET_WM_STATE_SKIP_PAGER"
	StateModal        = "_NET_WM_STATE_MODAL"
	StateHidden       = "_NET_WM_STATE_HIDDEN"
	StateMaximizedH   = "_NET_WM_STATE_MAXIMIZED_HORZ"
	StateMaximizedV   = "_NET_WM_STATE_MAXIMIZED_VERT"
	allDesktops       = 0xFFFFFFFF
	wmClassInstance   = "wincoord"
	wmClassName       = "Wincoord"
	sourceIndication  = 2 // pager/direct action
	iconicState       = 3
	windowTypeNormal  = "_NET_WM_WINDOW_TYPE_NORMAL"
	windowTypeUtility = "_NET_WM_WINDOW_TYPE_UTILITY"
	windowTypeDialog  = "_NET_WM_WINDOW_TYPE_DIALOG"
)

// WindowSpec describes a top-level window to create.
type WindowSpec struct {
	Area
	Positioned bool
	Title      string
	MinWidth   int
	MinHeight  int

	Frameless   bool
	Resizable   bool
	Movable     bool
	SkipTaskbar bool
	Above       bool
	Dialog      bool
	Modal       bool
	// TransientFor ties a dialog to its parent; 0 for none.
	TransientFor xproto.Window
	Background   uint32
	AcceptFocus  bool
}

// WindowEvents receives structure notifications for one window. Callbacks
// run on the X event loop goroutine.
type WindowEvents struct {
	Mapped    func()
	Unmapped  func()
	Destroyed func()
}

// CreateTopLevel creates an unmapped top-level window with its ICCCM and
// EWMH hints set.
func (c *Connection) CreateTopLevel(spec WindowSpec) (xproto.Window, error) {
	win, err := xwindow.Generate(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate window id: %w", err)
	}

	err = win.CreateChecked(c.Root, spec.X, spec.Y, spec.Width, spec.Height,
		xproto.CwBackPixel|xproto.CwEventMask,
		spec.Background,
		xproto.EventMaskStructureNotify|xproto.EventMaskPropertyChange)
	if err != nil {
		return 0, fmt.Errorf("failed to create window: %w", err)
	}
	id := win.Id

	if spec.Title != "" {
		_ = ewmh.WmNameSet(c.XUtil, id, spec.Title)
		_ = icccm.WmNameSet(c.XUtil, id, spec.Title)
	}
	_ = icccm.WmClassSet(c.XUtil, id, &icccm.WmClass{Instance: wmClassInstance, Class: wmClassName})
	_ = icccm.WmProtocolsSet(c.XUtil, id, []string{"WM_DELETE_WINDOW"})

	input := uint(0)
	if spec.AcceptFocus {
		input = 1
	}
	_ = icccm.WmHintsSet(c.XUtil, id, &icccm.Hints{
		Flags:        icccm.HintInput | icccm.HintState,
		Input:        input,
		InitialState: icccm.StateNormal,
	})

	hints := &icccm.NormalHints{
		Flags:  icccm.SizeHintPSize,
		Width:  uint(spec.Width),
		Height: uint(spec.Height),
	}
	if spec.Positioned {
		hints.Flags |= icccm.SizeHintUSPosition | icccm.SizeHintPPosition
		hints.X = spec.X
		hints.Y = spec.Y
	}
	if spec.Resizable {
		if spec.MinWidth > 0 || spec.MinHeight > 0 {
			hints.Flags |= icccm.SizeHintPMinSize
			hints.MinWidth = uint(spec.MinWidth)
			hints.MinHeight = uint(spec.MinHeight)
		}
	} else {
		hints.Flags |= icccm.SizeHintPMinSize | icccm.SizeHintPMaxSize
		hints.MinWidth, hints.MaxWidth = uint(spec.Width), uint(spec.Width)
		hints.MinHeight, hints.MaxHeight = uint(spec.Height), uint(spec.Height)
	}
	_ = icccm.WmNormalHintsSet(c.XUtil, id, hints)

	if spec.TransientFor != 0 {
		_ = icccm.WmTransientForSet(c.XUtil, id, spec.TransientFor)
	}

	windowType := windowTypeNormal
	switch {
	case spec.Dialog:
		windowType = windowTypeDialog
	case spec.Frameless:
		windowType = windowTypeUtility
	}
	_ = ewmh.WmWindowTypeSet(c.XUtil, id, []string{windowType})

	if err := c.SetMotifHints(id, !spec.Frameless, spec.Resizable, spec.Movable); err != nil {
		return id, err
	}

	var states []string
	if spec.Above {
		states = append(states, StateAbove)
	}
	if spec.SkipTaskbar {
		states = append(states, StateSkipTaskbar, StateSkipPager)
	}
	if spec.Modal {
		states = append(states, StateModal)
	}
	if len(states) > 0 {
		_ = ewmh.WmStateSet(c.XUtil, id, states)
	}

	return id, nil
}

// WatchWindow connects structure notification callbacks for a window. The
// callbacks are detached once the window is destroyed.
func (c *Connection) WatchWindow(id xproto.Window, events WindowEvents) {
	xevent.MapNotifyFun(func(_ *xgbutil.XUtil, _ xevent.MapNotifyEvent) {
		if events.Mapped != nil {
			events.Mapped()
		}
	}).Connect(c.XUtil, id)

	xevent.UnmapNotifyFun(func(_ *xgbutil.XUtil, _ xevent.UnmapNotifyEvent) {
		if events.Unmapped != nil {
			events.Unmapped()
		}
	}).Connect(c.XUtil, id)

	xevent.DestroyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.DestroyNotifyEvent) {
		if ev.Window != id {
			return
		}
		xevent.Detach(xu, id)
		if events.Destroyed != nil {
			events.Destroyed()
		}
	}).Connect(c.XUtil, id)

	xevent.ClientMessageFun(func(xu *xgbutil.XUtil, ev xevent.ClientMessageEvent) {
		if icccm.IsDeleteProtocol(xu, ev) {
			xwindow.New(xu, id).Destroy()
		}
	}).Connect(c.XUtil, id)
}

// Map makes a window visible.
func (c *Connection) Map(id xproto.Window) error {
	return xproto.MapWindowChecked(c.XUtil.Conn(), id).Check()
}

// Unmap hides a window.
func (c *Connection) Unmap(id xproto.Window) error {
	return xproto.UnmapWindowChecked(c.XUtil.Conn(), id).Check()
}

// Destroy destroys a window owned by this connection.
func (c *Connection) Destroy(id xproto.Window) error {
	return xproto.DestroyWindowChecked(c.XUtil.Conn(), id).Check()
}

// Raise moves a window to the top of the stacking order.
func (c *Connection) Raise(id xproto.Window) error {
	return xproto.ConfigureWindowChecked(
		c.XUtil.Conn(),
		id,
		xproto.ConfigWindowStackMode,
		[]uint32{xproto.StackModeAbove},
	).Check()
}

// SetBackground changes the window background pixel and repaints it.
func (c *Connection) SetBackground(id xproto.Window, pixel uint32) error {
	if err := xproto.ChangeWindowAttributesChecked(c.XUtil.Conn(), id, xproto.CwBackPixel, []uint32{pixel}).Check(); err != nil {
		return err
	}
	return xproto.ClearAreaChecked(c.XUtil.Conn(), false, id, 0, 0, 0, 0).Check()
}

// SetMotifHints sets decoration and allowed functions through
// _MOTIF_WM_HINTS.
func (c *Connection) SetMotifHints(id xproto.Window, decorated, resizable, movable bool) error {
	hints := &motif.Hints{
		Flags:    motif.HintFunctions | motif.HintDecorations,
		Function: motif.FunctionClose | motif.FunctionMinimize,
	}
	if decorated {
		hints.Decoration = motif.DecorationAll
	} else {
		hints.Decoration = motif.DecorationNone
	}
	if resizable {
		hints.Function |= motif.FunctionResize | motif.FunctionMaximize
	}
	if movable {
		hints.Function |= motif.FunctionMove
	}
	if err := motif.WmHintsSet(c.XUtil, id, hints); err != nil {
		return fmt.Errorf("failed to set motif hints: %w", err)
	}
	return nil
}

// SetState adds or removes EWMH states. Mapped windows are changed through
// a client message to the window manager; unmapped ones by rewriting the
// property.
func (c *Connection) SetState(id xproto.Window, mapped, on bool, states ...string) error {
	if mapped {
		action := ewmh.StateRemove
		if on {
			action = ewmh.StateAdd
		}
		for _, state := range states {
			if err := ewmh.WmStateReq(c.XUtil, id, action, state); err != nil {
				return fmt.Errorf("failed to request %s: %w", state, err)
			}
		}
		return nil
	}

	current, _ := ewmh.WmStateGet(c.XUtil, id)
	next := make([]string, 0, len(current)+len(states))
	for _, s := range current {
		if !contains(states, s) {
			next = append(next, s)
		}
	}
	if on {
		next = append(next, states...)
	}
	return ewmh.WmStateSet(c.XUtil, id, next)
}

// HasState reports whether a window carries an EWMH state.
func (c *Connection) HasState(id xproto.Window, state string) bool {
	states, err := ewmh.WmStateGet(c.XUtil, id)
	if err != nil {
		return false
	}
	return contains(states, state)
}

// IsIconic reports whether a window is minimized.
func (c *Connection) IsIconic(id xproto.Window) bool {
	if st, err := icccm.WmStateGet(c.XUtil, id); err == nil && st.State == icccm.StateIconic {
		return true
	}
	return c.HasState(id, StateHidden)
}

// MoveResizeWindow moves and resizes a window to the specified geometry
func (c *Connection) MoveResizeWindow(windowID xproto.Window, x, y, width, height int) error {
	// First, check if window is maximized and unmaximize it
	_ = c.unmaximizeWindow(windowID)

	win := xwindow.New(c.XUtil, windowID)

	// Use EWMH MoveResize for better WM compatibility
	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, x, y, width, height); err != nil {
		// Fallback to direct window manipulation
		win.MoveResize(x, y, width, height)
	}
	return nil
}

// unmaximizeWindow removes maximized state from a window
func (c *Connection) unmaximizeWindow(windowID xproto.Window) error {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return err
	}

	if contains(states, StateMaximizedH) {
		_ = ewmh.WmStateReq(c.XUtil, windowID, ewmh.StateRemove, StateMaximizedH)
	}
	if contains(states, StateMaximizedV) {
		_ = ewmh.WmStateReq(c.XUtil, windowID, ewmh.StateRemove, StateMaximizedV)
	}
	return nil
}

// Geometry returns a window's position in root coordinates and its size.
func (c *Connection) Geometry(windowID xproto.Window) (Area, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return Area{}, err
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return Area{}, err
	}

	return Area{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// Minimize iconifies a window via WM_CHANGE_STATE.
func (c *Connection) Minimize(windowID xproto.Window) error {
	reply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len("WM_CHANGE_STATE")), "WM_CHANGE_STATE").Reply()
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   reply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{iconicState, 0, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
