//go:build linux

package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/wincoord/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend creates top-level windows on an X11 server. Content is
// rendered by a ContentHost attached to each window.
type LinuxBackend struct {
	conn   *x11.Connection
	host   ContentHost
	logger *slog.Logger
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection, host ContentHost, logger *slog.Logger) *LinuxBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinuxBackend{conn: conn, host: host, logger: logger}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay(host ContentHost, logger *slog.Logger) (*LinuxBackend, error) {
	conn, err := x11.Dial("")
	if err != nil {
		return nil, err
	}
	return NewLinuxBackend(conn, host, logger), nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// XUtil exposes the X connection for global key bindings.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the root window of the default screen.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// EventLoop runs the X11 event loop until ctx is cancelled. Window
// lifecycle signals are only delivered while it runs.
func (b *LinuxBackend) EventLoop(ctx context.Context) {
	stop := context.AfterFunc(ctx, b.conn.Quit)
	defer stop()
	b.conn.EventLoop()
}

// Displays returns all active monitors.
func (b *LinuxBackend) Displays() ([]Display, error) {
	monitors, err := b.conn.Monitors()
	if err != nil {
		return nil, err
	}
	if len(monitors) == 0 {
		return nil, fmt.Errorf("no monitors found")
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, displayFromMonitor(m))
	}
	return displays, nil
}

// PrimaryDisplay returns the RandR primary output, or the first monitor.
func (b *LinuxBackend) PrimaryDisplay() (Display, error) {
	displays, err := b.Displays()
	if err != nil {
		return Display{}, err
	}
	return PrimaryOf(displays)
}

// DisplayMatching returns the monitor that best contains r.
func (b *LinuxBackend) DisplayMatching(r Rect) (Display, error) {
	displays, err := b.Displays()
	if err != nil {
		return Display{}, err
	}
	return MatchDisplay(displays, r)
}

// CreateWindow creates an unmapped window and starts watching it.
func (b *LinuxBackend) CreateWindow(attrs Attributes, sink EventSink) (Window, error) {
	spec := x11.WindowSpec{
		Area: x11.Area{
			X:      attrs.Bounds.X,
			Y:      attrs.Bounds.Y,
			Width:  attrs.Bounds.Width,
			Height: attrs.Bounds.Height,
		},
		Positioned:   attrs.HasPosition,
		Title:        attrs.Title,
		MinWidth:     attrs.MinWidth,
		MinHeight:    attrs.MinHeight,
		Frameless:    attrs.Frameless,
		Resizable:    attrs.Resizable,
		Movable:      attrs.Movable || !attrs.Frameless,
		SkipTaskbar:  attrs.SkipTaskbar,
		Above:        attrs.AlwaysOnTop,
		Dialog:       attrs.Parent != 0,
		Modal:        attrs.Modal,
		TransientFor: xproto.Window(attrs.Parent),
		AcceptFocus:  attrs.Focusable,
	}
	if c, err := ParseColor(attrs.BackgroundColor); err == nil && !c.Transparent() {
		spec.Background = c.Pixel()
	}

	id, err := b.conn.CreateTopLevel(spec)
	if err != nil {
		return nil, fmt.Errorf("create window %q: %w", attrs.Title, err)
	}

	w := &x11Window{
		backend:     b,
		id:          id,
		attrs:       attrs,
		sink:        sink,
		alwaysOnTop: attrs.AlwaysOnTop,
	}
	b.conn.WatchWindow(id, x11.WindowEvents{
		Mapped:    w.onMapped,
		Unmapped:  w.onUnmapped,
		Destroyed: w.onDestroyed,
	})

	if attrs.Icon != "" {
		if err := b.conn.SetIconFile(id, attrs.Icon); err != nil {
			b.logger.Debug("window icon not set", "window", id, "icon", attrs.Icon, "error", err)
		}
	}

	b.logger.Debug("window created", "window", id, "title", attrs.Title)
	return w, nil
}

func displayFromMonitor(m x11.Monitor) Display {
	return Display{
		ID:      m.ID,
		Name:    m.Name,
		Primary: m.Primary,
		Bounds:  rectFromArea(m.Bounds),
		Usable:  rectFromArea(m.WorkArea),
	}
}

func rectFromArea(a x11.Area) Rect {
	return Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
}

// x11Window is a top-level X11 window with an attached content session.
type x11Window struct {
	backend *LinuxBackend
	id      xproto.Window
	attrs   Attributes
	sink    EventSink

	mu          sync.Mutex
	mapped      bool
	destroyed   bool
	alwaysOnTop bool
	session     ContentSession
}

var _ Window = (*x11Window)(nil)

func (w *x11Window) ID() WindowID { return WindowID(w.id) }

func (w *x11Window) conn() *x11.Connection { return w.backend.conn }

func (w *x11Window) onMapped() {
	w.mu.Lock()
	w.mapped = true
	w.mu.Unlock()
	w.sink(Event{Type: EventShown, Window: w.ID()})
}

func (w *x11Window) onUnmapped() {
	w.mu.Lock()
	w.mapped = false
	w.mu.Unlock()
}

func (w *x11Window) onDestroyed() {
	w.mu.Lock()
	w.destroyed = true
	w.mapped = false
	session := w.session
	w.session = nil
	w.mu.Unlock()

	if session != nil {
		// Runs on the X event goroutine; Close can wait out the renderer's exit grace.
		closeSessionAsync(session, w.backend.logger.With("window", w.id))
	}
	w.sink(Event{Type: EventDestroyed, Window: w.ID()})
}

func (w *x11Window) Bounds() (Rect, error) {
	area, err := w.conn().Geometry(w.id)
	if err != nil {
		return Rect{}, err
	}
	return rectFromArea(area), nil
}

func (w *x11Window) SetBounds(bounds Rect) error {
	return w.conn().MoveResizeWindow(w.id, bounds.X, bounds.Y, bounds.Width, bounds.Height)
}

func (w *x11Window) IsVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mapped && !w.destroyed
}

func (w *x11Window) IsDestroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

func (w *x11Window) IsMinimized() bool {
	if w.IsDestroyed() {
		return false
	}
	return w.conn().IsIconic(w.id)
}

func (w *x11Window) IsAlwaysOnTop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alwaysOnTop
}

func (w *x11Window) isMapped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mapped
}

func (w *x11Window) Load(ctx context.Context, content string) error {
	if w.backend.host == nil {
		return fmt.Errorf("no content host configured: %w", ErrUnsupported)
	}
	session, err := w.backend.host.Attach(ctx, w.ID(), content, w.sink)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		_ = session.Close()
		return fmt.Errorf("window %d destroyed while loading", w.id)
	}
	old := w.session
	w.session = session
	w.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

var errNotLoaded = errors.New("content not loaded")

func (w *x11Window) contentSession() (ContentSession, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return nil, errNotLoaded
	}
	return w.session, nil
}

func (w *x11Window) Inject(payload []byte) error {
	s, err := w.contentSession()
	if err != nil {
		return err
	}
	return s.Inject(payload)
}

func (w *x11Window) Send(channel string, payload any) error {
	s, err := w.contentSession()
	if err != nil {
		return err
	}
	return s.Send(channel, payload)
}

func (w *x11Window) Show() error {
	return w.conn().Map(w.id)
}

func (w *x11Window) Hide() error {
	return w.conn().Unmap(w.id)
}

func (w *x11Window) Focus() error {
	return w.conn().FocusWindow(w.id)
}

func (w *x11Window) Raise() error {
	return w.conn().Raise(w.id)
}

// Restore de-iconifies the window. Window managers treat an activation
// request for an iconic window as a restore.
func (w *x11Window) Restore() error {
	if !w.conn().IsIconic(w.id) {
		return nil
	}
	if err := w.conn().Map(w.id); err != nil {
		return err
	}
	return w.conn().FocusWindow(w.id)
}

func (w *x11Window) Minimize() error {
	return w.conn().Minimize(w.id)
}

func (w *x11Window) Close() error {
	if w.IsDestroyed() {
		return nil
	}
	return w.conn().Destroy(w.id)
}

// SetAlwaysOnTop maps every raised level onto _NET_WM_STATE_ABOVE, the only
// stacking tier EWMH offers to clients.
func (w *x11Window) SetAlwaysOnTop(on bool, level Level) error {
	above := on && level != LevelNormal
	if err := w.conn().SetState(w.id, w.isMapped(), above, x11.StateAbove); err != nil {
		return err
	}
	w.mu.Lock()
	w.alwaysOnTop = above
	w.mu.Unlock()
	return nil
}

func (w *x11Window) SetVisibleOnAllWorkspaces(on bool) error {
	return w.conn().SetSticky(w.id, w.isMapped(), on)
}

func (w *x11Window) SetHasShadow(bool) error {
	return fmt.Errorf("shadows are drawn by the compositor: %w", ErrUnsupported)
}

func (w *x11Window) SetIgnoreMouseEvents(ignore bool) error {
	if !ignore {
		return nil
	}
	return fmt.Errorf("click-through windows: %w", ErrUnsupported)
}

func (w *x11Window) SetBackgroundColor(color string) error {
	c, err := ParseColor(color)
	if err != nil {
		return err
	}
	if c.Transparent() {
		return fmt.Errorf("transparent background without an ARGB visual: %w", ErrUnsupported)
	}
	return w.conn().SetBackground(w.id, c.Pixel())
}

func (w *x11Window) SetVibrancy(string) error {
	return fmt.Errorf("vibrancy: %w", ErrUnsupported)
}

func (w *x11Window) SetVisualEffectState(string) error {
	return fmt.Errorf("visual effect state: %w", ErrUnsupported)
}

func (w *x11Window) SetMovable(on bool) error {
	return w.conn().SetMotifHints(w.id, !w.attrs.Frameless, w.attrs.Resizable, on)
}
