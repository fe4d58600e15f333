package platform

import (
	"context"
	"errors"
	"log/slog"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Display describes a physical display and its usable work area.
type Display struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
	Bounds  Rect   `json:"bounds"`
	Usable  Rect   `json:"usable"`
}

// Level is an always-on-top tier.
type Level string

const (
	LevelNormal      Level = "normal"
	LevelFloating    Level = "floating"
	LevelScreenSaver Level = "screen-saver"
)

// Attributes is the construction-time presentation contract of a window.
type Attributes struct {
	Title string
	Icon  string

	// Bounds carries the size always, and the position only when
	// HasPosition is set. Without a position the backend places the window.
	Bounds      Rect
	HasPosition bool
	MinWidth    int
	MinHeight   int

	Frameless        bool
	Resizable        bool
	Minimizable      bool
	Maximizable      bool
	Fullscreenable   bool
	AlwaysOnTop      bool
	SkipTaskbar      bool
	Transparent      bool
	BackgroundColor  string
	HasShadow        bool
	Focusable        bool
	AcceptFirstMouse bool
	Movable          bool

	Modal  bool
	Parent WindowID // 0 means no parent

	Preload              string
	BackgroundThrottling bool
}

// EventType names a lifecycle signal emitted by a window.
type EventType string

const (
	EventReady     EventType = "ready"
	EventShown     EventType = "shown"
	EventDestroyed EventType = "destroyed"
)

// Event is a lifecycle signal for a single window.
type Event struct {
	Type   EventType
	Window WindowID
}

// EventSink receives lifecycle signals. Implementations must not block.
type EventSink func(Event)

// Window is a live top-level window owned by the presentation layer.
type Window interface {
	ID() WindowID
	Bounds() (Rect, error)
	SetBounds(bounds Rect) error

	IsVisible() bool
	IsDestroyed() bool
	IsMinimized() bool
	IsAlwaysOnTop() bool

	// Load attaches the window's content and returns once it has loaded.
	Load(ctx context.Context, content string) error
	// Inject hands a serialized payload to the loaded content in-band.
	Inject(payload []byte) error
	// Send delivers a message to the content on a named channel.
	Send(channel string, payload any) error

	Show() error
	Hide() error
	Focus() error
	Raise() error
	Restore() error
	Minimize() error
	Close() error

	SetAlwaysOnTop(on bool, level Level) error
	SetVisibleOnAllWorkspaces(on bool) error
	SetHasShadow(on bool) error
	SetIgnoreMouseEvents(ignore bool) error
	SetBackgroundColor(color string) error
	SetVibrancy(material string) error
	SetVisualEffectState(state string) error
	SetMovable(on bool) error
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	Displays() ([]Display, error)
	PrimaryDisplay() (Display, error)
	// DisplayMatching returns the display that best contains r.
	DisplayMatching(r Rect) (Display, error)
	// CreateWindow creates a hidden window. Lifecycle signals for it are
	// delivered to sink for as long as the window exists.
	CreateWindow(attrs Attributes, sink EventSink) (Window, error)
}

// ContentHost renders window content for backends that only provide the
// window shell.
type ContentHost interface {
	Attach(ctx context.Context, id WindowID, content string, sink EventSink) (ContentSession, error)
}

// ContentSession is the channel to one window's loaded content.
type ContentSession interface {
	Inject(payload []byte) error
	Send(channel string, payload any) error
	Close() error
}

// closeSessionAsync closes s without blocking the caller, which may be an
// event loop. done is closed once Close returns.
func closeSessionAsync(s ContentSession, logger *slog.Logger) (done <-chan struct{}) {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		if err := s.Close(); err != nil {
			logger.Debug("content session close failed", "error", err)
		}
	}()
	return ch
}

// ErrUnsupported marks an optional capability the backend does not provide.
var ErrUnsupported = errors.New("operation not supported by this platform")
