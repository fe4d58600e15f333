package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Capability names used for failure injection on the memory backend.
const (
	CapAlwaysOnTop         = "always-on-top"
	CapVisibleOnWorkspaces = "visible-on-all-workspaces"
	CapShadow              = "shadow"
	CapIgnoreMouseEvents   = "ignore-mouse-events"
	CapBackgroundColor     = "background-color"
	CapVibrancy            = "vibrancy"
	CapVisualEffectState   = "visual-effect-state"
	CapMovable             = "movable"
)

// Message is a payload delivered to a window's content.
type Message struct {
	Channel string
	Payload json.RawMessage
}

// MemoryBackend is an in-process presentation layer. It backs headless runs
// and tests; nothing is drawn.
type MemoryBackend struct {
	mu       sync.Mutex
	displays []Display
	nextID   WindowID
	windows  map[WindowID]*MemoryWindow
	order    []*MemoryWindow

	loadErrs  map[string]error
	capErrs   map[string]error
	capPanics map[string]bool
	loadGate  chan struct{}
	autoReady bool
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates a memory backend with the given displays. With no
// displays a single 1920x1080 primary display is used.
func NewMemoryBackend(displays ...Display) *MemoryBackend {
	if len(displays) == 0 {
		displays = []Display{{
			ID:      0,
			Name:    "memory-0",
			Primary: true,
			Bounds:  Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
			Usable:  Rect{X: 0, Y: 0, Width: 1920, Height: 1050},
		}}
	}
	return &MemoryBackend{
		displays:  displays,
		windows:   make(map[WindowID]*MemoryWindow),
		loadErrs:  make(map[string]error),
		capErrs:   make(map[string]error),
		capPanics: make(map[string]bool),
	}
}

// SetDisplays replaces the display list.
func (b *MemoryBackend) SetDisplays(displays ...Display) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.displays = displays
}

// FailLoad makes Load fail with err for the given content resource.
func (b *MemoryBackend) FailLoad(content string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadErrs[content] = err
}

// FailCapability makes the named cosmetic capability return err on every window.
func (b *MemoryBackend) FailCapability(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capErrs[name] = err
}

// PanicCapability makes the named cosmetic capability panic on every window.
func (b *MemoryBackend) PanicCapability(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capPanics[name] = true
}

// HoldLoads blocks every Load until the returned release func is called.
func (b *MemoryBackend) HoldLoads() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.loadGate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(gate)
			b.mu.Lock()
			if b.loadGate == gate {
				b.loadGate = nil
			}
			b.mu.Unlock()
		})
	}
}

// SetAutoReady makes windows emit a ready signal as soon as they load.
func (b *MemoryBackend) SetAutoReady(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoReady = on
}

// Created returns every window created so far, in creation order.
func (b *MemoryBackend) Created() []*MemoryWindow {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*MemoryWindow, len(b.order))
	copy(out, b.order)
	return out
}

// Window returns a window by ID.
func (b *MemoryBackend) Window(id WindowID) (*MemoryWindow, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.windows[id]
	return w, ok
}

func (b *MemoryBackend) Displays() ([]Display, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Display, len(b.displays))
	copy(out, b.displays)
	return out, nil
}

func (b *MemoryBackend) PrimaryDisplay() (Display, error) {
	displays, _ := b.Displays()
	return PrimaryOf(displays)
}

func (b *MemoryBackend) DisplayMatching(r Rect) (Display, error) {
	displays, _ := b.Displays()
	return MatchDisplay(displays, r)
}

func (b *MemoryBackend) CreateWindow(attrs Attributes, sink EventSink) (Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	bounds := attrs.Bounds
	if !attrs.HasPosition {
		bounds.X, bounds.Y = 0, 0
	}
	w := &MemoryWindow{
		backend:     b,
		id:          b.nextID,
		attrs:       attrs,
		sink:        sink,
		bounds:      bounds,
		alwaysOnTop: attrs.AlwaysOnTop,
		movable:     attrs.Movable,
	}
	b.windows[w.id] = w
	b.order = append(b.order, w)
	return w, nil
}

func (b *MemoryBackend) capability(name string) error {
	b.mu.Lock()
	err := b.capErrs[name]
	shouldPanic := b.capPanics[name]
	b.mu.Unlock()
	if shouldPanic {
		panic(fmt.Sprintf("memory backend: %s exploded", name))
	}
	return err
}

// MemoryWindow is a window of the memory backend.
type MemoryWindow struct {
	backend *MemoryBackend
	id      WindowID
	attrs   Attributes
	sink    EventSink

	mu          sync.Mutex
	bounds      Rect
	content     string
	loaded      bool
	visible     bool
	minimized   bool
	destroyed   bool
	alwaysOnTop bool
	level       Level
	allSpaces   bool
	shadow      bool
	ignoreMouse bool
	background  string
	movable     bool
	focused     int
	raised      int
	shown       int
	injected    [][]byte
	messages    []Message
}

var _ Window = (*MemoryWindow)(nil)

func (w *MemoryWindow) ID() WindowID { return w.id }

// Attributes returns the attributes the window was created with.
func (w *MemoryWindow) Attributes() Attributes { return w.attrs }

// Content returns the loaded content resource.
func (w *MemoryWindow) Content() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.content
}

// Injected returns every in-band payload handed to the content.
func (w *MemoryWindow) Injected() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]byte, len(w.injected))
	copy(out, w.injected)
	return out
}

// Messages returns every message sent to the content.
func (w *MemoryWindow) Messages() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// ShowCount returns how many times Show changed the window to visible.
func (w *MemoryWindow) ShowCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shown
}

// FocusCount returns how many times the window was focused.
func (w *MemoryWindow) FocusCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Movable reports the current movable flag.
func (w *MemoryWindow) Movable() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.movable
}

// IgnoresMouse reports whether mouse events pass through the window.
func (w *MemoryWindow) IgnoresMouse() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ignoreMouse
}

// SignalReady emits the content-ready signal.
func (w *MemoryWindow) SignalReady() {
	if w.sink != nil {
		w.sink(Event{Type: EventReady, Window: w.id})
	}
}

// Destroy simulates the user closing the window.
func (w *MemoryWindow) Destroy() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.destroyed = true
	w.visible = false
	w.mu.Unlock()
	if w.sink != nil {
		w.sink(Event{Type: EventDestroyed, Window: w.id})
	}
}

func (w *MemoryWindow) Bounds() (Rect, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return Rect{}, fmt.Errorf("window %d is destroyed", w.id)
	}
	return w.bounds, nil
}

func (w *MemoryWindow) SetBounds(bounds Rect) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return fmt.Errorf("window %d is destroyed", w.id)
	}
	w.bounds = bounds
	return nil
}

func (w *MemoryWindow) IsVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

func (w *MemoryWindow) IsDestroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

func (w *MemoryWindow) IsMinimized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.minimized
}

func (w *MemoryWindow) IsAlwaysOnTop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alwaysOnTop
}

func (w *MemoryWindow) Load(ctx context.Context, content string) error {
	w.backend.mu.Lock()
	gate := w.backend.loadGate
	loadErr := w.backend.loadErrs[content]
	autoReady := w.backend.autoReady
	w.backend.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if loadErr != nil {
		return loadErr
	}

	w.mu.Lock()
	w.content = content
	w.loaded = true
	w.mu.Unlock()

	if autoReady {
		w.SignalReady()
	}
	return nil
}

func (w *MemoryWindow) Inject(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.loaded {
		return fmt.Errorf("window %d has no content", w.id)
	}
	w.injected = append(w.injected, append([]byte(nil), payload...))
	return nil
}

func (w *MemoryWindow) Send(channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", channel, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return fmt.Errorf("window %d is destroyed", w.id)
	}
	w.messages = append(w.messages, Message{Channel: channel, Payload: data})
	return nil
}

func (w *MemoryWindow) Show() error {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return fmt.Errorf("window %d is destroyed", w.id)
	}
	changed := !w.visible
	w.visible = true
	w.minimized = false
	if changed {
		w.shown++
	}
	w.mu.Unlock()
	if changed && w.sink != nil {
		w.sink(Event{Type: EventShown, Window: w.id})
	}
	return nil
}

func (w *MemoryWindow) Hide() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = false
	return nil
}

func (w *MemoryWindow) Focus() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focused++
	return nil
}

func (w *MemoryWindow) Raise() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.raised++
	return nil
}

func (w *MemoryWindow) Restore() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.minimized = false
	return nil
}

func (w *MemoryWindow) Minimize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.minimized = true
	return nil
}

func (w *MemoryWindow) Close() error {
	w.Destroy()
	return nil
}

func (w *MemoryWindow) SetAlwaysOnTop(on bool, level Level) error {
	if err := w.backend.capability(CapAlwaysOnTop); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alwaysOnTop = on
	w.level = level
	return nil
}

func (w *MemoryWindow) SetVisibleOnAllWorkspaces(on bool) error {
	if err := w.backend.capability(CapVisibleOnWorkspaces); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.allSpaces = on
	return nil
}

func (w *MemoryWindow) SetHasShadow(on bool) error {
	if err := w.backend.capability(CapShadow); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shadow = on
	return nil
}

func (w *MemoryWindow) SetIgnoreMouseEvents(ignore bool) error {
	if err := w.backend.capability(CapIgnoreMouseEvents); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignoreMouse = ignore
	return nil
}

func (w *MemoryWindow) SetBackgroundColor(color string) error {
	if err := w.backend.capability(CapBackgroundColor); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.background = color
	return nil
}

func (w *MemoryWindow) SetVibrancy(string) error {
	return w.backend.capability(CapVibrancy)
}

func (w *MemoryWindow) SetVisualEffectState(string) error {
	return w.backend.capability(CapVisualEffectState)
}

func (w *MemoryWindow) SetMovable(on bool) error {
	if err := w.backend.capability(CapMovable); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.movable = on
	return nil
}
