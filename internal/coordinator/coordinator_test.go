package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/wincoord/internal/config"
	"github.com/1broseidon/wincoord/internal/platform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startCoordinator returns a coordinator with its event loop running for the
// duration of the test.
func startCoordinator(t *testing.T, backend *platform.MemoryBackend, cfg *config.Config) *Coordinator {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := New(backend, cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func mustEnsure(t *testing.T, c *Coordinator, slot Slot, s Settings, o Options) *platform.MemoryWindow {
	t.Helper()
	w, err := c.Ensure(context.Background(), slot, s, o)
	if err != nil {
		t.Fatalf("ensure %s: %v", slot, err)
	}
	mw, ok := w.(*platform.MemoryWindow)
	if !ok {
		t.Fatalf("ensure %s: expected *platform.MemoryWindow, got %T", slot, w)
	}
	return mw
}

func messagesOn(w *platform.MemoryWindow, channel string) []platform.Message {
	var out []platform.Message
	for _, m := range w.Messages() {
		if m.Channel == channel {
			out = append(out, m)
		}
	}
	return out
}

func TestEnsure_SingleInstancePerSlot(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	for _, slot := range Slots() {
		first := mustEnsure(t, c, slot, Settings{}, Options{})
		second := mustEnsure(t, c, slot, Settings{}, Options{})
		if first != second {
			t.Fatalf("%s: expected the same window from sequential ensure calls", slot)
		}
		if got := c.Get(slot); got != platform.Window(first) {
			t.Fatalf("%s: expected Get to return the live window", slot)
		}
	}

	if got, want := len(b.Created()), len(Slots()); got != want {
		t.Fatalf("expected %d constructions, got %d", want, got)
	}
	if got := c.Count(); got != len(Slots()) {
		t.Fatalf("expected count %d, got %d", len(Slots()), got)
	}
	if !c.HasOpen() {
		t.Fatalf("expected HasOpen to be true")
	}
}

func TestEnsure_ConcurrentCallsShareOneConstruction(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)
	release := b.HoldLoads()
	defer release()

	const callers = 8
	results := make([]platform.Window, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Ensure(context.Background(), SourceSelector, Settings{}, Options{})
		}(i)
	}

	waitFor(t, "construction to start", func() bool { return len(b.Created()) == 1 })
	if st := c.Snapshot(); !st[4].Pending || st[4].Slot != SourceSelector {
		t.Fatalf("expected sourceSelector to be pending, got %+v", st[4])
	}
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different window", i)
		}
	}
	if got := len(b.Created()); got != 1 {
		t.Fatalf("expected exactly one construction, got %d", got)
	}
}

func TestClose_ThenEnsureBuildsFreshWindow(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	old := mustEnsure(t, c, Main, Settings{}, Options{})
	c.Close(Main)

	if c.Get(Main) != nil {
		t.Fatalf("expected slot to be empty as soon as Close returns")
	}
	if c.Count() != 0 {
		t.Fatalf("expected count 0 after close, got %d", c.Count())
	}

	fresh := mustEnsure(t, c, Main, Settings{}, Options{})
	if fresh == old {
		t.Fatalf("expected a fresh window after close")
	}
	if !old.IsDestroyed() {
		t.Fatalf("expected the old window to be destroyed")
	}
	if got := len(b.Created()); got != 2 {
		t.Fatalf("expected 2 constructions, got %d", got)
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	c.Close(Countdown)

	mustEnsure(t, c, Countdown, Settings{}, Options{})
	c.Close(Countdown)
	c.Close(Countdown)

	if c.HasOpen() {
		t.Fatalf("expected no open windows")
	}
	if err := c.CloseAll(); err != nil {
		t.Fatalf("close all on empty registry: %v", err)
	}
	if got := len(b.Created()); got != 1 {
		t.Fatalf("expected 1 construction, got %d", got)
	}
}

func TestCloseAll_EmptiesEverySlot(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	for _, slot := range []Slot{Main, Floating, Countdown, Webcam} {
		mustEnsure(t, c, slot, Settings{}, Options{})
	}
	if err := c.CloseAll(); err != nil {
		t.Fatalf("close all: %v", err)
	}
	if c.Count() != 0 {
		t.Fatalf("expected count 0, got %d", c.Count())
	}
	for _, w := range b.Created() {
		if !w.IsDestroyed() {
			t.Fatalf("expected window %d to be destroyed", w.ID())
		}
	}
}

func TestEnsure_CosmeticFailuresAreNotFatal(t *testing.T) {
	b := platform.NewMemoryBackend()
	b.FailCapability(platform.CapAlwaysOnTop, errors.New("no compositor"))
	b.PanicCapability(platform.CapShadow)
	c := startCoordinator(t, b, nil)

	w := mustEnsure(t, c, Countdown, Settings{}, Options{})
	if c.Get(Countdown) == nil {
		t.Fatalf("expected countdown to be registered")
	}
	if !w.IgnoresMouse() {
		t.Fatalf("expected calls after the failing ones to still run")
	}
	if err := c.Show(Countdown); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !w.IsVisible() {
		t.Fatalf("expected countdown to be visible")
	}

	webcam := mustEnsure(t, c, Webcam, Settings{}, Options{})
	waitFor(t, "webcam reveal", webcam.IsVisible)
}

func TestEnsure_DarwinOnlyCallsAreBestEffort(t *testing.T) {
	b := platform.NewMemoryBackend()
	b.PanicCapability(platform.CapVibrancy)
	b.FailCapability(platform.CapVisualEffectState, platform.ErrUnsupported)
	c := startCoordinator(t, b, nil)
	c.goos = "darwin"

	w := mustEnsure(t, c, Floating, Settings{MovableControls: true}, Options{})
	if !w.Movable() {
		t.Fatalf("expected floating bar to be movable")
	}
	if c.Icon() != "icon.icns" {
		t.Fatalf("expected darwin icon, got %q", c.Icon())
	}
}

func TestEnsure_LoadFailureLeavesSlotEmpty(t *testing.T) {
	b := platform.NewMemoryBackend()
	loadErr := errors.New("renderer crashed")
	b.FailLoad("windows/main.html", loadErr)
	c := startCoordinator(t, b, nil)

	_, err := c.Ensure(context.Background(), Main, Settings{}, Options{})
	if !errors.Is(err, ErrContentLoad) || !errors.Is(err, loadErr) {
		t.Fatalf("expected content load error wrapping cause, got %v", err)
	}
	if c.Get(Main) != nil {
		t.Fatalf("expected slot to stay empty")
	}
	created := b.Created()
	if len(created) != 1 || !created[0].IsDestroyed() {
		t.Fatalf("expected the half-built window to be closed")
	}

	b.FailLoad("windows/main.html", nil)
	if _, err := c.Ensure(context.Background(), Main, Settings{}, Options{}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestEnsure_SaveRequiresMain(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	_, err := c.Ensure(context.Background(), Save, Settings{}, Options{})
	if !errors.Is(err, ErrPrerequisiteMissing) {
		t.Fatalf("expected ErrPrerequisiteMissing, got %v", err)
	}
	if len(b.Created()) != 0 {
		t.Fatalf("expected no window to be created")
	}
}

func TestEnsure_UnknownSlot(t *testing.T) {
	c := startCoordinator(t, platform.NewMemoryBackend(), nil)

	if _, err := c.Ensure(context.Background(), Slot("settings"), Settings{}, Options{}); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot, got %v", err)
	}
}

func TestEnsure_SaveCenteredOverMainWithOptionsDeliveredOnce(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	main := mustEnsure(t, c, Main, Settings{}, Options{})
	if err := c.Minimize(Main); err != nil {
		t.Fatalf("minimize: %v", err)
	}

	save := mustEnsure(t, c, Save, Settings{}, Options{Payload: map[string]any{"format": "mp4"}})

	// main is 900x680 centered on 1920x1050 -> (510,185)
	attrs := save.Attributes()
	if !attrs.HasPosition || attrs.Bounds.X != 650 || attrs.Bounds.Y != 265 {
		t.Fatalf("expected save at (650,265), got %+v", attrs.Bounds)
	}
	if main.IsMinimized() {
		t.Fatalf("expected main to be restored")
	}

	injected := save.Injected()
	if len(injected) != 1 {
		t.Fatalf("expected one injection, got %d", len(injected))
	}
	var opts map[string]any
	if err := json.Unmarshal(injected[0], &opts); err != nil || opts["format"] != "mp4" {
		t.Fatalf("unexpected injected payload %s (%v)", injected[0], err)
	}
	if got := len(messagesOn(save, ChannelInitSaveOptions)); got != 1 {
		t.Fatalf("expected one %s message, got %d", ChannelInitSaveOptions, got)
	}
}

func TestReveal_ReadySignalShowsWindow(t *testing.T) {
	b := platform.NewMemoryBackend()
	b.SetAutoReady(true)
	cfg := config.DefaultConfig()
	cfg.Windows.Save.RevealFallbackMS = 60000
	c := startCoordinator(t, b, cfg)

	mustEnsure(t, c, Main, Settings{}, Options{})
	save := mustEnsure(t, c, Save, Settings{}, Options{})
	waitFor(t, "save reveal on ready", save.IsVisible)
	if save.ShowCount() != 1 {
		t.Fatalf("expected exactly one show, got %d", save.ShowCount())
	}
}

func TestReveal_FallbackShowsWindowWithoutReadySignal(t *testing.T) {
	b := platform.NewMemoryBackend()
	cfg := config.DefaultConfig()
	cfg.Windows.Webcam.RevealFallbackMS = 100
	c := startCoordinator(t, b, cfg)

	webcam := mustEnsure(t, c, Webcam, Settings{}, Options{})
	if webcam.IsVisible() {
		t.Fatalf("expected webcam to stay hidden until ready or fallback")
	}
	waitFor(t, "webcam fallback reveal", webcam.IsVisible)

	webcam.SignalReady()
	time.Sleep(20 * time.Millisecond)
	if webcam.ShowCount() != 1 {
		t.Fatalf("expected exactly one show, got %d", webcam.ShowCount())
	}
}

func TestEnsure_OverlaysAreNotShownImplicitly(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	floating := mustEnsure(t, c, Floating, Settings{}, Options{})
	mustEnsure(t, c, Floating, Settings{}, Options{})
	time.Sleep(2 * reshowDelay)
	if floating.IsVisible() {
		t.Fatalf("expected floating bar to wait for an explicit show")
	}
	if err := c.Show(Floating); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !floating.IsVisible() {
		t.Fatalf("expected floating bar to be visible")
	}
}

func TestEnsure_LiveWindowIsBroughtToFront(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	w := mustEnsure(t, c, SourceSelector, Settings{}, Options{})
	focused := w.FocusCount()
	if err := c.Minimize(SourceSelector); err != nil {
		t.Fatalf("minimize: %v", err)
	}

	again := mustEnsure(t, c, SourceSelector, Settings{}, Options{})
	if again != w {
		t.Fatalf("expected the same window")
	}
	if w.IsMinimized() {
		t.Fatalf("expected window to be restored")
	}
	if w.FocusCount() <= focused {
		t.Fatalf("expected window to be focused again")
	}
}

func TestAccounts_ModalNotifiesSaveAndRestoresItsTier(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	mustEnsure(t, c, Main, Settings{}, Options{})
	save := mustEnsure(t, c, Save, Settings{}, Options{})
	dialog := mustEnsure(t, c, DriveAccounts, Settings{}, Options{})

	attrs := dialog.Attributes()
	if !attrs.Modal || attrs.Parent != save.ID() {
		t.Fatalf("expected dialog modal to save, got modal=%v parent=%d", attrs.Modal, attrs.Parent)
	}
	if attrs.Bounds.Width != 720 || attrs.Bounds.Height != 520 {
		t.Fatalf("expected 720x520 modal dialog, got %dx%d", attrs.Bounds.Width, attrs.Bounds.Height)
	}
	if save.IsAlwaysOnTop() {
		t.Fatalf("expected save to drop always-on-top while the dialog is open")
	}

	dialog.Destroy()

	waitFor(t, "parent notification", func() bool {
		return len(messagesOn(save, ChannelDriveAccountsChanged)) == 1
	})
	var payload ChildClosed
	msg := messagesOn(save, ChannelDriveAccountsChanged)[0]
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Action != ActionManageClosed {
		t.Fatalf("unexpected notification payload %s (%v)", msg.Payload, err)
	}
	waitFor(t, "save always-on-top restored", save.IsAlwaysOnTop)
	if c.Get(DriveAccounts) != nil {
		t.Fatalf("expected dialog slot to be empty")
	}
}

func TestAccounts_FallsBackToMainAsParent(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	main := mustEnsure(t, c, Main, Settings{}, Options{})
	dialog := mustEnsure(t, c, YouTubeAccounts, Settings{}, Options{})
	if dialog.Attributes().Parent != main.ID() {
		t.Fatalf("expected main as parent")
	}

	c.Close(YouTubeAccounts)
	waitFor(t, "parent notification", func() bool {
		return len(messagesOn(main, ChannelYouTubeAccountsChanged)) == 1
	})
}

func TestAccounts_NotificationSwallowedWhenParentGone(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	main := mustEnsure(t, c, Main, Settings{}, Options{})
	dialog := mustEnsure(t, c, DriveAccounts, Settings{}, Options{})

	c.Close(Main)
	dialog.Destroy()
	waitFor(t, "dialog slot cleared", func() bool { return c.record(dialog.ID()) == nil })

	if got := len(main.Messages()); got != 0 {
		t.Fatalf("expected no messages to a destroyed parent, got %d", got)
	}
}

func TestAccounts_PlainVariant(t *testing.T) {
	b := platform.NewMemoryBackend()
	cfg := config.DefaultConfig()
	modal := false
	cfg.Accounts.Modal = &modal
	c := startCoordinator(t, b, cfg)

	main := mustEnsure(t, c, Main, Settings{}, Options{})
	dialog := mustEnsure(t, c, DriveAccounts, Settings{}, Options{})

	attrs := dialog.Attributes()
	if attrs.Modal || attrs.Parent != 0 {
		t.Fatalf("expected a non-modal dialog")
	}
	if attrs.Bounds.Width != 700 || attrs.Bounds.Height != 600 || !attrs.Resizable {
		t.Fatalf("expected resizable 700x600 dialog, got %+v", attrs)
	}
	waitFor(t, "dialog fallback reveal", dialog.IsVisible)

	c.Close(DriveAccounts)
	waitFor(t, "dialog forgotten", func() bool { return c.record(dialog.ID()) == nil })
	if got := len(main.Messages()); got != 0 {
		t.Fatalf("expected no notification from the plain variant, got %d", got)
	}
}

func TestDestroy_LateSignalKeepsNewerWindow(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	first := mustEnsure(t, c, Webcam, Settings{}, Options{})
	second := mustEnsure(t, c, Webcam, Settings{}, Options{Replace: true})
	if first == second {
		t.Fatalf("expected replace to build a new window")
	}

	waitFor(t, "old window forgotten", func() bool { return c.record(first.ID()) == nil })
	c.Dispatch(platform.Event{Type: platform.EventDestroyed, Window: first.ID()})
	time.Sleep(10 * time.Millisecond)

	if got := c.Get(Webcam); got != platform.Window(second) {
		t.Fatalf("expected the newer window to stay registered")
	}
}

func TestClose_DuringConstructionDiscardsWindow(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)
	release := b.HoldLoads()
	defer release()

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Ensure(context.Background(), DriveAccounts, Settings{}, Options{})
		errCh <- err
	}()

	waitFor(t, "construction to start", func() bool { return len(b.Created()) == 1 })
	c.Close(DriveAccounts)
	release()

	if err := <-errCh; !errors.Is(err, ErrClosedDuringConstruction) {
		t.Fatalf("expected ErrClosedDuringConstruction, got %v", err)
	}
	if !b.Created()[0].IsDestroyed() {
		t.Fatalf("expected the constructed window to be closed")
	}
	if c.Get(DriveAccounts) != nil {
		t.Fatalf("expected slot to stay empty")
	}

	mustEnsure(t, c, DriveAccounts, Settings{}, Options{})
}

func TestEnsure_AfterCloseDuringConstructionBuildsFresh(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)
	release := b.HoldLoads()
	defer release()

	first := make(chan error, 1)
	go func() {
		_, err := c.Ensure(context.Background(), SourceSelector, Settings{}, Options{})
		first <- err
	}()
	waitFor(t, "first construction to start", func() bool { return len(b.Created()) == 1 })
	c.Close(SourceSelector)

	type result struct {
		win platform.Window
		err error
	}
	second := make(chan result, 1)
	go func() {
		w, err := c.Ensure(context.Background(), SourceSelector, Settings{}, Options{})
		second <- result{w, err}
	}()
	waitFor(t, "second construction to start", func() bool { return len(b.Created()) == 2 })
	release()

	if err := <-first; !errors.Is(err, ErrClosedDuringConstruction) {
		t.Fatalf("expected first ensure to report ErrClosedDuringConstruction, got %v", err)
	}
	res := <-second
	if res.err != nil {
		t.Fatalf("expected ensure after close to build a new window, got %v", res.err)
	}
	if got := len(b.Created()); got != 2 {
		t.Fatalf("expected 2 constructions, got %d", got)
	}
	if !b.Created()[0].IsDestroyed() {
		t.Fatalf("expected the closed construction to be torn down")
	}
	if c.Get(SourceSelector) != res.win || res.win.IsDestroyed() {
		t.Fatalf("expected the fresh window to occupy the slot")
	}
}

func TestGet_DestroyedWindowReadsAsEmptyBeforeSignal(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := New(b, config.DefaultConfig(), testLogger())

	w := mustEnsure(t, c, Main, Settings{}, Options{})
	w.Destroy()

	if c.Get(Main) != nil {
		t.Fatalf("expected destroyed window to read as empty")
	}
	if c.Count() != 0 || c.HasOpen() {
		t.Fatalf("expected no open windows")
	}
	if got := c.Sweep(); got != 1 {
		t.Fatalf("expected sweep to find 1 destroyed window, got %d", got)
	}
}

func TestWebcam_PlacedBesideFloatingBar(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	floating := mustEnsure(t, c, Floating, Settings{}, Options{})
	// 240x56 bar at left 20, bottom 40 of a 1920x1050 work area
	if fb := floating.Attributes().Bounds; fb.X != 20 || fb.Y != 954 {
		t.Fatalf("expected floating bar at (20,954), got %+v", fb)
	}

	webcam := mustEnsure(t, c, Webcam, Settings{}, Options{})
	wb := webcam.Attributes().Bounds
	if wb.X != 20+240+12 || wb.Y != 830 {
		t.Fatalf("expected webcam at (272,830), got %+v", wb)
	}
}

func TestWebcam_FallsBackToBottomRightEdge(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	webcam := mustEnsure(t, c, Webcam, Settings{}, Options{Width: 320, Height: 240})
	wb := webcam.Attributes().Bounds
	if wb.X != 1920-320-20 || wb.Y != 1050-(240+40) {
		t.Fatalf("expected bottom-right placement, got %+v", wb)
	}
}

func TestFloating_WidensForWebcamAndHonorsDisplay(t *testing.T) {
	secondary := platform.Display{
		ID:     1,
		Bounds: platform.Rect{X: 1920, Y: 0, Width: 1280, Height: 1024},
		Usable: platform.Rect{X: 1920, Y: 24, Width: 1280, Height: 1000},
	}
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	w := mustEnsure(t, c, Floating, Settings{RecordWebcam: true, FloatingLeftMargin: 32}, Options{Display: &secondary})
	fb := w.Attributes().Bounds
	if fb.Width != 250 {
		t.Fatalf("expected widened bar, got width %d", fb.Width)
	}
	if fb.X != 1920+32 || fb.Y != 24+1000-(56+40) {
		t.Fatalf("unexpected floating placement %+v", fb)
	}
}

func TestMoveAndResize(t *testing.T) {
	b := platform.NewMemoryBackend()
	c := startCoordinator(t, b, nil)

	w := mustEnsure(t, c, Floating, Settings{}, Options{})
	if err := c.MoveBy(Floating, 5, -4); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := c.Resize(Floating, 300, 64); err != nil {
		t.Fatalf("resize: %v", err)
	}
	got, _ := w.Bounds()
	if got != (platform.Rect{X: 25, Y: 950, Width: 300, Height: 64}) {
		t.Fatalf("unexpected bounds %+v", got)
	}

	if err := c.MoveBy(Countdown, 1, 1); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}
