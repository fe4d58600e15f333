package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/ipc"
	"github.com/1broseidon/wincoord/internal/platform"
)

type fakeDaemon struct {
	mu       sync.Mutex
	calls    []string
	ensured  coordinator.Options
	settings coordinator.Settings
	err      error
}

func (f *fakeDaemon) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeDaemon) Ensure(slot string, s coordinator.Settings, o coordinator.Options) (*ipc.EnsureData, error) {
	if err := f.record("ensure " + slot); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.settings, f.ensured = s, o
	f.mu.Unlock()
	return &ipc.EnsureData{
		Slot:     slot,
		WindowID: 7,
		Bounds:   platform.Rect{X: 10, Y: 20, Width: 300, Height: 200},
	}, nil
}

func (f *fakeDaemon) Close(slot string) error { return f.record("close " + slot) }
func (f *fakeDaemon) CloseAll() error { return f.record("closeAll") }
func (f *fakeDaemon) Show(slot string) error { return f.record("show " + slot) }
func (f *fakeDaemon) Hide(slot string) error { return f.record("hide " + slot) }
func (f *fakeDaemon) Minimize(slot string) error { return f.record("minimize " + slot) }

func (f *fakeDaemon) Move(slot string, dx, dy int) error {
	return f.record("move " + slot)
}

func (f *fakeDaemon) Resize(slot string, width, height int) error {
	return f.record("resize " + slot)
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	if err := f.record("status"); err != nil {
		return nil, err
	}
	return &ipc.StatusData{
		Slots: []coordinator.SlotStatus{
			{Slot: coordinator.Main, Open: true, WindowID: 3, Visible: true},
			{Slot: coordinator.Floating},
			{Slot: coordinator.Webcam, Open: true, WindowID: 4},
		},
		OpenCount:     2,
		DaemonRunning: true,
	}, nil
}

func (f *fakeDaemon) GetDisplays() (*ipc.DisplaysData, error) {
	if err := f.record("displays"); err != nil {
		return nil, err
	}
	return &ipc.DisplaysData{Displays: []platform.Display{
		{ID: 0, Name: "eDP-1", Primary: true, Bounds: platform.Rect{Width: 1920, Height: 1080}},
		{ID: 1, Name: "HDMI-1", Bounds: platform.Rect{X: 1920, Width: 2560, Height: 1440}},
	}}, nil
}

func (f *fakeDaemon) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testServer() (*Server, *fakeDaemon) {
	d := &fakeDaemon{}
	return NewServer(d, slog.New(slog.NewTextHandler(io.Discard, nil))), d
}

func TestListWindows_OpenOnly(t *testing.T) {
	s, _ := testServer()

	_, all, err := s.handleListWindows(context.Background(), nil, ListWindowsInput{})
	if err != nil {
		t.Fatalf("list_windows: %v", err)
	}
	if len(all.Windows) != 3 || all.OpenCount != 2 {
		t.Fatalf("unexpected output: %+v", all)
	}

	_, open, err := s.handleListWindows(context.Background(), nil, ListWindowsInput{OpenOnly: true})
	if err != nil {
		t.Fatalf("list_windows open_only: %v", err)
	}
	if len(open.Windows) != 2 {
		t.Fatalf("expected 2 open windows, got %+v", open.Windows)
	}
	for _, w := range open.Windows {
		if !w.Open {
			t.Fatalf("closed slot %s in open_only output", w.Slot)
		}
	}
}

func TestEnsureWindow_ForwardsSettingsAndDisplay(t *testing.T) {
	s, d := testServer()
	display := 1

	_, out, err := s.handleEnsureWindow(context.Background(), nil, EnsureWindowInput{
		Slot:         "countdown",
		RecordWebcam: true,
		DisplayID:    &display,
		Width:        640,
	})
	if err != nil {
		t.Fatalf("ensure_window: %v", err)
	}
	if out.Slot != "countdown" || out.WindowID != 7 || out.Bounds.Width != 300 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if !d.settings.RecordWebcam {
		t.Fatalf("expected RecordWebcam forwarded")
	}
	if d.ensured.Display == nil || d.ensured.Display.Name != "HDMI-1" {
		t.Fatalf("expected HDMI-1 forwarded as target display, got %+v", d.ensured.Display)
	}
	if d.ensured.Width != 640 {
		t.Fatalf("expected width override forwarded, got %d", d.ensured.Width)
	}
}

func TestEnsureWindow_UnknownDisplay(t *testing.T) {
	s, d := testServer()
	display := 9

	_, _, err := s.handleEnsureWindow(context.Background(), nil, EnsureWindowInput{Slot: "main", DisplayID: &display})
	if err == nil || !strings.Contains(err.Error(), "no display with id 9") {
		t.Fatalf("expected unknown display error, got %v", err)
	}
	for _, c := range d.callLog() {
		if strings.HasPrefix(c, "ensure") {
			t.Fatalf("ensure should not reach the daemon, calls: %v", d.callLog())
		}
	}
}

func TestSlotTools_RejectUnknownSlot(t *testing.T) {
	s, d := testServer()

	if _, _, err := s.handleCloseWindow(context.Background(), nil, SlotInput{Slot: "toolbar"}); !errors.Is(err, coordinator.ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot, got %v", err)
	}
	if _, _, err := s.handleEnsureWindow(context.Background(), nil, EnsureWindowInput{Slot: ""}); !errors.Is(err, coordinator.ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot for empty slot, got %v", err)
	}
	if len(d.callLog()) != 0 {
		t.Fatalf("expected no daemon calls, got %v", d.callLog())
	}
}

func TestSlotTools_Forward(t *testing.T) {
	s, d := testServer()
	ctx := context.Background()

	if _, out, err := s.handleShowWindow(ctx, nil, SlotInput{Slot: "webcam"}); err != nil || !out.Done {
		t.Fatalf("show_window: %+v %v", out, err)
	}
	if _, _, err := s.handleHideWindow(ctx, nil, SlotInput{Slot: "webcam"}); err != nil {
		t.Fatalf("hide_window: %v", err)
	}
	if _, _, err := s.handleMinimizeWindow(ctx, nil, SlotInput{Slot: "main"}); err != nil {
		t.Fatalf("minimize_window: %v", err)
	}
	if _, _, err := s.handleMoveWindow(ctx, nil, MoveWindowInput{Slot: "floating", DX: 5}); err != nil {
		t.Fatalf("move_window: %v", err)
	}
	if _, _, err := s.handleResizeWindow(ctx, nil, ResizeWindowInput{Slot: "floating", Width: 10, Height: 10}); err != nil {
		t.Fatalf("resize_window: %v", err)
	}
	if _, _, err := s.handleCloseWindow(ctx, nil, SlotInput{Slot: "save"}); err != nil {
		t.Fatalf("close_window: %v", err)
	}
	if _, _, err := s.handleCloseAll(ctx, nil, CloseAllInput{}); err != nil {
		t.Fatalf("close_all_windows: %v", err)
	}

	want := []string{"show webcam", "hide webcam", "minimize main", "move floating", "resize floating", "close save", "closeAll"}
	got := d.callLog()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestResizeWindow_InvalidSize(t *testing.T) {
	s, d := testServer()
	if _, _, err := s.handleResizeWindow(context.Background(), nil, ResizeWindowInput{Slot: "main", Height: 10}); err == nil {
		t.Fatalf("expected invalid size error")
	}
	if len(d.callLog()) != 0 {
		t.Fatalf("expected no daemon calls, got %v", d.callLog())
	}
}

func TestSlotTools_DaemonError(t *testing.T) {
	s, d := testServer()
	d.err = coordinator.ErrNotOpen

	_, out, err := s.handleShowWindow(context.Background(), nil, SlotInput{Slot: "main"})
	if !errors.Is(err, coordinator.ErrNotOpen) {
		t.Fatalf("expected daemon error, got %v", err)
	}
	if out.Done {
		t.Fatalf("expected Done=false on error")
	}
}

func TestServer_ToolsOverTransport(t *testing.T) {
	s, _ := testServer()
	ctx := context.Background()

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := s.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer serverSession.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools.Tools) != 10 {
		t.Fatalf("expected 10 tools, got %d", len(tools.Tools))
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "ensure_window",
		Arguments: map[string]any{"slot": "floating"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}

	res, err = session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "close_window",
		Arguments: map[string]any{"slot": "toolbar"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for unknown slot")
	}
}
