package coordinator

import (
	"github.com/1broseidon/wincoord/internal/config"
	"github.com/1broseidon/wincoord/internal/platform"
)

// Slot is a named window role holding at most one live window.
type Slot string

const (
	Main            Slot = config.SlotMain
	Floating        Slot = config.SlotFloating
	Countdown       Slot = config.SlotCountdown
	Save            Slot = config.SlotSave
	SourceSelector  Slot = config.SlotSourceSelector
	Webcam          Slot = config.SlotWebcam
	DriveAccounts   Slot = config.SlotDriveAccounts
	YouTubeAccounts Slot = config.SlotYouTubeAccounts
)

// Slots lists every slot in a stable order.
func Slots() []Slot {
	names := config.SlotNames()
	out := make([]Slot, len(names))
	for i, n := range names {
		out[i] = Slot(n)
	}
	return out
}

// ParseSlot validates a slot name.
func ParseSlot(name string) (Slot, bool) {
	for _, s := range Slots() {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// Settings are user preferences that shape construction.
type Settings struct {
	RecordWebcam         bool `json:"recordWebcam,omitempty"`
	DefaultRecordWebcam  bool `json:"defaultRecordWebcam,omitempty"`
	MovableControls      bool `json:"movableControls,omitempty"`
	FloatingLeftMargin   int  `json:"floatingLeftMargin,omitempty"`
	FloatingBottomMargin int  `json:"floatingBottomMargin,omitempty"`
}

// Options are per-call overrides. Zero values fall back to configuration.
type Options struct {
	// Display targets a specific display instead of the primary one.
	Display *platform.Display `json:"display,omitempty"`

	LeftMargin   int `json:"leftMargin,omitempty"`
	BottomMargin int `json:"bottomMargin,omitempty"`
	MarginRight  int `json:"marginRight,omitempty"`
	MarginBottom int `json:"marginBottom,omitempty"`
	Width        int `json:"width,omitempty"`
	Height       int `json:"height,omitempty"`

	AlignSides  bool `json:"alignSides,omitempty"`
	AlignOffset int  `json:"alignOffset,omitempty"`
	// AnchorSlot names the window the webcam preview is placed beside.
	// Defaults to the floating bar.
	AnchorSlot Slot `json:"anchorSlot,omitempty"`

	// Payload is handed to the save dialog's content once it has loaded.
	Payload map[string]any `json:"payload,omitempty"`

	// Replace closes a live window in the slot before constructing a new one.
	Replace bool `json:"replace,omitempty"`
}

// SlotStatus is a point-in-time view of one slot.
type SlotStatus struct {
	Slot      Slot              `json:"slot"`
	Open      bool              `json:"open"`
	Pending   bool              `json:"pending,omitempty"`
	WindowID  platform.WindowID `json:"window_id,omitempty"`
	Bounds    platform.Rect     `json:"bounds"`
	Visible   bool              `json:"visible"`
	Minimized bool              `json:"minimized"`
}

// ChildClosed is sent to a dialog's parent when the dialog goes away.
type ChildClosed struct {
	Action string `json:"action"`
}

// ActionManageClosed reports that an account-management dialog closed.
const ActionManageClosed = "manage-closed"
