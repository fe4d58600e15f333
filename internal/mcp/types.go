package mcp

import (
	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/platform"
)

// SlotInput names the window a tool acts on.
type SlotInput struct {
	Slot string `json:"slot" jsonschema:"required,Window slot: main, floating, countdown, save, sourceSelector, webcam, driveAccounts or youtubeAccounts"`
}

// EnsureWindowInput is the input for the ensure_window tool.
type EnsureWindowInput struct {
	Slot string `json:"slot" jsonschema:"required,Window slot to open or bring forward"`

	RecordWebcam    bool `json:"record_webcam,omitempty" jsonschema:"Record the webcam alongside the screen (affects the countdown overlay)"`
	MovableControls bool `json:"movable_controls,omitempty" jsonschema:"Let the user drag the floating control bar"`

	DisplayID    *int `json:"display_id,omitempty" jsonschema:"Open on this display instead of the primary one"`
	Width        int  `json:"width,omitempty" jsonschema:"Override the configured width in pixels"`
	Height       int  `json:"height,omitempty" jsonschema:"Override the configured height in pixels"`
	LeftMargin   int  `json:"left_margin,omitempty" jsonschema:"Floating bar distance from the left edge of the work area"`
	BottomMargin int  `json:"bottom_margin,omitempty" jsonschema:"Floating bar distance from the bottom edge of the work area"`
	AlignSides   bool `json:"align_sides,omitempty" jsonschema:"Place the webcam preview beside its anchor instead of above it"`
}

// EnsureWindowOutput is the output for the ensure_window tool.
type EnsureWindowOutput struct {
	Slot     string            `json:"slot"`
	WindowID platform.WindowID `json:"window_id"`
	Bounds   platform.Rect     `json:"bounds"`
}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	OpenOnly bool `json:"open_only,omitempty" jsonschema:"Only report slots that currently hold a window"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows   []coordinator.SlotStatus `json:"windows"`
	OpenCount int                      `json:"open_count"`
}

// MoveWindowInput is the input for the move_window tool.
type MoveWindowInput struct {
	Slot string `json:"slot" jsonschema:"required,Window slot to move"`
	DX   int    `json:"dx" jsonschema:"Horizontal offset in pixels"`
	DY   int    `json:"dy" jsonschema:"Vertical offset in pixels"`
}

// ResizeWindowInput is the input for the resize_window tool.
type ResizeWindowInput struct {
	Slot   string `json:"slot" jsonschema:"required,Window slot to resize"`
	Width  int    `json:"width" jsonschema:"required,New width in pixels"`
	Height int    `json:"height" jsonschema:"required,New height in pixels"`
}

// ListDisplaysInput is the input for the list_displays tool.
type ListDisplaysInput struct{}

// ListDisplaysOutput is the output for the list_displays tool.
type ListDisplaysOutput struct {
	Displays []platform.Display `json:"displays"`
}

// ActionOutput reports the outcome of a tool that only acts.
type ActionOutput struct {
	Slot string `json:"slot,omitempty"`
	Done bool   `json:"done"`
}

// CloseAllInput is the input for the close_all_windows tool.
type CloseAllInput struct{}
