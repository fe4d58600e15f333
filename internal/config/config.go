package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Slot names as they appear under the windows: key.
const (
	SlotMain            = "main"
	SlotFloating        = "floating"
	SlotCountdown       = "countdown"
	SlotSave            = "save"
	SlotSourceSelector  = "sourceSelector"
	SlotWebcam          = "webcam"
	SlotDriveAccounts   = "driveAccounts"
	SlotYouTubeAccounts = "youtubeAccounts"
)

// Margins are distances from display edges, in pixels.
type Margins struct {
	Left   int `yaml:"left,omitempty"`
	Right  int `yaml:"right,omitempty"`
	Bottom int `yaml:"bottom,omitempty"`
}

// Window configures one window slot.
type Window struct {
	// Content is the resource loaded into the window shell. Relative paths
	// resolve against content_dir.
	Content string `yaml:"content"`
	Title   string `yaml:"title,omitempty"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	// WideWidth replaces Width when the floating bar hosts webcam controls.
	WideWidth int     `yaml:"wide_width,omitempty"`
	MinWidth  int     `yaml:"min_width,omitempty"`
	MinHeight int     `yaml:"min_height,omitempty"`
	Margins   Margins `yaml:"margins,omitempty"`
	// RevealFallbackMS bounds how long a window waits for its content-ready
	// signal before it is shown anyway.
	RevealFallbackMS int `yaml:"reveal_fallback_ms,omitempty"`
}

// Windows holds per-slot window configuration.
type Windows struct {
	Main            Window `yaml:"main"`
	Floating        Window `yaml:"floating"`
	Countdown       Window `yaml:"countdown"`
	Save            Window `yaml:"save"`
	SourceSelector  Window `yaml:"source_selector"`
	Webcam          Window `yaml:"webcam"`
	DriveAccounts   Window `yaml:"drive_accounts"`
	YouTubeAccounts Window `yaml:"youtube_accounts"`
}

// Icons selects the application icon per platform.
type Icons struct {
	Darwin  string `yaml:"darwin"`
	Windows string `yaml:"windows"`
	Default string `yaml:"default"`
}

// Renderer is the command that renders window content for the X11 backend.
type Renderer struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

// Accounts configures the account-management dialogs.
type Accounts struct {
	// Modal opens account dialogs modal to the save or main window and
	// notifies that window when the dialog closes. Default: true.
	Modal *bool `yaml:"modal,omitempty"`
	// ModalWidth/ModalHeight size the modal variant; the windows: entries
	// size the plain variant.
	ModalWidth  int `yaml:"modal_width,omitempty"`
	ModalHeight int `yaml:"modal_height,omitempty"`
}

// Config is the effective wincoord configuration.
type Config struct {
	LogLevel   string   `yaml:"log_level"`
	Preload    string   `yaml:"preload,omitempty"`
	ContentDir string   `yaml:"content_dir,omitempty"`
	Renderer   Renderer `yaml:"renderer"`
	Icons      Icons    `yaml:"icons"`
	Accounts   Accounts `yaml:"accounts"`
	Windows    Windows  `yaml:"windows"`
	// Hotkeys binds X11 key sequences (e.g. "Mod4-Shift-r") to slots. A press
	// toggles the slot's window.
	Hotkeys map[string]string `yaml:"hotkeys,omitempty"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	modal := true
	return &Config{
		LogLevel: "info",
		Preload:  "preload.js",
		Renderer: Renderer{Command: "wincoord-renderer"},
		Icons: Icons{
			Darwin:  "icon.icns",
			Windows: "icon.ico",
			Default: "icon.png",
		},
		Accounts: Accounts{
			Modal:       &modal,
			ModalWidth:  720,
			ModalHeight: 520,
		},
		Windows: Windows{
			Main: Window{
				Content:   "windows/main.html",
				Title:     "Recorder",
				Width:     900,
				Height:    680,
				MinWidth:  720,
				MinHeight: 560,
			},
			Floating: Window{
				Content:   "windows/floating-controls.html",
				Width:     240,
				Height:    56,
				WideWidth: 250,
				Margins:   Margins{Left: 20, Bottom: 40},
			},
			Countdown: Window{
				Content: "windows/countdown.html",
				Width:   300,
				Height:  300,
			},
			Save: Window{
				Content:          "windows/save-video.html",
				Title:            "Save Recording",
				Width:            620,
				Height:           520,
				RevealFallbackMS: 250,
			},
			SourceSelector: Window{
				Content: "windows/source-selector.html",
				Title:   "Select Source",
				Width:   820,
				Height:  600,
			},
			Webcam: Window{
				Content:          "windows/webcam-preview.html",
				Width:            240,
				Height:           180,
				Margins:          Margins{Right: 20, Bottom: 40},
				RevealFallbackMS: 200,
			},
			DriveAccounts: Window{
				Content:          "windows/drive-accounts.html",
				Title:            "Google Drive Accounts",
				Width:            700,
				Height:           600,
				RevealFallbackMS: 250,
			},
			YouTubeAccounts: Window{
				Content:          "windows/youtube-accounts.html",
				Title:            "YouTube Accounts",
				Width:            700,
				Height:           600,
				RevealFallbackMS: 250,
			},
		},
	}
}

// Window returns the configuration for a slot.
func (c *Config) Window(slot string) (Window, bool) {
	if w := c.windowRef(slot); w != nil {
		return *w, true
	}
	return Window{}, false
}

func (c *Config) windowRef(slot string) *Window {
	switch slot {
	case SlotMain:
		return &c.Windows.Main
	case SlotFloating:
		return &c.Windows.Floating
	case SlotCountdown:
		return &c.Windows.Countdown
	case SlotSave:
		return &c.Windows.Save
	case SlotSourceSelector:
		return &c.Windows.SourceSelector
	case SlotWebcam:
		return &c.Windows.Webcam
	case SlotDriveAccounts:
		return &c.Windows.DriveAccounts
	case SlotYouTubeAccounts:
		return &c.Windows.YouTubeAccounts
	default:
		return nil
	}
}

// SlotNames lists every configurable slot in a stable order.
func SlotNames() []string {
	return []string{
		SlotMain,
		SlotFloating,
		SlotCountdown,
		SlotSave,
		SlotSourceSelector,
		SlotWebcam,
		SlotDriveAccounts,
		SlotYouTubeAccounts,
	}
}

// ContentPath resolves a window's content resource against content_dir.
// URLs and absolute paths are returned unchanged.
func (c *Config) ContentPath(w Window) string {
	content := strings.TrimSpace(w.Content)
	if content == "" || c.ContentDir == "" {
		return content
	}
	if strings.Contains(content, "://") || filepath.IsAbs(content) {
		return content
	}
	return filepath.Join(c.ContentDir, content)
}

// PreloadPath resolves the preload script against content_dir.
func (c *Config) PreloadPath() string {
	return c.ContentPath(Window{Content: c.Preload})
}

// IconPath selects the application icon for goos.
func (c *Config) IconPath(goos string) string {
	icon := c.Icons.Default
	switch goos {
	case "darwin":
		icon = c.Icons.Darwin
	case "windows":
		icon = c.Icons.Windows
	}
	return c.ContentPath(Window{Content: icon})
}

// AccountsModal returns the effective modal flag, defaulting to true.
func (c *Config) AccountsModal() bool {
	if c.Accounts.Modal == nil {
		return true
	}
	return *c.Accounts.Modal
}

// SlogLevel maps log_level onto a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}

	for _, slot := range SlotNames() {
		w := c.windowRef(slot)
		if strings.TrimSpace(w.Content) == "" {
			return fmt.Errorf("windows.%s.content must be set", slot)
		}
		if w.Width <= 0 || w.Height <= 0 {
			return fmt.Errorf("windows.%s: width and height must be > 0 (got %dx%d)", slot, w.Width, w.Height)
		}
		if w.WideWidth < 0 || w.MinWidth < 0 || w.MinHeight < 0 {
			return fmt.Errorf("windows.%s: wide_width, min_width and min_height must be >= 0", slot)
		}
		if w.Margins.Left < 0 || w.Margins.Right < 0 || w.Margins.Bottom < 0 {
			return fmt.Errorf("windows.%s: margins must be >= 0", slot)
		}
		if w.RevealFallbackMS < 0 {
			return fmt.Errorf("windows.%s.reveal_fallback_ms must be >= 0 (got %d)", slot, w.RevealFallbackMS)
		}
	}

	if c.Accounts.ModalWidth <= 0 || c.Accounts.ModalHeight <= 0 {
		return fmt.Errorf("accounts: modal_width and modal_height must be > 0 (got %dx%d)", c.Accounts.ModalWidth, c.Accounts.ModalHeight)
	}

	for slot, keys := range c.Hotkeys {
		if c.windowRef(slot) == nil {
			return fmt.Errorf("hotkeys: unknown slot %q", slot)
		}
		if strings.TrimSpace(keys) == "" {
			return fmt.Errorf("hotkeys.%s must not be empty", slot)
		}
	}

	return nil
}
