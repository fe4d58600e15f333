package coordinator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/1broseidon/wincoord/internal/config"
	"github.com/1broseidon/wincoord/internal/placement"
	"github.com/1broseidon/wincoord/internal/platform"
)

const transparent = "#00000000"

// Channels used to talk to window content.
const (
	ChannelInitSaveOptions        = "init-save-options"
	ChannelDriveAccountsChanged   = "drive-accounts-changed"
	ChannelYouTubeAccountsChanged = "youtube-accounts-changed"
)

// cosmetic is a best-effort presentation call applied after load.
type cosmetic struct {
	name  string
	apply func(platform.Window) error
}

// plan is everything needed to construct one window.
type plan struct {
	content   string
	attrs     platform.Attributes
	cosmetics []cosmetic

	reveal        revealMode
	fallback      time.Duration
	focusOnReveal bool
	// showOnEnsure is false for overlays the caller shows explicitly.
	showOnEnsure bool

	parent         platform.Window
	parentSlot     Slot
	notifyChannel  string
	clearParentTop bool

	afterLoad func(platform.Window)
}

func (c *Coordinator) plan(slot Slot, cfg *config.Config, s Settings, o Options) (*plan, error) {
	wc, ok := cfg.Window(string(slot))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}

	p := &plan{
		content: cfg.ContentPath(wc),
		attrs: platform.Attributes{
			Title:                wc.Title,
			Icon:                 cfg.IconPath(c.goos),
			Bounds:               platform.Rect{Width: wc.Width, Height: wc.Height},
			MinWidth:             wc.MinWidth,
			MinHeight:            wc.MinHeight,
			Resizable:            true,
			Minimizable:          true,
			Maximizable:          true,
			Fullscreenable:       true,
			HasShadow:            true,
			Focusable:            true,
			Movable:              true,
			Preload:              cfg.PreloadPath(),
			BackgroundThrottling: true,
		},
		fallback:     time.Duration(wc.RevealFallbackMS) * time.Millisecond,
		showOnEnsure: true,
	}

	var err error
	switch slot {
	case Main:
		err = c.planMain(p, o)
	case Floating:
		err = c.planFloating(p, wc, s, o)
	case Countdown:
		err = c.planCountdown(p, o)
	case Save:
		err = c.planSave(p, o)
	case SourceSelector:
		err = c.planSourceSelector(p)
	case Webcam:
		err = c.planWebcam(p, wc, o)
	case DriveAccounts:
		err = c.planAccounts(p, cfg, ChannelDriveAccountsChanged)
	case YouTubeAccounts:
		err = c.planAccounts(p, cfg, ChannelYouTubeAccountsChanged)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Coordinator) planMain(p *plan, o Options) error {
	area, err := c.workArea(o)
	if err != nil {
		return err
	}
	p.attrs.Bounds = placement.Center(area, p.attrs.Bounds.Width, p.attrs.Bounds.Height)
	p.attrs.HasPosition = true
	p.reveal = revealImmediate
	p.focusOnReveal = true
	return nil
}

func (c *Coordinator) planFloating(p *plan, wc config.Window, s Settings, o Options) error {
	width := wc.Width
	if (s.RecordWebcam || s.DefaultRecordWebcam) && wc.WideWidth > 0 {
		width = wc.WideWidth
	}
	margins := placement.Margins{
		Left:   firstNonZero(s.FloatingLeftMargin, o.LeftMargin, wc.Margins.Left),
		Bottom: firstNonZero(s.FloatingBottomMargin, o.BottomMargin, wc.Margins.Bottom),
	}

	area, err := c.workArea(o)
	if err != nil {
		return err
	}
	overlay(p)
	p.attrs.Bounds = placement.BottomLeft(area, width, p.attrs.Bounds.Height, margins)
	p.attrs.HasPosition = true
	p.attrs.Focusable = false
	p.attrs.AcceptFirstMouse = true
	p.attrs.Movable = s.MovableControls

	p.cosmetics = append(c.overlayCosmetics(),
		cosmetic{"background-color", func(w platform.Window) error { return w.SetBackgroundColor(transparent) }},
	)
	if c.goos == "darwin" {
		p.cosmetics = append(p.cosmetics,
			cosmetic{"vibrancy", func(w platform.Window) error { return w.SetVibrancy("dark") }},
			cosmetic{"visual-effect-state", func(w platform.Window) error { return w.SetVisualEffectState("active") }},
		)
	}
	p.cosmetics = append(p.cosmetics,
		cosmetic{"ignore-mouse-events", func(w platform.Window) error { return w.SetIgnoreMouseEvents(false) }},
	)
	if s.MovableControls {
		p.cosmetics = append(p.cosmetics,
			cosmetic{"movable", func(w platform.Window) error { return w.SetMovable(true) }},
		)
	}
	p.reveal = revealManual
	p.showOnEnsure = false
	return nil
}

func (c *Coordinator) planCountdown(p *plan, o Options) error {
	area, err := c.workArea(o)
	if err != nil {
		return err
	}
	overlay(p)
	p.attrs.Bounds = placement.Center(area, p.attrs.Bounds.Width, p.attrs.Bounds.Height)
	p.attrs.HasPosition = true
	p.attrs.Focusable = false
	p.attrs.AcceptFirstMouse = false

	p.cosmetics = append(c.overlayCosmetics(),
		cosmetic{"ignore-mouse-events", func(w platform.Window) error { return w.SetIgnoreMouseEvents(true) }},
	)
	p.reveal = revealManual
	p.showOnEnsure = false
	return nil
}

func (c *Coordinator) planSave(p *plan, o Options) error {
	main := c.Get(Main)
	if main == nil {
		return fmt.Errorf("save window: %w: main", ErrPrerequisiteMissing)
	}
	ref, err := main.Bounds()
	if err != nil {
		return fmt.Errorf("save window: reading main bounds: %w", err)
	}

	payload := o.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("save window: encoding options: %w", err)
	}

	p.attrs.Bounds = placement.CenterOver(ref, p.attrs.Bounds.Width, p.attrs.Bounds.Height)
	p.attrs.HasPosition = true
	p.attrs.AlwaysOnTop = true
	p.cosmetics = []cosmetic{
		{"always-on-top", func(w platform.Window) error { return w.SetAlwaysOnTop(true, platform.LevelFloating) }},
	}
	p.reveal = revealOnReady

	p.afterLoad = func(w platform.Window) {
		if main.IsMinimized() {
			c.bestEffort("restore main", main.Restore)
		}
		c.bestEffort("inject save options", func() error { return w.Inject(data) })
		c.bestEffort("send "+ChannelInitSaveOptions, func() error { return w.Send(ChannelInitSaveOptions, payload) })
	}
	return nil
}

func (c *Coordinator) planSourceSelector(p *plan) error {
	c.centerOverMain(p)
	p.reveal = revealImmediate
	p.focusOnReveal = true
	return nil
}

func (c *Coordinator) planWebcam(p *plan, wc config.Window, o Options) error {
	width := firstNonZero(o.Width, wc.Width)
	height := firstNonZero(o.Height, wc.Height)
	marginRight := firstNonZero(o.MarginRight, wc.Margins.Right)

	anchorSlot := o.AnchorSlot
	if anchorSlot == "" {
		anchorSlot = Floating
	}

	var bounds platform.Rect
	placed := false
	if anchor := c.Get(anchorSlot); anchor != nil {
		if ab, err := anchor.Bounds(); err == nil {
			work, err := c.workAreaMatching(ab)
			if err == nil {
				bounds = placement.BesideAnchor(ab, work, width, height, placement.AnchorOptions{
					AlignSides:  o.AlignSides,
					MarginRight: marginRight,
					AlignOffset: o.AlignOffset,
					Gap:         placement.AnchorGap,
				})
				placed = true
			}
		}
	}
	if !placed {
		area, err := c.workArea(o)
		if err != nil {
			return err
		}
		bounds = placement.BottomRight(area, width, height, placement.Margins{
			Right:  marginRight,
			Bottom: firstNonZero(o.MarginBottom, wc.Margins.Bottom),
		})
	}

	overlay(p)
	p.attrs.Bounds = bounds
	p.attrs.HasPosition = true
	p.attrs.Focusable = true
	p.attrs.AcceptFirstMouse = true
	p.attrs.Movable = true

	p.cosmetics = append(c.overlayCosmetics(),
		cosmetic{"movable", func(w platform.Window) error { return w.SetMovable(true) }},
	)
	p.reveal = revealOnReady
	return nil
}

func (c *Coordinator) planAccounts(p *plan, cfg *config.Config, channel string) error {
	if !cfg.AccountsModal() {
		c.centerOverMain(p)
		p.attrs.Fullscreenable = false
		p.reveal = revealOnReady
		p.focusOnReveal = true
		return nil
	}

	p.attrs.Bounds.Width = cfg.Accounts.ModalWidth
	p.attrs.Bounds.Height = cfg.Accounts.ModalHeight
	c.centerOverMain(p)

	parentSlot := Save
	parent := c.Get(Save)
	if parent == nil {
		parentSlot = Main
		parent = c.Get(Main)
	}
	if parent != nil {
		p.parent = parent
		p.parentSlot = parentSlot
		p.notifyChannel = channel
		p.attrs.Modal = true
		p.attrs.Parent = parent.ID()
		p.clearParentTop = parent.IsAlwaysOnTop()
	}
	p.reveal = revealImmediate
	p.focusOnReveal = true
	return nil
}

// overlay turns p into a frameless, transparent, top-tier window kept out
// of task switching.
func overlay(p *plan) {
	p.attrs.Frameless = true
	p.attrs.AlwaysOnTop = true
	p.attrs.Resizable = false
	p.attrs.Minimizable = false
	p.attrs.Maximizable = false
	p.attrs.Fullscreenable = false
	p.attrs.SkipTaskbar = true
	p.attrs.Transparent = true
	p.attrs.BackgroundColor = transparent
	p.attrs.HasShadow = false
	p.attrs.BackgroundThrottling = false
}

func (c *Coordinator) overlayCosmetics() []cosmetic {
	return []cosmetic{
		{"always-on-top", func(w platform.Window) error { return w.SetAlwaysOnTop(true, platform.LevelScreenSaver) }},
		{"visible-on-all-workspaces", func(w platform.Window) error { return w.SetVisibleOnAllWorkspaces(true) }},
		{"shadow", func(w platform.Window) error { return w.SetHasShadow(false) }},
	}
}

// centerOverMain centers p over the main window when there is one and
// otherwise leaves placement to the backend.
func (c *Coordinator) centerOverMain(p *plan) {
	main := c.Get(Main)
	if main == nil {
		return
	}
	ref, err := main.Bounds()
	if err != nil {
		c.logger.Debug("main bounds unavailable, using default placement", "error", err)
		return
	}
	p.attrs.Bounds = placement.CenterOver(ref, p.attrs.Bounds.Width, p.attrs.Bounds.Height)
	p.attrs.HasPosition = true
}

// workArea resolves the target display of o, defaulting to the primary one.
func (c *Coordinator) workArea(o Options) (platform.Rect, error) {
	primary, err := c.backend.PrimaryDisplay()
	if err != nil {
		return platform.Rect{}, fmt.Errorf("primary display: %w", err)
	}
	target := primary
	if o.Display != nil {
		target = *o.Display
	}
	return placement.WorkArea(target, primary), nil
}

func (c *Coordinator) workAreaMatching(r platform.Rect) (platform.Rect, error) {
	primary, err := c.backend.PrimaryDisplay()
	if err != nil {
		return platform.Rect{}, fmt.Errorf("primary display: %w", err)
	}
	d, err := c.backend.DisplayMatching(r)
	if err != nil {
		d = primary
	}
	return placement.WorkArea(d, primary), nil
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
