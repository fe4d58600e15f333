package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/platform"
)

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	status, err := s.daemon.GetStatus()
	if err != nil {
		return nil, ListWindowsOutput{}, err
	}

	windows := make([]coordinator.SlotStatus, 0, len(status.Slots))
	for _, st := range status.Slots {
		if args.OpenOnly && !st.Open {
			continue
		}
		windows = append(windows, st)
	}
	return nil, ListWindowsOutput{Windows: windows, OpenCount: status.OpenCount}, nil
}

func (s *Server) handleEnsureWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args EnsureWindowInput) (*mcpsdk.CallToolResult, EnsureWindowOutput, error) {
	if _, ok := coordinator.ParseSlot(args.Slot); !ok {
		return nil, EnsureWindowOutput{}, fmt.Errorf("%w: %q", coordinator.ErrUnknownSlot, args.Slot)
	}

	opts := coordinator.Options{
		Width:        args.Width,
		Height:       args.Height,
		LeftMargin:   args.LeftMargin,
		BottomMargin: args.BottomMargin,
		AlignSides:   args.AlignSides,
	}
	if args.DisplayID != nil {
		d, err := s.findDisplay(*args.DisplayID)
		if err != nil {
			return nil, EnsureWindowOutput{}, err
		}
		opts.Display = &d
	}
	settings := coordinator.Settings{
		RecordWebcam:    args.RecordWebcam,
		MovableControls: args.MovableControls,
	}

	data, err := s.daemon.Ensure(args.Slot, settings, opts)
	if err != nil {
		s.logger.Warn("ensure_window failed", "slot", args.Slot, "error", err)
		return nil, EnsureWindowOutput{}, err
	}
	s.logger.Info("ensure_window", "slot", data.Slot, "window", data.WindowID)
	return nil, EnsureWindowOutput{Slot: data.Slot, WindowID: data.WindowID, Bounds: data.Bounds}, nil
}

func (s *Server) findDisplay(id int) (platform.Display, error) {
	data, err := s.daemon.GetDisplays()
	if err != nil {
		return platform.Display{}, err
	}
	for _, d := range data.Displays {
		if d.ID == id {
			return d, nil
		}
	}
	return platform.Display{}, fmt.Errorf("no display with id %d", id)
}

func (s *Server) handleCloseWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args SlotInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.slotAction(args.Slot, s.daemon.Close)
}

func (s *Server) handleCloseAll(_ context.Context, _ *mcpsdk.CallToolRequest, _ CloseAllInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	if err := s.daemon.CloseAll(); err != nil {
		return nil, ActionOutput{}, err
	}
	return nil, ActionOutput{Done: true}, nil
}

func (s *Server) handleShowWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args SlotInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.slotAction(args.Slot, s.daemon.Show)
}

func (s *Server) handleHideWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args SlotInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.slotAction(args.Slot, s.daemon.Hide)
}

func (s *Server) handleMinimizeWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args SlotInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.slotAction(args.Slot, s.daemon.Minimize)
}

func (s *Server) handleMoveWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args MoveWindowInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.slotAction(args.Slot, func(slot string) error {
		return s.daemon.Move(slot, args.DX, args.DY)
	})
}

func (s *Server) handleResizeWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args ResizeWindowInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	if args.Width <= 0 || args.Height <= 0 {
		return nil, ActionOutput{}, fmt.Errorf("invalid size %dx%d", args.Width, args.Height)
	}
	return s.slotAction(args.Slot, func(slot string) error {
		return s.daemon.Resize(slot, args.Width, args.Height)
	})
}

func (s *Server) handleListDisplays(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListDisplaysInput) (*mcpsdk.CallToolResult, ListDisplaysOutput, error) {
	data, err := s.daemon.GetDisplays()
	if err != nil {
		return nil, ListDisplaysOutput{}, err
	}
	return nil, ListDisplaysOutput{Displays: data.Displays}, nil
}

// slotAction validates slot before handing it to fn so typos fail without a
// round trip to the daemon.
func (s *Server) slotAction(slot string, fn func(string) error) (*mcpsdk.CallToolResult, ActionOutput, error) {
	if _, ok := coordinator.ParseSlot(slot); !ok {
		return nil, ActionOutput{}, fmt.Errorf("%w: %q", coordinator.ErrUnknownSlot, slot)
	}
	if err := fn(slot); err != nil {
		return nil, ActionOutput{Slot: slot}, err
	}
	return nil, ActionOutput{Slot: slot, Done: true}, nil
}
