package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/ipc"
	"github.com/1broseidon/wincoord/internal/platform"
	"github.com/1broseidon/wincoord/internal/status"
)

// newClient is replaced in tests.
var newClient = ipc.NewClient

func slotArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if _, ok := coordinator.ParseSlot(args[0]); !ok {
		return fmt.Errorf("%w: %q (want one of %s)", coordinator.ErrUnknownSlot, args[0], slotList())
	}
	return nil
}

func slotList() string {
	slots := coordinator.Slots()
	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func newStatusCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show every slot and its window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().GetStatus()
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), data, plain || !isTerminal(cmd.OutOrStdout()))
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print plain text even on a terminal")
	return cmd
}

func writeStatus(w io.Writer, data *ipc.StatusData, plain bool) error {
	if plain {
		return status.WritePlain(w, data)
	}
	_, err := fmt.Fprintln(w, status.RenderTable(data))
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of the slots, with show/hide/close on the selected one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
				return fmt.Errorf("watch requires an interactive terminal (stdin/stdout must be TTYs)")
			}
			return status.Watch(newClient(), interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", status.DefaultInterval, "Refresh interval")
	return cmd
}

func newEnsureCmd() *cobra.Command {
	var (
		settings  coordinator.Settings
		opts      coordinator.Options
		displayID int
	)

	cmd := &cobra.Command{
		Use:   "ensure <slot>",
		Short: "Open the window for a slot, or bring the existing one forward",
		Example: `  wincoord ensure main
  wincoord ensure countdown --record-webcam
  wincoord ensure floating --display 1 --left-margin 40`,
		Args: slotArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if cmd.Flags().Changed("display") {
				displays, err := client.GetDisplays()
				if err != nil {
					return err
				}
				d, ok := findDisplay(displays.Displays, displayID)
				if !ok {
					return fmt.Errorf("no display with id %d", displayID)
				}
				opts.Display = &d
			}

			data, err := client.Ensure(args[0], settings, opts)
			if err != nil {
				return err
			}
			b := data.Bounds
			fmt.Fprintf(cmd.OutOrStdout(), "%s: window 0x%x at %dx%d+%d+%d\n",
				data.Slot, uint32(data.WindowID), b.Width, b.Height, b.X, b.Y)
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&settings.RecordWebcam, "record-webcam", false, "Recording includes the webcam")
	f.BoolVar(&settings.MovableControls, "movable-controls", false, "Let the floating bar be dragged")
	f.IntVar(&displayID, "display", 0, "Target display id (default: primary)")
	f.IntVar(&opts.Width, "width", 0, "Override the configured width")
	f.IntVar(&opts.Height, "height", 0, "Override the configured height")
	f.IntVar(&opts.LeftMargin, "left-margin", 0, "Floating bar left margin")
	f.IntVar(&opts.BottomMargin, "bottom-margin", 0, "Floating bar bottom margin")
	f.BoolVar(&opts.AlignSides, "align-sides", false, "Place the webcam preview beside its anchor")
	return cmd
}

func findDisplay(displays []platform.Display, id int) (platform.Display, bool) {
	for _, d := range displays {
		if d.ID == id {
			return d, true
		}
	}
	return platform.Display{}, false
}

func newSlotCmd(name, short string, fn func(*ipc.Client, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <slot>",
		Short: short,
		Args:  slotArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fn(newClient(), args[0])
		},
	}
}

func newCloseAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close-all",
		Short: "Close every open window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().CloseAll()
		},
	}
}

func newDisplaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "displays",
		Short: "List displays and their work areas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().GetDisplays()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, d := range data.Displays {
				primary := ""
				if d.Primary {
					primary = " (primary)"
				}
				fmt.Fprintf(w, "%d %s%s bounds=%dx%d+%d+%d usable=%dx%d+%d+%d\n",
					d.ID, d.Name, primary,
					d.Bounds.Width, d.Bounds.Height, d.Bounds.X, d.Bounds.Y,
					d.Usable.Width, d.Usable.Height, d.Usable.X, d.Usable.Y)
			}
			return nil
		},
	}
}

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask the daemon to re-read its configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().Reload(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config reloaded")
			return nil
		},
	}
}
