package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/1broseidon/wincoord/internal/config"
	"github.com/1broseidon/wincoord/internal/content"
	"github.com/1broseidon/wincoord/internal/daemon"
	"github.com/1broseidon/wincoord/internal/hotkeys"
	"github.com/1broseidon/wincoord/internal/ipc"
	"github.com/1broseidon/wincoord/internal/platform"
	"github.com/1broseidon/wincoord/internal/runtimepath"
)

var version = "dev"

// configPath is shared by every command that reads the configuration.
var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wincoord",
		Short: "Window coordinator for the recorder",
		Long: `wincoord owns the recorder's windows: the main window, the floating
control bar, the countdown and webcam overlays and the save, source and
account dialogs. The daemon keeps at most one window per slot; the other
commands talk to it over its control socket.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Config file path")

	root.AddCommand(
		newDaemonCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newEnsureCmd(),
		newSlotCmd("close", "Close the window in a slot", (*ipc.Client).Close),
		newSlotCmd("show", "Show and focus the window in a slot", (*ipc.Client).Show),
		newSlotCmd("hide", "Hide the window in a slot", (*ipc.Client).Hide),
		newSlotCmd("minimize", "Minimize the window in a slot", (*ipc.Client).Minimize),
		newCloseAllCmd(),
		newDisplaysCmd(),
		newReloadCmd(),
		newConfigCmd(),
		newMCPCmd(),
	)
	return root
}

func newDaemonCmd() *cobra.Command {
	var headless, noWatch bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the coordinator daemon in the foreground",
		Example: `  # Run against the X server in $DISPLAY
  wincoord daemon

  # Run without a display, for scripting and tests
  wincoord daemon --headless`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(headless, !noWatch)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "Use an in-memory window backend instead of X11")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload the config file when it changes")
	return cmd
}

func runDaemon(headless, watch bool) error {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		backend platform.Backend
		linux   *platform.LinuxBackend
		loop    func(context.Context)
	)
	if headless {
		mem := platform.NewMemoryBackend()
		mem.SetAutoReady(true)
		backend = mem
		logger.Info("using headless backend")
	} else {
		host := content.NewProcessHost(cfg.Renderer, cfg.PreloadPath(), logger)
		linux, err = platform.NewLinuxBackendFromDisplay(host, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to display: %w", err)
		}
		defer linux.Disconnect()
		backend = linux
		loop = linux.EventLoop
	}

	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return err
	}

	d, err := daemon.New(daemon.Options{
		ConfigPath:  configPath,
		Config:      cfg,
		SocketPath:  socketPath,
		Backend:     backend,
		EventLoop:   loop,
		Logger:      logger,
		Level:       level,
		WatchConfig: watch,
	})
	if err != nil {
		return err
	}

	if linux != nil && len(cfg.Hotkeys) > 0 {
		hk, err := hotkeys.NewHandler(linux, d.Coordinator(), logger)
		if err != nil {
			logger.Warn("hotkeys disabled", "error", err)
		} else if err := hk.Bind(cfg.Hotkeys); err != nil {
			logger.Warn("some hotkeys were not registered", "error", err)
		}
	}

	return d.Run(ctx)
}
