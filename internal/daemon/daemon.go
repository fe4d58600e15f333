// Package daemon runs the window coordinator as a long-lived process with
// its control socket, config watcher and reconciler.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/wincoord/internal/config"
	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/ipc"
	"github.com/1broseidon/wincoord/internal/platform"
)

// Options configures a Daemon.
type Options struct {
	// ConfigPath is watched and re-read on change. Config, when set, is used
	// for startup instead of reading ConfigPath.
	ConfigPath string
	Config     *config.Config
	SocketPath string

	Backend platform.Backend
	// EventLoop delivers backend events until its context is cancelled. Nil
	// for backends that need no loop.
	EventLoop func(ctx context.Context)

	Logger *slog.Logger
	// Level, when set, follows log_level across reloads.
	Level *slog.LevelVar

	ReconcileInterval time.Duration
	// WatchConfig enables reloading when ConfigPath changes.
	WatchConfig bool
}

// Daemon owns the coordinator and the services around it.
type Daemon struct {
	opts   Options
	logger *slog.Logger
	coord  *coordinator.Coordinator
}

// New creates a daemon. The configuration is loaded here so a bad file fails
// before anything starts.
func New(opts Options) (*Daemon, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("daemon: backend is required")
	}
	if opts.SocketPath == "" {
		return nil, fmt.Errorf("daemon: socket path is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.LoadFromPath(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if opts.Level != nil {
		opts.Level.Set(cfg.SlogLevel())
	}

	return &Daemon{
		opts:   opts,
		logger: logger,
		coord:  coordinator.New(opts.Backend, cfg, logger),
	}, nil
}

// Coordinator returns the daemon's coordinator.
func (d *Daemon) Coordinator() *coordinator.Coordinator { return d.coord }

// Reload re-reads the configuration file. Live windows keep their current
// presentation; the new values apply to windows constructed afterwards.
func (d *Daemon) Reload() error {
	cfg, err := config.LoadFromPath(d.opts.ConfigPath)
	if err != nil {
		return err
	}
	d.coord.SetConfig(cfg)
	if d.opts.Level != nil {
		d.opts.Level.Set(cfg.SlogLevel())
	}
	return nil
}

// Run serves until ctx is cancelled, then closes every window and stops.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	spawn := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}
	defer wg.Wait()

	spawn(d.coord.Run)
	if d.opts.EventLoop != nil {
		spawn(d.opts.EventLoop)
	}

	server := ipc.NewServer(d.opts.SocketPath, d.coord, d.Reload, d.logger)
	if err := server.Start(); err != nil {
		cancel()
		return err
	}

	reconciler := NewReconciler(ReconcilerConfig{
		Interval: d.opts.ReconcileInterval,
		Logger:   d.logger,
	}, d.coord)
	spawn(reconciler.Run)

	if d.opts.WatchConfig && d.opts.ConfigPath != "" {
		watcher, err := NewConfigWatcher(d.opts.ConfigPath, d.Reload, d.logger)
		if err != nil {
			d.logger.Warn("config hot reload disabled", "error", err)
		} else {
			spawn(watcher.Run)
		}
	}

	d.logger.Info("wincoord daemon started", "socket", d.opts.SocketPath)
	<-ctx.Done()

	d.logger.Info("wincoord daemon stopping")
	server.Stop()
	if err := d.coord.CloseAll(); err != nil {
		d.logger.Warn("closing windows on shutdown", "error", err)
	}
	return nil
}
