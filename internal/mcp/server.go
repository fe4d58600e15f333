// Package mcp exposes the running coordinator daemon as MCP tools so agents
// can open, arrange and close recorder windows.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/ipc"
)

const (
	ServerName    = "wincoord"
	ServerVersion = "0.1.0"
)

// Daemon is the part of the daemon's control socket the tools use.
type Daemon interface {
	Ensure(slot string, s coordinator.Settings, o coordinator.Options) (*ipc.EnsureData, error)
	Close(slot string) error
	CloseAll() error
	Show(slot string) error
	Hide(slot string) error
	Minimize(slot string) error
	Move(slot string, dx, dy int) error
	Resize(slot string, width, height int) error
	GetStatus() (*ipc.StatusData, error)
	GetDisplays() (*ipc.DisplaysData, error)
}

var _ Daemon = (*ipc.Client)(nil)

// Server is the MCP server for wincoord.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	logger    *slog.Logger
}

// NewServer creates an MCP server that forwards to daemon.
func NewServer(daemon Daemon, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{daemon: daemon, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves on the stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List every window slot with whether it is open, its window id, bounds and visibility.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "ensure_window",
		Description: "Open the window for a slot, or bring the existing one forward. Dialog slots (save, sourceSelector, driveAccounts, youtubeAccounts) need the main window to be open first. Returns the window id and its final bounds.",
	}, s.handleEnsureWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "close_window",
		Description: "Close the window in a slot. Closing a slot that holds no window succeeds.",
	}, s.handleCloseWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "close_all_windows",
		Description: "Close every open window.",
	}, s.handleCloseAll)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "show_window",
		Description: "Show and focus the window in a slot.",
	}, s.handleShowWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hide_window",
		Description: "Hide the window in a slot without closing it.",
	}, s.handleHideWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "minimize_window",
		Description: "Minimize the window in a slot.",
	}, s.handleMinimizeWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_window",
		Description: "Move the window in a slot by a relative offset in pixels.",
	}, s.handleMoveWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "resize_window",
		Description: "Resize the window in a slot, keeping its top-left corner.",
	}, s.handleResizeWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_displays",
		Description: "List the connected displays with their bounds and usable work areas.",
	}, s.handleListDisplays)
}
