package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/platform"
)

// ensureTimeout bounds a single ENSURE, including the content load.
const ensureTimeout = 30 * time.Second

// Controller is the window surface the server exposes.
type Controller interface {
	Ensure(ctx context.Context, slot coordinator.Slot, s coordinator.Settings, o coordinator.Options) (platform.Window, error)
	Close(slot coordinator.Slot)
	CloseAll() error
	Show(slot coordinator.Slot) error
	Hide(slot coordinator.Slot) error
	Minimize(slot coordinator.Slot) error
	MoveBy(slot coordinator.Slot, dx, dy int) error
	Resize(slot coordinator.Slot, width, height int) error
	Snapshot() []coordinator.SlotStatus
	Count() int
	Displays() ([]platform.Display, error)
}

var _ Controller = (*coordinator.Coordinator)(nil)

// Server answers one JSON request per unix socket connection.
type Server struct {
	socketPath   string
	listener     net.Listener
	ctrl         Controller
	reload       func() error
	logger       *slog.Logger
	startTime    time.Time
	ctx          context.Context
	cancel       context.CancelFunc
	shuttingDown bool
	shutdownMu   sync.Mutex
	conns        sync.WaitGroup
}

// NewServer creates a new IPC server. reload is called for RELOAD and may
// be nil.
func NewServer(socketPath string, ctrl Controller, reload func() error, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		ctrl:       ctrl,
		reload:     reload,
		logger:     logger,
		startTime:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start replaces any stale socket file, listens with mode 0600 and accepts
// in the background.
func (s *Server) Start() error {
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod %s: %w", s.socketPath, err)
	}
	s.listener = ln

	s.logger.Info("ipc listening", "socket", s.socketPath)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopping() {
				return
			}
			s.logger.Warn("ipc accept failed", "error", err)
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			defer conn.Close()
			s.serve(conn)
		}()
	}
}

func (s *Server) stopping() bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	return s.shuttingDown
}

// serve answers the single newline-terminated request on conn.
func (s *Server) serve(conn net.Conn) {
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("ipc read failed", "error", err)
		return
	}

	var resp *Response
	req, err := ParseRequest(line)
	if err != nil {
		resp = NewErrorResponse(fmt.Sprintf("Invalid request: %v", err))
	} else {
		resp = s.dispatch(req)
	}

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Warn("ipc write failed", "error", err)
	}
}

// handler runs one command. A nil result yields an OK response without data.
type handler func(s *Server, payload json.RawMessage) (any, error)

var handlers = map[CommandType]handler{
	CommandEnsure: (*Server).ensure,
	CommandClose: slotHandler(func(c Controller, slot coordinator.Slot) error {
		c.Close(slot)
		return nil
	}),
	CommandCloseAll: func(s *Server, _ json.RawMessage) (any, error) {
		return nil, s.ctrl.CloseAll()
	},
	CommandShow:     slotHandler(Controller.Show),
	CommandHide:     slotHandler(Controller.Hide),
	CommandMinimize: slotHandler(Controller.Minimize),
	CommandMove:     (*Server).move,
	CommandResize:   (*Server).resize,
	CommandGetStatus: func(s *Server, _ json.RawMessage) (any, error) {
		return StatusData{
			Slots:         s.ctrl.Snapshot(),
			OpenCount:     s.ctrl.Count(),
			UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
			DaemonRunning: true,
		}, nil
	},
	CommandGetDisplays: func(s *Server, _ json.RawMessage) (any, error) {
		displays, err := s.ctrl.Displays()
		if err != nil {
			return nil, fmt.Errorf("list displays: %w", err)
		}
		return DisplaysData{Displays: displays}, nil
	},
	CommandReload: (*Server).reloadConfig,
}

func (s *Server) dispatch(req *Request) *Response {
	h, ok := handlers[req.Command]
	if !ok {
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
	s.logger.Debug("ipc command", "command", req.Command)

	data, err := h(s, req.Payload)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// decodeSlot unmarshals payload into v and resolves its slot name.
func decodeSlot(payload json.RawMessage, v any, name func() string) (coordinator.Slot, error) {
	if err := json.Unmarshal(payload, v); err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}
	slot, ok := coordinator.ParseSlot(name())
	if !ok {
		return "", fmt.Errorf("%w: %q", coordinator.ErrUnknownSlot, name())
	}
	return slot, nil
}

func slotHandler(fn func(Controller, coordinator.Slot) error) handler {
	return func(s *Server, payload json.RawMessage) (any, error) {
		var req SlotPayload
		slot, err := decodeSlot(payload, &req, func() string { return req.Slot })
		if err != nil {
			return nil, err
		}
		return nil, fn(s.ctrl, slot)
	}
}

func (s *Server) ensure(payload json.RawMessage) (any, error) {
	var req EnsurePayload
	slot, err := decodeSlot(payload, &req, func() string { return req.Slot })
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(s.ctx, ensureTimeout)
	defer cancel()
	win, err := s.ctrl.Ensure(ctx, slot, req.Settings, req.Options)
	if err != nil {
		return nil, fmt.Errorf("ensure %s: %w", slot, err)
	}

	data := EnsureData{Slot: string(slot), WindowID: win.ID()}
	if b, err := win.Bounds(); err == nil {
		data.Bounds = b
	}
	return data, nil
}

func (s *Server) move(payload json.RawMessage) (any, error) {
	var req MovePayload
	slot, err := decodeSlot(payload, &req, func() string { return req.Slot })
	if err != nil {
		return nil, err
	}
	return nil, s.ctrl.MoveBy(slot, req.DX, req.DY)
}

func (s *Server) resize(payload json.RawMessage) (any, error) {
	var req ResizePayload
	slot, err := decodeSlot(payload, &req, func() string { return req.Slot })
	if err != nil {
		return nil, err
	}
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("resize %s: width and height must be positive", slot)
	}
	return nil, s.ctrl.Resize(slot, req.Width, req.Height)
}

func (s *Server) reloadConfig(json.RawMessage) (any, error) {
	if s.reload == nil {
		return nil, fmt.Errorf("reload is not supported")
	}
	if err := s.reload(); err != nil {
		return nil, fmt.Errorf("reload config: %w", err)
	}
	s.logger.Info("config reloaded over ipc")
	return nil, nil
}

// Stop closes the listener, cancels in-flight ENSURE requests and waits for
// open connections before removing the socket file.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.conns.Wait()
	_ = os.Remove(s.socketPath)
}
