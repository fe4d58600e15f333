package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/runtimepath"
)

// defaultTimeout bounds dialing and every command except ENSURE, which also
// gets ensureTimeout.
const defaultTimeout = 5 * time.Second

// Client sends one request per connection to the daemon socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient targets runtimepath.SocketPath. A path that cannot be resolved
// surfaces as a dial error on the first call.
func NewClient() *Client {
	path, _ := runtimepath.SocketPath()
	return NewClientWithSocket(path)
}

// NewClientWithSocket targets socketPath.
func NewClientWithSocket(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: defaultTimeout}
}

// SocketPath is the socket the client dials.
func (c *Client) SocketPath() string { return c.socketPath }

func (c *Client) roundTrip(req *Request, deadline time.Duration) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w (is the daemon running?)", c.socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(deadline))

	// Encode terminates the request with the newline the server reads up to.
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Command, err)
	}

	var resp Response
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.Command, err)
	}
	if resp.Status == StatusError {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

func (c *Client) call(cmd CommandType, payload any, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", cmd, err)
		}
		req.Payload = data
	}

	deadline := c.timeout
	if cmd == CommandEnsure {
		deadline += ensureTimeout
	}
	resp, err := c.roundTrip(req, deadline)
	if err != nil || out == nil {
		return err
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", cmd, err)
	}
	return nil
}

// Ensure opens the window for slot, or brings the existing one forward.
func (c *Client) Ensure(slot string, s coordinator.Settings, o coordinator.Options) (*EnsureData, error) {
	var data EnsureData
	if err := c.call(CommandEnsure, EnsurePayload{Slot: slot, Settings: s, Options: o}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Close closes the window in slot.
func (c *Client) Close(slot string) error {
	return c.call(CommandClose, SlotPayload{Slot: slot}, nil)
}

// CloseAll closes every window.
func (c *Client) CloseAll() error {
	return c.call(CommandCloseAll, nil, nil)
}

// Show shows and focuses the window in slot.
func (c *Client) Show(slot string) error {
	return c.call(CommandShow, SlotPayload{Slot: slot}, nil)
}

// Hide hides the window in slot.
func (c *Client) Hide(slot string) error {
	return c.call(CommandHide, SlotPayload{Slot: slot}, nil)
}

// Minimize minimizes the window in slot.
func (c *Client) Minimize(slot string) error {
	return c.call(CommandMinimize, SlotPayload{Slot: slot}, nil)
}

// Move shifts the window in slot by dx, dy.
func (c *Client) Move(slot string, dx, dy int) error {
	return c.call(CommandMove, MovePayload{Slot: slot, DX: dx, DY: dy}, nil)
}

// Resize resizes the window in slot.
func (c *Client) Resize(slot string, width, height int) error {
	return c.call(CommandResize, ResizePayload{Slot: slot, Width: width, Height: height}, nil)
}

// Reload asks the daemon to re-read its config file.
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// GetStatus returns every slot's state and the daemon uptime.
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetDisplays lists the displays the daemon can place windows on.
func (c *Client) GetDisplays() (*DisplaysData, error) {
	var displays DisplaysData
	if err := c.call(CommandGetDisplays, nil, &displays); err != nil {
		return nil, err
	}
	return &displays, nil
}

// Ping succeeds when the daemon answers a status request.
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
