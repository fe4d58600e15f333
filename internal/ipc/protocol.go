package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/platform"
)

// CommandType names a daemon command on the wire.
type CommandType string

const (
	CommandEnsure      CommandType = "ENSURE"
	CommandClose       CommandType = "CLOSE"
	CommandCloseAll    CommandType = "CLOSE_ALL"
	CommandShow        CommandType = "SHOW"
	CommandHide        CommandType = "HIDE"
	CommandMinimize    CommandType = "MINIMIZE"
	CommandMove        CommandType = "MOVE"
	CommandResize      CommandType = "RESIZE"
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandGetDisplays CommandType = "GET_DISPLAYS"
	CommandReload      CommandType = "RELOAD"
)

// Response statuses.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request is one newline-terminated JSON line sent by a client.
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers a Request. Error is set only when Status is StatusError.
type Response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// SlotPayload names the slot a command targets.
type SlotPayload struct {
	Slot string `json:"slot"`
}

// EnsurePayload is the payload for ENSURE.
type EnsurePayload struct {
	Slot     string               `json:"slot"`
	Settings coordinator.Settings `json:"settings"`
	Options  coordinator.Options  `json:"options"`
}

// MovePayload is the payload for MOVE: a relative offset.
type MovePayload struct {
	Slot string `json:"slot"`
	DX   int    `json:"dx"`
	DY   int    `json:"dy"`
}

// ResizePayload is the payload for RESIZE.
type ResizePayload struct {
	Slot   string `json:"slot"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// EnsureData is returned by ENSURE.
type EnsureData struct {
	Slot     string            `json:"slot"`
	WindowID platform.WindowID `json:"window_id"`
	Bounds   platform.Rect     `json:"bounds"`
}

// StatusData is returned by GET_STATUS.
type StatusData struct {
	Slots         []coordinator.SlotStatus `json:"slots"`
	OpenCount     int                      `json:"open_count"`
	UptimeSeconds int64                    `json:"uptime_seconds"`
	DaemonRunning bool                     `json:"daemon_running"`
}

// DisplaysData is returned by GET_DISPLAYS.
type DisplaysData struct {
	Displays []platform.Display `json:"displays"`
}

// NewOKResponse encodes data, if any, into a StatusOK response.
func NewOKResponse(data any) (*Response, error) {
	resp := &Response{Status: StatusOK}
	if data == nil {
		return resp, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode response data: %w", err)
	}
	resp.Data = raw
	return resp, nil
}

func NewErrorResponse(msg string) *Response {
	return &Response{Status: StatusError, Error: msg}
}

// ParseRequest decodes one request line. The command is required.
func ParseRequest(line []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.Command == "" {
		return nil, errors.New("decode request: missing command")
	}
	return &req, nil
}
