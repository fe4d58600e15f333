// Package content runs the renderer processes that draw window content on
// backends which only provide bare windows.
package content

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/1broseidon/wincoord/internal/config"
	"github.com/1broseidon/wincoord/internal/platform"
)

// Renderer status lines written to stdout, one JSON object per line.
const (
	statusLoaded = "loaded"
	statusReady  = "ready"
	statusError  = "error"
)

// Commands written to the renderer's stdin, one JSON object per line.
const (
	commandInject  = "inject"
	commandMessage = "message"
)

// exitGrace is how long Close waits for the renderer after closing stdin.
const exitGrace = 2 * time.Second

// ErrRendererExited is returned when the renderer stops before loading.
var ErrRendererExited = errors.New("renderer exited before content loaded")

type status struct {
	Event string `json:"event"`
	Error string `json:"error,omitempty"`
}

type command struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ProcessHost starts one renderer process per window.
type ProcessHost struct {
	command string
	args    []string
	preload string
	logger  *slog.Logger
}

var _ platform.ContentHost = (*ProcessHost)(nil)

// NewProcessHost creates a host for the configured renderer.
func NewProcessHost(r config.Renderer, preload string, logger *slog.Logger) *ProcessHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessHost{
		command: r.Command,
		args:    append([]string(nil), r.Args...),
		preload: preload,
		logger:  logger,
	}
}

// Attach starts a renderer for window id and waits until it reports the
// content loaded. Ready signals are forwarded to sink for the life of the
// session. ctx bounds only the wait for the load.
func (h *ProcessHost) Attach(ctx context.Context, id platform.WindowID, content string, sink platform.EventSink) (platform.ContentSession, error) {
	args := append([]string(nil), h.args...)
	args = append(args, "--window-id", strconv.FormatUint(uint64(id), 10), "--content", content)
	if h.preload != "" {
		args = append(args, "--preload", h.preload)
	}

	cmd := exec.Command(h.command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("renderer stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("renderer stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("renderer stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start renderer %s: %w", h.command, err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		logger:     h.logger.With("window", id),
		done:       make(chan struct{}),
		stderrDone: make(chan struct{}),
	}
	loaded := make(chan error, 1)
	go s.forwardStderr(stderr)
	go s.readStatus(stdout, id, sink, loaded)

	select {
	case err := <-loaded:
		if err != nil {
			_ = s.kill()
			return nil, err
		}
	case <-ctx.Done():
		_ = s.kill()
		return nil, ctx.Err()
	}

	s.logger.Debug("content loaded", "content", content, "pid", cmd.Process.Pid)
	return s, nil
}

// Session is one running renderer.
type Session struct {
	cmd    *exec.Cmd
	logger *slog.Logger

	writeMu sync.Mutex
	stdin   io.WriteCloser
	closed  bool

	done       chan struct{}
	stderrDone chan struct{}
}

var _ platform.ContentSession = (*Session)(nil)

// readStatus consumes renderer status lines until stdout closes, then reaps
// the process. The first loaded or error line settles loaded.
func (s *Session) readStatus(stdout io.Reader, id platform.WindowID, sink platform.EventSink, loaded chan<- error) {
	defer close(s.done)

	settled := false
	settle := func(err error) {
		if !settled {
			settled = true
			loaded <- err
		}
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var st status
		if err := json.Unmarshal([]byte(line), &st); err != nil {
			s.logger.Debug("ignoring renderer output", "line", line)
			continue
		}
		switch st.Event {
		case statusLoaded:
			settle(nil)
		case statusReady:
			if sink != nil {
				sink(platform.Event{Type: platform.EventReady, Window: id})
			}
		case statusError:
			settle(fmt.Errorf("renderer: %s", st.Error))
			s.logger.Warn("renderer error", "error", st.Error)
		}
	}

	// Wait closes the pipes, so stderr has to be drained first.
	<-s.stderrDone
	err := s.cmd.Wait()
	if !settled {
		if err != nil {
			settle(fmt.Errorf("%w: %w", ErrRendererExited, err))
		} else {
			settle(ErrRendererExited)
		}
	}
}

func (s *Session) forwardStderr(r io.Reader) {
	defer close(s.stderrDone)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.logger.Debug("renderer", "stderr", scanner.Text())
	}
}

// Inject hands a JSON payload to the content.
func (s *Session) Inject(payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("inject: payload is not valid JSON")
	}
	return s.write(command{Type: commandInject, Payload: payload})
}

// Send delivers payload to the content on channel.
func (s *Session) Send(channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", channel, err)
	}
	return s.write(command{Type: commandMessage, Channel: channel, Payload: data})
}

func (s *Session) write(cmd command) error {
	line, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return fmt.Errorf("renderer session closed")
	}
	if _, err := s.stdin.Write(line); err != nil {
		return fmt.Errorf("write to renderer: %w", err)
	}
	return nil
}

// Close ends the session. The renderer gets exitGrace to exit after its
// stdin closes and is killed after that.
func (s *Session) Close() error {
	s.writeMu.Lock()
	if s.closed {
		s.writeMu.Unlock()
		return nil
	}
	s.closed = true
	_ = s.stdin.Close()
	s.writeMu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-time.After(exitGrace):
		return s.kill()
	}
}

func (s *Session) kill() error {
	s.writeMu.Lock()
	if !s.closed {
		s.closed = true
		_ = s.stdin.Close()
	}
	s.writeMu.Unlock()

	if s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-s.done
	return nil
}
