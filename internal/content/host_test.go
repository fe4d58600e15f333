package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/wincoord/internal/config"
	"github.com/1broseidon/wincoord/internal/platform"
)

func writeRenderer(t *testing.T, body string) config.Renderer {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "renderer.sh")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write renderer: %v", err)
	}
	return config.Renderer{Command: "/bin/sh", Args: []string{path}}
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []platform.Event
}

func (r *sinkRecorder) sink(ev platform.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *sinkRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestAttach_LoadsForwardsReadyAndWritesCommands(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stdin.log")
	args := filepath.Join(t.TempDir(), "args.log")
	renderer := writeRenderer(t, `echo "$@" > `+args+`
echo 'not json'
echo '{"event":"loaded"}'
echo '{"event":"ready"}'
exec cat > `+out+`
`)

	host := NewProcessHost(renderer, "preload.js", nil)
	rec := &sinkRecorder{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := host.Attach(ctx, 42, "windows/save.html", rec.sink)
	if err != nil {
		t.Fatalf("Attach error: %v", err)
	}

	if err := session.Inject([]byte(`{"name":"clip"}`)); err != nil {
		t.Fatalf("Inject error: %v", err)
	}
	if err := session.Send("init-save-options", map[string]string{"name": "clip"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := session.Send("late", nil); err == nil {
		t.Fatalf("expected send after close to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if rec.count() != 1 || rec.events[0] != (platform.Event{Type: platform.EventReady, Window: 42}) {
		t.Fatalf("expected one ready event, got %+v", rec.events)
	}

	argLine, err := os.ReadFile(args)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	want := "--window-id 42 --content windows/save.html --preload preload.js"
	if strings.TrimSpace(string(argLine)) != want {
		t.Fatalf("renderer args = %q, want %q", strings.TrimSpace(string(argLine)), want)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read stdin log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 commands, got %d: %q", len(lines), data)
	}

	var inject, message command
	if err := json.Unmarshal([]byte(lines[0]), &inject); err != nil {
		t.Fatalf("decode inject: %v", err)
	}
	if inject.Type != commandInject || string(inject.Payload) != `{"name":"clip"}` {
		t.Fatalf("unexpected inject command: %+v", inject)
	}
	if err := json.Unmarshal([]byte(lines[1]), &message); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if message.Type != commandMessage || message.Channel != "init-save-options" {
		t.Fatalf("unexpected message command: %+v", message)
	}
}

func TestAttach_RendererErrorFailsLoad(t *testing.T) {
	renderer := writeRenderer(t, `echo '{"event":"error","error":"page not found"}'
exec cat > /dev/null
`)
	host := NewProcessHost(renderer, "", nil)

	_, err := host.Attach(context.Background(), 1, "windows/missing.html", nil)
	if err == nil || !strings.Contains(err.Error(), "page not found") {
		t.Fatalf("expected renderer error, got %v", err)
	}
}

func TestAttach_RendererExitBeforeLoad(t *testing.T) {
	renderer := writeRenderer(t, "exit 3\n")
	host := NewProcessHost(renderer, "", nil)

	_, err := host.Attach(context.Background(), 1, "windows/main.html", nil)
	if !errors.Is(err, ErrRendererExited) {
		t.Fatalf("expected ErrRendererExited, got %v", err)
	}
}

func TestAttach_StderrDrainedBeforeExitIsReported(t *testing.T) {
	renderer := writeRenderer(t, `i=0
while [ $i -lt 200 ]; do echo "noise $i" >&2; i=$((i+1)); done
echo "last words" >&2
exit 3
`)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	host := NewProcessHost(renderer, "", logger)

	_, err := host.Attach(context.Background(), 1, "windows/main.html", nil)
	if !errors.Is(err, ErrRendererExited) {
		t.Fatalf("expected ErrRendererExited, got %v", err)
	}
	if !strings.Contains(buf.String(), "last words") {
		t.Fatalf("expected the final stderr line to be logged, got:\n%s", buf.String())
	}
}

func TestAttach_ContextBoundsLoadWait(t *testing.T) {
	renderer := writeRenderer(t, "exec sleep 30\n")
	host := NewProcessHost(renderer, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := host.Attach(ctx, 1, "windows/main.html", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("Attach did not return promptly after the deadline")
	}
}

func TestAttach_MissingCommand(t *testing.T) {
	host := NewProcessHost(config.Renderer{Command: filepath.Join(t.TempDir(), "nope")}, "", nil)
	if _, err := host.Attach(context.Background(), 1, "windows/main.html", nil); err == nil {
		t.Fatalf("expected start error")
	}
}

func TestSession_InjectRejectsInvalidJSON(t *testing.T) {
	s := &Session{}
	if err := s.Inject([]byte("{oops")); err == nil {
		t.Fatalf("expected invalid JSON error")
	}
}
