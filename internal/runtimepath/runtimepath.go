// Package runtimepath locates the daemon's control socket.
package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// SocketEnv overrides the daemon socket path.
const SocketEnv = "WINCOORD_SOCKET"

const socketName = "wincoord.sock"

// Dir picks the first usable runtime directory: $XDG_RUNTIME_DIR, then the
// xdg default when it exists, then a private directory under the system
// temp dir, created with mode 0700.
func Dir() (string, error) {
	if env := os.Getenv("XDG_RUNTIME_DIR"); env != "" {
		return env, nil
	}
	if isDir(xdg.RuntimeDir) {
		return xdg.RuntimeDir, nil
	}

	fallback := fallbackDir()
	if err := os.MkdirAll(fallback, 0o700); err != nil {
		return "", fmt.Errorf("create runtime dir %s: %w", fallback, err)
	}
	return fallback, nil
}

// SocketPath is $WINCOORD_SOCKET, or wincoord.sock inside Dir.
func SocketPath() (string, error) {
	if p := os.Getenv(SocketEnv); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, socketName), nil
}

func fallbackDir() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("wincoord-%d", os.Getuid()))
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
