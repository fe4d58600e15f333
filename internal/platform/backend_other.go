//go:build !linux

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// LinuxBackend is only available on linux; elsewhere every call fails.
type LinuxBackend struct{}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackendFromDisplay reports that no native backend exists on this
// platform.
func NewLinuxBackendFromDisplay(ContentHost, *slog.Logger) (*LinuxBackend, error) {
	return nil, fmt.Errorf("window backend for %s: %w", runtime.GOOS, ErrUnsupported)
}

func (b *LinuxBackend) Disconnect() {}

func (b *LinuxBackend) EventLoop(ctx context.Context) { <-ctx.Done() }

func (b *LinuxBackend) Displays() ([]Display, error) { return nil, ErrUnsupported }

func (b *LinuxBackend) PrimaryDisplay() (Display, error) { return Display{}, ErrUnsupported }

func (b *LinuxBackend) DisplayMatching(Rect) (Display, error) { return Display{}, ErrUnsupported }

func (b *LinuxBackend) CreateWindow(Attributes, EventSink) (Window, error) {
	return nil, ErrUnsupported
}
