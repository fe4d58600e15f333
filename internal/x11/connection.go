// Package x11 wraps the xgb/xgbutil calls the window backend needs: RandR
// monitor discovery, EWMH and ICCCM window properties, and the event loop.
package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection is an open X display with RandR and keyboard mapping ready.
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window
}

// Dial opens display, or $DISPLAY when display is empty.
func Dial(display string) (*Connection, error) {
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("open display %q: %w", display, err)
	}
	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr: %w", err)
	}
	keybind.Initialize(xu)
	return &Connection{XUtil: xu, Root: xu.RootWin()}, nil
}

// EventLoop dispatches X events until Quit is called.
func (c *Connection) EventLoop() { xevent.Main(c.XUtil) }

// Quit stops EventLoop. Safe to call from any goroutine.
func (c *Connection) Quit() { xevent.Quit(c.XUtil) }

func (c *Connection) Close() { c.XUtil.Conn().Close() }
