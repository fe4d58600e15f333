package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Area is a rectangle in root window coordinates.
type Area struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (a Area) right() int  { return a.X + a.Width }
func (a Area) bottom() int { return a.Y + a.Height }

// Monitor is one active RandR CRTC.
type Monitor struct {
	ID      int
	Name    string
	Primary bool
	Bounds  Area
	// WorkArea excludes panels and docks.
	WorkArea Area
}

// Monitors lists the enabled CRTCs in RandR order. Dock struts are read once
// and clipped to each monitor.
func (c *Connection) Monitors() ([]Monitor, error) {
	conn := c.XUtil.Conn()
	res, err := randr.GetScreenResources(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("randr screen resources: %w", err)
	}

	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(conn, c.Root).Reply(); err == nil {
		primary = reply.Output
	}

	docks := c.dockStruts()

	var out []Monitor
	for idx, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, res.ConfigTimestamp).Reply()
		if err != nil || len(info.Outputs) == 0 || info.Width == 0 || info.Height == 0 {
			continue
		}

		m := Monitor{
			ID:   idx,
			Name: fmt.Sprintf("crtc-%d", idx),
			Bounds: Area{
				X:      int(info.X),
				Y:      int(info.Y),
				Width:  int(info.Width),
				Height: int(info.Height),
			},
		}
		if oi, err := randr.GetOutputInfo(conn, info.Outputs[0], res.ConfigTimestamp).Reply(); err == nil {
			m.Name = string(oi.Name)
		}
		for _, o := range info.Outputs {
			m.Primary = m.Primary || (primary != 0 && o == primary)
		}
		m.WorkArea = c.usableArea(m.Bounds, docks)
		out = append(out, m)
	}
	return out, nil
}

// usableArea prefers dock struts, then _NET_WORKAREA for the current desktop,
// then the full bounds.
func (c *Connection) usableArea(bounds Area, docks []strut) Area {
	if in := insetsFor(bounds, docks); !in.zero() {
		return in.apply(bounds)
	}

	areas, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(areas) == 0 {
		return bounds
	}
	desk := 0
	if cur, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil && int(cur) < len(areas) {
		desk = int(cur)
	}
	wa := areas[desk]
	if clipped, ok := intersect(bounds, Area{X: int(wa.X), Y: int(wa.Y), Width: int(wa.Width), Height: int(wa.Height)}); ok {
		return clipped
	}
	return bounds
}

type edge int

const (
	edgeTop edge = iota
	edgeBottom
	edgeLeft
	edgeRight
)

// strut is one reserved band along a root window edge.
type strut struct {
	edge edge
	area Area
}

// dockStruts collects the reserved bands of every dock window. Docks that
// only set _NET_WM_STRUT reserve the whole edge.
func (c *Connection) dockStruts() []strut {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return nil
	}
	rw, rh := int(geom.Width), int(geom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil
	}

	var out []strut
	for _, win := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, win)
		if err != nil || !contains(types, "_NET_WM_WINDOW_TYPE_DOCK") {
			continue
		}
		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, win); err == nil {
			out = append(out, strutsFromPartial(sp, rw, rh)...)
			continue
		}
		if s, err := ewmh.WmStrutGet(c.XUtil, win); err == nil {
			out = append(out, strutsFromPartial(&ewmh.WmStrutPartial{
				Left: s.Left, LeftEndY: uint(rh - 1),
				Right: s.Right, RightEndY: uint(rh - 1),
				Top: s.Top, TopEndX: uint(rw - 1),
				Bottom: s.Bottom, BottomEndX: uint(rw - 1),
			}, rw, rh)...)
		}
	}
	return out
}

// strutsFromPartial converts _NET_WM_STRUT_PARTIAL into root-space bands.
// Start/end coordinates are inclusive.
func strutsFromPartial(sp *ewmh.WmStrutPartial, rootW, rootH int) []strut {
	span := func(start, end uint) int { return int(end) + 1 - int(start) }

	var out []strut
	if sp.Top > 0 {
		out = append(out, strut{edgeTop, Area{X: int(sp.TopStartX), Y: 0, Width: span(sp.TopStartX, sp.TopEndX), Height: int(sp.Top)}})
	}
	if sp.Bottom > 0 {
		out = append(out, strut{edgeBottom, Area{X: int(sp.BottomStartX), Y: rootH - int(sp.Bottom), Width: span(sp.BottomStartX, sp.BottomEndX), Height: int(sp.Bottom)}})
	}
	if sp.Left > 0 {
		out = append(out, strut{edgeLeft, Area{X: 0, Y: int(sp.LeftStartY), Width: int(sp.Left), Height: span(sp.LeftStartY, sp.LeftEndY)}})
	}
	if sp.Right > 0 {
		out = append(out, strut{edgeRight, Area{X: rootW - int(sp.Right), Y: int(sp.RightStartY), Width: int(sp.Right), Height: span(sp.RightStartY, sp.RightEndY)}})
	}
	return out
}

// insets is how far each edge of a monitor is pushed in by docks.
type insets struct {
	top, bottom, left, right int
}

func (in insets) zero() bool { return in == insets{} }

// apply shrinks a by the insets, never below 1x1.
func (in insets) apply(a Area) Area {
	a.X += in.left
	a.Y += in.top
	a.Width = max(1, a.Width-in.left-in.right)
	a.Height = max(1, a.Height-in.top-in.bottom)
	return a
}

// insetsFor keeps the deepest overlap per edge; a band that misses the
// monitor does not count.
func insetsFor(monitor Area, struts []strut) insets {
	var in insets
	for _, s := range struts {
		hit, ok := intersect(monitor, s.area)
		if !ok {
			continue
		}
		switch s.edge {
		case edgeTop:
			in.top = max(in.top, hit.Height)
		case edgeBottom:
			in.bottom = max(in.bottom, hit.Height)
		case edgeLeft:
			in.left = max(in.left, hit.Width)
		case edgeRight:
			in.right = max(in.right, hit.Width)
		}
	}
	return in
}

func intersect(a, b Area) (Area, bool) {
	x0, y0 := max(a.X, b.X), max(a.Y, b.Y)
	x1, y1 := min(a.right(), b.right()), min(a.bottom(), b.bottom())
	if x1 <= x0 || y1 <= y0 {
		return Area{}, false
	}
	return Area{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, true
}
