// Package placement computes window geometry relative to a display work area
// or to another window's bounds. Every function here is pure.
package placement

import "github.com/1broseidon/wincoord/internal/platform"

// Rect is a window position and size.
type Rect = platform.Rect

const (
	// EdgeClearance is the minimum distance kept from the top and left edges
	// when anchoring to a display edge.
	EdgeClearance = 10
	// AnchorClearance is the vertical padding kept inside the work area when
	// placing relative to an anchor window.
	AnchorClearance = 8
	// AnchorGap is the horizontal gap between an anchor window and a window
	// placed beside it.
	AnchorGap = 12
)

// Margins are distances from display edges.
type Margins struct {
	Left   int
	Right  int
	Bottom int
}

// WorkArea returns the usable region of d. A display without usable-area
// metrics falls back to its full bounds; a missing size falls back to the
// primary display's.
func WorkArea(d, primary platform.Display) Rect {
	area := d.Usable
	if area.Empty() {
		area = d.Bounds
	}
	fallback := primary.Usable
	if fallback.Empty() {
		fallback = primary.Bounds
	}
	if area.Width <= 0 {
		area.Width = fallback.Width
	}
	if area.Height <= 0 {
		area.Height = fallback.Height
	}
	return area
}

// Center places a width x height window in the middle of area.
func Center(area Rect, width, height int) Rect {
	return Rect{
		X:      area.X + floorDiv(area.Width-width, 2),
		Y:      area.Y + floorDiv(area.Height-height, 2),
		Width:  width,
		Height: height,
	}
}

// CenterOver places a window in the middle of a reference window's bounds.
func CenterOver(ref Rect, width, height int) Rect {
	return Center(ref, width, height)
}

// BottomLeft anchors a window to the bottom-left corner of area. The top edge
// never goes above EdgeClearance, even when the margin exceeds the height.
func BottomLeft(area Rect, width, height int, m Margins) Rect {
	return Rect{
		X:      area.X + m.Left,
		Y:      max(EdgeClearance, area.Y+area.Height-(height+m.Bottom)),
		Width:  width,
		Height: height,
	}
}

// BottomRight anchors a window to the bottom-right corner of area.
func BottomRight(area Rect, width, height int, m Margins) Rect {
	return Rect{
		X:      rightEdgeX(area, width, m.Right),
		Y:      max(EdgeClearance, area.Y+area.Height-(height+m.Bottom)),
		Width:  width,
		Height: height,
	}
}

// AnchorOptions control placement beside an anchor window.
type AnchorOptions struct {
	// AlignSides pins the window to the right edge of the work area instead
	// of placing it next to the anchor.
	AlignSides  bool
	MarginRight int
	// AlignOffset raises the window's bottom edge above the anchor's.
	AlignOffset int
	Gap         int
}

// BesideAnchor places a window to the right of anchor with bottom edges
// aligned, then clamps it vertically into work.
func BesideAnchor(anchor, work Rect, width, height int, o AnchorOptions) Rect {
	var x int
	if o.AlignSides {
		x = rightEdgeX(work, width, o.MarginRight)
	} else {
		x = anchor.X + anchor.Width + o.Gap
	}
	y := anchor.Y + anchor.Height - height - o.AlignOffset

	return Rect{
		X:      x,
		Y:      ClampVertical(y, work, height),
		Width:  width,
		Height: height,
	}
}

// ClampVertical keeps y within [work.Y+8, work.Y+work.Height-height-8]. When
// the two limits cross, the bottom limit wins.
func ClampVertical(y int, work Rect, height int) int {
	minY := work.Y + AnchorClearance
	maxY := work.Y + work.Height - height - AnchorClearance
	if y < minY {
		y = minY
	}
	if y > maxY {
		y = maxY
	}
	return y
}

func rightEdgeX(area Rect, width, marginRight int) int {
	return max(area.X+EdgeClearance, area.X+area.Width-width-marginRight)
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
