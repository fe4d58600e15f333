package platform

import "fmt"

// PrimaryOf returns the display flagged primary, falling back to the first one.
func PrimaryOf(displays []Display) (Display, error) {
	if len(displays) == 0 {
		return Display{}, fmt.Errorf("no displays found")
	}
	for _, d := range displays {
		if d.Primary {
			return d, nil
		}
	}
	return displays[0], nil
}

// MatchDisplay picks the display containing the center of r. When the center
// is off every display, the display with the largest overlap wins, and the
// primary display is used when nothing overlaps.
func MatchDisplay(displays []Display, r Rect) (Display, error) {
	if len(displays) == 0 {
		return Display{}, fmt.Errorf("no displays found")
	}

	cx := r.X + r.Width/2
	cy := r.Y + r.Height/2
	for _, d := range displays {
		if containsPoint(d.Bounds, cx, cy) {
			return d, nil
		}
	}

	best := -1
	bestArea := 0
	for i, d := range displays {
		w, h := overlap(d.Bounds, r)
		if w*h > bestArea {
			best = i
			bestArea = w * h
		}
	}
	if best >= 0 {
		return displays[best], nil
	}
	return PrimaryOf(displays)
}

func containsPoint(r Rect, x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

func overlap(a, b Rect) (int, int) {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)
	if x2 <= x1 || y2 <= y1 {
		return 0, 0
	}
	return x2 - x1, y2 - y1
}
