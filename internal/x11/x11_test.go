package x11

import (
	"image"
	"image/color"
	"testing"

	"github.com/BurntSushi/xgbutil/ewmh"
)

func TestIntersect(t *testing.T) {
	a := Area{X: 0, Y: 0, Width: 100, Height: 100}

	got, ok := intersect(a, Area{X: 50, Y: 60, Width: 100, Height: 100})
	if !ok {
		t.Fatalf("expected overlap")
	}
	if got != (Area{X: 50, Y: 60, Width: 50, Height: 40}) {
		t.Fatalf("unexpected intersection: %+v", got)
	}

	if _, ok := intersect(a, Area{X: 100, Y: 0, Width: 10, Height: 10}); ok {
		t.Fatalf("touching edges should not overlap")
	}
}

func TestInsetsFor_OnlyCountsOverlappingDocks(t *testing.T) {
	left := Area{X: 0, Y: 0, Width: 1920, Height: 1080}
	right := Area{X: 1920, Y: 0, Width: 1920, Height: 1080}

	// A 32px top panel spanning only the left monitor.
	struts := strutsFromPartial(&ewmh.WmStrutPartial{Top: 32, TopStartX: 0, TopEndX: 1919}, 3840, 1080)

	if in := insetsFor(left, struts); in.top != 32 {
		t.Fatalf("left monitor top inset = %d, want 32", in.top)
	}
	if in := insetsFor(right, struts); !in.zero() {
		t.Fatalf("right monitor insets = %+v, want none", in)
	}
}

func TestInsetsFor_BottomAndRight(t *testing.T) {
	monitor := Area{X: 0, Y: 0, Width: 1920, Height: 1080}
	struts := strutsFromPartial(&ewmh.WmStrutPartial{
		Bottom: 48, BottomStartX: 0, BottomEndX: 1919,
		Right: 64, RightStartY: 0, RightEndY: 1079,
	}, 1920, 1080)

	got := insetsFor(monitor, struts).apply(monitor)
	want := Area{X: 0, Y: 0, Width: 1856, Height: 1032}
	if got != want {
		t.Fatalf("usable = %+v, want %+v", got, want)
	}
}

func TestInsetsApply_NeverCollapses(t *testing.T) {
	got := insets{left: 80, right: 80, top: 200}.apply(Area{Width: 100, Height: 100})
	if got.Width != 1 || got.Height != 1 {
		t.Fatalf("expected 1x1 minimum, got %dx%d", got.Width, got.Height)
	}
}

func TestIconFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff})
	img.Set(1, 0, color.NRGBA{R: 0x00, G: 0x00, B: 0xff, A: 0x80})

	icon := iconFromImage(img)
	if icon.Width != 2 || icon.Height != 1 || len(icon.Data) != 2 {
		t.Fatalf("unexpected icon shape: %dx%d with %d words", icon.Width, icon.Height, len(icon.Data))
	}
	if icon.Data[0] != 0xffff0000 {
		t.Fatalf("opaque red = %#x, want 0xffff0000", icon.Data[0])
	}
	if a := icon.Data[1] >> 24; a != 0x80 {
		t.Fatalf("alpha = %#x, want 0x80", a)
	}
	if b := icon.Data[1] & 0xff; b < 0xfe {
		t.Fatalf("blue should be un-premultiplied, got %#x", b)
	}
}

func TestContains(t *testing.T) {
	if !contains([]string{StateAbove, StateSticky}, StateSticky) {
		t.Fatalf("expected sticky state to be found")
	}
	if contains(nil, StateAbove) {
		t.Fatalf("nil list contains nothing")
	}
}
