package x11

import (
	"fmt"
	"image"
	_ "image/png"
	"os"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// SetIconFile decodes an image file and publishes it as _NET_WM_ICON.
func (c *Connection) SetIconFile(windowID xproto.Window, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open icon: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode icon %s: %w", path, err)
	}
	return ewmh.WmIconSet(c.XUtil, windowID, []ewmh.WmIcon{iconFromImage(img)})
}

// iconFromImage packs an image as the ARGB words _NET_WM_ICON expects.
func iconFromImage(img image.Image) ewmh.WmIcon {
	b := img.Bounds()
	icon := ewmh.WmIcon{
		Width:  uint(b.Dx()),
		Height: uint(b.Dy()),
		Data:   make([]uint, 0, b.Dx()*b.Dy()),
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			// RGBA returns alpha-premultiplied 16-bit channels.
			r, g, bl, a := img.At(x, y).RGBA()
			if a > 0 {
				r, g, bl = r*0xffff/a, g*0xffff/a, bl*0xffff/a
			}
			icon.Data = append(icon.Data, uint(a>>8)<<24|uint(r>>8)<<16|uint(g>>8)<<8|uint(bl>>8))
		}
	}
	return icon
}
