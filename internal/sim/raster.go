package sim

import (
	"image"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// scale multiplies each channel by k, saturating at 255. Alpha is kept.
func scale(c color.RGBA, k float64) color.RGBA {
	ch := func(v uint8) uint8 {
		f := float64(v) * k
		if f > 255 {
			return 255
		}
		if f < 0 {
			return 0
		}
		return uint8(f)
	}
	return color.RGBA{R: ch(c.R), G: ch(c.G), B: ch(c.B), A: c.A}
}

func withAlpha(c color.RGBA, a uint8) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: a}
}

func toColorful(c color.RGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

func fromColorful(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// fillRect paints r with c (non-premultiplied) over dst.
func fillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// ToRGBA copies src into a fresh zero-origin RGBA the renderers can draw on.
func ToRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
