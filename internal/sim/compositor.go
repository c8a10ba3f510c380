package sim

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
)

const (
	errorText     = "CAMERA ERROR / ACCESS DENIED"
	errorFontPt   = 26
	bannerText    = "REACTION COMPLETE"
	bannerHeight  = 68
	bannerOffset  = 38 // banner top sits this far above mid-frame
	bannerOpacity = 0.72
	bannerFontPt  = 34
	outlineRadius = 2
)

var (
	bannerFill    = color.RGBA{R: 8, G: 8, B: 8, A: 255}
	bannerOutline = color.RGBA{R: 0, G: 180, B: 80, A: 255}
	bannerInk     = color.RGBA{R: 0, G: 255, B: 120, A: 255}
	errorInk      = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// Banner overlays the "reaction complete" strip. The outlined text is
// rasterized once per frame size into a transparent layer.
type Banner struct {
	face  font.Face
	layer *image.RGBA
}

// NewBanner loads the bold face, falling back to the built-in bitmap font.
func NewBanner() *Banner {
	return &Banner{face: boldFace(bannerFontPt)}
}

func boldFace(pt float64) font.Face {
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(f, &truetype.Options{Size: pt})
}

// BannerBounds is the strip the banner darkens on a frame of the given size.
func BannerBounds(frame image.Rectangle) image.Rectangle {
	return bannerRect(frame).Intersect(frame)
}

func bannerRect(frame image.Rectangle) image.Rectangle {
	top := frame.Min.Y + frame.Dy()/2 - bannerOffset
	return image.Rect(frame.Min.X, top, frame.Max.X, top+bannerHeight)
}

// Draw darkens the mid-frame strip (72% banner, 28% frame) and writes the
// outlined text over it.
func (b *Banner) Draw(dst *image.RGBA) {
	strip := BannerBounds(dst.Bounds())
	for y := strip.Min.Y; y < strip.Max.Y; y++ {
		for x := strip.Min.X; x < strip.Max.X; x++ {
			i := dst.PixOffset(x, y)
			px := dst.Pix[i : i+3 : i+3]
			px[0] = mix(px[0], bannerFill.R)
			px[1] = mix(px[1], bannerFill.G)
			px[2] = mix(px[2], bannerFill.B)
		}
	}

	full := bannerRect(dst.Bounds())
	layer := b.textLayer(full.Dx())
	draw.Draw(dst, strip, layer, strip.Min.Sub(full.Min), draw.Over)
}

// textLayer returns the outlined text for a strip of the given width,
// rendering it only when the width changes.
func (b *Banner) textLayer(width int) *image.RGBA {
	if b.layer != nil && b.layer.Bounds().Dx() == width {
		return b.layer
	}
	dc := gg.NewContext(width, bannerHeight)
	dc.SetFontFace(b.face)
	cx := float64(width) / 2
	cy := float64(bannerHeight) / 2

	dc.SetColor(bannerOutline)
	for dy := -outlineRadius; dy <= outlineRadius; dy++ {
		for dx := -outlineRadius; dx <= outlineRadius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			dc.DrawStringAnchored(bannerText, cx+float64(dx), cy+float64(dy), 0.5, 0.35)
		}
	}
	dc.SetColor(bannerInk)
	dc.DrawStringAnchored(bannerText, cx, cy, 0.5, 0.35)
	b.layer = ToRGBA(dc.Image())
	return b.layer
}

func mix(frame, overlay uint8) uint8 {
	return uint8(bannerOpacity*float64(overlay) + (1-bannerOpacity)*float64(frame) + 0.5)
}

// ErrorFrame is the placeholder shown when the camera cannot be read: black,
// with a red notice left-aligned at mid-height.
func ErrorFrame(width, height int) *image.RGBA {
	dc := gg.NewContext(width, height)
	dc.SetColor(color.Black)
	dc.Clear()
	dc.SetFontFace(boldFace(errorFontPt))
	dc.SetColor(errorInk)
	dc.DrawString(errorText, 50, float64(height)/2)
	return ToRGBA(dc.Image())
}
