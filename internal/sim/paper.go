package sim

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/basicfont"
)

var (
	paperShadow  = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	paperOutline = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	labelStrip   = color.RGBA{R: 18, G: 18, B: 18, A: 255}
	labelText    = color.RGBA{R: 230, G: 230, B: 230, A: 255}
)

const (
	paperDepth  = 5 // px of the shaded thickness faces
	ruledLines  = 6
	labelHeight = 22
)

// WetSpot is a stain left by one drop. Radius only ever grows, up to MaxRadius.
type WetSpot struct {
	X, Y      int
	Radius    float64
	MaxRadius float64
	Color     color.RGBA
}

// Paper simulates the litmus strip: a rendered card whose color converges on a
// target, and an append-only list of spreading wet spots.
type Paper struct {
	cfg   PaperConfig
	label string

	base    colorful.Color
	current colorful.Color
	target  colorful.Color
	locked  bool
	spots   []WetSpot
}

// NewPaper returns a dry paper of the given color.
func NewPaper(cfg PaperConfig, base color.RGBA, label string) *Paper {
	p := &Paper{cfg: cfg}
	p.Reset(base, label)
	return p
}

// Reset re-inks the paper and dries every spot. Used when the indicator changes.
func (p *Paper) Reset(base color.RGBA, label string) {
	c := toColorful(base)
	p.base, p.current, p.target = c, c, c
	p.spots = nil
	p.locked = false
	p.label = label
}

func (p *Paper) Rect() image.Rectangle    { return p.cfg.Rect }
func (p *Paper) BaseColor() color.RGBA    { return fromColorful(p.base) }
func (p *Paper) CurrentColor() color.RGBA { return fromColorful(p.current) }
func (p *Paper) TargetColor() color.RGBA  { return fromColorful(p.target) }

// LockTarget pins the target color, e.g. to the reacted color. Later drops still
// wet the paper but no longer tint it. Reset unlocks.
func (p *Paper) LockTarget(c color.RGBA) {
	p.target = toColorful(c)
	p.locked = true
}

// Spots returns a copy of the wet spots in creation order.
func (p *Paper) Spots() []WetSpot {
	out := make([]WetSpot, len(p.spots))
	copy(out, p.spots)
	return out
}

// Contains reports whether pt lies strictly inside the paper.
func (p *Paper) Contains(pt image.Point) bool {
	r := p.cfg.Rect
	return r.Min.X < pt.X && pt.X < r.Max.X && r.Min.Y < pt.Y && pt.Y < r.Max.Y
}

// ReceiveLiquid wets the paper at pt and pulls the target color toward the
// liquid's. Drops that miss the paper are ignored.
func (p *Paper) ReceiveLiquid(pt image.Point, liquid color.RGBA) bool {
	if !p.Contains(pt) {
		return false
	}
	p.spots = append(p.spots, WetSpot{
		X:         pt.X,
		Y:         pt.Y,
		Radius:    p.cfg.SpotStartRadius,
		MaxRadius: p.cfg.SpotMaxRadius,
		Color:     liquid,
	})
	if !p.locked {
		p.target = p.target.BlendRgb(toColorful(liquid), p.cfg.TargetBlend)
	}
	return true
}

// Advance grows every spot one step and moves the rendered color toward the target.
func (p *Paper) Advance() {
	for i := range p.spots {
		s := &p.spots[i]
		s.Radius = math.Min(s.MaxRadius, s.Radius+p.cfg.SpotGrowth)
	}
	p.current = p.current.BlendRgb(p.target, p.cfg.ColorFollow)
}

// Draw renders the card, the wet spots clipped to it, and the ruled lines, then
// advances the paper one tick.
func (p *Paper) Draw(dst *image.RGBA) {
	dc := gg.NewContextForRGBA(dst)
	cur := fromColorful(p.current)

	p.drawCard(dst, dc, cur)
	p.drawSpots(dc)
	p.drawLines(dc, cur)
	p.drawLabel(dc)

	p.Advance()
}

func (p *Paper) drawCard(dst *image.RGBA, dc *gg.Context, cur color.RGBA) {
	r := p.cfg.Rect
	x, y := float64(r.Min.X), float64(r.Min.Y)
	w, h := float64(r.Dx()), float64(r.Dy())
	d := float64(paperDepth)

	polygon := func(c color.Color, pts ...float64) {
		dc.MoveTo(pts[0], pts[1])
		for i := 2; i < len(pts); i += 2 {
			dc.LineTo(pts[i], pts[i+1])
		}
		dc.ClosePath()
		dc.SetColor(c)
		dc.Fill()
	}

	polygon(paperShadow, x+6, y+h+4, x+w+6, y+h+4, x+w+4, y+h+8, x+4, y+h+8)
	polygon(scale(cur, 0.55), x+w, y, x+w+d, y+3, x+w+d, y+h+3, x+w, y+h)
	polygon(scale(cur, 0.45), x, y+h, x+w, y+h, x+w+d, y+h+3, x+d, y+h+3)

	// Front face: brighter at the top, 15% darker at the bottom.
	for i := 0; i < r.Dy(); i++ {
		brightness := 1 - float64(i)/h*0.15
		fillRect(dst, image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i+1), scale(cur, brightness))
	}

	highlight := scale(cur, 1.25)
	dc.SetColor(highlight)
	dc.SetLineWidth(2)
	dc.DrawLine(x, y, x, y+h)
	dc.Stroke()
	dc.SetLineWidth(1)
	dc.DrawLine(x, y, x+w, y)
	dc.Stroke()

	dc.SetColor(paperOutline)
	dc.DrawRectangle(x, y, w, h)
	dc.Stroke()
}

func (p *Paper) drawSpots(dc *gg.Context) {
	if len(p.spots) == 0 {
		return
	}
	r := p.cfg.Rect
	dc.Push()
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Clip()
	for _, s := range p.spots {
		rad := math.Floor(s.Radius)
		if rad < 1 {
			continue
		}
		cx, cy := float64(s.X), float64(s.Y)
		dc.SetColor(scale(s.Color, 0.6))
		dc.DrawCircle(cx, cy, rad)
		dc.Fill()
		dc.SetColor(s.Color)
		dc.DrawCircle(cx, cy, math.Max(1, rad-2))
		dc.Fill()
		dc.SetColor(scale(s.Color, 1.15))
		dc.DrawCircle(cx, cy, math.Max(1, rad-5))
		dc.Fill()
	}
	dc.ResetClip()
	dc.Pop()
}

func (p *Paper) drawLines(dc *gg.Context, cur color.RGBA) {
	r := p.cfg.Rect
	dc.SetColor(scale(cur, 0.82))
	dc.SetLineWidth(1)
	for i := 1; i < ruledLines; i++ {
		y := float64(r.Min.Y) + math.Floor(float64(i)*float64(r.Dy())/ruledLines)
		dc.DrawLine(float64(r.Min.X+4), y, float64(r.Max.X-4), y)
		dc.Stroke()
	}
}

func (p *Paper) drawLabel(dc *gg.Context) {
	if p.label == "" {
		return
	}
	r := p.cfg.Rect
	dc.SetColor(labelStrip)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Max.Y-labelHeight), float64(r.Dx()), labelHeight)
	dc.Fill()
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(labelText)
	dc.DrawStringAnchored(p.label, float64(r.Min.X)+float64(r.Dx())/2, float64(r.Max.Y)-labelHeight/2, 0.5, 0.35)
}
