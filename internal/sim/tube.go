package sim

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/fogleman/gg"
	"github.com/samber/lo"
)

var (
	glassColor     = color.RGBA{R: 80, G: 80, B: 80, A: 255}
	glassRimColor  = color.RGBA{R: 100, G: 100, B: 100, A: 255}
	glassHighlight = color.NRGBA{R: 180, G: 180, B: 180, A: 200}
	shimmerColor   = color.NRGBA{R: 255, G: 235, B: 235, A: 180}
)

const (
	liquidAlpha  = 220
	layerPadding = 16
	streamSteps  = 30
	dropCount    = 5
	splashDots   = 6
)

// PourResult is what one tube tick produced.
type PourResult struct {
	Pouring bool
	// Mouth and Splash are only meaningful while pouring.
	Mouth  image.Point
	Splash image.Point
}

// Tube simulates the tilted test tube: a damped display angle chasing the hand,
// a draining liquid level, and the rendered glass, liquid and pour stream.
type Tube struct {
	cfg TubeConfig

	level   float64
	current float64
	display float64
	pouring bool
	liquid  color.RGBA

	// elapsed is simulation time, used only to phase the droplet animation.
	elapsed time.Duration
}

// NewTube returns an upright tube filled to cfg.InitialLevel.
func NewTube(cfg TubeConfig) *Tube {
	return &Tube{
		cfg:    cfg,
		level:  lo.Clamp(cfg.InitialLevel, 0, 1),
		liquid: color.RGBA{R: 255, G: 200, B: 200, A: 255},
	}
}

// SetAngle sets the target tilt in degrees, clamped to [0,90]. NaN (no angle)
// means upright.
func (t *Tube) SetAngle(deg float64) {
	if math.IsNaN(deg) {
		deg = 0
	}
	t.current = lo.Clamp(deg, 0, MaxTiltDeg)
}

// SetLiquidColor changes the color of the tube contents.
func (t *Tube) SetLiquidColor(c color.RGBA) { t.liquid = c }

func (t *Tube) Level() float64        { return t.level }
func (t *Tube) CurrentAngle() float64 { return t.current }
func (t *Tube) DisplayAngle() float64 { return t.display }
func (t *Tube) Pouring() bool         { return t.pouring }

// Step advances the tube physics by one tick. dt only feeds the animation phase;
// the follow gain and drain rate are per tick.
func (t *Tube) Step(dt time.Duration) {
	t.elapsed += dt
	t.display += (t.current - t.display) * t.cfg.FollowGain

	if t.display > t.cfg.PourThreshold && t.level > 0 {
		t.pouring = true
		t.level = math.Max(0, t.level-t.cfg.DrainPerTick)
		return
	}
	t.pouring = false
}

// UpdateAndDraw runs one full tick: physics, then the tube and stream onto dst.
func (t *Tube) UpdateAndDraw(dst *image.RGBA, liquid color.RGBA, dt time.Duration) PourResult {
	t.SetLiquidColor(liquid)
	t.Step(dt)
	return t.Draw(dst)
}

// Pivot is the point the tube rotates about: the middle of its mouth.
func (t *Tube) Pivot() Point2 {
	return Point2{X: float64(t.cfg.X) + float64(t.cfg.Width)/2, Y: float64(t.cfg.Y)}
}

// Mouth is the pouring lip after rotation by the display angle.
func (t *Tube) Mouth() Point2 {
	p := t.Pivot()
	rad := t.display * math.Pi / 180
	half := float64(t.cfg.Width) / 2
	return Point2{X: p.X - half*math.Cos(rad), Y: p.Y + half*math.Sin(rad)}
}

// Draw renders the tube at its display angle, and the stream when pouring.
func (t *Tube) Draw(dst *image.RGBA) PourResult {
	layer, origin := t.renderBody()

	dc := gg.NewContextForRGBA(dst)
	p := t.Pivot()
	dc.Push()
	// Counter-clockwise on screen, so the lip swings toward the paper.
	dc.RotateAbout(-t.display*math.Pi/180, p.X, p.Y)
	dc.DrawImage(layer, origin.X, origin.Y)
	dc.Pop()

	if !t.pouring {
		return PourResult{}
	}
	mouth, splash := t.drawStream(dc)
	return PourResult{Pouring: true, Mouth: mouth, Splash: splash}
}

// renderBody draws the upright tube onto its own transparent layer so only the
// glass and liquid texels get composited after rotation.
func (t *Tube) renderBody() (*image.RGBA, image.Point) {
	origin := image.Pt(t.cfg.X-layerPadding, t.cfg.Y-layerPadding)
	layer := image.NewRGBA(image.Rect(0, 0, t.cfg.Width+2*layerPadding, t.cfg.Height+2*layerPadding))

	t.drawLiquid(layer, origin)

	dc := gg.NewContextForRGBA(layer)
	dc.Translate(float64(-origin.X), float64(-origin.Y))

	x, y := float64(t.cfg.X), float64(t.cfg.Y)
	w, h := float64(t.cfg.Width), float64(t.cfg.Height)
	cx := x + w/2

	if t.level > 0 {
		dc.DrawEllipticalArc(cx, y+h, w/2-3, 10, 0, math.Pi)
		dc.ClosePath()
		dc.SetColor(withAlpha(t.liquid, liquidAlpha))
		dc.Fill()
	}

	dc.SetColor(glassColor)
	dc.SetLineWidth(3)
	dc.DrawRectangle(x, y, w, h)
	dc.Stroke()

	dc.SetColor(glassHighlight)
	dc.SetLineWidth(2)
	dc.DrawLine(x+5, y+10, x+5, y+h-20)
	dc.Stroke()

	dc.SetColor(glassRimColor)
	dc.SetLineWidth(3)
	dc.DrawEllipticalArc(cx, y+h, w/2, 12, 0, math.Pi)
	dc.Stroke()

	return layer, origin
}

// drawLiquid fills the tube row by row below a free surface that stays level in
// world space. In the tube's own frame that surface is a line through the
// nominal fill height with slope tan(display), so once the layer is rotated back
// by the display angle the meniscus reads flat.
func (t *Tube) drawLiquid(layer *image.RGBA, origin image.Point) {
	if t.level <= 0 {
		return
	}
	left := float64(t.cfg.X + 3)
	right := float64(t.cfg.X + t.cfg.Width - 3)
	top := t.cfg.Y
	bottom := t.cfg.Y + t.cfg.Height
	liquidHeight := math.Max(float64(t.cfg.Height)*t.level, 1)
	surfaceY := float64(bottom) - float64(t.cfg.Height)*t.level
	cx := (left + right) / 2
	slope := math.Tan(t.display * math.Pi / 180)

	surfaceAt := func(x float64) float64 { return surfaceY + (x-cx)*slope }
	crossing := func(y float64) float64 { return cx + (y-surfaceY)/slope }

	for y := bottom; y > top; y-- {
		fy := float64(y)
		leftWet := fy >= surfaceAt(left)
		rightWet := fy >= surfaceAt(right)
		if !leftWet && !rightWet {
			continue
		}

		from, to := left, right
		switch {
		case leftWet && rightWet:
		case math.Abs(slope) < 0.001:
			// Level surface: both ends agree, nothing partial to fill.
			continue
		case leftWet:
			to = math.Min(right, crossing(fy))
		default:
			from = math.Max(left, crossing(fy))
		}
		if to <= from {
			continue
		}

		progress := float64(bottom-y) / liquidHeight
		brightness := 1 - math.Abs(0.5-progress)*0.4
		c := withAlpha(scale(t.liquid, brightness), liquidAlpha)
		ly := y - origin.Y
		for x := int(from); x < int(to); x++ {
			layer.Set(x-origin.X, ly, c)
		}
	}

	for x := int(left); x < int(right); x++ {
		ys := int(surfaceAt(float64(x)))
		if ys <= top || ys >= bottom {
			continue
		}
		lx, ly := x-origin.X, ys-origin.Y
		for dy := -1; dy <= 1; dy++ {
			layer.Set(lx, ly+dy, shimmerColor)
		}
	}
}

// drawStream draws the pour: a tapering quadratic Bézier from the rotated mouth
// to the stream target, falling droplets near its tail, and a small splash.
func (t *Tube) drawStream(dc *gg.Context) (image.Point, image.Point) {
	m := t.Mouth()
	end := t.cfg.StreamTarget
	ex, ey := float64(end.X), float64(end.Y)
	ctrlX, ctrlY := m.X-80, m.Y+100

	base := t.liquid
	dark := scale(base, 0.6)
	bright := scale(base, 1.2)

	dc.SetLineCap(gg.LineCapRound)
	px, py := m.X, m.Y
	for i := 1; i <= streamSteps; i++ {
		s := float64(i) / streamSteps
		u := 1 - s
		bx := u*u*m.X + 2*u*s*ctrlX + s*s*ex
		by := u*u*m.Y + 2*u*s*ctrlY + s*s*ey

		width := math.Max(1, math.Floor(6*(1-s*0.6)))
		for _, pass := range []struct {
			c color.RGBA
			w float64
		}{
			{dark, width + 2},
			{base, width},
			{bright, math.Max(1, width-2)},
		} {
			dc.SetColor(pass.c)
			dc.SetLineWidth(pass.w)
			dc.DrawLine(px, py, bx, by)
			dc.Stroke()
		}
		px, py = bx, by
	}

	phaseBase := t.elapsed.Seconds() * 2
	for i := 0; i < dropCount; i++ {
		phase := math.Mod(phaseBase+float64(i)*0.4, 1)
		dx := ex + math.Sin(phase*math.Pi)*5 - float64(i*3)
		dy := ey + phase*40
		r := math.Max(2, float64(7-i))

		dc.SetColor(scale(base, 0.5))
		dc.DrawCircle(dx, dy, r)
		dc.Fill()
		dc.SetColor(base)
		dc.DrawCircle(dx, dy, math.Max(1, r-1))
		dc.Fill()
		dc.SetColor(scale(base, 1.3))
		dc.DrawCircle(dx-r/3, dy-r/3, math.Max(1, r/3))
		dc.Fill()
	}

	splash := image.Pt(end.X, end.Y+splashDrop)
	dc.SetColor(base)
	for i := 0; i < splashDots; i++ {
		a := (180 + float64(i)*30) * math.Pi / 180
		dc.DrawCircle(ex+math.Cos(a)*float64(8+i*2), float64(splash.Y)+math.Sin(a)*4, 2)
		dc.Fill()
	}

	return image.Pt(int(m.X), int(m.Y)), splash
}
