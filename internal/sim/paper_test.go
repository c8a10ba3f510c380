package sim

import (
	"image"
	"image/color"
	"math"
	"testing"

	"go.viam.com/test"

	"litmuslab/internal/chem"
)

func newRedPaper() *Paper {
	return NewPaper(DefaultConfig().Paper, chem.UntouchedColor(chem.IndicatorRed), chem.IndicatorRed.Label())
}

func colorDistance(a, b color.RGBA) float64 {
	return math.Abs(float64(a.R)-float64(b.R)) + math.Abs(float64(a.G)-float64(b.G)) + math.Abs(float64(a.B)-float64(b.B))
}

func TestPaperContains(t *testing.T) {
	p := newRedPaper()
	test.That(t, p.Contains(image.Pt(120, 390)), test.ShouldBeTrue)
	test.That(t, p.Contains(image.Pt(51, 321)), test.ShouldBeTrue)
	test.That(t, p.Contains(image.Pt(50, 390)), test.ShouldBeFalse)
	test.That(t, p.Contains(image.Pt(190, 390)), test.ShouldBeFalse)
	test.That(t, p.Contains(image.Pt(120, 320)), test.ShouldBeFalse)
	test.That(t, p.Contains(image.Pt(120, 460)), test.ShouldBeFalse)
}

func TestPaperReceiveLiquid(t *testing.T) {
	t.Run("a miss leaves the paper dry", func(t *testing.T) {
		p := newRedPaper()
		test.That(t, p.ReceiveLiquid(image.Pt(300, 390), chem.LiquidColor(chem.SubstanceBase)), test.ShouldBeFalse)
		test.That(t, p.Spots(), test.ShouldBeEmpty)
		test.That(t, p.TargetColor(), test.ShouldResemble, p.BaseColor())
	})

	t.Run("a hit adds a spot and moves the target fifteen percent", func(t *testing.T) {
		p := newRedPaper()
		liquid := chem.LiquidColor(chem.SubstanceBase)
		test.That(t, p.ReceiveLiquid(image.Pt(120, 390), liquid), test.ShouldBeTrue)

		spots := p.Spots()
		test.That(t, len(spots), test.ShouldEqual, 1)
		test.That(t, spots[0].X, test.ShouldEqual, 120)
		test.That(t, spots[0].Y, test.ShouldEqual, 390)
		test.That(t, spots[0].Radius, test.ShouldEqual, DefaultSpotStartRadius)
		test.That(t, spots[0].Color, test.ShouldResemble, liquid)

		// (220,40,40) + 0.15*((40,80,200)-(220,40,40))
		test.That(t, p.TargetColor(), test.ShouldResemble, color.RGBA{R: 193, G: 46, B: 64, A: 255})
		// The rendered color has not moved yet.
		test.That(t, p.CurrentColor(), test.ShouldResemble, chem.UntouchedColor(chem.IndicatorRed))
	})

	t.Run("spots are kept in creation order", func(t *testing.T) {
		p := newRedPaper()
		liquid := chem.LiquidColor(chem.SubstanceNeutral)
		for i := 0; i < 5; i++ {
			p.ReceiveLiquid(image.Pt(60+i*10, 400), liquid)
		}
		spots := p.Spots()
		test.That(t, len(spots), test.ShouldEqual, 5)
		for i, s := range spots {
			test.That(t, s.X, test.ShouldEqual, 60+i*10)
		}
	})

	t.Run("locked target ignores later drops", func(t *testing.T) {
		p := newRedPaper()
		reacted := chem.ReactedColor(chem.IndicatorRed)
		p.LockTarget(reacted)
		p.ReceiveLiquid(image.Pt(120, 390), chem.LiquidColor(chem.SubstanceAcid))
		test.That(t, p.TargetColor(), test.ShouldResemble, reacted)
		test.That(t, len(p.Spots()), test.ShouldEqual, 1)
	})
}

func TestPaperAdvance(t *testing.T) {
	t.Run("spots grow monotonically up to their cap", func(t *testing.T) {
		p := newRedPaper()
		p.ReceiveLiquid(image.Pt(120, 390), chem.LiquidColor(chem.SubstanceBase))
		prev := p.Spots()[0].Radius
		for i := 0; i < 100; i++ {
			p.Advance()
			r := p.Spots()[0].Radius
			test.That(t, r, test.ShouldBeGreaterThanOrEqualTo, prev)
			test.That(t, r, test.ShouldBeLessThanOrEqualTo, DefaultSpotMaxRadius)
			prev = r
		}
		test.That(t, prev, test.ShouldEqual, DefaultSpotMaxRadius)
	})

	t.Run("rendered color converges on the target", func(t *testing.T) {
		p := newRedPaper()
		target := chem.ReactedColor(chem.IndicatorRed)
		p.LockTarget(target)
		prev := colorDistance(p.CurrentColor(), target)
		for i := 0; i < 200; i++ {
			p.Advance()
			d := colorDistance(p.CurrentColor(), target)
			test.That(t, d, test.ShouldBeLessThanOrEqualTo, prev)
			prev = d
		}
		test.That(t, prev, test.ShouldBeLessThanOrEqualTo, 3.0)
	})

	t.Run("reset dries and re-inks the paper", func(t *testing.T) {
		p := newRedPaper()
		p.ReceiveLiquid(image.Pt(120, 390), chem.LiquidColor(chem.SubstanceBase))
		p.LockTarget(chem.ReactedColor(chem.IndicatorRed))
		p.Advance()

		blue := chem.UntouchedColor(chem.IndicatorBlue)
		p.Reset(blue, chem.IndicatorBlue.Label())
		test.That(t, p.Spots(), test.ShouldBeEmpty)
		test.That(t, p.BaseColor(), test.ShouldResemble, blue)
		test.That(t, p.CurrentColor(), test.ShouldResemble, blue)
		test.That(t, p.TargetColor(), test.ShouldResemble, blue)

		// Unlocked again: drops tint the target.
		p.ReceiveLiquid(image.Pt(120, 390), chem.LiquidColor(chem.SubstanceAcid))
		test.That(t, p.TargetColor(), test.ShouldNotResemble, blue)
	})
}

func TestPaperDraw(t *testing.T) {
	p := newRedPaper()
	p.ReceiveLiquid(image.Pt(52, 400), chem.LiquidColor(chem.SubstanceBase))
	var frame *image.RGBA
	for i := 0; i < 60; i++ {
		frame = blankFrame()
		p.Draw(frame)
	}

	face := frame.RGBAAt(120, 330)
	test.That(t, face.A, test.ShouldEqual, uint8(255))
	test.That(t, face.R, test.ShouldBeGreaterThan, face.B)

	// The spot has spread past the left edge but is clipped to the card.
	test.That(t, frame.RGBAAt(45, 400), test.ShouldResemble, color.RGBA{})
	spot := frame.RGBAAt(56, 400)
	test.That(t, spot.B, test.ShouldBeGreaterThan, spot.R)

	test.That(t, frame.RGBAAt(55, 450), test.ShouldResemble, color.RGBA{R: 18, G: 18, B: 18, A: 255})
	test.That(t, frame.RGBAAt(300, 100), test.ShouldResemble, color.RGBA{})
}
