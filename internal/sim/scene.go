package sim

import (
	"image"
	"time"

	"litmuslab/internal/chem"
)

// Selection is what the operator picked. Epoch changes whenever the reaction
// has to start over, even if the indicator ends up where it was.
type Selection struct {
	Indicator chem.Indicator
	Substance chem.Substance
	Epoch     uint64
}

// TickResult summarizes one Scene step.
type TickResult struct {
	Angle   float64
	Level   float64
	Pouring bool
	Splash  image.Point

	Triggered bool
	// JustTriggered is set only on the tick the latch closed.
	JustTriggered bool
}

// Scene wires the estimator, tube, paper, arbiter and banner into the
// per-frame pipeline.
type Scene struct {
	cfg Config
	sel Selection

	hand   *AngleEstimator
	tube   *Tube
	paper  *Paper
	banner *Banner

	triggered bool
}

// NewScene builds a fresh bench for sel.
func NewScene(cfg Config, sel Selection) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scene{
		cfg:    cfg,
		sel:    sel,
		hand:   NewAngleEstimator(cfg.Hand),
		tube:   NewTube(cfg.Tube),
		paper:  NewPaper(cfg.Paper, chem.UntouchedColor(sel.Indicator), sel.Indicator.Label()),
		banner: NewBanner(),
	}, nil
}

// Apply takes a new selection. A different indicator or epoch re-inks the paper
// and opens the latch; a substance change alone only recolors the liquid.
func (s *Scene) Apply(sel Selection) {
	if sel.Indicator != s.sel.Indicator || sel.Epoch != s.sel.Epoch {
		s.paper.Reset(chem.UntouchedColor(sel.Indicator), sel.Indicator.Label())
		s.triggered = false
	}
	s.sel = sel
}

func (s *Scene) Selection() Selection { return s.sel }
func (s *Scene) Triggered() bool      { return s.triggered }
func (s *Scene) Tube() *Tube          { return s.tube }
func (s *Scene) Paper() *Paper        { return s.paper }

// Step renders one tick onto frame. hand is nil when no hand was found.
func (s *Scene) Step(frame *image.RGBA, hand *HandSkeleton, dt time.Duration) TickResult {
	angle := s.hand.Update(hand)
	s.tube.SetAngle(angle)

	s.paper.Draw(frame)

	liquid := chem.LiquidColor(s.sel.Substance)
	pour := s.tube.UpdateAndDraw(frame, liquid, dt)

	res := TickResult{
		Angle:   angle,
		Level:   s.tube.Level(),
		Pouring: pour.Pouring,
		Splash:  pour.Splash,
	}

	if pour.Pouring {
		s.paper.ReceiveLiquid(pour.Splash, liquid)
		if Evaluate(s.sel.Indicator, s.sel.Substance, pour.Splash, s.paper.Rect(), s.triggered) {
			s.triggered = true
			s.paper.LockTarget(chem.ReactedColor(s.sel.Indicator))
			res.JustTriggered = true
		}
	}

	if s.triggered {
		s.banner.Draw(frame)
	}
	res.Triggered = s.triggered
	return res
}
