// Package sim renders the virtual litmus bench: a hand-tilted test tube that
// pours onto a strip of litmus paper, plus the reaction banner. Every type here
// is driven by an explicit per-tick step and never reads a clock.
package sim

import (
	"fmt"
	"image"
)

// Canonical tuning for the 640x480 bench.
const (
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480

	DefaultSmoothing     = 0.2  // hand angle exponential smoothing gain
	DefaultDeadZoneDeg   = 10.0 // targets below this snap to upright
	MaxTiltDeg           = 90.0
	DefaultFollowGain    = 0.1    // display angle chases current angle by this fraction per tick
	DefaultPourThreshold = 25.0   // degrees
	DefaultDrainPerTick  = 0.0008 // liquid fraction lost per pouring tick
	DefaultLiquidLevel   = 0.7

	DefaultSpotStartRadius = 2.0
	DefaultSpotMaxRadius   = 18.0
	DefaultSpotGrowth      = 0.4  // px per tick
	DefaultTargetBlend     = 0.15 // per liquid event
	DefaultColorFollow     = 0.08 // per tick

	splashDrop = 20 // px below the stream end
)

// HandConfig tunes the angle estimator.
type HandConfig struct {
	Smoothing   float64
	DeadZoneDeg float64
}

// TubeConfig is the tube geometry and pour physics.
type TubeConfig struct {
	X, Y, Width, Height int

	InitialLevel  float64
	FollowGain    float64
	PourThreshold float64
	DrainPerTick  float64

	// StreamTarget is where the Bézier pour stream lands, in frame coordinates.
	StreamTarget image.Point
}

// PaperConfig is the paper geometry and wetting behavior.
type PaperConfig struct {
	Rect image.Rectangle

	SpotStartRadius float64
	SpotMaxRadius   float64
	SpotGrowth      float64
	TargetBlend     float64
	ColorFollow     float64
}

// Config gathers everything the Scene needs.
type Config struct {
	FrameWidth, FrameHeight int

	Hand  HandConfig
	Tube  TubeConfig
	Paper PaperConfig
}

// DefaultConfig is the bench layout used by the lab: tube on the right, paper at
// the bottom left, the stream arcing left onto the middle of the paper.
func DefaultConfig() Config {
	return Config{
		FrameWidth:  DefaultFrameWidth,
		FrameHeight: DefaultFrameHeight,
		Hand: HandConfig{
			Smoothing:   DefaultSmoothing,
			DeadZoneDeg: DefaultDeadZoneDeg,
		},
		Tube: TubeConfig{
			X: 430, Y: 80, Width: 80, Height: 240,
			InitialLevel:  DefaultLiquidLevel,
			FollowGain:    DefaultFollowGain,
			PourThreshold: DefaultPourThreshold,
			DrainPerTick:  DefaultDrainPerTick,
			StreamTarget:  image.Pt(120, 370),
		},
		Paper: PaperConfig{
			Rect:            image.Rect(50, 320, 190, 460),
			SpotStartRadius: DefaultSpotStartRadius,
			SpotMaxRadius:   DefaultSpotMaxRadius,
			SpotGrowth:      DefaultSpotGrowth,
			TargetBlend:     DefaultTargetBlend,
			ColorFollow:     DefaultColorFollow,
		},
	}
}

// Validate rejects geometry and rates the simulators cannot run with.
func (c Config) Validate() error {
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame size %dx%d must be positive", c.FrameWidth, c.FrameHeight)
	}
	if c.Hand.Smoothing <= 0 || c.Hand.Smoothing > 1 {
		return fmt.Errorf("hand smoothing %v must be in (0,1]", c.Hand.Smoothing)
	}
	if c.Tube.Width <= 6 || c.Tube.Height <= 0 {
		return fmt.Errorf("tube size %dx%d too small", c.Tube.Width, c.Tube.Height)
	}
	if c.Tube.PourThreshold <= 0 || c.Tube.PourThreshold >= MaxTiltDeg {
		return fmt.Errorf("pour threshold %v must be in (0,%v)", c.Tube.PourThreshold, MaxTiltDeg)
	}
	if c.Tube.DrainPerTick < 0 {
		return fmt.Errorf("drain per tick %v must not be negative", c.Tube.DrainPerTick)
	}
	if c.Tube.InitialLevel < 0 || c.Tube.InitialLevel > 1 {
		return fmt.Errorf("initial liquid level %v must be in [0,1]", c.Tube.InitialLevel)
	}
	if c.Paper.Rect.Empty() {
		return fmt.Errorf("paper rectangle %v is empty", c.Paper.Rect)
	}
	if c.Paper.SpotMaxRadius < c.Paper.SpotStartRadius {
		return fmt.Errorf("spot max radius %v below start radius %v", c.Paper.SpotMaxRadius, c.Paper.SpotStartRadius)
	}
	return nil
}
