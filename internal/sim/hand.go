package sim

import (
	"math"

	"github.com/samber/lo"
)

// Point2 is a point in frame pixel coordinates.
type Point2 struct {
	X, Y float64
}

// HandSkeleton is the subset of a detected hand the lab needs.
type HandSkeleton struct {
	Wrist     Point2
	MiddleTip Point2
}

// TargetAngle maps a hand to a tilt in [0,90]. A hand pointing right (or straight
// up) is upright; pointing left tilts the tube. Targets inside the dead zone snap
// to 0 so a resting hand does not jitter the tube.
func TargetAngle(h HandSkeleton, deadZoneDeg float64) float64 {
	dx := h.MiddleTip.X - h.Wrist.X
	dy := h.Wrist.Y - h.MiddleTip.Y
	if dx >= 0 {
		return 0
	}
	raw := math.Atan2(dy, dx) * 180 / math.Pi
	target := lo.Clamp(180-math.Abs(raw), 0, MaxTiltDeg)
	if target < deadZoneDeg {
		return 0
	}
	return target
}

// AngleEstimator smooths per-frame hand targets into a tilt angle. It never
// reports "no angle": a missing hand decays the angle toward upright.
type AngleEstimator struct {
	alpha    float64
	deadZone float64
	angle    float64
}

// NewAngleEstimator returns an estimator starting upright.
func NewAngleEstimator(cfg HandConfig) *AngleEstimator {
	return &AngleEstimator{alpha: cfg.Smoothing, deadZone: cfg.DeadZoneDeg}
}

// Update advances one tick. hand is nil when nothing was detected.
func (e *AngleEstimator) Update(hand *HandSkeleton) float64 {
	target := 0.0
	if hand != nil {
		target = TargetAngle(*hand, e.deadZone)
	}
	e.angle = e.alpha*target + (1-e.alpha)*e.angle
	return e.angle
}

// Angle is the latest smoothed angle.
func (e *AngleEstimator) Angle() float64 { return e.angle }
