package sim

import (
	"math"
	"testing"

	"go.viam.com/test"
)

// handTilted builds a skeleton whose target angle is deg (for deg in (0,90]).
func handTilted(deg float64) *HandSkeleton {
	raw := (180 - deg) * math.Pi / 180
	wrist := Point2{X: 300, Y: 300}
	return &HandSkeleton{
		Wrist:     wrist,
		MiddleTip: Point2{X: wrist.X + 100*math.Cos(raw), Y: wrist.Y - 100*math.Sin(raw)},
	}
}

func TestTargetAngle(t *testing.T) {
	t.Run("hand pointing right is upright", func(t *testing.T) {
		h := HandSkeleton{Wrist: Point2{100, 100}, MiddleTip: Point2{150, 20}}
		test.That(t, TargetAngle(h, DefaultDeadZoneDeg), test.ShouldEqual, 0.0)
	})

	t.Run("hand pointing straight up is upright", func(t *testing.T) {
		h := HandSkeleton{Wrist: Point2{100, 100}, MiddleTip: Point2{100, 20}}
		test.That(t, TargetAngle(h, DefaultDeadZoneDeg), test.ShouldEqual, 0.0)
	})

	t.Run("leftward tilt maps to its angle", func(t *testing.T) {
		test.That(t, TargetAngle(*handTilted(45), DefaultDeadZoneDeg), test.ShouldAlmostEqual, 45, 1e-9)
		test.That(t, TargetAngle(*handTilted(80), DefaultDeadZoneDeg), test.ShouldAlmostEqual, 80, 1e-9)
	})

	t.Run("small tilts snap to zero", func(t *testing.T) {
		test.That(t, TargetAngle(*handTilted(9), DefaultDeadZoneDeg), test.ShouldEqual, 0.0)
	})

	t.Run("hand pointing down-left folds back into range", func(t *testing.T) {
		h := HandSkeleton{Wrist: Point2{100, 100}, MiddleTip: Point2{20, 180}}
		test.That(t, TargetAngle(h, DefaultDeadZoneDeg), test.ShouldAlmostEqual, 45, 1e-9)
		h = HandSkeleton{Wrist: Point2{100, 100}, MiddleTip: Point2{98, 180}}
		got := TargetAngle(h, DefaultDeadZoneDeg)
		test.That(t, got, test.ShouldBeLessThanOrEqualTo, MaxTiltDeg)
		test.That(t, got, test.ShouldBeGreaterThanOrEqualTo, 0.0)
	})
}

func TestAngleEstimator(t *testing.T) {
	t.Run("converges geometrically on a constant target", func(t *testing.T) {
		e := NewAngleEstimator(HandConfig{Smoothing: DefaultSmoothing, DeadZoneDeg: DefaultDeadZoneDeg})
		hand := handTilted(60)
		for n := 1; n <= 25; n++ {
			got := e.Update(hand)
			want := 60 * math.Pow(0.8, float64(n))
			test.That(t, math.Abs(got-60), test.ShouldAlmostEqual, want, 1e-9)
		}
	})

	t.Run("missing hand decays toward zero without jumping", func(t *testing.T) {
		e := NewAngleEstimator(HandConfig{Smoothing: DefaultSmoothing, DeadZoneDeg: DefaultDeadZoneDeg})
		for i := 0; i < 50; i++ {
			e.Update(handTilted(70))
		}
		prev := e.Angle()
		for i := 0; i < 30; i++ {
			got := e.Update(nil)
			test.That(t, got, test.ShouldAlmostEqual, prev*0.8, 1e-9)
			test.That(t, got, test.ShouldBeGreaterThan, 0.0)
			prev = got
		}
	})
}
