package litmuslab

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	"go.viam.com/rdk/services/vision"

	"litmuslab/internal/sim"
)

// handDetector abstracts hand pose detection for simulated vs vision-service implementations.
type handDetector interface {
	// DetectHand returns nil, nil when no hand is in view.
	DetectHand(ctx context.Context, img image.Image) (*sim.HandSkeleton, error)
}

// noHandDetector never sees a hand; the tube stays upright.
type noHandDetector struct{}

func (noHandDetector) DetectHand(context.Context, image.Image) (*sim.HandSkeleton, error) {
	return nil, nil
}

// Sweep timing, in detector calls (one per tick).
const (
	sweepRest  = 60
	sweepTilt  = 60
	sweepHold  = 120
	sweepBack  = 30
	sweepAngle = 70.0
	sweepArm   = 120.0 // wrist to fingertip, px
)

// simulatedHandDetector replays a scripted pour: rest, tilt past the pour
// threshold, hold, return upright, repeat.
type simulatedHandDetector struct {
	mu    sync.Mutex
	calls int
}

func newSimulatedHandDetector() *simulatedHandDetector {
	return &simulatedHandDetector{}
}

func (d *simulatedHandDetector) DetectHand(ctx context.Context, img image.Image) (*sim.HandSkeleton, error) {
	d.mu.Lock()
	step := d.calls % (sweepRest + sweepTilt + sweepHold + sweepBack)
	d.calls++
	d.mu.Unlock()

	var deg float64
	switch {
	case step < sweepRest:
		deg = 0
	case step < sweepRest+sweepTilt:
		deg = sweepAngle * float64(step-sweepRest) / sweepTilt
	case step < sweepRest+sweepTilt+sweepHold:
		deg = sweepAngle
	default:
		deg = sweepAngle * (1 - float64(step-sweepRest-sweepTilt-sweepHold)/sweepBack)
	}

	b := img.Bounds()
	wrist := sim.Point2{X: float64(b.Min.X+b.Dx()/2) + 60, Y: float64(b.Min.Y + b.Dy()*3/4)}
	if deg == 0 {
		// Fingers pointing straight right read as upright.
		return &sim.HandSkeleton{Wrist: wrist, MiddleTip: sim.Point2{X: wrist.X + sweepArm, Y: wrist.Y}}, nil
	}
	raw := (180 - deg) * math.Pi / 180
	return &sim.HandSkeleton{
		Wrist:     wrist,
		MiddleTip: sim.Point2{X: wrist.X + sweepArm*math.Cos(raw), Y: wrist.Y - sweepArm*math.Sin(raw)},
	}, nil
}

// visionHandDetector wraps a Viam vision service whose detector labels hand
// keypoints. The center of the best-scoring box per label is the keypoint.
type visionHandDetector struct {
	svc            vision.Service
	wristLabel     string
	fingertipLabel string
}

func newVisionHandDetector(svc vision.Service, wristLabel, fingertipLabel string) *visionHandDetector {
	if wristLabel == "" {
		wristLabel = defaultWristLabel
	}
	if fingertipLabel == "" {
		fingertipLabel = defaultFingertipLabel
	}
	return &visionHandDetector{svc: svc, wristLabel: wristLabel, fingertipLabel: fingertipLabel}
}

func (d *visionHandDetector) DetectHand(ctx context.Context, img image.Image) (*sim.HandSkeleton, error) {
	dets, err := d.svc.Detections(ctx, img, nil)
	if err != nil {
		return nil, fmt.Errorf("detecting hand: %w", err)
	}
	wrist, okWrist := bestCenter(dets, d.wristLabel)
	tip, okTip := bestCenter(dets, d.fingertipLabel)
	if !okWrist || !okTip {
		return nil, nil
	}
	return &sim.HandSkeleton{Wrist: wrist, MiddleTip: tip}, nil
}

// keypointBox is the part of a detection the hand detector reads.
type keypointBox interface {
	Label() string
	Score() float64
	BoundingBox() *image.Rectangle
}

func bestCenter[D keypointBox](dets []D, label string) (sim.Point2, bool) {
	best, score := -1, -1.0
	for i, det := range dets {
		if any(det) == nil || det.BoundingBox() == nil || !strings.EqualFold(det.Label(), label) {
			continue
		}
		if det.Score() > score {
			best, score = i, det.Score()
		}
	}
	if best < 0 {
		return sim.Point2{}, false
	}
	box := dets[best].BoundingBox()
	return sim.Point2{
		X: float64(box.Min.X+box.Max.X) / 2,
		Y: float64(box.Min.Y+box.Max.Y) / 2,
	}, true
}
