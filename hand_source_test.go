package litmuslab

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"go.viam.com/rdk/testutils/inject"
	"go.viam.com/rdk/vision/objectdetection"

	"litmuslab/internal/sim"
)

type fakeBox struct {
	label string
	score float64
	box   *image.Rectangle
}

func (b fakeBox) Label() string                 { return b.label }
func (b fakeBox) Score() float64                { return b.score }
func (b fakeBox) BoundingBox() *image.Rectangle { return b.box }

func rect(x0, y0, x1, y1 int) *image.Rectangle {
	r := image.Rect(x0, y0, x1, y1)
	return &r
}

func TestBestCenter(t *testing.T) {
	dets := []fakeBox{
		{label: "wrist", score: 0.4, box: rect(0, 0, 10, 10)},
		{label: "Wrist", score: 0.9, box: rect(100, 200, 120, 220)},
		{label: "middle_finger_tip", score: 0.8, box: nil},
		{label: "thumb_tip", score: 0.99, box: rect(5, 5, 7, 7)},
	}

	p, ok := bestCenter(dets, "wrist")
	if !ok {
		t.Fatal("expected a wrist")
	}
	if p != (sim.Point2{X: 110, Y: 210}) {
		t.Errorf("wrist = %+v, want the center of the best box", p)
	}

	if _, ok := bestCenter(dets, "middle_finger_tip"); ok {
		t.Error("a detection without a box should not count")
	}
	if _, ok := bestCenter([]fakeBox{}, "wrist"); ok {
		t.Error("no detections should find nothing")
	}
}

func TestVisionHandDetector(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))

	t.Run("no detections means no hand", func(t *testing.T) {
		svc := inject.NewVisionService("hands")
		svc.DetectionsFunc = func(ctx context.Context, img image.Image, extra map[string]interface{}) ([]objectdetection.Detection, error) {
			return nil, nil
		}
		d := newVisionHandDetector(svc, "", "")
		if d.wristLabel != defaultWristLabel || d.fingertipLabel != defaultFingertipLabel {
			t.Errorf("labels = %q/%q, want defaults", d.wristLabel, d.fingertipLabel)
		}

		hand, err := d.DetectHand(context.Background(), img)
		if err != nil {
			t.Fatalf("DetectHand failed: %v", err)
		}
		if hand != nil {
			t.Errorf("expected no hand, got %+v", hand)
		}
	})

	t.Run("service errors propagate", func(t *testing.T) {
		svc := inject.NewVisionService("hands")
		boom := errors.New("model not loaded")
		svc.DetectionsFunc = func(ctx context.Context, img image.Image, extra map[string]interface{}) ([]objectdetection.Detection, error) {
			return nil, boom
		}
		var detector handDetector = newVisionHandDetector(svc, "wrist", "tip")
		if _, err := detector.DetectHand(context.Background(), img); !errors.Is(err, boom) {
			t.Errorf("got %v, want %v", err, boom)
		}
	})
}

func TestSimulatedHandDetector(t *testing.T) {
	d := newSimulatedHandDetector()
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	period := sweepRest + sweepTilt + sweepHold + sweepBack

	var angles []float64
	for i := 0; i < 2*period; i++ {
		hand, err := d.DetectHand(context.Background(), img)
		if err != nil || hand == nil {
			t.Fatalf("tick %d: hand %v, err %v", i, hand, err)
		}
		angles = append(angles, sim.TargetAngle(*hand, 0))
	}

	if angles[0] != 0 {
		t.Errorf("rest angle = %v, want 0", angles[0])
	}
	held := angles[sweepRest+sweepTilt+10]
	if math.Abs(held-sweepAngle) > 1e-9 {
		t.Errorf("held angle = %v, want %v", held, sweepAngle)
	}
	if held <= sim.DefaultPourThreshold {
		t.Errorf("held angle %v should pour", held)
	}
	for i := sweepRest; i < sweepRest+sweepTilt; i++ {
		if angles[i+1] < angles[i]-1e-9 {
			t.Fatalf("tilt is not monotone at tick %d: %v then %v", i, angles[i], angles[i+1])
		}
	}
	// The script repeats.
	for i := 0; i < period; i++ {
		if angles[period+i] != angles[i] {
			t.Fatalf("tick %d differs between sweeps: %v vs %v", i, angles[i], angles[period+i])
		}
	}
}

func TestNoHandDetector(t *testing.T) {
	hand, err := noHandDetector{}.DetectHand(context.Background(), nil)
	if err != nil || hand != nil {
		t.Errorf("got %v, %v; want nil, nil", hand, err)
	}
}
