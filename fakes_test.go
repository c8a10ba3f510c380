package litmuslab

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"litmuslab/internal/sim"
)

var errCameraGone = errors.New("camera gone")

// fakeFrameSource serves a flat grey frame. failFn, when set, decides per call
// (1-based) whether the read fails.
type fakeFrameSource struct {
	mu     sync.Mutex
	calls  int
	failFn func(call int) bool
}

func (f *fakeFrameSource) ReadFrame(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	failFn := f.failFn
	f.mu.Unlock()

	if failFn != nil && failFn(call) {
		return nil, errCameraGone
	}
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	return img, nil
}

func (f *fakeFrameSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// tiltedHand always reports a hand tilted well past the pour threshold.
type tiltedHand struct{}

func (tiltedHand) DetectHand(ctx context.Context, img image.Image) (*sim.HandSkeleton, error) {
	// Fingertip up and to the left of the wrist: a 76 degree tilt.
	return &sim.HandSkeleton{
		Wrist:     sim.Point2{X: 400, Y: 300},
		MiddleTip: sim.Point2{X: 370, Y: 180},
	}, nil
}

// failingHand fails every detection.
type failingHand struct{}

func (failingHand) DetectHand(context.Context, image.Image) (*sim.HandSkeleton, error) {
	return nil, errors.New("detector offline")
}

func testControllerName() resource.Name {
	return resource.NewName(resource.APINamespaceRDK.WithServiceType("generic"), "test")
}

func newTestLab(t *testing.T, conf *Config, clk clock.Clock, source frameSource, hands handDetector) *litmusLabController {
	t.Helper()
	if conf == nil {
		conf = &Config{Camera: "cam", FrameRateHz: 200}
	}
	ctrl := newLabController(testControllerName(), conf, logging.NewTestLogger(t), clk, source, hands)
	t.Cleanup(func() {
		if err := ctrl.Close(context.Background()); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return ctrl
}

// eventually polls cond every few milliseconds until it holds or the wait runs out.
func eventually(t *testing.T, wait time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
