package litmuslab

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/logging"

	"litmuslab/internal/framebuf"
	"litmuslab/internal/lease"
	"litmuslab/internal/sim"
)

const (
	// warnEvery throttles repeated per-tick warnings.
	warnEvery = 30
	// debugEvery is how often the frame counters are logged.
	debugEvery = 30
)

// producer is the render loop for one lease run. It owns the capture device
// from acquiring the device slot until it returns.
type producer struct {
	logger logging.Logger
	clock  clock.Clock

	coord  *lease.Coordinator
	frames *framebuf.Buffer
	device chan struct{}

	source frameSource
	hands  handDetector

	simCfg sim.Config
	mirror bool
	period time.Duration

	runID    string
	released <-chan struct{}

	// onDeviceError records a device-open failure for status reporting.
	onDeviceError func(error)
}

// run drives the loop until ctx is cancelled, the lease for runID ends, or the
// device cannot be opened. In the last case the loop publishes the error frame,
// leaves it in the buffer and returns its sequence number.
func (p *producer) run(ctx context.Context) (errorFrameSeq uint64) {
	select {
	case p.device <- struct{}{}:
	case <-ctx.Done():
		return 0
	case <-p.released:
		return 0
	}
	defer func() { <-p.device }()

	p.logger.Infof("render loop starting (run %s, %v per tick)", p.runID, p.period)

	defer func() {
		if errorFrameSeq == 0 {
			p.frames.Clear()
		}
		p.logger.Infof("render loop stopped (run %s)", p.runID)
	}()

	sel, ok := p.coord.Tick(p.runID)
	if !ok {
		return 0
	}
	scene, err := sim.NewScene(p.simCfg, sel)
	if err != nil {
		p.logger.Errorf("building scene: %v", err)
		return 0
	}

	// The first read stands in for opening the device.
	raw, err := p.source.ReadFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		err = fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
		p.logger.Errorf("opening capture device: %v", err)
		if p.onDeviceError != nil {
			p.onDeviceError(err)
		}
		return p.frames.Publish(framebuf.Frame{
			At:    p.clock.Now(),
			Image: sim.ErrorFrame(p.simCfg.FrameWidth, p.simCfg.FrameHeight),
		})
	}

	ticker := p.clock.Ticker(p.period)
	defer ticker.Stop()

	last := p.clock.Now()
	readFailures, detectFailures := 0, 0
	for {
		now := p.clock.Now()
		dt := now.Sub(last)
		last = now

		if raw != nil {
			frame := prepareFrame(raw, p.mirror, p.simCfg.FrameWidth, p.simCfg.FrameHeight)
			hand, err := p.hands.DetectHand(ctx, frame)
			if err != nil {
				if detectFailures%warnEvery == 0 {
					p.logger.Warnf("skipping tick, hand detection failed (%d in a row): %v", detectFailures+1, err)
				}
				detectFailures++
			} else {
				detectFailures = 0
				p.render(scene, frame, hand, sel.Epoch, dt)
			}
		}

		select {
		case <-ctx.Done():
			return 0
		case <-p.released:
			return 0
		case <-ticker.C:
		}

		sel, ok = p.coord.Tick(p.runID)
		if !ok {
			return 0
		}
		scene.Apply(sel)

		raw, err = p.source.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return 0
			}
			if readFailures%warnEvery == 0 {
				p.logger.Warnf("skipping tick, frame read failed (%d in a row): %v", readFailures+1, err)
			}
			readFailures++
			raw = nil
			continue
		}
		readFailures = 0
	}
}

func (p *producer) render(scene *sim.Scene, frame *image.RGBA, hand *sim.HandSkeleton, epoch uint64, dt time.Duration) {
	res := scene.Step(frame, hand, dt)
	if res.JustTriggered {
		p.coord.MarkTriggered(p.runID, epoch)
	}
	seq := p.frames.Publish(framebuf.Frame{
		At:        p.clock.Now(),
		Image:     frame,
		Angle:     res.Angle,
		Level:     res.Level,
		Pouring:   res.Pouring,
		Triggered: res.Triggered,
	})
	if seq%debugEvery == 0 {
		st := p.frames.Stats()
		p.logger.Debugf("frame %d: angle %.1f level %.3f pouring %v (overwritten %d)",
			seq, res.Angle, res.Level, res.Pouring, st.Overwritten)
	}
}
