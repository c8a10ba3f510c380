package litmuslab

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/vision"
	goutils "go.viam.com/utils"

	"litmuslab/internal/chem"
	"litmuslab/internal/framebuf"
	"litmuslab/internal/lease"
	"litmuslab/internal/sim"
)

var Controller = resource.NewModel("viamdemo", "litmus-lab", "controller")

// ErrResourceUnavailable means the capture device could not be opened.
var ErrResourceUnavailable = pkgerrors.New("capture device unavailable")

func init() {
	resource.RegisterService(generic.API, Controller,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newLitmusLabController,
		},
	)
}

const (
	defaultFrameRateHz    = 30.0
	defaultLeaseTimeout   = 10 * time.Second
	defaultFrameTimeout   = 2 * time.Second
	defaultWristLabel     = "wrist"
	defaultFingertipLabel = "middle_finger_tip"
	jpegQuality           = 80
)

type Config struct {
	Camera           string  `json:"camera"`                       // REQUIRED: camera component supplying frames
	HandDetector     string  `json:"hand_detector,omitempty"`      // vision service labelling hand keypoints
	UseSimulatedHand bool    `json:"use_simulated_hand,omitempty"` // scripted tilt sweep instead of a detector
	FrameRateHz      float64 `json:"frame_rate_hz,omitempty"`
	LeaseTimeoutSec  float64 `json:"lease_timeout_sec,omitempty"`
	PourThresholdDeg float64 `json:"pour_threshold_deg,omitempty"`
	DrainPerTick     float64 `json:"drain_per_tick,omitempty"`
	Mirror           *bool   `json:"mirror,omitempty"` // default true
	WristLabel       string  `json:"wrist_label,omitempty"`
	FingertipLabel   string  `json:"fingertip_label,omitempty"`
}

func (cfg *Config) Validate(path string) ([]string, []string, error) {
	var err error
	if cfg.Camera == "" {
		err = multierr.Append(err, fmt.Errorf("%s: camera is required", path))
	}
	if cfg.HandDetector != "" && cfg.UseSimulatedHand {
		err = multierr.Append(err, fmt.Errorf("%s: hand_detector and use_simulated_hand are exclusive", path))
	}
	if cfg.FrameRateHz < 0 {
		err = multierr.Append(err, fmt.Errorf("%s: frame_rate_hz must not be negative", path))
	}
	if cfg.LeaseTimeoutSec < 0 {
		err = multierr.Append(err, fmt.Errorf("%s: lease_timeout_sec must not be negative", path))
	}
	if cfg.PourThresholdDeg < 0 || cfg.PourThresholdDeg >= sim.MaxTiltDeg {
		err = multierr.Append(err, fmt.Errorf("%s: pour_threshold_deg must be in (0,%v)", path, sim.MaxTiltDeg))
	}
	if cfg.DrainPerTick < 0 || cfg.DrainPerTick > 1 {
		err = multierr.Append(err, fmt.Errorf("%s: drain_per_tick must be in [0,1]", path))
	}
	if err != nil {
		return nil, nil, err
	}

	deps := []string{cfg.Camera}
	if cfg.HandDetector != "" {
		deps = append(deps, cfg.HandDetector)
	}
	return deps, nil, nil
}

func (cfg *Config) simConfig() sim.Config {
	sc := sim.DefaultConfig()
	if cfg.PourThresholdDeg > 0 {
		sc.Tube.PourThreshold = cfg.PourThresholdDeg
	}
	if cfg.DrainPerTick > 0 {
		sc.Tube.DrainPerTick = cfg.DrainPerTick
	}
	return sc
}

func (cfg *Config) framePeriod() time.Duration {
	hz := cfg.FrameRateHz
	if hz <= 0 {
		hz = defaultFrameRateHz
	}
	return time.Duration(float64(time.Second) / hz)
}

func (cfg *Config) leaseTimeout() time.Duration {
	if cfg.LeaseTimeoutSec <= 0 {
		return defaultLeaseTimeout
	}
	return time.Duration(cfg.LeaseTimeoutSec * float64(time.Second))
}

func (cfg *Config) mirror() bool {
	return cfg.Mirror == nil || *cfg.Mirror
}

type litmusLabController struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger
	cfg    *Config
	clock  clock.Clock

	coord  *lease.Coordinator
	frames *framebuf.Buffer
	source frameSource
	hands  handDetector
	simCfg sim.Config
	// device admits one render loop at a time to the camera.
	device chan struct{}

	mu          sync.Mutex
	deviceError error

	workers    sync.WaitGroup
	cancelCtx  context.Context
	cancelFunc func()
}

func newLitmusLabController(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	return NewController(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewController(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	cam, err := camera.FromDependencies(deps, conf.Camera)
	if err != nil {
		return nil, fmt.Errorf("getting camera: %w", err)
	}

	var hands handDetector
	switch {
	case conf.UseSimulatedHand:
		hands = newSimulatedHandDetector()
		logger.Infof("litmus-lab using simulated hand (use_simulated_hand=true)")
	case conf.HandDetector != "":
		svc, err := vision.FromDependencies(deps, conf.HandDetector)
		if err != nil {
			return nil, fmt.Errorf("getting hand_detector vision service: %w", err)
		}
		hands = newVisionHandDetector(svc, conf.WristLabel, conf.FingertipLabel)
		logger.Infof("litmus-lab detecting hands with %q", conf.HandDetector)
	default:
		hands = noHandDetector{}
		logger.Warnf("litmus-lab has no hand source; the tube will stay upright")
	}

	return newLabController(name, conf, logger, clock.New(), newCameraFrameSource(cam), hands), nil
}

func newLabController(name resource.Name, conf *Config, logger logging.Logger, clk clock.Clock, source frameSource, hands handDetector) *litmusLabController {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &litmusLabController{
		name:       name,
		logger:     logger,
		cfg:        conf,
		clock:      clk,
		coord:      lease.NewCoordinator(clk, conf.leaseTimeout(), logger),
		frames:     framebuf.New(framebuf.DefaultPollInterval),
		source:     source,
		hands:      hands,
		simCfg:     conf.simConfig(),
		device:     make(chan struct{}, 1),
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
}

func (s *litmusLabController) Name() resource.Name {
	return s.name
}

func (s *litmusLabController) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	command, ok := cmd["command"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'command' field")
	}

	switch command {
	case "start":
		return s.handleStart(cmd)
	case "stop":
		return s.handleStop(cmd)
	case "heartbeat":
		return s.handleHeartbeat(cmd)
	case "status":
		return s.handleStatus(cmd)
	case "set_substance":
		return s.handleSetSubstance(cmd)
	case "set_chemical":
		return s.handleSetChemical(cmd)
	case "set_indicator":
		return s.handleSetIndicator(cmd)
	case "frame":
		return s.handleFrame(ctx, cmd)
	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
}

func stringArg(cmd map[string]interface{}, key string) (string, error) {
	v, ok := cmd[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing or invalid '%s' field", key)
	}
	return v, nil
}

func (s *litmusLabController) handleStart(cmd map[string]interface{}) (map[string]interface{}, error) {
	requester, err := stringArg(cmd, "requester")
	if err != nil {
		return nil, err
	}
	raw, err := stringArg(cmd, "indicator")
	if err != nil {
		return nil, err
	}
	indicator, err := chem.ParseIndicator(raw)
	if err != nil {
		return nil, err
	}

	grant, err := s.coord.Start(requester, indicator)
	if err != nil {
		return nil, err
	}
	if !grant.Fresh {
		return map[string]interface{}{"status": "updated", "run_id": grant.RunID}, nil
	}

	if err := s.launch(grant); err != nil {
		return nil, multierr.Combine(err, s.coord.Stop(requester))
	}
	return map[string]interface{}{"status": "started", "run_id": grant.RunID}, nil
}

// launch starts the render loop for a freshly granted lease.
func (s *litmusLabController) launch(grant lease.Grant) error {
	if err := s.cancelCtx.Err(); err != nil {
		return fmt.Errorf("controller is closed: %w", err)
	}

	s.mu.Lock()
	s.deviceError = nil
	s.mu.Unlock()

	p := &producer{
		logger:   s.logger,
		clock:    s.clock,
		coord:    s.coord,
		frames:   s.frames,
		device:   s.device,
		source:   s.source,
		hands:    s.hands,
		simCfg:   s.simCfg,
		mirror:   s.cfg.mirror(),
		period:   s.cfg.framePeriod(),
		runID:    grant.RunID,
		released: grant.Released,
		onDeviceError: func(err error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.deviceError = err
		},
	}

	s.workers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer s.workers.Done()
		seq := p.run(s.cancelCtx)
		if seq == 0 {
			return
		}
		// The loop is over; the error frame stays up until the session ends.
		select {
		case <-grant.Released:
		case <-s.cancelCtx.Done():
		}
		s.frames.ClearIf(seq)
	})
	return nil
}

func (s *litmusLabController) handleStop(cmd map[string]interface{}) (map[string]interface{}, error) {
	requester, err := stringArg(cmd, "requester")
	if err != nil {
		return nil, err
	}
	if err := s.coord.Stop(requester); err != nil {
		return nil, err
	}
	return map[string]interface{}{"status": "stopped"}, nil
}

func (s *litmusLabController) handleHeartbeat(cmd map[string]interface{}) (map[string]interface{}, error) {
	requester, err := stringArg(cmd, "requester")
	if err != nil {
		return nil, err
	}
	s.coord.Heartbeat(requester)
	return map[string]interface{}{"status": "ok"}, nil
}

func (s *litmusLabController) handleStatus(cmd map[string]interface{}) (map[string]interface{}, error) {
	requester, err := stringArg(cmd, "requester")
	if err != nil {
		return nil, err
	}
	return s.state(requester), nil
}

func (s *litmusLabController) handleSetSubstance(cmd map[string]interface{}) (map[string]interface{}, error) {
	requester, err := stringArg(cmd, "requester")
	if err != nil {
		return nil, err
	}
	raw, err := stringArg(cmd, "substance")
	if err != nil {
		return nil, err
	}
	sub, err := chem.ParseSubstance(raw)
	if err != nil {
		return nil, err
	}
	if err := s.coord.SetSubstance(requester, sub); err != nil {
		return nil, err
	}
	return map[string]interface{}{"status": "ok", "substance": string(sub)}, nil
}

func (s *litmusLabController) handleSetChemical(cmd map[string]interface{}) (map[string]interface{}, error) {
	requester, err := stringArg(cmd, "requester")
	if err != nil {
		return nil, err
	}
	id, err := stringArg(cmd, "chemical_id")
	if err != nil {
		return nil, err
	}
	c, err := s.coord.SetChemical(requester, id)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status":      "ok",
		"chemical_id": c.ID,
		"label":       c.Label,
		"formula":     c.Formula,
		"substance":   string(c.Type),
	}, nil
}

func (s *litmusLabController) handleSetIndicator(cmd map[string]interface{}) (map[string]interface{}, error) {
	requester, err := stringArg(cmd, "requester")
	if err != nil {
		return nil, err
	}
	raw, err := stringArg(cmd, "indicator")
	if err != nil {
		return nil, err
	}
	ind, err := chem.ParseIndicator(raw)
	if err != nil {
		return nil, err
	}
	if err := s.coord.SetIndicator(requester, ind); err != nil {
		return nil, err
	}
	return map[string]interface{}{"status": "ok", "indicator": string(ind)}, nil
}

// handleFrame waits for a frame newer than after_seq and returns it as base64 JPEG.
func (s *litmusLabController) handleFrame(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	timeout := defaultFrameTimeout
	if ms, ok := cmd["timeout_ms"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	var after uint64
	if seq, ok := cmd["after_seq"].(float64); ok && seq > 0 {
		after = uint64(seq)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	f, err := s.frames.Wait(waitCtx, after)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("no frame within %v: %w", timeout, err)
		}
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, f.Image, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encoding frame %d: %w", f.Seq, err)
	}
	return map[string]interface{}{
		"seq":       f.Seq,
		"width":     f.Image.Bounds().Dx(),
		"height":    f.Image.Bounds().Dy(),
		"mime_type": "image/jpeg",
		"image":     base64.StdEncoding.EncodeToString(buf.Bytes()),
		"triggered": f.Triggered,
	}, nil
}

// state is the lease status as requester sees it plus the latest frame's telemetry.
func (s *litmusLabController) state(requester string) map[string]interface{} {
	st := s.coord.Status(requester)
	result := map[string]interface{}{
		"active":      st.Active,
		"is_owner":    st.IsOwner,
		"run_id":      st.RunID,
		"indicator":   string(st.Indicator),
		"substance":   string(st.Substance),
		"chemical_id": st.ChemicalID,
		"triggered":   st.Triggered,
	}
	if st.Active {
		result["heartbeat_age_sec"] = st.IdleFor.Seconds()
	}

	stats := s.frames.Stats()
	result["frames_published"] = stats.Published
	result["frames_overwritten"] = stats.Overwritten
	if f, ok := s.frames.Peek(); ok {
		result["frame_seq"] = f.Seq
		result["frame_age_sec"] = s.clock.Since(f.At).Seconds()
		result["tilt_angle"] = f.Angle
		result["liquid_level"] = f.Level
		result["pouring"] = f.Pouring
	}

	if err := s.deviceErr(); err != nil {
		result["camera_error"] = err.Error()
	}
	return result
}

func (s *litmusLabController) deviceErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceError
}

// GetState returns the session state for the status sensor.
func (s *litmusLabController) GetState() map[string]interface{} {
	return s.state("")
}

func (s *litmusLabController) Close(context.Context) error {
	s.cancelFunc()
	s.workers.Wait()
	return nil
}
