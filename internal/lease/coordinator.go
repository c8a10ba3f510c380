// Package lease arbitrates the single capture-and-render loop between
// competing operators. One requester at a time owns the session; the owner
// keeps it alive with heartbeats and a watchdog reclaims it when they vanish.
package lease

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"litmuslab/internal/chem"
	"litmuslab/internal/sim"
)

var (
	// ErrConflict is returned when a different, live owner holds the lease.
	ErrConflict = errors.New("lease held by another requester")
	// ErrForbidden is returned when a non-owner tries to stop or steer the session.
	ErrForbidden = errors.New("requester does not hold the lease")
	// ErrIdle is returned for owner-only operations while no lease is held.
	ErrIdle = errors.New("no active lease")
)

// DefaultTimeout is how long an owner may go without a heartbeat.
const DefaultTimeout = 10 * time.Second

// Grant is the result of a successful Start.
type Grant struct {
	RunID string
	// Fresh is true when Start acquired the lease, false when the current owner
	// only updated its parameters. Only a fresh grant may open the capture device.
	Fresh bool
	// Released is closed once this run loses the lease, whatever the reason.
	Released <-chan struct{}
}

// Status is a snapshot of the lease as seen by one requester.
type Status struct {
	Active     bool
	IsOwner    bool
	RunID      string
	Indicator  chem.Indicator
	Substance  chem.Substance
	ChemicalID string
	Triggered  bool
	// IdleFor is the time since the owner's last heartbeat.
	IdleFor time.Duration
}

// Coordinator is the session state machine. Every transition, the watchdog
// included, happens under one mutex.
type Coordinator struct {
	clock   clock.Clock
	timeout time.Duration
	logger  logging.Logger

	mu            sync.Mutex
	active        bool
	owner         string
	runID         string
	released      chan struct{}
	lastHeartbeat time.Time
	indicator     chem.Indicator
	substance     chem.Substance
	chemicalID    string
	epoch         uint64
	triggered     bool
}

// NewCoordinator returns an idle coordinator. A nil clock means wall time and a
// non-positive timeout means DefaultTimeout.
func NewCoordinator(clk clock.Clock, timeout time.Duration, logger logging.Logger) *Coordinator {
	if clk == nil {
		clk = clock.New()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		clock:     clk,
		timeout:   timeout,
		logger:    logger,
		substance: chem.SubstanceNeutral,
	}
}

// Timeout is the heartbeat timeout the watchdog enforces.
func (c *Coordinator) Timeout() time.Duration { return c.timeout }

// Start acquires the lease for requester, or updates the indicator if requester
// already owns it. Start counts as the owner's first heartbeat.
func (c *Coordinator) Start(requester string, indicator chem.Indicator) (Grant, error) {
	if requester == "" {
		return Grant{}, fmt.Errorf("requester is required: %w", ErrForbidden)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.expireLocked(now)

	if c.active && c.owner == requester {
		if indicator != c.indicator {
			c.indicator = indicator
			c.resetReactionLocked()
		}
		c.lastHeartbeat = now
		return Grant{RunID: c.runID, Fresh: false, Released: c.released}, nil
	}
	if c.active {
		return Grant{}, fmt.Errorf("start by %q: %w", requester, ErrConflict)
	}

	c.active = true
	c.owner = requester
	c.runID = uuid.NewString()
	c.released = make(chan struct{})
	c.lastHeartbeat = now
	c.indicator = indicator
	c.substance = chem.SubstanceNeutral
	c.chemicalID = ""
	c.resetReactionLocked()

	c.logger.Infof("lease acquired by %q (run %s, %s paper)", requester, c.runID, indicator)
	return Grant{RunID: c.runID, Fresh: true, Released: c.released}, nil
}

// Stop releases the lease. Stopping an idle or expired session is a no-op.
func (c *Coordinator) Stop(requester string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked(c.clock.Now())
	if !c.active {
		return nil
	}
	if c.owner != requester {
		return fmt.Errorf("stop by %q: %w", requester, ErrForbidden)
	}
	c.logger.Infof("lease released by %q (run %s)", requester, c.runID)
	c.releaseLocked()
	return nil
}

// Heartbeat refreshes the owner's lease. Anyone else is ignored.
func (c *Coordinator) Heartbeat(requester string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.expireLocked(now)
	if c.active && c.owner == requester {
		c.lastHeartbeat = now
	}
}

// Status reports the lease as requester sees it.
func (c *Coordinator) Status(requester string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.expireLocked(now)
	st := Status{
		Active:     c.active,
		IsOwner:    c.active && requester != "" && c.owner == requester,
		Indicator:  c.indicator,
		Substance:  c.substance,
		ChemicalID: c.chemicalID,
		Triggered:  c.triggered,
	}
	if c.active {
		st.RunID = c.runID
		st.IdleFor = now.Sub(c.lastHeartbeat)
	}
	return st
}

// SetSubstance changes the liquid. The reaction latch is left alone.
func (c *Coordinator) SetSubstance(requester string, sub chem.Substance) error {
	return c.mutate(requester, func() {
		c.substance = sub
		c.chemicalID = ""
	})
}

// SetChemical selects a registry chemical, which sets the substance to its type.
func (c *Coordinator) SetChemical(requester, id string) (chem.Chemical, error) {
	chemical, err := chem.LookupChemical(id)
	if err != nil {
		return chem.Chemical{}, err
	}
	err = c.mutate(requester, func() {
		c.substance = chemical.Type
		c.chemicalID = chemical.ID
	})
	return chemical, err
}

// SetIndicator swaps the paper. Only an actual change restarts the reaction;
// selecting the current indicator again is a no-op.
func (c *Coordinator) SetIndicator(requester string, ind chem.Indicator) error {
	return c.mutate(requester, func() {
		if ind == c.indicator {
			return
		}
		c.indicator = ind
		c.resetReactionLocked()
	})
}

func (c *Coordinator) mutate(requester string, apply func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked(c.clock.Now())
	if !c.active {
		return ErrIdle
	}
	if c.owner != requester {
		return fmt.Errorf("%q is not the owner: %w", requester, ErrForbidden)
	}
	apply()
	return nil
}

// Tick is the producer loop's once-per-frame check-in. It runs the watchdog and
// returns the selection to render. ok is false once runID no longer holds the
// lease, and the loop must then exit.
func (c *Coordinator) Tick(runID string) (sel sim.Selection, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked(c.clock.Now())
	if !c.active || c.runID != runID {
		return sim.Selection{}, false
	}
	return sim.Selection{Indicator: c.indicator, Substance: c.substance, Epoch: c.epoch}, true
}

// MarkTriggered records that the reaction for (runID, epoch) fired. Reports
// from a stale run or a reset reaction are dropped.
func (c *Coordinator) MarkTriggered(runID string, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.runID != runID || c.epoch != epoch {
		return false
	}
	if !c.triggered {
		c.logger.Infof("reaction complete: %s paper, %s liquid (run %s)", c.indicator, c.substance, runID)
	}
	c.triggered = true
	return true
}

func (c *Coordinator) resetReactionLocked() {
	c.triggered = false
	c.epoch++
}

// expireLocked is the watchdog: an owner silent for longer than the timeout
// loses the lease exactly as if they had called Stop.
func (c *Coordinator) expireLocked(now time.Time) {
	if !c.active || c.lastHeartbeat.IsZero() {
		return
	}
	if now.Sub(c.lastHeartbeat) <= c.timeout {
		return
	}
	c.logger.Warnf("lease of %q expired after %s without heartbeat (run %s)", c.owner, now.Sub(c.lastHeartbeat), c.runID)
	c.releaseLocked()
}

func (c *Coordinator) releaseLocked() {
	close(c.released)
	c.released = nil
	c.active = false
	c.owner = ""
	c.runID = ""
	c.lastHeartbeat = time.Time{}
	c.triggered = false
	c.epoch++
}
