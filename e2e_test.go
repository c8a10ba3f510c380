//go:build e2e

package litmuslab

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/goleak"
)

// TestE2E_ScriptedPourCompletesReaction runs the full render loop at the
// default frame rate with the scripted hand, then hands the bench over to a
// second operator after the first one goes silent.
func TestE2E_ScriptedPourCompletesReaction(t *testing.T) {
	ctrl := newTestLab(t, &Config{Camera: "cam", UseSimulatedHand: true, LeaseTimeoutSec: 2}, clock.New(), &fakeFrameSource{}, newSimulatedHandDetector())
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx := context.Background()

	if _, err := ctrl.DoCommand(ctx, map[string]interface{}{"command": "start", "requester": "alice", "indicator": "red"}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := ctrl.DoCommand(ctx, map[string]interface{}{"command": "set_chemical", "requester": "alice", "chemical_id": "NaOH"}); err != nil {
		t.Fatalf("set_chemical failed: %v", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for ctrl.GetState()["triggered"] != true {
		if time.Now().After(deadline) {
			t.Fatalf("reaction never completed: %v", ctrl.GetState())
		}
		if _, err := ctrl.DoCommand(ctx, map[string]interface{}{"command": "heartbeat", "requester": "alice"}); err != nil {
			t.Fatalf("heartbeat failed: %v", err)
		}
		if _, err := ctrl.DoCommand(ctx, map[string]interface{}{"command": "frame", "timeout_ms": 1000.0}); err != nil {
			t.Fatalf("frame failed: %v", err)
		}
	}

	// Alice walks away; the watchdog frees the bench for bob.
	eventually(t, 10*time.Second, "lease to expire", func() bool {
		_, err := ctrl.DoCommand(ctx, map[string]interface{}{"command": "start", "requester": "bob", "indicator": "blue"})
		return err == nil
	})
	if _, err := ctrl.DoCommand(ctx, map[string]interface{}{"command": "stop", "requester": "bob"}); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := ctrl.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
