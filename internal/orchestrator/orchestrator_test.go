package orchestrator

import (
	"context"
	"testing"

	"github.com/antigravity-dev/ccos/internal/causalchain"
	"github.com/antigravity-dev/ccos/internal/host"
	"github.com/antigravity-dev/ccos/internal/marketplace"
	"github.com/antigravity-dev/ccos/internal/values"
)

func newTestRig(t *testing.T, rctx *host.RuntimeContext) (*Orchestrator, *causalchain.CausalChain, *marketplace.Marketplace) {
	t.Helper()
	chain := causalchain.New()
	market := marketplace.New()
	if err := market.Register(&marketplace.Capability{
		ID:       "echo",
		Provider: marketplace.ProviderLocal,
		Local: func(ctx context.Context, args []values.Value) (values.Value, error) {
			return args[0], nil
		},
	}); err != nil {
		t.Fatalf("register echo: %v", err)
	}
	h := host.New(chain, market, rctx)
	return New(chain, h), chain, market
}

func lastActionType(chain *causalchain.CausalChain) causalchain.ActionType {
	actions := chain.SnapshotActions()
	if len(actions) == 0 {
		return ""
	}
	return actions[len(actions)-1].Type
}

func TestValidateAndExecutePlanEchoSucceeds(t *testing.T) {
	o, chain, _ := newTestRig(t, host.NewControlledContext("echo"))
	plan := Plan{ID: "p1", Body: PlanBody{Source: `(call :echo "hi")`}}

	result := o.ValidateAndExecutePlan(plan, host.NewControlledContext("echo"))
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Value.(values.Str) != "hi" {
		t.Fatalf("expected hi, got %v", result.Value)
	}
	if lastActionType(chain) != causalchain.ActionPlanCompleted {
		t.Fatalf("expected last action PlanCompleted, got %v", lastActionType(chain))
	}

	var sawStarted, sawCall, sawResult, sawCompleted bool
	for _, a := range chain.SnapshotActions() {
		switch a.Type {
		case causalchain.ActionPlanStarted:
			sawStarted = true
		case causalchain.ActionCapabilityCall:
			sawCall = true
		case causalchain.ActionCapabilityResult:
			sawResult = true
		case causalchain.ActionPlanCompleted:
			sawCompleted = true
		}
	}
	if !sawStarted || !sawCall || !sawResult || !sawCompleted {
		t.Fatalf("missing expected ledger actions: %+v", chain.SnapshotActions())
	}
}

func TestValidateAndExecutePlanRejectsDisallowedCapability(t *testing.T) {
	rctx := host.NewControlledContext("other")
	o, chain, _ := newTestRig(t, rctx)
	plan := Plan{ID: "p2", Body: PlanBody{Source: `(call :echo "hi")`}}

	result := o.ValidateAndExecutePlan(plan, rctx)
	if result.Success || result.Err == nil {
		t.Fatalf("expected validation failure, got %+v", result)
	}
	if len(chain.SnapshotActions()) != 0 {
		t.Fatalf("expected no ledger actions for a plan rejected at validation, got %v", chain.SnapshotActions())
	}
}

func TestValidateAndExecutePlanAppendsPlanAbortedOnRuntimeError(t *testing.T) {
	rctx := host.NewFullContext()
	o, chain, _ := newTestRig(t, rctx)
	// undefined-symbols reaches the runtime, not validation (no `call` site
	// to statically check), so this exercises the PlanAborted path.
	plan := Plan{ID: "p3", Body: PlanBody{Source: `(not-a-real-function 1)`}}

	result := o.ValidateAndExecutePlan(plan, rctx)
	if result.Success || result.Err == nil {
		t.Fatalf("expected runtime failure, got %+v", result)
	}
	if lastActionType(chain) != causalchain.ActionPlanAborted {
		t.Fatalf("expected PlanAborted, got %v", lastActionType(chain))
	}
}

func TestValidateAndExecutePlanWasmBodyUnsupported(t *testing.T) {
	rctx := host.NewFullContext()
	o, _, _ := newTestRig(t, rctx)
	plan := Plan{ID: "p4", Body: PlanBody{Wasm: []byte{0, 1, 2}}}

	result := o.ValidateAndExecutePlan(plan, rctx)
	if result.Err != ErrWasmUnsupported {
		t.Fatalf("expected ErrWasmUnsupported, got %v", result.Err)
	}
}

func TestPauseAndResumeAsk(t *testing.T) {
	rctx := host.NewControlledContext("echo", host.UserAskCapabilityID)
	o, chain, _ := newTestRig(t, rctx)
	plan := Plan{
		ID:   "p5",
		Body: PlanBody{Source: `(do (let {a (call :user.ask "name?")} (call :echo a)))`},
	}

	paused := o.ValidateAndExecutePlan(plan, rctx)
	if !paused.Paused || paused.CheckpointID == "" {
		t.Fatalf("expected a paused result with a checkpoint id, got %+v", paused)
	}
	if lastActionType(chain) != causalchain.ActionPlanPaused {
		t.Fatalf("expected last action PlanPaused, got %v", lastActionType(chain))
	}

	resumed := o.ResumeAndContinueFromCheckpoint(plan, rctx, paused.CheckpointID, values.Str("alice"))
	if !resumed.Success {
		t.Fatalf("expected resume to succeed, got %+v", resumed)
	}
	if resumed.Value.(values.Str) != "alice" {
		t.Fatalf("expected alice, got %v", resumed.Value)
	}
	if lastActionType(chain) != causalchain.ActionPlanCompleted {
		t.Fatalf("expected last action PlanCompleted after resume, got %v", lastActionType(chain))
	}
}

func TestResumeUnknownCheckpointFails(t *testing.T) {
	rctx := host.NewFullContext()
	o, _, _ := newTestRig(t, rctx)
	plan := Plan{ID: "p6", Body: PlanBody{Source: `(call :echo "hi")`}}

	result := o.ResumeAndContinueFromCheckpoint(plan, rctx, "does-not-exist", values.Str("x"))
	if result.Err != ErrNoCheckpoint {
		t.Fatalf("expected ErrNoCheckpoint, got %v", result.Err)
	}
}

func TestIRRunnerExecutesLetrecPlan(t *testing.T) {
	rctx := host.NewFullContext()
	chain := causalchain.New()
	market := marketplace.New()
	h := host.New(chain, market, rctx)
	o := New(chain, h, WithRunner(NewIRRunner()))

	plan := Plan{
		ID: "p7",
		Body: PlanBody{Source: `
			(letrec {is-even (fn [n] (if (= n 0) true (is-odd (- n 1))))
			         is-odd  (fn [n] (if (= n 0) false (is-even (- n 1))))}
			  (is-even 10))`},
	}
	result := o.ValidateAndExecutePlan(plan, rctx)
	if !result.Success || result.Value.(values.Boolean) != true {
		t.Fatalf("expected success with true, got %+v", result)
	}
}
