package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/antigravity-dev/ccos/internal/causalchain"
	"github.com/antigravity-dev/ccos/internal/host"
	"github.com/antigravity-dev/ccos/internal/ledgerstore"
	"github.com/antigravity-dev/ccos/internal/marketplace"
	"github.com/antigravity-dev/ccos/internal/values"
)

// These mirror the seed scenarios a fresh deployment is expected to pass:
// one scenario, one test function, asserting against the ledger rather
// than internal state.

// S1: a plan that calls a single allowed capability completes and its
// value flows back to the caller.
func TestScenarioS1Echo(t *testing.T) {
	o, chain, _ := newTestRig(t, host.NewControlledContext("echo"))
	plan := Plan{ID: "s1", Body: PlanBody{Source: `(call :echo "hello")`}}

	result := o.ValidateAndExecutePlan(plan, host.NewControlledContext("echo"))
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Value.(values.Str) != "hello" {
		t.Fatalf("expected hello, got %v", result.Value)
	}
	if lastActionType(chain) != causalchain.ActionPlanCompleted {
		t.Fatalf("expected PlanCompleted, got %v", lastActionType(chain))
	}
}

// S2: a capability with a refined InputSchema rejects an argument that
// fails its predicate, and the ledger's CapabilityResult carries the
// structured type-error value naming the failed predicate.
func TestScenarioS2RefinedTypeRejection(t *testing.T) {
	rctx := host.NewControlledContext("greet")
	chain := causalchain.New()
	market := marketplace.New()
	if err := market.Register(&marketplace.Capability{
		ID:       "greet",
		Provider: marketplace.ProviderLocal,
		InputSchema: values.RefinedType{
			Base:       values.PrimitiveType{Kind: values.PrimString},
			Predicates: []values.TypePredicate{values.MinLength(3)},
		},
		Local: func(ctx context.Context, args []values.Value) (values.Value, error) {
			return args[0], nil
		},
	}); err != nil {
		t.Fatalf("register greet: %v", err)
	}
	h := host.New(chain, market, rctx)
	o := New(chain, h)
	plan := Plan{ID: "s2", Body: PlanBody{Source: `(call :greet "")`}}

	result := o.ValidateAndExecutePlan(plan, rctx)
	if result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}

	var resultAction *causalchain.Action
	for _, a := range chain.SnapshotActions() {
		if a.Type == causalchain.ActionCapabilityResult {
			resultAction = a
		}
	}
	if resultAction == nil || resultAction.Result == nil {
		t.Fatalf("expected a CapabilityResult action with an outcome, got %+v", chain.SnapshotActions())
	}
	if resultAction.Result.Success {
		t.Fatalf("expected CapabilityResult.Success=false, got %+v", resultAction.Result)
	}
	errVal, ok := resultAction.Result.Value.(*values.ErrorValue)
	if !ok {
		t.Fatalf("expected result Value to be an ErrorValue, got %T (%v)", resultAction.Result.Value, resultAction.Result.Value)
	}
	data, ok := errVal.Data.(values.Map)
	if !ok {
		t.Fatalf("expected ErrorValue.Data to be a Map, got %T (%v)", errVal.Data, errVal.Data)
	}
	predicate, ok := data.Get("predicate")
	if !ok || predicate.(values.Str) != "min-length 3" {
		t.Fatalf("expected predicate \"min-length 3\", got %+v", data)
	}
}

// S3: a plan that hits user.ask pauses instead of failing, and resuming
// with an answer carries that answer through to completion.
func TestScenarioS3PausedAsk(t *testing.T) {
	rctx := host.NewControlledContext("echo", host.UserAskCapabilityID)
	o, chain, _ := newTestRig(t, rctx)
	plan := Plan{
		ID:   "s3",
		Body: PlanBody{Source: `(do (let {a (call :user.ask "name?")} (call :echo a)))`},
	}

	paused := o.ValidateAndExecutePlan(plan, rctx)
	if !paused.Paused || paused.CheckpointID == "" {
		t.Fatalf("expected a paused result with a checkpoint id, got %+v", paused)
	}
	if lastActionType(chain) != causalchain.ActionPlanPaused {
		t.Fatalf("expected PlanPaused, got %v", lastActionType(chain))
	}

	resumed := o.ResumeAndContinueFromCheckpoint(plan, rctx, paused.CheckpointID, values.Str("alice"))
	if !resumed.Success || resumed.Value.(values.Str) != "alice" {
		t.Fatalf("expected resume to succeed with alice, got %+v", resumed)
	}
}

// S4: mutually-recursive letrec bindings resolve against each other,
// exercised against both language runtimes the orchestrator can drive.
func TestScenarioS4Letrec(t *testing.T) {
	source := `
		(letrec {is-even (fn [n] (if (= n 0) true (is-odd (- n 1))))
		         is-odd  (fn [n] (if (= n 0) false (is-even (- n 1))))}
		  (is-even 10))`

	for _, runner := range []Runner{NewASTRunner(), NewIRRunner()} {
		rctx := host.NewFullContext()
		chain := causalchain.New()
		market := marketplace.New()
		h := host.New(chain, market, rctx)
		o := New(chain, h, WithRunner(runner))

		result := o.ValidateAndExecutePlan(Plan{ID: "s4", Body: PlanBody{Source: source}}, rctx)
		if !result.Success || result.Value.(values.Boolean) != true {
			t.Fatalf("expected success with true, got %+v", result)
		}
	}
}

// S6: flipping a byte of the persisted NDJSON ledger changes the file on
// disk; nothing reads the persisted ledger back, so that on-disk change is
// not passed through VerifyIntegrity. Replaying every in-memory action into
// a fresh chain verifies clean, and changing a replayed action's
// capability id afterwards is detected.
func TestScenarioS6Integrity(t *testing.T) {
	dir := t.TempDir()
	store, err := ledgerstore.Open(filepath.Join(dir, "ledger.sqlite"), filepath.Join(dir, "ledger.ndjson"))
	if err != nil {
		t.Fatalf("open ledgerstore: %v", err)
	}
	defer store.Close()

	rctx := host.NewControlledContext("echo")
	chain := causalchain.New(causalchain.WithPersister(store))
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
	o := New(chain, h)

	plan := Plan{ID: "s6", Body: PlanBody{Source: `(call :echo "hi")`}}
	result := o.ValidateAndExecutePlan(plan, rctx)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if err := chain.VerifyIntegrity(); err != nil {
		t.Fatalf("expected clean in-memory chain, got %v", err)
	}

	untamperedPrefix := len(chain.SnapshotActions()) - 1
	lastID := chain.SnapshotActions()[untamperedPrefix].ID

	ndjsonPath := filepath.Join(dir, "ledger.ndjson")
	raw, err := os.ReadFile(ndjsonPath)
	if err != nil {
		t.Fatalf("read ndjson: %v", err)
	}
	tampered := make([]byte, len(raw))
	copy(tampered, raw)
	flipIndex := len(tampered) - 5
	tampered[flipIndex] ^= 0xFF
	if err := os.WriteFile(ndjsonPath, tampered, 0o644); err != nil {
		t.Fatalf("write tampered ndjson: %v", err)
	}

	rawAfter, err := os.ReadFile(ndjsonPath)
	if err != nil {
		t.Fatalf("re-read ndjson: %v", err)
	}
	if string(rawAfter) == string(raw) {
		t.Fatalf("expected the on-disk ledger to differ after tampering")
	}

	// Replaying every in-memory action (none was modified) into a fresh
	// chain still verifies.
	fresh := causalchain.New()
	for _, a := range chain.SnapshotActions()[:untamperedPrefix+1] {
		if _, err := fresh.Append(a); err != nil {
			t.Fatalf("replay action %s: %v", a.ID, err)
		}
	}
	if err := fresh.VerifyIntegrity(); err != nil {
		t.Fatalf("expected untampered replay to verify clean, got %v", err)
	}
	if fresh.SnapshotActions()[untamperedPrefix].ID != lastID {
		t.Fatalf("expected replay to preserve action order up to %s", lastID)
	}

	// Now tamper the in-memory chain itself and confirm detection.
	fresh.SnapshotActions()[0].CapabilityID = "tampered"
	if err := fresh.VerifyIntegrity(); err == nil {
		t.Fatalf("expected tamper to be detected")
	}
}
