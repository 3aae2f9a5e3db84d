package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antigravity-dev/ccos/internal/causalchain"
	"github.com/antigravity-dev/ccos/internal/marketplace"
	"github.com/antigravity-dev/ccos/internal/runtimeerr"
	"github.com/antigravity-dev/ccos/internal/values"
)

// UserAskCapabilityID is the well-known capability that pauses plan
// execution pending a human answer.
const UserAskCapabilityID = "user.ask"

// ErrPlanPaused is returned by ExecuteCapability when the plan hits
// user.ask; the orchestrator catches this, persists a checkpoint, and
// suspends the plan instead of treating it as a failure.
var ErrPlanPaused = errors.New("host: plan paused awaiting user input")

// PauseState carries everything the orchestrator needs to resume a plan
// after a user.ask pause.
type PauseState struct {
	Question     values.Value
	ActionID     string
}

// Host mediates every capability call the evaluator/IR runtime makes,
// enforcing the RuntimeContext security boundary and recording a
// CapabilityCall/CapabilityResult action pair around each dispatch.
type Host struct {
	chain       *causalchain.CausalChain
	market      *marketplace.Marketplace
	rctx        *RuntimeContext
	planID      string
	intentIDs   []string
	rootActionID string

	lastPause *PauseState
}

func New(chain *causalchain.CausalChain, market *marketplace.Marketplace, rctx *RuntimeContext) *Host {
	return &Host{chain: chain, market: market, rctx: rctx}
}

// SetExecutionContext scopes subsequent capability calls to a plan/intent
// chain, so every appended action carries the right IDs.
func (h *Host) SetExecutionContext(planID string, intentIDs []string, rootActionID string) {
	h.planID = planID
	h.intentIDs = intentIDs
	h.rootActionID = rootActionID
}

// ClearExecutionContext resets plan/intent scoping, e.g. between plans.
func (h *Host) ClearExecutionContext() {
	h.planID = ""
	h.intentIDs = nil
	h.rootActionID = ""
}

func (h *Host) intentID() string {
	if len(h.intentIDs) == 0 {
		return ""
	}
	return h.intentIDs[len(h.intentIDs)-1]
}

// ExecuteCapability is the single security-checked entry point capability
// calls flow through: it verifies the RuntimeContext allows the call,
// appends a CapabilityCall action, dispatches to the marketplace, and
// appends the matching CapabilityResult action.
func (h *Host) ExecuteCapability(id string, args []values.Value) (values.Value, error) {
	if !h.rctx.Allows(id) {
		return nil, fmt.Errorf("host: capability %q denied by runtime context (security level %s)", id, h.rctx.SecurityLevel)
	}

	call, err := h.chain.Append(&causalchain.Action{
		ParentActionID: h.rootActionID,
		IntentID:       h.intentID(),
		PlanID:         h.planID,
		Type:           causalchain.ActionCapabilityCall,
		CapabilityID:   id,
		Args:           args,
	})
	if err != nil {
		return nil, fmt.Errorf("host: record capability call: %w", err)
	}

	if id == UserAskCapabilityID {
		return h.pause(call, args)
	}

	start := time.Now()
	result, execErr := h.market.Execute(context.Background(), id, args)
	duration := time.Since(start).Milliseconds()

	outcome := causalchain.ExecutionResult{Success: execErr == nil, DurationMS: duration}
	if execErr != nil {
		outcome.Error = execErr.Error()
		if rerr, ok := execErr.(*runtimeerr.Error); ok {
			outcome.Value = rerr.ToValue()
		}
	} else {
		outcome.Value = result
	}
	if _, err := h.chain.RecordResult(call, outcome); err != nil {
		return nil, fmt.Errorf("host: record capability result: %w", err)
	}
	if execErr != nil {
		return nil, execErr
	}
	return result, nil
}

func (h *Host) pause(call *causalchain.Action, args []values.Value) (values.Value, error) {
	var question values.Value = values.Nil{}
	if len(args) > 0 {
		question = args[0]
	}
	pauseAction, err := h.chain.Append(&causalchain.Action{
		ParentActionID: call.ID,
		IntentID:       h.intentID(),
		PlanID:         h.planID,
		Type:           causalchain.ActionPlanPaused,
		CapabilityID:   UserAskCapabilityID,
	})
	if err != nil {
		return nil, fmt.Errorf("host: record plan-paused action: %w", err)
	}
	h.lastPause = &PauseState{Question: question, ActionID: pauseAction.ID}
	return nil, ErrPlanPaused
}

// LastPause returns the most recent pause state, if any, for the
// orchestrator to build a checkpoint from.
func (h *Host) LastPause() *PauseState { return h.lastPause }

// LogStep implements eval.Host: it records a log-step action and appends a
// structured line to the chain's bounded log buffer.
func (h *Host) LogStep(level string, vals []values.Value) {
	meta := values.Map{values.KeywordKey("level"): values.Keyword(level)}
	h.chain.Append(&causalchain.Action{
		ParentActionID: h.rootActionID,
		IntentID:       h.intentID(),
		PlanID:         h.planID,
		Type:           causalchain.ActionLogStep,
		Metadata:       meta,
	})
}

// SnapshotActions returns every action appended so far.
func (h *Host) SnapshotActions() []*causalchain.Action { return h.chain.SnapshotActions() }

// GetCapabilityMetrics returns the aggregate metrics for one capability.
func (h *Host) GetCapabilityMetrics(id string) (causalchain.CapabilityMetrics, bool) {
	return h.chain.CapabilityMetrics(id)
}

// GetFunctionMetrics returns the aggregate metrics for one function name.
func (h *Host) GetFunctionMetrics(name string) (causalchain.FunctionMetrics, bool) {
	return h.chain.FunctionMetrics(name)
}

// GetRecentLogs returns up to n of the most recent structured log lines.
func (h *Host) GetRecentLogs(n int) []string { return h.chain.RecentLogs(n) }

// RecordDelegationEvent appends a DelegationEvent action, used when the
// orchestrator hands a sub-goal to another agent.
func (h *Host) RecordDelegationEvent(intentID, kind string, metadata values.Map) error {
	merged := make(values.Map, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged[values.KeywordKey("kind")] = values.Str(kind)
	_, err := h.chain.Append(&causalchain.Action{
		IntentID: intentID,
		PlanID:   h.planID,
		Type:     causalchain.ActionDelegation,
		Metadata: merged,
	})
	if err != nil {
		return fmt.Errorf("host: record delegation event (%s): %w", kind, err)
	}
	return nil
}
