package temporalrt

import (
	"context"
	"fmt"

	"github.com/antigravity-dev/ccos/internal/host"
	"github.com/antigravity-dev/ccos/internal/marketplace"
	"github.com/antigravity-dev/ccos/internal/orchestrator"
)

// Activities wraps one Orchestrator (and the RuntimeContext every plan in
// this deployment runs under) so the activity methods can be registered on
// a Temporal worker as bound methods.
type Activities struct {
	Orchestrator *orchestrator.Orchestrator
	RuntimeCtx   *host.RuntimeContext
}

// ExecutePlanActivity runs ValidateAndExecutePlan once; the workflow
// inspects the returned outcome plus paused/checkpoint fields and decides
// whether to park on a signal channel.
func (a *Activities) ExecutePlanActivity(ctx context.Context, req PlanRequest) (activityOutcome, error) {
	plan := orchestrator.Plan{ID: req.PlanID, Body: orchestrator.PlanBody{Source: req.Source}, IntentIDs: req.IntentIDs}
	result := a.Orchestrator.ValidateAndExecutePlan(plan, a.RuntimeCtx)
	return toActivityOutcome(result)
}

// ResumeCheckpointActivity continues a paused plan with the answer
// received over the plan's signal channel.
func (a *Activities) ResumeCheckpointActivity(ctx context.Context, req PlanRequest, checkpointID string, answer interface{}) (activityOutcome, error) {
	plan := orchestrator.Plan{ID: req.PlanID, Body: orchestrator.PlanBody{Source: req.Source}, IntentIDs: req.IntentIDs}
	result := a.Orchestrator.ResumeAndContinueFromCheckpoint(plan, a.RuntimeCtx, checkpointID, marketplace.JSONToValue(answer))
	return toActivityOutcome(result)
}

// activityOutcome is the JSON-safe projection of orchestrator.ExecutionResult
// that crosses the activity boundary.
type activityOutcome struct {
	Success      bool
	Paused       bool
	CheckpointID string
	Question     interface{}
	Value        interface{}
	Err          string
}

func toActivityOutcome(result orchestrator.ExecutionResult) (activityOutcome, error) {
	out := activityOutcome{Success: result.Success, Paused: result.Paused, CheckpointID: result.CheckpointID}
	if result.Err != nil {
		out.Err = result.Err.Error()
	}
	if result.Question != nil {
		q, err := marketplace.ValueToJSON(result.Question)
		if err != nil {
			return activityOutcome{}, fmt.Errorf("temporalrt: encode pause question: %w", err)
		}
		out.Question = q
	}
	if result.Value != nil {
		v, err := marketplace.ValueToJSON(result.Value)
		if err != nil {
			return activityOutcome{}, fmt.Errorf("temporalrt: encode result value: %w", err)
		}
		out.Value = v
	}
	return out, nil
}
