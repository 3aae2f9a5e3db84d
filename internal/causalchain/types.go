// Package causalchain implements the append-only, cryptographically signed
// execution ledger: every capability call, plan transition, and delegation
// event is recorded as an Action with a parent pointer, and the chain can
// be queried, exported, and its integrity verified.
package causalchain

import (
	"time"

	"github.com/antigravity-dev/ccos/internal/values"
)

type ActionType string

const (
	ActionPlanStarted     ActionType = "plan-started"
	ActionPlanCompleted   ActionType = "plan-completed"
	ActionPlanAborted     ActionType = "plan-aborted"
	ActionPlanPaused      ActionType = "plan-paused"
	ActionPlanResumed     ActionType = "plan-resumed"
	ActionIntentCreated   ActionType = "intent-created"
	ActionCapabilityCall  ActionType = "capability-call"
	ActionCapabilityResult ActionType = "capability-result"
	ActionDelegation      ActionType = "delegation-event"
	ActionLogStep         ActionType = "log-step"
)

// Action is a single entry on the causal chain.
type Action struct {
	ID             string
	ParentActionID string
	IntentID       string
	PlanID         string
	Type           ActionType
	CapabilityID   string
	FunctionName   string
	Args           []values.Value
	Result         *ExecutionResult
	Metadata       values.Map
	Timestamp      time.Time
	Signature      string
}

// ExecutionResult captures the outcome of a capability call or plan step.
type ExecutionResult struct {
	Success  bool
	Value    values.Value
	Error    string
	DurationMS int64
	CostUSD  float64
}

// Intent is the minimal intent record the chain cross-references by ID;
// the full Intent model is owned by the orchestrator/arbiter layer.
type Intent struct {
	ID          string
	Goal        string
	CreatedAt   time.Time
	Metadata    values.Map
}

// Plan is the minimal plan record the chain cross-references by ID.
type Plan struct {
	ID        string
	IntentIDs []string
	CreatedAt time.Time
}

// Query filters Actions along the axes the orchestrator and Working Memory
// ingestor need.
type Query struct {
	IntentID       string
	PlanID         string
	ActionType     ActionType
	ParentActionID string
	FunctionPrefix string
	Since, Until   time.Time
}

func (q Query) matches(a *Action) bool {
	if q.IntentID != "" && a.IntentID != q.IntentID {
		return false
	}
	if q.PlanID != "" && a.PlanID != q.PlanID {
		return false
	}
	if q.ActionType != "" && a.Type != q.ActionType {
		return false
	}
	if q.ParentActionID != "" && a.ParentActionID != q.ParentActionID {
		return false
	}
	if q.FunctionPrefix != "" && (a.FunctionName == "" || len(a.FunctionName) < len(q.FunctionPrefix) || a.FunctionName[:len(q.FunctionPrefix)] != q.FunctionPrefix) {
		return false
	}
	if !q.Since.IsZero() && a.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && a.Timestamp.After(q.Until) {
		return false
	}
	return true
}
