// Package orchestrator implements the governed request→intent→plan→execution
// pipeline: it validates a Plan's capability usage against a RuntimeContext,
// runs the plan body through a Runner (the AST evaluator or the typed IR
// interpreter), and brackets every execution with PlanStarted / PlanPaused /
// PlanCompleted / PlanAborted actions on the Causal Chain so the ledger, not
// caller state, is the source of truth for where a plan is.
package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/antigravity-dev/ccos/internal/causalchain"
	"github.com/antigravity-dev/ccos/internal/host"
	"github.com/antigravity-dev/ccos/internal/lang/ast"
	"github.com/antigravity-dev/ccos/internal/lang/parser"
	"github.com/antigravity-dev/ccos/internal/runtimeerr"
	"github.com/antigravity-dev/ccos/internal/values"
)

// IntentStatus is the closed set of lifecycle states an Intent can occupy.
type IntentStatus string

const (
	IntentActive    IntentStatus = "active"
	IntentCompleted IntentStatus = "completed"
	IntentFailed    IntentStatus = "failed"
	IntentPaused    IntentStatus = "paused"
	IntentArchived  IntentStatus = "archived"
)

// Intent is a durable record of user purpose, produced by the Arbiter from a
// natural-language request.
type Intent struct {
	ID              string
	Goal            string
	Name            string
	Status          IntentStatus
	Constraints     values.Map
	Preferences     values.Map
	SuccessCriteria values.Value
	Parent          string
	Children        []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Metadata        values.Map
}

// PlanBody is the plan's executable payload: Language source, or precompiled
// Wasm bytes. Wasm execution has no Go host wired in: a plan whose body is
// Wasm-only fails validation with ErrWasmUnsupported rather than silently
// no-oping.
type PlanBody struct {
	Source string
	Wasm   []byte
}

// Plan is source (or bytecode) that, when executed, is expected to satisfy
// one or more Intents.
type Plan struct {
	ID        string
	Body      PlanBody
	IntentIDs []string
}

// ExecutionResult is the orchestrator's verdict for one
// ValidateAndExecutePlan or ResumeAndContinueFromCheckpoint call.
type ExecutionResult struct {
	Success      bool
	Value        values.Value
	Paused       bool
	CheckpointID string
	Question     values.Value
	Err          error
}

var (
	// ErrWasmUnsupported is returned from validation when a plan's body
	// carries only Wasm bytes.
	ErrWasmUnsupported = errors.New("orchestrator: wasm plan bodies are not executable by this port")
	// ErrNoCheckpoint is returned by ResumeAndContinueFromCheckpoint when the
	// ledger holds no PlanPaused action for the given plan.
	ErrNoCheckpoint = errors.New("orchestrator: no PlanPaused checkpoint found for plan")
	// ErrCapabilityNotAllowed is returned by plan validation when the plan
	// references a capability id the RuntimeContext does not permit.
	ErrCapabilityNotAllowed = errors.New("orchestrator: plan references a capability outside the runtime context")
)

// Host is the surface the orchestrator drives directly around a Runner
// call: capability dispatch (handed through to the Runner), execution-
// context scoping, and pause-state inspection. internal/host.Host satisfies
// this structurally, the same way it satisfies eval.Host/irruntime.Host.
type Host interface {
	ExecuteCapability(id string, args []values.Value) (values.Value, error)
	LogStep(level string, vals []values.Value)
	SetExecutionContext(planID string, intentIDs []string, rootActionID string)
	ClearExecutionContext()
	LastPause() *host.PauseState
}

// Orchestrator owns the execution half of the request pipeline. It holds
// the same CausalChain instance as the Host it drives, so plan-lifecycle
// actions (PlanStarted/PlanCompleted/PlanAborted) and capability-call
// actions (appended by Host) interleave in ledger order.
type Orchestrator struct {
	chain  *causalchain.CausalChain
	host   Host
	runner Runner
}

type Option func(*Orchestrator)

// WithRunner selects the language runtime backing plan execution. Defaults
// to NewASTRunner(); NewIRRunner() exercises the typed IR interpreter
// instead, without any other behavior change — the orchestrator contract is
// runtime-agnostic about which interpreter walks the body.
func WithRunner(r Runner) Option { return func(o *Orchestrator) { o.runner = r } }

func New(chain *causalchain.CausalChain, h Host, opts ...Option) *Orchestrator {
	o := &Orchestrator{chain: chain, host: h, runner: NewASTRunner()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Arbiter is the narrow contract the orchestrator depends on to turn a
// request into a plan: natural-language text to an Intent, then an Intent
// to an executable Plan. internal/arbiter.StaticArbiter is a canned
// implementation satisfying this interface structurally, accepted here
// without either package importing the other.
type Arbiter interface {
	NaturalLanguageToIntent(text string, context values.Map) (Intent, error)
	IntentToPlan(intent Intent) (Plan, error)
}

// HandleRequest drives the full request pipeline: Arbiter produces an
// Intent, IntentCreated is recorded, Arbiter turns the Intent into a Plan,
// and the plan is validated and executed. If the Arbiter errors at either
// step, the ledger gains at most the IntentCreated (if one was produced)
// plus a PlanAborted, and the returned error is an
// ApplicationError{error_type=:arbiter-unavailable}.
func (o *Orchestrator) HandleRequest(text string, context values.Map, rctx *host.RuntimeContext, arb Arbiter) (Intent, ExecutionResult) {
	intent, err := arb.NaturalLanguageToIntent(text, context)
	if err != nil {
		return Intent{}, ExecutionResult{Err: arbiterUnavailable(err)}
	}
	if err := o.RecordIntentCreated(intent); err != nil {
		return intent, ExecutionResult{Err: err}
	}

	plan, err := arb.IntentToPlan(intent)
	if err != nil {
		if _, aerr := o.chain.Append(&causalchain.Action{
			IntentID: intent.ID,
			Type:     causalchain.ActionPlanAborted,
			Result:   &causalchain.ExecutionResult{Success: false, Error: err.Error()},
		}); aerr != nil {
			return intent, ExecutionResult{Err: fmt.Errorf("orchestrator: record plan-aborted: %w", aerr)}
		}
		return intent, ExecutionResult{Err: arbiterUnavailable(err)}
	}

	return intent, o.ValidateAndExecutePlan(plan, rctx)
}

func arbiterUnavailable(cause error) error {
	return runtimeerr.ApplicationErrorValue("arbiter-unavailable", cause.Error(), nil)
}

// RecordIntentCreated appends an IntentCreated action for intent. Called by
// HandleRequest automatically; exposed directly for callers that already
// hold an Intent from elsewhere (e.g. a sub-plan generated mid-execution).
func (o *Orchestrator) RecordIntentCreated(intent Intent) error {
	meta := values.Map{
		values.KeywordKey("goal"):   values.Str(intent.Goal),
		values.KeywordKey("status"): values.Keyword(string(intent.Status)),
	}
	if intent.Name != "" {
		meta[values.KeywordKey("name")] = values.Str(intent.Name)
	}
	if _, err := o.chain.Append(&causalchain.Action{
		IntentID: intent.ID,
		Type:     causalchain.ActionIntentCreated,
		Metadata: meta,
	}); err != nil {
		return fmt.Errorf("orchestrator: record intent-created: %w", err)
	}
	return nil
}

// ValidateAndExecutePlan runs plan validation (syntax, capability-id
// whitelist against rctx), appends PlanStarted, executes the plan body, and
// appends either PlanCompleted or PlanAborted before returning. A user.ask
// pause is not an abort: it is reported as ExecutionResult{Paused: true}
// without a PlanAborted action, matching the ledger state a resume later
// continues from.
func (o *Orchestrator) ValidateAndExecutePlan(plan Plan, rctx *host.RuntimeContext) ExecutionResult {
	prog, err := o.validatePlan(plan, rctx)
	if err != nil {
		return ExecutionResult{Err: err}
	}

	rootAction, err := o.chain.Append(&causalchain.Action{
		IntentID: firstOrEmpty(plan.IntentIDs),
		PlanID:   plan.ID,
		Type:     causalchain.ActionPlanStarted,
	})
	if err != nil {
		return ExecutionResult{Err: fmt.Errorf("orchestrator: record plan-started: %w", err)}
	}

	o.host.SetExecutionContext(plan.ID, plan.IntentIDs, rootAction.ID)
	defer o.host.ClearExecutionContext()

	value, runErr := o.runner.Run(prog, o.host)
	return o.finish(plan, value, runErr)
}

// ResumeAndContinueFromCheckpoint locates the PlanPaused action for
// plan.ID whose ID is checkpointID, re-executes the plan body from the top
// through Runner.RunWithAnswer (which answers the first user.ask with
// answer), and continues. The default resume strategy here
// is in-memory: re-walk the ledger, don't restore live interpreter state
// across process boundaries. internal/orchestrator/temporalrt offers a
// durable alternative behind the same contract.
func (o *Orchestrator) ResumeAndContinueFromCheckpoint(plan Plan, rctx *host.RuntimeContext, checkpointID string, answer values.Value) ExecutionResult {
	actions := o.chain.QueryActions(causalchain.Query{PlanID: plan.ID, ActionType: causalchain.ActionPlanPaused})
	var checkpoint *causalchain.Action
	for _, a := range actions {
		if a.ID == checkpointID {
			checkpoint = a
			break
		}
	}
	if checkpoint == nil {
		return ExecutionResult{Err: ErrNoCheckpoint}
	}

	prog, err := o.validatePlan(plan, rctx)
	if err != nil {
		return ExecutionResult{Err: err}
	}

	if _, err := o.chain.Append(&causalchain.Action{
		ParentActionID: checkpoint.ID,
		IntentID:       firstOrEmpty(plan.IntentIDs),
		PlanID:         plan.ID,
		Type:           causalchain.ActionPlanResumed,
	}); err != nil {
		return ExecutionResult{Err: fmt.Errorf("orchestrator: record plan-resumed: %w", err)}
	}

	o.host.SetExecutionContext(plan.ID, plan.IntentIDs, checkpoint.ParentActionID)
	defer o.host.ClearExecutionContext()

	value, runErr := o.runner.RunWithAnswer(prog, o.host, answer)
	return o.finish(plan, value, runErr)
}

func (o *Orchestrator) finish(plan Plan, value values.Value, runErr error) ExecutionResult {
	if runErr != nil {
		if errors.Is(runErr, host.ErrPlanPaused) {
			pause := o.host.LastPause()
			result := ExecutionResult{Paused: true}
			if pause != nil {
				result.CheckpointID = pause.ActionID
				result.Question = pause.Question
			}
			return result
		}

		if _, err := o.chain.Append(&causalchain.Action{
			IntentID: firstOrEmpty(plan.IntentIDs),
			PlanID:   plan.ID,
			Type:     causalchain.ActionPlanAborted,
			Result:   &causalchain.ExecutionResult{Success: false, Error: runErr.Error()},
		}); err != nil {
			return ExecutionResult{Err: fmt.Errorf("orchestrator: record plan-aborted: %w", err)}
		}
		return ExecutionResult{Err: runErr}
	}

	if _, err := o.chain.Append(&causalchain.Action{
		IntentID: firstOrEmpty(plan.IntentIDs),
		PlanID:   plan.ID,
		Type:     causalchain.ActionPlanCompleted,
		Result:   &causalchain.ExecutionResult{Success: true, Value: value},
	}); err != nil {
		return ExecutionResult{Err: fmt.Errorf("orchestrator: record plan-completed: %w", err)}
	}
	return ExecutionResult{Success: true, Value: value}
}

// validatePlan parses the plan body and checks every literal `(call :id ...)`
// site against rctx's allow list. Dynamic capability ids (built from an
// expression rather than a literal keyword) cannot be checked ahead of
// time; they are still enforced at dispatch by Host.ExecuteCapability.
func (o *Orchestrator) validatePlan(plan Plan, rctx *host.RuntimeContext) (*ast.Program, error) {
	if plan.Body.Source == "" {
		if len(plan.Body.Wasm) > 0 {
			return nil, ErrWasmUnsupported
		}
		return nil, runtimeerr.New(runtimeerr.InvalidProgram, "plan %s has an empty body", plan.ID)
	}

	prog, err := parser.Parse(plan.Body.Source)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: parse plan %s: %w", plan.ID, err)
	}

	if rctx != nil {
		for _, id := range staticCapabilityIDs(*prog) {
			if !rctx.Allows(id) {
				return nil, fmt.Errorf("%w: %q", ErrCapabilityNotAllowed, id)
			}
		}
	}
	return prog, nil
}

func firstOrEmpty(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// NewCheckpointID mints the UUID the pause handshake identifies a paused
// execution by, for callers (tests, an Arbiter-facing API layer) that need
// one before a plan has actually paused.
func NewCheckpointID() string { return uuid.NewString() }
