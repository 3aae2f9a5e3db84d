package orchestrator

import (
	"github.com/antigravity-dev/ccos/internal/host"
	"github.com/antigravity-dev/ccos/internal/lang/ast"
	"github.com/antigravity-dev/ccos/internal/lang/eval"
	"github.com/antigravity-dev/ccos/internal/lang/ir"
	"github.com/antigravity-dev/ccos/internal/lang/irruntime"
	"github.com/antigravity-dev/ccos/internal/values"
)

// Runner is the seam between the orchestrator and whichever Language
// runtime actually walks a plan body: the tree-walking AST evaluator (C4)
// or the typed IR interpreter (C5). Both satisfy the same contract, so
// Orchestrator's pause/resume and ledger-bracketing logic doesn't care
// which one is wired in.
type Runner interface {
	Run(prog *ast.Program, h Host) (values.Value, error)
	// RunWithAnswer re-runs prog from the top, but answers the first
	// user.ask call directly with answer instead of pausing again. This is
	// the in-memory resume strategy's trade-off: it doesn't restore live
	// interpreter state across the pause, so any capability calls before
	// the user.ask in program order are re-invoked. Plans with
	// side-effecting calls before their user.ask should keep them idempotent,
	// or an operator should select the Temporal-backed resume in
	// internal/orchestrator/temporalrt instead.
	RunWithAnswer(prog *ast.Program, h Host, answer values.Value) (values.Value, error)
}

// answerInjectingHost wraps a Host so exactly the first call to
// host.UserAskCapabilityID returns answer instead of delegating to the
// wrapped Host's pausing behavior; every other capability id passes through
// unchanged.
type answerInjectingHost struct {
	Host
	answer   values.Value
	answered bool
}

func (a *answerInjectingHost) ExecuteCapability(id string, args []values.Value) (values.Value, error) {
	if id == host.UserAskCapabilityID && !a.answered {
		a.answered = true
		return a.answer, nil
	}
	return a.Host.ExecuteCapability(id, args)
}

// ASTRunner executes a plan body through the tree-walking AST evaluator.
type ASTRunner struct{}

func NewASTRunner() *ASTRunner { return &ASTRunner{} }

func (r *ASTRunner) Run(prog *ast.Program, h Host) (values.Value, error) {
	ev := eval.NewEvaluator(h)
	return ev.Eval(*prog, ev.GlobalEnv())
}

func (r *ASTRunner) RunWithAnswer(prog *ast.Program, h Host, answer values.Value) (values.Value, error) {
	ev := eval.NewEvaluator(&answerInjectingHost{Host: h, answer: answer})
	return ev.Eval(*prog, ev.GlobalEnv())
}

// IRRunner executes a plan body by lowering it to the typed IR and running
// it through the tail-call-optimizing IR interpreter.
type IRRunner struct{}

func NewIRRunner() *IRRunner { return &IRRunner{} }

func (r *IRRunner) build(prog *ast.Program) (*ir.Program, error) {
	return ir.NewBuilder().Build(*prog)
}

func (r *IRRunner) Run(prog *ast.Program, h Host) (values.Value, error) {
	built, err := r.build(prog)
	if err != nil {
		return nil, err
	}
	return irruntime.NewInterpreter(h).Run(built)
}

func (r *IRRunner) RunWithAnswer(prog *ast.Program, h Host, answer values.Value) (values.Value, error) {
	built, err := r.build(prog)
	if err != nil {
		return nil, err
	}
	return irruntime.NewInterpreter(&answerInjectingHost{Host: h, answer: answer}).Run(built)
}
