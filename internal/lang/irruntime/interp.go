// Package irruntime evaluates a built ir.Program: variable references are
// binding-ID lookups rather than name lookups, and function application in
// tail position runs through an explicit trampoline loop so deep recursion
// (letrec-style loops in particular) doesn't grow the Go call stack the way
// a naively recursive Eval would.
package irruntime

import (
	"fmt"

	"github.com/antigravity-dev/ccos/internal/lang/ir"
	"github.com/antigravity-dev/ccos/internal/lang/stdlib"
	"github.com/antigravity-dev/ccos/internal/runtimeerr"
	"github.com/antigravity-dev/ccos/internal/values"
)

// Host is the narrow capability-dispatch surface the IR runtime needs;
// internal/host.Host satisfies this structurally, same as eval.Host.
type Host interface {
	ExecuteCapability(id string, args []values.Value) (values.Value, error)
	LogStep(level string, vals []values.Value)
}

// DefaultMaxDepth bounds non-tail recursion, mirroring eval.DefaultMaxDepth.
const DefaultMaxDepth = 1000

// Interpreter evaluates ir.Node trees against an Env, delegating capability
// calls to a Host.
type Interpreter struct {
	host     Host
	maxDepth int
	globals  map[string]values.Function
}

func NewInterpreter(host Host) *Interpreter {
	return &Interpreter{host: host, maxDepth: DefaultMaxDepth, globals: stdlib.Builtins()}
}

// tailCall is the sentinel "error" a tail-position Apply returns instead of
// invoking its callee directly: applyIrLambda's loop catches it and
// continues without recursing instead of growing the Go call stack.
type tailCall struct {
	fn   *values.IrLambdaFunction
	args []values.Value
}

func (t *tailCall) Error() string { return "internal: unhandled tail call" }

// Run evaluates every top-level form in sequence against a fresh global
// Env, returning the last form's value (Program's own semantics, same as
// eval.Evaluator.Eval on an ast.Program).
func (ip *Interpreter) Run(prog *ir.Program) (values.Value, error) {
	env := NewEnv(nil)
	return ip.evalBody(prog.Forms, env, 0, false)
}

// Eval evaluates a single node against env in non-tail position.
func (ip *Interpreter) Eval(node ir.Node, env *Env) (values.Value, error) {
	return ip.evalTail(node, env, 0, false)
}

func (ip *Interpreter) evalBody(body []ir.Node, env *Env, depth int, tail bool) (values.Value, error) {
	if len(body) == 0 {
		return values.Nil{}, nil
	}
	for i, n := range body {
		isLast := i == len(body)-1
		v, err := ip.evalTail(n, env, depth+1, isLast && tail)
		if err != nil {
			return nil, err
		}
		if isLast {
			return v, nil
		}
	}
	return values.Nil{}, nil
}

// evalTail is the dispatch core. tail is true only when node sits in tail
// position of the call currently looping in applyIrLambda; only If/Do/Let
// (and Match clause bodies) propagate it further, so a TailCall sentinel
// can never leak out of a try/catch, with-resource, or parallel boundary.
func (ip *Interpreter) evalTail(node ir.Node, env *Env, depth int, tail bool) (values.Value, error) {
	if depth > ip.maxDepth {
		return nil, runtimeerr.New(runtimeerr.StackOverflow, "evaluation depth exceeded %d", ip.maxDepth)
	}
	switch n := node.(type) {
	case ir.Literal:
		return n.Value, nil
	case ir.VariableRef:
		v, ok := env.Lookup(n.Binding)
		if !ok {
			return nil, runtimeerr.New(runtimeerr.UndefinedSymbol, "unbound binding %q", n.Name)
		}
		return v, nil
	case ir.GlobalRef:
		fn, ok := ip.globals[n.Name]
		if !ok {
			return nil, runtimeerr.New(runtimeerr.UndefinedSymbol, "undefined symbol %q", n.Name)
		}
		return fn, nil
	case ir.KeywordRef:
		return values.Keyword(n.Name), nil
	case ir.Vector:
		vec := make(values.Vector, len(n.Elements))
		for i, el := range n.Elements {
			v, err := ip.evalTail(el, env, depth+1, false)
			if err != nil {
				return nil, err
			}
			vec[i] = v
		}
		return vec, nil
	case ir.ListExpr:
		lst := make(values.List, len(n.Elements))
		for i, el := range n.Elements {
			v, err := ip.evalTail(el, env, depth+1, false)
			if err != nil {
				return nil, err
			}
			lst[i] = v
		}
		return lst, nil
	case ir.Map:
		m := make(values.Map, len(n.Entries))
		for _, entry := range n.Entries {
			k, err := ip.evalTail(entry.Key, env, depth+1, false)
			if err != nil {
				return nil, err
			}
			v, err := ip.evalTail(entry.Value, env, depth+1, false)
			if err != nil {
				return nil, err
			}
			mk, err := toMapKey(k)
			if err != nil {
				return nil, err
			}
			m[mk] = v
		}
		return m, nil
	case ir.If:
		return ip.evalIf(n, env, depth, tail)
	case ir.Do:
		return ip.evalBody(n.Body, env, depth, tail)
	case ir.Let:
		return ip.evalLet(n, env, depth, tail)
	case ir.Lambda:
		return ip.makeClosure(n, env), nil
	case ir.Def:
		v, err := ip.evalTail(n.Init, env, depth+1, false)
		if err != nil {
			return nil, err
		}
		if fn, ok := v.(*values.IrLambdaFunction); ok && fn.Name == "" {
			fn.Name = n.Name
		}
		env.Define(n.Binding, v)
		return v, nil
	case ir.Apply:
		return ip.evalApply(n, env, depth, tail)
	case ir.HostCall:
		return ip.evalHostCall(n, env, depth)
	case ir.Match:
		return ip.evalMatch(n, env, depth, tail)
	case ir.TryCatch:
		return ip.evalTryCatch(n, env, depth)
	case ir.WithResource:
		return ip.evalWithResource(n, env, depth)
	case ir.Parallel:
		return ip.evalParallel(n, env, depth)
	case ir.LogStep:
		return ip.evalLogStep(n, env, depth)
	case ir.DiscoverAgents:
		criteria, err := ip.evalTail(n.Criteria, env, depth+1, false)
		if err != nil {
			return nil, err
		}
		return ip.host.ExecuteCapability("discover-agents", []values.Value{criteria})
	case ir.Program:
		return ip.evalBody(n.Forms, env, depth, tail)
	default:
		return nil, runtimeerr.New(runtimeerr.InternalError, "unhandled IR node %T", node)
	}
}

func toMapKey(v values.Value) (values.MapKey, error) {
	switch vv := v.(type) {
	case values.Str:
		return values.StringKey(string(vv)), nil
	case values.Keyword:
		return values.KeywordKey(string(vv)), nil
	case values.Int:
		return values.IntKey(int64(vv)), nil
	default:
		return values.MapKey{}, runtimeerr.New(runtimeerr.TypeError, "invalid map key type %s", values.TypeName(v))
	}
}

func (ip *Interpreter) evalIf(n ir.If, env *Env, depth int, tail bool) (values.Value, error) {
	cond, err := ip.evalTail(n.Cond, env, depth+1, false)
	if err != nil {
		return nil, err
	}
	if values.Truthy(cond) {
		return ip.evalTail(n.Then, env, depth+1, tail)
	}
	if n.Else == nil {
		return values.Nil{}, nil
	}
	return ip.evalTail(n.Else, env, depth+1, tail)
}

// makeClosure snapshots exactly the lambda's free variables (n.Captures)
// out of env into a fresh, parentless closure Env, so a closure only pins
// the bindings it actually uses rather than its whole defining scope.
func (ip *Interpreter) makeClosure(n ir.Lambda, env *Env) *values.IrLambdaFunction {
	closure := env.Snapshot(n.Captures)
	paramIDs := make([]int, len(n.Params))
	for i, p := range n.Params {
		if bp, ok := p.Pattern.(ir.BindingPattern); ok {
			paramIDs[i] = int(bp.Binding)
		}
	}
	return &values.IrLambdaFunction{
		Name:     n.Name,
		ParamIDs: paramIDs,
		Variadic: n.Variadic != nil,
		Body:     lambdaBody(n),
		Closure:  closure,
	}
}

// lambdaBody wraps a multi-form body in a Do so call sites have a single
// ir.Node to evaluate in tail position, regardless of body length.
func lambdaBody(n ir.Lambda) ir.Node {
	if len(n.Body) == 1 {
		return n.Body[0]
	}
	return ir.Do{Body: n.Body}
}

// evalLet implements let/letrec like eval.evalLet, operating on resolved
// BindingIDs instead of symbol names: letrec (n.Rec) uses the two-pass
// placeholder algorithm for fn-valued bindings, and a plain let evaluates
// its bindings in order.
func (ip *Interpreter) evalLet(n ir.Let, env *Env, depth int, tail bool) (values.Value, error) {
	scope := env.Child()

	type pending struct {
		binding ir.BindingID
		init    ir.Node
		cell    *values.FunctionPlaceholder
	}
	var fnBindings []pending
	var otherBindings []ir.LetBinding

	if n.Rec {
		for _, b := range n.Bindings {
			if bp, ok := b.Pattern.(ir.BindingPattern); ok && b.IsFnValued {
				cell := values.NewFunctionPlaceholder()
				scope.Define(bp.Binding, cell)
				fnBindings = append(fnBindings, pending{binding: bp.Binding, init: b.Init, cell: cell})
				continue
			}
			otherBindings = append(otherBindings, b)
		}
	} else {
		otherBindings = n.Bindings
	}

	for _, b := range otherBindings {
		v, err := ip.evalTail(b.Init, scope, depth+1, false)
		if err != nil {
			return nil, err
		}
		if err := ip.bindPattern(b.Pattern, v, scope); err != nil {
			return nil, err
		}
	}

	for _, fb := range fnBindings {
		v, err := ip.evalTail(fb.init, scope, depth+1, false)
		if err != nil {
			return nil, err
		}
		fn, ok := v.(values.Function)
		if !ok {
			return nil, runtimeerr.New(runtimeerr.TypeError, "letrec binding must be a function")
		}
		fb.cell.Resolve(fn)
	}

	return ip.evalBody(n.Body, scope, depth, tail)
}

// bindPattern destructures v according to pat into scope.
func (ip *Interpreter) bindPattern(pat ir.Pattern, v values.Value, scope *Env) error {
	switch p := pat.(type) {
	case ir.WildcardPattern:
		return nil
	case ir.BindingPattern:
		scope.Define(p.Binding, v)
		return nil
	case ir.LiteralPattern:
		if !values.Equal(p.Value, v) {
			return runtimeerr.New(runtimeerr.MatchError, "pattern literal %s did not match %s", p.Value, v)
		}
		return nil
	case ir.KeywordPattern:
		kw, ok := v.(values.Keyword)
		if !ok || string(kw) != p.Name {
			return runtimeerr.New(runtimeerr.MatchError, "pattern keyword :%s did not match %s", p.Name, v)
		}
		return nil
	case ir.VectorPattern:
		vec, ok := v.(values.Vector)
		if !ok {
			return runtimeerr.New(runtimeerr.TypeError, "expected vector for vector pattern, got %s", values.TypeName(v))
		}
		if p.Rest == nil && len(vec) != len(p.Elements) {
			return runtimeerr.New(runtimeerr.MatchError, "vector pattern arity mismatch: expected %d, got %d", len(p.Elements), len(vec))
		}
		if p.Rest != nil && len(vec) < len(p.Elements) {
			return runtimeerr.New(runtimeerr.MatchError, "vector pattern too few elements for rest binding")
		}
		for i, ep := range p.Elements {
			if err := ip.bindPattern(ep, vec[i], scope); err != nil {
				return err
			}
		}
		if p.Rest != nil {
			scope.Define(p.Rest.Binding, append(values.Vector{}, vec[len(p.Elements):]...))
		}
		return nil
	case ir.MapPattern:
		m, ok := v.(values.Map)
		if !ok {
			return runtimeerr.New(runtimeerr.TypeError, "expected map for map pattern, got %s", values.TypeName(v))
		}
		matched := make(map[values.MapKey]bool)
		for key, ep := range p.Entries {
			mk := values.KeywordKey(key)
			fv, present := m[mk]
			if !present {
				return runtimeerr.New(runtimeerr.KeyNotFound, "missing key :%s in map pattern", key)
			}
			matched[mk] = true
			if err := ip.bindPattern(ep, fv, scope); err != nil {
				return err
			}
		}
		if p.Rest != nil {
			rest := make(values.Map)
			for k, val := range m {
				if !matched[k] {
					rest[k] = val
				}
			}
			scope.Define(p.Rest.Binding, rest)
		}
		return nil
	default:
		return runtimeerr.New(runtimeerr.InternalError, "unhandled pattern %T", pat)
	}
}

func (ip *Interpreter) evalApply(n ir.Apply, env *Env, depth int, tail bool) (values.Value, error) {
	fnVal, err := ip.evalTail(n.Function, env, depth+1, false)
	if err != nil {
		return nil, err
	}
	args := make([]values.Value, len(n.Arguments))
	for i, a := range n.Arguments {
		v, err := ip.evalTail(a, env, depth+1, false)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	resolved := fnVal
	if ph, ok := resolved.(*values.FunctionPlaceholder); ok {
		r := ph.Resolved()
		if r == nil {
			return nil, runtimeerr.New(runtimeerr.InternalError, "function placeholder invoked before resolution")
		}
		resolved = r
	}

	if tail {
		if lambda, ok := resolved.(*values.IrLambdaFunction); ok {
			return nil, &tailCall{fn: lambda, args: args}
		}
	}
	return ip.applyValue(resolved, args, depth)
}

// applyValue invokes fn with args outside of tail position, looping via
// applyIrLambda when fn is an IR closure so its own internal tail calls
// still trampoline instead of recursing through Go.
func (ip *Interpreter) applyValue(fn values.Value, args []values.Value, depth int) (values.Value, error) {
	switch f := fn.(type) {
	case values.Keyword:
		if len(args) < 1 || len(args) > 2 {
			return nil, runtimeerr.New(runtimeerr.ArityMismatch, "keyword invocation takes 1 or 2 arguments, got %d", len(args))
		}
		m, ok := args[0].(values.Map)
		if !ok {
			return nil, runtimeerr.New(runtimeerr.TypeError, "keyword invocation requires a map argument, got %s", values.TypeName(args[0]))
		}
		if v, present := m.Get(string(f)); present {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return values.Nil{}, nil
	case *values.FunctionPlaceholder:
		resolved := f.Resolved()
		if resolved == nil {
			return nil, runtimeerr.New(runtimeerr.InternalError, "function placeholder invoked before resolution")
		}
		return ip.applyValue(resolved, args, depth)
	case *values.BuiltinFunction:
		if !f.Arity().Accepts(len(args)) {
			return nil, runtimeerr.New(runtimeerr.ArityMismatch, "%s expects %d args, got %d", f.Name, f.ArityV.Min, len(args))
		}
		return f.Handler(args)
	case *values.IrLambdaFunction:
		return ip.applyIrLambda(f, args, depth+1)
	case *values.UserDefinedFunction:
		return nil, runtimeerr.New(runtimeerr.InternalError, "IR runtime cannot invoke an AST closure %q directly", f.Name)
	default:
		return nil, runtimeerr.New(runtimeerr.NotCallable, "value of type %s is not callable", values.TypeName(fn))
	}
}

// applyIrLambda is the tail-call trampoline: each iteration binds one
// call's arguments and evaluates its body in tail position; a tailCall
// sentinel swaps in the next (fn, args) pair and loops instead of
// recursing, so a letrec-style self/mutual tail loop never
// grows the Go call stack.
func (ip *Interpreter) applyIrLambda(fn *values.IrLambdaFunction, args []values.Value, depth int) (values.Value, error) {
	for {
		if depth > ip.maxDepth {
			return nil, runtimeerr.New(runtimeerr.StackOverflow, "evaluation depth exceeded %d", ip.maxDepth)
		}
		arity := fn.Arity()
		if !arity.Accepts(len(args)) {
			return nil, runtimeerr.New(runtimeerr.ArityMismatch, "function %s expects %s, got %d args", displayName(fn), arityDesc(arity), len(args))
		}
		closure, ok := fn.Closure.(*Env)
		if !ok {
			return nil, runtimeerr.New(runtimeerr.InternalError, "corrupt IR closure environment")
		}
		frame := closure.Child()
		fixed := len(fn.ParamIDs)
		if fn.Variadic {
			fixed--
		}
		for i := 0; i < fixed; i++ {
			frame.Define(ir.BindingID(fn.ParamIDs[i]), args[i])
		}
		if fn.Variadic {
			rest := append(values.Vector{}, args[fixed:]...)
			frame.Define(ir.BindingID(fn.ParamIDs[fixed]), rest)
		}

		body, ok := fn.Body.(ir.Node)
		if !ok {
			return nil, runtimeerr.New(runtimeerr.InternalError, "corrupt IR function body")
		}

		result, err := ip.evalTail(body, frame, depth+1, true)
		if err == nil {
			return result, nil
		}
		if tc, ok := err.(*tailCall); ok {
			fn = tc.fn
			args = tc.args
			continue
		}
		return nil, err
	}
}

func displayName(fn *values.IrLambdaFunction) string {
	if fn.Name == "" {
		return "anonymous"
	}
	return fn.Name
}

func arityDesc(a values.Arity) string {
	if a.Variadic {
		return fmt.Sprintf("at least %d", a.Min)
	}
	return fmt.Sprintf("%d", a.Min)
}

func (ip *Interpreter) evalHostCall(n ir.HostCall, env *Env, depth int) (values.Value, error) {
	args := make([]values.Value, len(n.Arguments))
	for i, a := range n.Arguments {
		v, err := ip.evalTail(a, env, depth+1, false)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return ip.host.ExecuteCapability(n.CapabilityID, args)
}

func (ip *Interpreter) evalMatch(n ir.Match, env *Env, depth int, tail bool) (values.Value, error) {
	v, err := ip.evalTail(n.Expr, env, depth+1, false)
	if err != nil {
		return nil, err
	}
	for _, clause := range n.Clauses {
		scope := env.Child()
		if bindErr := ip.bindPattern(clause.Pattern, v, scope); bindErr != nil {
			continue
		}
		if clause.Guard != nil {
			g, err := ip.evalTail(clause.Guard, scope, depth+1, false)
			if err != nil {
				return nil, err
			}
			if !values.Truthy(g) {
				continue
			}
		}
		return ip.evalTail(clause.Body, scope, depth+1, tail)
	}
	return nil, runtimeerr.New(runtimeerr.MatchError, "no match clause succeeded for %s", v)
}

func (ip *Interpreter) evalTryCatch(n ir.TryCatch, env *Env, depth int) (values.Value, error) {
	// Try always runs in non-tail position: otherwise a tailCall sentinel
	// could unwind into this function's error handling and be mistaken for
	// an application error.
	result, tryErr := ip.evalTail(n.Try, env, depth+1, false)
	if tryErr == nil {
		if n.Finally != nil {
			if _, err := ip.evalTail(n.Finally, env, depth+1, false); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	errVal := liftError(tryErr)
	for _, c := range n.Catches {
		scope := env.Child()
		if !matchesErrorPattern(c.ErrPattern, errVal) {
			continue
		}
		if c.Binding != nil {
			scope.Define(c.Binding.Binding, errVal.ToMap())
		}
		caught, err := ip.evalTail(c.Body, scope, depth+1, false)
		if n.Finally != nil {
			if _, ferr := ip.evalTail(n.Finally, env, depth+1, false); ferr != nil {
				return nil, ferr
			}
		}
		return caught, err
	}
	if n.Finally != nil {
		if _, err := ip.evalTail(n.Finally, env, depth+1, false); err != nil {
			return nil, err
		}
	}
	return nil, tryErr
}

func liftError(err error) *values.ErrorValue {
	if rte, ok := err.(*runtimeerr.Error); ok {
		return rte.ToValue()
	}
	return &values.ErrorValue{Kind: string(runtimeerr.InternalError), Message: err.Error()}
}

func matchesErrorPattern(pat ir.Pattern, errVal *values.ErrorValue) bool {
	switch p := pat.(type) {
	case ir.WildcardPattern:
		return true
	case ir.KeywordPattern:
		return p.Name == errVal.Kind
	case ir.BindingPattern:
		return true
	default:
		return false
	}
}

func (ip *Interpreter) evalWithResource(n ir.WithResource, env *Env, depth int) (values.Value, error) {
	initVal, err := ip.evalTail(n.Init, env, depth+1, false)
	if err != nil {
		return nil, err
	}
	handle, ok := initVal.(*values.ResourceHandle)
	if !ok {
		return nil, runtimeerr.New(runtimeerr.TypeError, "with-resource init must yield a ResourceHandle, got %s", values.TypeName(initVal))
	}
	handle.State = values.ResourceActive

	scope := env.Child()
	scope.Define(n.Binding.Binding, handle)

	result, bodyErr := ip.evalBody(n.Body, scope, depth+1, false)
	handle.State = values.ResourceReleased
	return result, bodyErr
}

func (ip *Interpreter) evalParallel(n ir.Parallel, env *Env, depth int) (values.Value, error) {
	// Sequential in binding order, same as eval.evalParallel: spec only
	// requires an observable result matching sequential evaluation.
	result := make(values.Map, len(n.Bindings))
	for _, b := range n.Bindings {
		v, err := ip.evalTail(b.Expr, env, depth+1, false)
		if err != nil {
			return nil, err
		}
		result[values.KeywordKey(b.Binding.Name)] = v
	}
	return result, nil
}

func (ip *Interpreter) evalLogStep(n ir.LogStep, env *Env, depth int) (values.Value, error) {
	vals := make([]values.Value, len(n.Values))
	for i, v := range n.Values {
		val, err := ip.evalTail(v, env, depth+1, false)
		if err != nil {
			return nil, err
		}
		vals[i] = val
	}
	if ip.host != nil {
		ip.host.LogStep(n.Level, vals)
	}
	if len(vals) == 0 {
		return values.Nil{}, nil
	}
	return vals[len(vals)-1], nil
}
