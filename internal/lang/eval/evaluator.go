// Package eval implements the tree-walking AST interpreter: lexical
// closures over Environment, letrec via placeholder cells, and the closed
// set of special-form semantics.
package eval

import (
	"fmt"

	"github.com/antigravity-dev/ccos/internal/lang/ast"
	"github.com/antigravity-dev/ccos/internal/runtimeerr"
	"github.com/antigravity-dev/ccos/internal/values"
)

// Host is the narrow capability-dispatch surface the evaluator needs; the
// full Host Interface lives in package host and satisfies this interface
// structurally.
type Host interface {
	ExecuteCapability(id string, args []values.Value) (values.Value, error)
	LogStep(level string, vals []values.Value)
}

// DefaultMaxDepth bounds recursion depth to guard against runaway recursion.
const DefaultMaxDepth = 1000

// Evaluator walks the AST against an Environment, delegating capability
// calls to a Host.
type Evaluator struct {
	host     Host
	maxDepth int
	builtins map[string]values.Function
}

func NewEvaluator(host Host) *Evaluator {
	e := &Evaluator{host: host, maxDepth: DefaultMaxDepth}
	e.builtins = standardLibrary(e)
	return e
}

// GlobalEnv returns a fresh top-level environment pre-populated with the
// standard library builtins.
func (e *Evaluator) GlobalEnv() *Environment {
	env := NewEnvironment(nil)
	for name, fn := range e.builtins {
		env.Define(name, fn)
	}
	return env
}

// Eval is the evaluator's entry point: eval(expr, env) -> Value.
func (e *Evaluator) Eval(node ast.Node, env *Environment) (values.Value, error) {
	return e.evalDepth(node, env, 0)
}

func (e *Evaluator) evalDepth(node ast.Node, env *Environment, depth int) (values.Value, error) {
	if depth > e.maxDepth {
		return nil, runtimeerr.New(runtimeerr.StackOverflow, "evaluation depth exceeded %d", e.maxDepth)
	}
	switch n := node.(type) {
	case ast.Literal:
		return n.Value, nil
	case ast.SymbolRef:
		v, ok := env.Lookup(n.Name)
		if !ok {
			return nil, runtimeerr.New(runtimeerr.UndefinedSymbol, "undefined symbol %q", n.Name)
		}
		return v, nil
	case ast.KeywordRef:
		return values.Keyword(n.Name), nil
	case ast.VectorExpr:
		vec := make(values.Vector, len(n.Elements))
		for i, el := range n.Elements {
			v, err := e.evalDepth(el, env, depth+1)
			if err != nil {
				return nil, err
			}
			vec[i] = v
		}
		return vec, nil
	case ast.ListExpr:
		lst := make(values.List, len(n.Elements))
		for i, el := range n.Elements {
			v, err := e.evalDepth(el, env, depth+1)
			if err != nil {
				return nil, err
			}
			lst[i] = v
		}
		return lst, nil
	case ast.MapExpr:
		m := make(values.Map, len(n.Entries))
		for _, entry := range n.Entries {
			k, err := e.evalDepth(entry.Key, env, depth+1)
			if err != nil {
				return nil, err
			}
			v, err := e.evalDepth(entry.Value, env, depth+1)
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
	case ast.Call:
		return e.evalCall(n, env, depth)
	case ast.If:
		return e.evalIf(n, env, depth)
	case ast.Do:
		return e.evalBody(n.Body, env, depth)
	case ast.Let:
		return e.evalLet(n, env, depth)
	case ast.Fn:
		return e.evalFn(n, env), nil
	case ast.Def:
		v, err := e.evalDepth(n.Init, env, depth+1)
		if err != nil {
			return nil, err
		}
		env.Define(n.Name, v)
		return v, nil
	case ast.Defn:
		fn := e.evalFn(ast.Fn{Params: n.Params, Variadic: n.Variadic, Body: n.Body}, env)
		fn.Name = n.Name
		env.Define(n.Name, fn)
		return fn, nil
	case ast.Match:
		return e.evalMatch(n, env, depth)
	case ast.TryCatch:
		return e.evalTryCatch(n, env, depth)
	case ast.WithResource:
		return e.evalWithResource(n, env, depth)
	case ast.Parallel:
		return e.evalParallel(n, env, depth)
	case ast.LogStep:
		return e.evalLogStep(n, env, depth)
	case ast.DiscoverAgents:
		return e.evalCapabilityCall("discover-agents", []values.Value{}, env, n.Criteria, depth)
	case ast.Program:
		return e.evalBody(n.Forms, env, depth)
	default:
		return nil, runtimeerr.New(runtimeerr.InternalError, "unhandled AST node %T", node)
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

func (e *Evaluator) evalBody(body []ast.Node, env *Environment, depth int) (values.Value, error) {
	if len(body) == 0 {
		return values.Nil{}, nil
	}
	var result values.Value = values.Nil{}
	for _, n := range body {
		v, err := e.evalDepth(n, env, depth+1)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

func (e *Evaluator) evalIf(n ast.If, env *Environment, depth int) (values.Value, error) {
	cond, err := e.evalDepth(n.Cond, env, depth+1)
	if err != nil {
		return nil, err
	}
	if values.Truthy(cond) {
		return e.evalDepth(n.Then, env, depth+1)
	}
	if n.Else == nil {
		return values.Nil{}, nil
	}
	return e.evalDepth(n.Else, env, depth+1)
}

func (e *Evaluator) evalFn(n ast.Fn, env *Environment) *values.UserDefinedFunction {
	params := make([]values.Pattern, len(n.Params))
	for i, p := range n.Params {
		params[i] = p.Pattern
	}
	var variadic *values.Pattern
	if n.Variadic != nil {
		variadic = &n.Variadic.Pattern
	}
	return &values.UserDefinedFunction{
		Params:   params,
		Variadic: variadic,
		Body:     n.Body,
		Closure:  env,
	}
}

// evalLet implements let and letrec in one child scope. For letrec (n.Rec)
// it uses a two-pass placeholder algorithm: fn-valued bindings get a
// FunctionPlaceholder in pass 1 so sibling closures can reference each
// other, then each cell is resolved in pass 2 once its closure (which
// captures the scope holding the placeholders) has been built. A plain let
// evaluates and binds its bindings in order.
func (e *Evaluator) evalLet(n ast.Let, env *Environment, depth int) (values.Value, error) {
	scope := env.Child()

	type pending struct {
		name      string
		expr      ast.Node
		cell      *values.FunctionPlaceholder
	}
	var fnBindings []pending
	var otherBindings []ast.LetBinding

	if n.Rec {
		for _, b := range n.Bindings {
			if sym, ok := b.Pattern.(values.SymbolPattern); ok && isFnExpr(b.Init) {
				cell := values.NewFunctionPlaceholder()
				scope.Define(sym.Name, cell)
				fnBindings = append(fnBindings, pending{name: sym.Name, expr: b.Init, cell: cell})
				continue
			}
			otherBindings = append(otherBindings, b)
		}
	} else {
		otherBindings = n.Bindings
	}

	for _, b := range otherBindings {
		v, err := e.evalDepth(b.Init, scope, depth+1)
		if err != nil {
			return nil, err
		}
		if err := e.bindPattern(b.Pattern, v, scope); err != nil {
			return nil, err
		}
	}

	for _, fb := range fnBindings {
		v, err := e.evalDepth(fb.expr, scope, depth+1)
		if err != nil {
			return nil, err
		}
		fn, ok := v.(values.Function)
		if !ok {
			return nil, runtimeerr.New(runtimeerr.TypeError, "letrec binding %q must be a function", fb.name)
		}
		fb.cell.Resolve(fn)
	}

	return e.evalBody(n.Body, scope, depth)
}

func isFnExpr(n ast.Node) bool {
	_, ok := n.(ast.Fn)
	return ok
}

// bindPattern destructures v according to pat into scope.
func (e *Evaluator) bindPattern(pat values.Pattern, v values.Value, scope *Environment) error {
	switch p := pat.(type) {
	case values.WildcardPattern:
		return nil
	case values.SymbolPattern:
		scope.Define(p.Name, v)
		return nil
	case values.LiteralPattern:
		if !values.Equal(p.Value, v) {
			return runtimeerr.New(runtimeerr.MatchError, "pattern literal %s did not match %s", p.Value, v)
		}
		return nil
	case values.KeywordPattern:
		kw, ok := v.(values.Keyword)
		if !ok || string(kw) != p.Name {
			return runtimeerr.New(runtimeerr.MatchError, "pattern keyword :%s did not match %s", p.Name, v)
		}
		return nil
	case values.VectorPattern:
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
			if err := e.bindPattern(ep, vec[i], scope); err != nil {
				return err
			}
		}
		if p.Rest != nil {
			scope.Define(*p.Rest, append(values.Vector{}, vec[len(p.Elements):]...))
		}
		return nil
	case values.MapPattern:
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
			if err := e.bindPattern(ep, fv, scope); err != nil {
				return err
			}
		}
		if p.Rest != nil {
			rest := make(values.Map)
			for k, v := range m {
				if !matched[k] {
					rest[k] = v
				}
			}
			scope.Define(*p.Rest, rest)
		}
		return nil
	default:
		return runtimeerr.New(runtimeerr.InternalError, "unhandled pattern %T", pat)
	}
}

func (e *Evaluator) evalCall(n ast.Call, env *Environment, depth int) (values.Value, error) {
	fnVal, err := e.evalDepth(n.Fn, env, depth+1)
	if err != nil {
		return nil, err
	}

	// `call` is the well-known form dispatching into the Host for
	// capability invocation: (call :capability-id arg...).
	if sym, ok := n.Fn.(ast.SymbolRef); ok && sym.Name == "call" {
		return e.evalHostCall(n, env, depth)
	}

	args := make([]values.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := e.evalDepth(a, env, depth+1)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return e.apply(fnVal, args, depth)
}

func (e *Evaluator) evalHostCall(n ast.Call, env *Environment, depth int) (values.Value, error) {
	if len(n.Args) == 0 {
		return nil, runtimeerr.New(runtimeerr.ArityMismatch, "call requires a capability id")
	}
	idVal, err := e.evalDepth(n.Args[0], env, depth+1)
	if err != nil {
		return nil, err
	}
	kw, ok := idVal.(values.Keyword)
	if !ok {
		return nil, runtimeerr.New(runtimeerr.TypeError, "call requires a keyword capability id, got %s", values.TypeName(idVal))
	}
	rest := make([]values.Value, len(n.Args)-1)
	for i, a := range n.Args[1:] {
		v, err := e.evalDepth(a, env, depth+1)
		if err != nil {
			return nil, err
		}
		rest[i] = v
	}
	return e.host.ExecuteCapability(string(kw), rest)
}

func (e *Evaluator) evalCapabilityCall(name string, args []values.Value, env *Environment, extra ast.Node, depth int) (values.Value, error) {
	if extra != nil {
		v, err := e.evalDepth(extra, env, depth+1)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return e.host.ExecuteCapability(name, args)
}

// apply invokes fn with args; keyword invocation sugar `(:k m)`/`(:k m d)`
// is handled here since Keyword is not itself a Function.
func (e *Evaluator) apply(fn values.Value, args []values.Value, depth int) (values.Value, error) {
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
		return e.apply(resolved, args, depth)
	case *values.BuiltinFunction:
		if !f.Arity().Accepts(len(args)) {
			return nil, runtimeerr.New(runtimeerr.ArityMismatch, "%s expects %d args, got %d", f.Name, f.ArityV.Min, len(args))
		}
		return f.Handler(args)
	case *values.UserDefinedFunction:
		return e.applyUserDefined(f, args, depth)
	default:
		return nil, runtimeerr.New(runtimeerr.NotCallable, "value of type %s is not callable", values.TypeName(fn))
	}
}

func (e *Evaluator) applyUserDefined(f *values.UserDefinedFunction, args []values.Value, depth int) (values.Value, error) {
	closure, ok := f.Closure.(*Environment)
	if !ok {
		return nil, runtimeerr.New(runtimeerr.InternalError, "corrupt closure environment")
	}
	arity := f.Arity()
	if !arity.Accepts(len(args)) {
		return nil, runtimeerr.New(runtimeerr.ArityMismatch, "function %s expects %s, got %d args", f.Name, arityDesc(arity), len(args))
	}
	scope := closure.Child()
	for i, p := range f.Params {
		if err := e.bindPattern(p, args[i], scope); err != nil {
			return nil, err
		}
	}
	if f.Variadic != nil {
		rest := append(values.Vector{}, args[len(f.Params):]...)
		if err := e.bindPattern(*f.Variadic, rest, scope); err != nil {
			return nil, err
		}
	}
	body, ok := f.Body.([]ast.Node)
	if !ok {
		return nil, runtimeerr.New(runtimeerr.InternalError, "corrupt function body")
	}
	return e.evalBody(body, scope, depth+1)
}

func arityDesc(a values.Arity) string {
	if a.Variadic {
		return fmt.Sprintf("at least %d", a.Min)
	}
	return fmt.Sprintf("%d", a.Min)
}

func (e *Evaluator) evalMatch(n ast.Match, env *Environment, depth int) (values.Value, error) {
	v, err := e.evalDepth(n.Expr, env, depth+1)
	if err != nil {
		return nil, err
	}
	for _, clause := range n.Clauses {
		scope := env.Child()
		if bindErr := e.bindPattern(clause.Pattern, v, scope); bindErr != nil {
			continue
		}
		if clause.Guard != nil {
			g, err := e.evalDepth(clause.Guard, scope, depth+1)
			if err != nil {
				return nil, err
			}
			if !values.Truthy(g) {
				continue
			}
		}
		return e.evalDepth(clause.Body, scope, depth+1)
	}
	return nil, runtimeerr.New(runtimeerr.MatchError, "no match clause succeeded for %s", v)
}

func (e *Evaluator) evalTryCatch(n ast.TryCatch, env *Environment, depth int) (values.Value, error) {
	result, tryErr := e.evalDepth(n.Try, env, depth+1)
	if tryErr == nil {
		if n.Finally != nil {
			if _, err := e.evalDepth(n.Finally, env, depth+1); err != nil {
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
		if c.Binding != "" {
			scope.Define(c.Binding, errVal.ToMap())
		}
		caught, err := e.evalDepth(c.Body, scope, depth+1)
		if n.Finally != nil {
			if _, ferr := e.evalDepth(n.Finally, env, depth+1); ferr != nil {
				return nil, ferr
			}
		}
		return caught, err
	}
	if n.Finally != nil {
		if _, err := e.evalDepth(n.Finally, env, depth+1); err != nil {
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

func matchesErrorPattern(pat values.Pattern, errVal *values.ErrorValue) bool {
	switch p := pat.(type) {
	case values.WildcardPattern:
		return true
	case values.KeywordPattern:
		return p.Name == errVal.Kind
	case values.SymbolPattern:
		return true
	default:
		return false
	}
}

func (e *Evaluator) evalWithResource(n ast.WithResource, env *Environment, depth int) (values.Value, error) {
	initVal, err := e.evalDepth(n.Init, env, depth+1)
	if err != nil {
		return nil, err
	}
	handle, ok := initVal.(*values.ResourceHandle)
	if !ok {
		return nil, runtimeerr.New(runtimeerr.TypeError, "with-resource init must yield a ResourceHandle, got %s", values.TypeName(initVal))
	}
	handle.State = values.ResourceActive

	scope := env.Child()
	scope.Define(n.Binding, handle)

	result, bodyErr := e.evalBody(n.Body, scope, depth+1)
	handle.State = values.ResourceReleased
	return result, bodyErr
}

func (e *Evaluator) evalParallel(n ast.Parallel, env *Environment, depth int) (values.Value, error) {
	// Sequential evaluation in binding order; only the observable result
	// needs to match a sequential evaluation, not actual concurrency.
	result := make(values.Map, len(n.Bindings))
	for _, b := range n.Bindings {
		v, err := e.evalDepth(b.Expr, env, depth+1)
		if err != nil {
			return nil, err
		}
		result[values.KeywordKey(b.Symbol)] = v
	}
	return result, nil
}

func (e *Evaluator) evalLogStep(n ast.LogStep, env *Environment, depth int) (values.Value, error) {
	vals := make([]values.Value, len(n.Values))
	for i, v := range n.Values {
		val, err := e.evalDepth(v, env, depth+1)
		if err != nil {
			return nil, err
		}
		vals[i] = val
	}
	if e.host != nil {
		e.host.LogStep(n.Level, vals)
	}
	if len(vals) == 0 {
		return values.Nil{}, nil
	}
	return vals[len(vals)-1], nil
}
