package ir

import (
	"fmt"

	"github.com/antigravity-dev/ccos/internal/lang/ast"
	"github.com/antigravity-dev/ccos/internal/values"
)

// Builder lowers a parsed ast.Program into a resolved ir.Program: every
// SymbolRef becomes a VariableRef(BindingID) or, for names no lexical scope
// resolves, a GlobalRef looked up by name at runtime (builtins and anything
// else the interpreter's global table provides).
type Builder struct {
	nextNode    NodeID
	nextBinding BindingID
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) node() NodeID {
	id := b.nextNode
	b.nextNode++
	return id
}

// Build lowers a full program under a fresh top-level scope.
func (b *Builder) Build(prog ast.Program) (*Program, error) {
	root := newScope(nil)
	forms := make([]Node, 0, len(prog.Forms))
	for _, f := range prog.Forms {
		n, err := b.buildNode(f, root)
		if err != nil {
			return nil, err
		}
		forms = append(forms, n)
	}
	return &Program{base: base{b.node()}, Forms: forms, BindingCount: int(b.nextBinding)}, nil
}

func (b *Builder) buildNode(n ast.Node, sc *scope) (Node, error) {
	switch v := n.(type) {
	case ast.Literal:
		return Literal{base{b.node()}, v.Value}, nil

	case ast.SymbolRef:
		if id, ok := sc.resolve(v.Name); ok {
			return VariableRef{base{b.node()}, id, v.Name}, nil
		}
		return GlobalRef{base{b.node()}, v.Name}, nil

	case ast.KeywordRef:
		return KeywordRef{base{b.node()}, v.Name}, nil

	case ast.VectorExpr:
		elems, err := b.buildNodes(v.Elements, sc)
		if err != nil {
			return nil, err
		}
		return Vector{base{b.node()}, elems}, nil

	case ast.ListExpr:
		elems, err := b.buildNodes(v.Elements, sc)
		if err != nil {
			return nil, err
		}
		return ListExpr{base{b.node()}, elems}, nil

	case ast.MapExpr:
		entries := make([]MapEntry, 0, len(v.Entries))
		for _, e := range v.Entries {
			k, err := b.buildNode(e.Key, sc)
			if err != nil {
				return nil, err
			}
			val, err := b.buildNode(e.Value, sc)
			if err != nil {
				return nil, err
			}
			entries = append(entries, MapEntry{Key: k, Value: val})
		}
		return Map{base{b.node()}, entries}, nil

	case ast.Call:
		return b.buildCall(v, sc)

	case ast.If:
		cond, err := b.buildNode(v.Cond, sc)
		if err != nil {
			return nil, err
		}
		then, err := b.buildNode(v.Then, sc)
		if err != nil {
			return nil, err
		}
		var elseN Node
		if v.Else != nil {
			elseN, err = b.buildNode(v.Else, sc)
			if err != nil {
				return nil, err
			}
		}
		return If{base{b.node()}, cond, then, elseN}, nil

	case ast.Let:
		return b.buildLet(v, sc)

	case ast.Do:
		body, err := b.buildNodes(v.Body, sc)
		if err != nil {
			return nil, err
		}
		return Do{base{b.node()}, body}, nil

	case ast.Fn:
		return b.buildFn(v, sc)

	case ast.Def:
		id := sc.define(v.Name, &b.nextBinding)
		init, err := b.buildNode(v.Init, sc)
		if err != nil {
			return nil, err
		}
		return Def{base{b.node()}, id, v.Name, v.TypeAnn, init}, nil

	case ast.Defn:
		// defn is sugar for (def name (fn params body)): the name is
		// resolvable inside its own body for self-recursion, so it must be
		// defined before the lambda is built.
		id := sc.define(v.Name, &b.nextBinding)
		lambda, err := b.buildFn(ast.Fn{Params: v.Params, Variadic: v.Variadic, Body: v.Body}, sc)
		if err != nil {
			return nil, err
		}
		if l, ok := lambda.(Lambda); ok {
			l.Name = v.Name
			lambda = l
		}
		return Def{base{b.node()}, id, v.Name, nil, lambda}, nil

	case ast.Match:
		return b.buildMatch(v, sc)

	case ast.TryCatch:
		return b.buildTryCatch(v, sc)

	case ast.WithResource:
		return b.buildWithResource(v, sc)

	case ast.Parallel:
		return b.buildParallel(v, sc)

	case ast.LogStep:
		vals, err := b.buildNodes(v.Values, sc)
		if err != nil {
			return nil, err
		}
		return LogStep{base{b.node()}, v.Level, vals}, nil

	case ast.DiscoverAgents:
		criteria, err := b.buildNode(v.Criteria, sc)
		if err != nil {
			return nil, err
		}
		return DiscoverAgents{base{b.node()}, criteria}, nil

	case ast.Program:
		forms, err := b.buildNodes(v.Forms, sc)
		if err != nil {
			return nil, err
		}
		return Program{base{b.node()}, forms, int(b.nextBinding)}, nil

	default:
		return nil, fmt.Errorf("ir: unhandled ast node type %T", n)
	}
}

func (b *Builder) buildNodes(nodes []ast.Node, sc *scope) ([]Node, error) {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		built, err := b.buildNode(n, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, built)
	}
	return out, nil
}

// buildCall special-cases `(call :capability-id arg...)` into a HostCall so
// the IR runtime never has to sniff a Keyword-headed application at
// dispatch time.
func (b *Builder) buildCall(v ast.Call, sc *scope) (Node, error) {
	if sym, ok := v.Fn.(ast.SymbolRef); ok && sym.Name == "call" && len(v.Args) >= 1 {
		if kw, ok := v.Args[0].(ast.KeywordRef); ok {
			args, err := b.buildNodes(v.Args[1:], sc)
			if err != nil {
				return nil, err
			}
			return HostCall{base{b.node()}, kw.Name, args}, nil
		}
	}
	fn, err := b.buildNode(v.Fn, sc)
	if err != nil {
		return nil, err
	}
	args, err := b.buildNodes(v.Args, sc)
	if err != nil {
		return nil, err
	}
	return Apply{base{b.node()}, fn, args}, nil
}

func (b *Builder) buildLet(v ast.Let, sc *scope) (Node, error) {
	letScope := newScope(sc)
	bindings := make([]LetBinding, 0, len(v.Bindings))

	// Pass 1 (letrec only): pre-declare every fn-valued binding's pattern
	// symbols so mutually recursive lambdas can resolve each other.
	if v.Rec {
		for _, lb := range v.Bindings {
			if _, isFn := lb.Init.(ast.Fn); isFn {
				b.declarePattern(lb.Pattern, letScope)
			}
		}
	}

	for _, lb := range v.Bindings {
		_, isFn := lb.Init.(ast.Fn)
		var pat Pattern
		var err error
		if v.Rec && isFn {
			pat, err = b.resolvedPattern(lb.Pattern, letScope)
		} else {
			pat, err = b.buildPattern(lb.Pattern, letScope)
		}
		if err != nil {
			return nil, err
		}
		init, err := b.buildNode(lb.Init, letScope)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, LetBinding{Pattern: pat, TypeAnn: lb.TypeAnn, Init: init, IsFnValued: isFn})
	}

	body, err := b.buildNodes(v.Body, letScope)
	if err != nil {
		return nil, err
	}
	return Let{base{b.node()}, bindings, body, v.Rec}, nil
}

func (b *Builder) buildFn(v ast.Fn, sc *scope) (Node, error) {
	lambdaScope := newLambdaScope(sc)
	params := make([]Param, 0, len(v.Params))
	for _, p := range v.Params {
		pat, err := b.buildPattern(p.Pattern, lambdaScope)
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Pattern: pat, TypeAnn: p.TypeAnn})
	}
	var variadic *Param
	if v.Variadic != nil {
		pat, err := b.buildPattern(v.Variadic.Pattern, lambdaScope)
		if err != nil {
			return nil, err
		}
		variadic = &Param{Pattern: pat, TypeAnn: v.Variadic.TypeAnn}
	}
	body, err := b.buildNodes(v.Body, lambdaScope)
	if err != nil {
		return nil, err
	}
	return Lambda{
		base:     base{b.node()},
		Params:   params,
		Variadic: variadic,
		Body:     body,
		Captures: lambdaScope.sortedCaptures(),
	}, nil
}

func (b *Builder) buildMatch(v ast.Match, sc *scope) (Node, error) {
	expr, err := b.buildNode(v.Expr, sc)
	if err != nil {
		return nil, err
	}
	clauses := make([]MatchClause, 0, len(v.Clauses))
	for _, c := range v.Clauses {
		clauseScope := newScope(sc)
		pat, err := b.buildPattern(c.Pattern, clauseScope)
		if err != nil {
			return nil, err
		}
		var guard Node
		if c.Guard != nil {
			guard, err = b.buildNode(c.Guard, clauseScope)
			if err != nil {
				return nil, err
			}
		}
		bodyNode, err := b.buildNode(c.Body, clauseScope)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, MatchClause{Pattern: pat, Guard: guard, Body: bodyNode})
	}
	return Match{base{b.node()}, expr, clauses}, nil
}

func (b *Builder) buildTryCatch(v ast.TryCatch, sc *scope) (Node, error) {
	try, err := b.buildNode(v.Try, sc)
	if err != nil {
		return nil, err
	}
	catches := make([]CatchClause, 0, len(v.Catches))
	for _, c := range v.Catches {
		catchScope := newScope(sc)
		errPat, err := b.buildPattern(c.ErrPattern, catchScope)
		if err != nil {
			return nil, err
		}
		var binding *BindingPattern
		if c.Binding != "" {
			id := catchScope.define(c.Binding, &b.nextBinding)
			binding = &BindingPattern{Binding: id, Name: c.Binding}
		}
		body, err := b.buildNode(c.Body, catchScope)
		if err != nil {
			return nil, err
		}
		catches = append(catches, CatchClause{ErrPattern: errPat, Binding: binding, Body: body})
	}
	var finally Node
	if v.Finally != nil {
		finally, err = b.buildNode(v.Finally, sc)
		if err != nil {
			return nil, err
		}
	}
	return TryCatch{base{b.node()}, try, catches, finally}, nil
}

func (b *Builder) buildWithResource(v ast.WithResource, sc *scope) (Node, error) {
	init, err := b.buildNode(v.Init, sc)
	if err != nil {
		return nil, err
	}
	bodyScope := newScope(sc)
	id := bodyScope.define(v.Binding, &b.nextBinding)
	body, err := b.buildNodes(v.Body, bodyScope)
	if err != nil {
		return nil, err
	}
	return WithResource{base{b.node()}, BindingPattern{Binding: id, Name: v.Binding}, init, body}, nil
}

func (b *Builder) buildParallel(v ast.Parallel, sc *scope) (Node, error) {
	parScope := newScope(sc)
	bindings := make([]ParallelBinding, 0, len(v.Bindings))
	for _, pb := range v.Bindings {
		expr, err := b.buildNode(pb.Expr, sc)
		if err != nil {
			return nil, err
		}
		id := parScope.define(pb.Symbol, &b.nextBinding)
		bindings = append(bindings, ParallelBinding{Binding: BindingPattern{Binding: id, Name: pb.Symbol}, Expr: expr})
	}
	return Parallel{base{b.node()}, bindings}, nil
}

// declarePattern pre-registers every symbol a pattern would bind, without
// building sub-patterns — used for the letrec pre-declaration pass.
func (b *Builder) declarePattern(p values.Pattern, sc *scope) {
	switch pp := p.(type) {
	case values.SymbolPattern:
		sc.define(pp.Name, &b.nextBinding)
	case values.VectorPattern:
		for _, e := range pp.Elements {
			b.declarePattern(e, sc)
		}
		if pp.Rest != nil {
			sc.define(*pp.Rest, &b.nextBinding)
		}
	case values.MapPattern:
		for _, e := range pp.Entries {
			b.declarePattern(e, sc)
		}
		if pp.Rest != nil {
			sc.define(*pp.Rest, &b.nextBinding)
		}
	}
}

// resolvedPattern converts a pattern whose symbols were already declared by
// declarePattern (the letrec pre-pass), looking them up instead of
// re-allocating binding IDs.
func (b *Builder) resolvedPattern(p values.Pattern, sc *scope) (Pattern, error) {
	switch pp := p.(type) {
	case values.WildcardPattern:
		return WildcardPattern{}, nil
	case values.SymbolPattern:
		id, ok := sc.resolve(pp.Name)
		if !ok {
			return nil, fmt.Errorf("ir: letrec binding %q not pre-declared", pp.Name)
		}
		return BindingPattern{Binding: id, Name: pp.Name}, nil
	default:
		return b.buildPattern(p, sc)
	}
}

// buildPattern lowers a values.Pattern into an ir.Pattern, allocating fresh
// binding IDs for every symbol it introduces.
func (b *Builder) buildPattern(p values.Pattern, sc *scope) (Pattern, error) {
	switch pp := p.(type) {
	case values.WildcardPattern:
		return WildcardPattern{}, nil
	case values.SymbolPattern:
		id := sc.define(pp.Name, &b.nextBinding)
		return BindingPattern{Binding: id, Name: pp.Name}, nil
	case values.LiteralPattern:
		return LiteralPattern{Value: pp.Value}, nil
	case values.KeywordPattern:
		return KeywordPattern{Name: pp.Name}, nil
	case values.VectorPattern:
		elems := make([]Pattern, 0, len(pp.Elements))
		for _, e := range pp.Elements {
			built, err := b.buildPattern(e, sc)
			if err != nil {
				return nil, err
			}
			elems = append(elems, built)
		}
		var rest *BindingPattern
		if pp.Rest != nil {
			id := sc.define(*pp.Rest, &b.nextBinding)
			rest = &BindingPattern{Binding: id, Name: *pp.Rest}
		}
		return VectorPattern{Elements: elems, Rest: rest}, nil
	case values.MapPattern:
		entries := make(map[string]Pattern, len(pp.Entries))
		for k, e := range pp.Entries {
			built, err := b.buildPattern(e, sc)
			if err != nil {
				return nil, err
			}
			entries[k] = built
		}
		var rest *BindingPattern
		if pp.Rest != nil {
			id := sc.define(*pp.Rest, &b.nextBinding)
			rest = &BindingPattern{Binding: id, Name: *pp.Rest}
		}
		return MapPattern{Entries: entries, Rest: rest}, nil
	default:
		return nil, fmt.Errorf("ir: unhandled pattern type %T", p)
	}
}
