package ir

import (
	"testing"

	"github.com/antigravity-dev/ccos/internal/lang/parser"
)

func build(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	p, err := NewBuilder().Build(*prog)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	return p
}

func TestBuildLiteral(t *testing.T) {
	p := build(t, `42`)
	if len(p.Forms) != 1 {
		t.Fatalf("expected 1 form, got %d", len(p.Forms))
	}
	if _, ok := p.Forms[0].(Literal); !ok {
		t.Fatalf("expected Literal, got %T", p.Forms[0])
	}
}

func TestBuildUnresolvedSymbolBecomesGlobalRef(t *testing.T) {
	p := build(t, `(+ 1 2)`)
	apply, ok := p.Forms[0].(Apply)
	if !ok {
		t.Fatalf("expected Apply, got %T", p.Forms[0])
	}
	ref, ok := apply.Function.(GlobalRef)
	if !ok {
		t.Fatalf("expected GlobalRef for +, got %T", apply.Function)
	}
	if ref.Name != "+" {
		t.Fatalf("expected GlobalRef name +, got %q", ref.Name)
	}
}

func TestBuildLetResolvesLocalBinding(t *testing.T) {
	p := build(t, `(let {x 1} (+ x x))`)
	let, ok := p.Forms[0].(Let)
	if !ok {
		t.Fatalf("expected Let, got %T", p.Forms[0])
	}
	bp, ok := let.Bindings[0].Pattern.(BindingPattern)
	if !ok {
		t.Fatalf("expected BindingPattern, got %T", let.Bindings[0].Pattern)
	}
	apply := let.Body[0].(Apply)
	for _, argNode := range apply.Arguments {
		ref, ok := argNode.(VariableRef)
		if !ok {
			t.Fatalf("expected VariableRef in body, got %T", argNode)
		}
		if ref.Binding != bp.Binding {
			t.Fatalf("body reference %d does not match let binding %d", ref.Binding, bp.Binding)
		}
	}
}

func TestBuildLetrecMutualRecursionSharesBindingIDs(t *testing.T) {
	p := build(t, `
		(letrec {is-even (fn [n] (if (= n 0) true (is-odd (- n 1))))
		         is-odd  (fn [n] (if (= n 0) false (is-even (- n 1))))}
		  (is-even 10))`)
	let, ok := p.Forms[0].(Let)
	if !ok {
		t.Fatalf("expected Let, got %T", p.Forms[0])
	}
	if !let.Rec {
		t.Fatalf("expected Rec=true for letrec")
	}
	if len(let.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(let.Bindings))
	}
	for _, b := range let.Bindings {
		if !b.IsFnValued {
			t.Fatalf("expected IsFnValued for lambda-valued letrec binding %+v", b)
		}
	}

	isEvenID := let.Bindings[0].Pattern.(BindingPattern).Binding
	isOddID := let.Bindings[1].Pattern.(BindingPattern).Binding

	isEvenLambda := let.Bindings[0].Init.(Lambda)
	ifNode := isEvenLambda.Body[0].(If)
	elseApply := ifNode.Else.(Apply)
	ref, ok := elseApply.Function.(VariableRef)
	if !ok {
		t.Fatalf("expected VariableRef to is-odd inside is-even, got %T", elseApply.Function)
	}
	if ref.Binding != isOddID {
		t.Fatalf("is-even's call to is-odd resolved to binding %d, want %d", ref.Binding, isOddID)
	}

	isOddLambda := let.Bindings[1].Init.(Lambda)
	ifNode2 := isOddLambda.Body[0].(If)
	elseApply2 := ifNode2.Else.(Apply)
	ref2 := elseApply2.Function.(VariableRef)
	if ref2.Binding != isEvenID {
		t.Fatalf("is-odd's call to is-even resolved to binding %d, want %d", ref2.Binding, isEvenID)
	}
}

func TestBuildLambdaCapturesFreeVariable(t *testing.T) {
	p := build(t, `(let {x 1} (fn [y] (+ x y)))`)
	let := p.Forms[0].(Let)
	xID := let.Bindings[0].Pattern.(BindingPattern).Binding
	lambda, ok := let.Body[0].(Lambda)
	if !ok {
		t.Fatalf("expected Lambda, got %T", let.Body[0])
	}
	if len(lambda.Captures) != 1 || lambda.Captures[0] != xID {
		t.Fatalf("expected lambda to capture binding %d, got %v", xID, lambda.Captures)
	}
	// y is a local param, not a capture.
	yID := lambda.Params[0].Pattern.(BindingPattern).Binding
	for _, c := range lambda.Captures {
		if c == yID {
			t.Fatalf("local param %d should not appear in Captures", yID)
		}
	}
}

func TestBuildHostCallSplitsOutOfApply(t *testing.T) {
	p := build(t, `(call :weather.get {:city "NYC"})`)
	hc, ok := p.Forms[0].(HostCall)
	if !ok {
		t.Fatalf("expected HostCall, got %T", p.Forms[0])
	}
	if hc.CapabilityID != "weather.get" {
		t.Fatalf("expected capability id weather.get, got %q", hc.CapabilityID)
	}
	if len(hc.Arguments) != 1 {
		t.Fatalf("expected 1 argument, got %d", len(hc.Arguments))
	}
}

func TestBuildDefnAllowsSelfRecursion(t *testing.T) {
	p := build(t, `(defn countdown [n] (if (= n 0) 0 (countdown (- n 1))))`)
	def, ok := p.Forms[0].(Def)
	if !ok {
		t.Fatalf("expected Def, got %T", p.Forms[0])
	}
	lambda, ok := def.Init.(Lambda)
	if !ok {
		t.Fatalf("expected Lambda, got %T", def.Init)
	}
	ifNode := lambda.Body[0].(If)
	elseApply := ifNode.Else.(Apply)
	ref, ok := elseApply.Function.(VariableRef)
	if !ok {
		t.Fatalf("expected self-recursive call to resolve to a VariableRef, got %T", elseApply.Function)
	}
	if ref.Binding != def.Binding {
		t.Fatalf("self-recursive call resolved to %d, want def binding %d", ref.Binding, def.Binding)
	}
}

func TestBuildProgramBindingCountCoversAllSlots(t *testing.T) {
	p := build(t, `(def a 1) (def b 2) (let {c 3} c)`)
	if p.BindingCount < 3 {
		t.Fatalf("expected at least 3 binding slots, got %d", p.BindingCount)
	}
}

func TestBuildNodeIDsAreUnique(t *testing.T) {
	p := build(t, `(let {x 1 y 2} (+ x y))`)
	seen := make(map[NodeID]bool)
	var walk func(n Node)
	walk = func(n Node) {
		if n == nil {
			return
		}
		if seen[n.ID()] {
			t.Fatalf("duplicate NodeID %d", n.ID())
		}
		seen[n.ID()] = true
		switch v := n.(type) {
		case Let:
			for _, b := range v.Bindings {
				walk(b.Init)
			}
			for _, b := range v.Body {
				walk(b)
			}
		case Apply:
			walk(v.Function)
			for _, a := range v.Arguments {
				walk(a)
			}
		}
	}
	for _, f := range p.Forms {
		walk(f)
	}
	if len(seen) == 0 {
		t.Fatalf("expected at least one node visited")
	}
}
