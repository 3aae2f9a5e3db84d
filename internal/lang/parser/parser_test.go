package parser

import (
	"testing"

	"github.com/antigravity-dev/ccos/internal/lang/ast"
)

func TestParseSimpleCall(t *testing.T) {
	prog, err := Parse(`(call :echo "hi")`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog.Forms) != 1 {
		t.Fatalf("expected 1 form, got %d", len(prog.Forms))
	}
	call, ok := prog.Forms[0].(ast.Call)
	if !ok {
		t.Fatalf("expected Call, got %T", prog.Forms[0])
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(call.Args))
	}
}

func TestParseLetrecMutualRecursion(t *testing.T) {
	src := `(let { even (fn [n] (if (= n 0) true (odd (- n 1))))
	            odd (fn [n] (if (= n 0) false (even (- n 1)))) }
	       (even 10))`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog.Forms) != 1 {
		t.Fatalf("expected 1 form, got %d", len(prog.Forms))
	}
	let, ok := prog.Forms[0].(ast.Let)
	if !ok {
		t.Fatalf("expected Let, got %T", prog.Forms[0])
	}
	if len(let.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(let.Bindings))
	}
}

func TestParseMissingClosingParenIsError(t *testing.T) {
	_, err := Parse(`(echo "hi"`)
	if err == nil {
		t.Fatalf("expected missing-token error")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Kind != MissingToken {
		t.Fatalf("expected MissingToken error, got %v", err)
	}
}

func TestParseWithResource(t *testing.T) {
	prog, err := Parse(`(with-resource {h make-handle} (use h))`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	wr, ok := prog.Forms[0].(ast.WithResource)
	if !ok {
		t.Fatalf("expected WithResource, got %T", prog.Forms[0])
	}
	if wr.Binding != "h" {
		t.Fatalf("expected binding h, got %s", wr.Binding)
	}
}

func TestParseMatch(t *testing.T) {
	prog, err := Parse(`(match x 1 :one _ :other)`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	m, ok := prog.Forms[0].(ast.Match)
	if !ok {
		t.Fatalf("expected Match, got %T", prog.Forms[0])
	}
	if len(m.Clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(m.Clauses))
	}
}
