package eval

import (
	"testing"

	"github.com/antigravity-dev/ccos/internal/lang/parser"
	"github.com/antigravity-dev/ccos/internal/values"
)

// fakeHost is a minimal Host double recording capability calls, used
// instead of the full internal/host.Host so eval tests don't depend on
// causal-chain or marketplace wiring.
type fakeHost struct {
	calls []string
	reply values.Value
	err   error
	logs  []string
}

func (h *fakeHost) ExecuteCapability(id string, args []values.Value) (values.Value, error) {
	h.calls = append(h.calls, id)
	if h.err != nil {
		return nil, h.err
	}
	if h.reply != nil {
		return h.reply, nil
	}
	return values.Nil{}, nil
}

func (h *fakeHost) LogStep(level string, vals []values.Value) {
	h.logs = append(h.logs, level)
}

func run(t *testing.T, e *Evaluator, src string) values.Value {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	v, err := e.Eval(*prog, e.GlobalEnv())
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	return v
}

func TestEvalArithmeticAndComparison(t *testing.T) {
	e := NewEvaluator(&fakeHost{})
	v := run(t, e, `(+ 1 2 3)`)
	if v.(values.Int) != 6 {
		t.Fatalf("expected 6, got %v", v)
	}
	v = run(t, e, `(< 1 2 3)`)
	if v.(values.Boolean) != true {
		t.Fatalf("expected true, got %v", v)
	}
}

func TestEvalIfBranches(t *testing.T) {
	e := NewEvaluator(&fakeHost{})
	if v := run(t, e, `(if true 1 2)`); v.(values.Int) != 1 {
		t.Fatalf("expected 1, got %v", v)
	}
	if v := run(t, e, `(if false 1 2)`); v.(values.Int) != 2 {
		t.Fatalf("expected 2, got %v", v)
	}
}

// TestEvalLetrecMutualRecursion verifies that two functions bound in the
// same letrec scope can see each other.
func TestEvalLetrecMutualRecursion(t *testing.T) {
	e := NewEvaluator(&fakeHost{})
	src := `(let { even (fn [n] (if (= n 0) true (odd (- n 1))))
	            odd (fn [n] (if (= n 0) false (even (- n 1)))) }
	       (even 10))`
	v := run(t, e, src)
	if v.(values.Boolean) != true {
		t.Fatalf("expected true (10 is even), got %v", v)
	}
}

func TestEvalHostCallDispatchesCapability(t *testing.T) {
	host := &fakeHost{reply: values.Str("pong")}
	e := NewEvaluator(host)
	v := run(t, e, `(call :echo "ping")`)
	if v.(values.Str) != "pong" {
		t.Fatalf("expected pong, got %v", v)
	}
	if len(host.calls) != 1 || host.calls[0] != "echo" {
		t.Fatalf("expected one call to echo, got %v", host.calls)
	}
}

func TestEvalTryCatchBindsError(t *testing.T) {
	host := &fakeHost{err: &testErr{"boom"}}
	e := NewEvaluator(host)
	v := run(t, e, `(try (call :fail) (catch _ e (get e :message)))`)
	if v.(values.Str) != "boom" {
		t.Fatalf("expected boom, got %v", v)
	}
}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

func TestEvalWithResourceReleasesOnExit(t *testing.T) {
	e := NewEvaluator(&fakeHost{})
	env := e.GlobalEnv()
	handle := &values.ResourceHandle{ID: "r1", Type: "test"}
	env.Define("make-handle", handle)
	prog, err := parser.Parse(`(with-resource {h make-handle} h)`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := e.Eval(*prog, env); err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if handle.State != values.ResourceReleased {
		t.Fatalf("expected resource released after with-resource body, got %v", handle.State)
	}
}
