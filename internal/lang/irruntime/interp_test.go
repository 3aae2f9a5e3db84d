package irruntime

import (
	"testing"

	"github.com/antigravity-dev/ccos/internal/lang/ir"
	"github.com/antigravity-dev/ccos/internal/lang/parser"
	"github.com/antigravity-dev/ccos/internal/values"
)

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

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

func run(t *testing.T, ip *Interpreter, src string) values.Value {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	built, err := ir.NewBuilder().Build(*prog)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	v, err := ip.Run(built)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return v
}

func TestRunArithmeticAndComparison(t *testing.T) {
	ip := NewInterpreter(&fakeHost{})
	v := run(t, ip, `(+ 1 2 3)`)
	if v.(values.Int) != 6 {
		t.Fatalf("expected 6, got %v", v)
	}
	v = run(t, ip, `(< 1 2 3)`)
	if v.(values.Boolean) != true {
		t.Fatalf("expected true, got %v", v)
	}
}

func TestRunIfBranches(t *testing.T) {
	ip := NewInterpreter(&fakeHost{})
	if v := run(t, ip, `(if true 1 2)`); v.(values.Int) != 1 {
		t.Fatalf("expected 1, got %v", v)
	}
	if v := run(t, ip, `(if false 1 2)`); v.(values.Int) != 2 {
		t.Fatalf("expected 2, got %v", v)
	}
}

// TestRunLetrecMutualRecursion mirrors the letrec seed scenario (S4) at the
// IR level, using an explicit letrec form; eval's TestEvalLetrecMutualRecursion
// covers mutual recursion through a plain let against the AST evaluator.
func TestRunLetrecMutualRecursion(t *testing.T) {
	ip := NewInterpreter(&fakeHost{})
	src := `(letrec {is-even (fn [n] (if (= n 0) true (is-odd (- n 1))))
	                  is-odd  (fn [n] (if (= n 0) false (is-even (- n 1))))}
	          (is-even 10))`
	v := run(t, ip, src)
	if v.(values.Boolean) != true {
		t.Fatalf("expected true (10 is even), got %v", v)
	}
}

// TestRunDeepTailRecursionDoesNotOverflow proves the trampoline: a
// self-recursive tail call run far past DefaultMaxDepth must still
// complete, since it never grows the Go call stack or the depth counter
// once it's a tail call.
func TestRunDeepTailRecursionDoesNotOverflow(t *testing.T) {
	ip := NewInterpreter(&fakeHost{})
	src := `(letrec {countdown (fn [n acc] (if (= n 0) acc (countdown (- n 1) (+ acc 1))))}
	          (countdown 200000 0))`
	v := run(t, ip, src)
	if v.(values.Int) != 200000 {
		t.Fatalf("expected 200000, got %v", v)
	}
}

func TestRunNonTailRecursionRespectsMaxDepth(t *testing.T) {
	ip := NewInterpreter(&fakeHost{})
	prog, err := parser.Parse(`(letrec {sum (fn [n] (if (= n 0) 0 (+ n (sum (- n 1)))))} (sum 100000))`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	built, err := ir.NewBuilder().Build(*prog)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	_, err = ip.Run(built)
	if err == nil {
		t.Fatalf("expected stack-overflow error for deep non-tail recursion")
	}
}

func TestRunHostCallDispatchesCapability(t *testing.T) {
	host := &fakeHost{reply: values.Str("pong")}
	ip := NewInterpreter(host)
	v := run(t, ip, `(call :echo "ping")`)
	if v.(values.Str) != "pong" {
		t.Fatalf("expected pong, got %v", v)
	}
	if len(host.calls) != 1 || host.calls[0] != "echo" {
		t.Fatalf("expected one call to echo, got %v", host.calls)
	}
}

func TestRunTryCatchBindsError(t *testing.T) {
	host := &fakeHost{err: &testErr{"boom"}}
	ip := NewInterpreter(host)
	v := run(t, ip, `(try (call :fail) (catch _ e (get e :message)))`)
	if v.(values.Str) != "boom" {
		t.Fatalf("expected boom, got %v", v)
	}
}

func TestRunTryCatchSwallowsTailCallSentinel(t *testing.T) {
	// A tail call inside a try body must fully resolve before try/catch
	// sees the result: it must never leak a tailCall sentinel as an error.
	ip := NewInterpreter(&fakeHost{})
	src := `(letrec {f (fn [n] (if (= n 0) 42 (f (- n 1))))}
	          (try (f 5) (catch _ e -1)))`
	v := run(t, ip, src)
	if v.(values.Int) != 42 {
		t.Fatalf("expected 42, got %v", v)
	}
}

// TestRunWithResourceReleasesOnExit builds the ir.WithResource node directly
// rather than through the parser/builder, since there's no source syntax
// that yields a ResourceHandle value: it's always host-provided.
func TestRunWithResourceReleasesOnExit(t *testing.T) {
	ip := NewInterpreter(&fakeHost{})
	env := NewEnv(nil)
	handle := &values.ResourceHandle{ID: "r1", Type: "test"}
	const initBinding ir.BindingID = 100
	const bodyBinding ir.BindingID = 101
	env.Define(initBinding, handle)

	node := ir.WithResource{
		Binding: ir.BindingPattern{Binding: bodyBinding, Name: "h"},
		Init:    ir.VariableRef{Binding: initBinding, Name: "make-handle"},
		Body:    []ir.Node{ir.VariableRef{Binding: bodyBinding, Name: "h"}},
	}

	v, err := ip.Eval(node, env)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if v != values.Value(handle) {
		t.Fatalf("expected the handle itself returned, got %v", v)
	}
	if handle.State != values.ResourceReleased {
		t.Fatalf("expected handle released after with-resource exits, got %v", handle.State)
	}
}

func TestRunLambdaCapturesOuterBinding(t *testing.T) {
	ip := NewInterpreter(&fakeHost{})
	v := run(t, ip, `(let {x 10} ((fn [y] (+ x y)) 5))`)
	if v.(values.Int) != 15 {
		t.Fatalf("expected 15, got %v", v)
	}
}

func TestRunVariadicFunction(t *testing.T) {
	ip := NewInterpreter(&fakeHost{})
	v := run(t, ip, `(letrec {sum-all (fn [& xs] (if (= (count xs) 0) 0 (+ (first xs) (sum-all))))} (sum-all))`)
	if v.(values.Int) != 0 {
		t.Fatalf("expected 0, got %v", v)
	}
}
