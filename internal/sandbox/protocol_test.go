package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/antigravity-dev/ccos/internal/values"
)

// fakeProcess is the in-process Process the pack's sandbox tests drive
// instead of a real container or the bwrap binary: one pipe stands in for
// the child's stdout, another for its stdin.
type fakeProcess struct {
	outR *io.PipeReader
	outW *io.PipeWriter
	inR  *io.PipeReader
	inW  *io.PipeWriter

	waitCh chan error
}

func newFakeProcess() *fakeProcess {
	outR, outW := io.Pipe()
	inR, inW := io.Pipe()
	return &fakeProcess{outR: outR, outW: outW, inR: inR, inW: inW, waitCh: make(chan error, 1)}
}

func (p *fakeProcess) Stdout() io.Reader { return p.outR }
func (p *fakeProcess) Stdin() io.Writer  { return p.inW }
func (p *fakeProcess) Wait() error       { return <-p.waitCh }
func (p *fakeProcess) Kill() error {
	_ = p.outW.Close()
	_ = p.inW.Close()
	select {
	case p.waitCh <- fmt.Errorf("sandbox: killed"):
	default:
	}
	return nil
}

type fakeRunner struct{ proc *fakeProcess }

func (r *fakeRunner) Start(ctx context.Context, spec Spec) (Process, error) { return r.proc, nil }

// fakeExecutor is a CapabilityExecutor double recording every call it
// receives, the callback target a sandboxed script's CCOS_CALL:: line
// should reach.
type fakeExecutor struct {
	results map[string]values.Value
	errs    map[string]error
	calls   []string
}

func (f *fakeExecutor) ExecuteCapability(id string, args []values.Value) (values.Value, error) {
	f.calls = append(f.calls, id)
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return f.results[id], nil
}

// TestLineProtocolDispatchesCapabilityCall is the S5 seed scenario: a
// sandboxed script calls memory.get, the host replies over the line
// protocol, and its non-protocol stdout is clean.
func TestLineProtocolDispatchesCapabilityCall(t *testing.T) {
	proc := newFakeProcess()
	exec := &fakeExecutor{results: map[string]values.Value{"memory.get": values.Str("v")}}
	host := NewLineProtocolHost(&fakeRunner{proc: proc}, exec, nil)

	done := make(chan string, 1)
	go func() {
		fmt.Fprintln(proc.outW, `CCOS_CALL::{"cap":"memory.get","inputs":{"key":"k"}}`)
		scanner := bufio.NewScanner(proc.inR)
		if !scanner.Scan() {
			done <- ""
			return
		}
		line := scanner.Text()
		_ = proc.outW.Close()
		proc.waitCh <- nil
		done <- line
	}()

	result, err := host.Run(context.Background(), Spec{Command: []string{"python3", "script.py"}})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if result.Stdout != "" {
		t.Fatalf("expected no captured stdout, got %q", result.Stdout)
	}
	if len(exec.calls) != 1 || exec.calls[0] != "memory.get" {
		t.Fatalf("expected one memory.get call, got %v", exec.calls)
	}

	replyLine := <-done
	if !strings.HasPrefix(replyLine, resultPrefix) {
		t.Fatalf("expected a CCOS_RESULT:: reply, got %q", replyLine)
	}
	if !strings.Contains(replyLine, `"success":true`) || !strings.Contains(replyLine, `"value":"v"`) {
		t.Fatalf("expected success:true value:\"v\", got %q", replyLine)
	}
}

// TestLineProtocolSurvivesMalformedCall is seed scenario S9: malformed
// CCOS_CALL:: JSON gets a success:false CCOS_RESULT:: reply, the protocol
// does not crash, and remaining stdout is preserved.
func TestLineProtocolSurvivesMalformedCall(t *testing.T) {
	proc := newFakeProcess()
	exec := &fakeExecutor{}
	host := NewLineProtocolHost(&fakeRunner{proc: proc}, exec, nil)

	go func() {
		fmt.Fprintln(proc.outW, `CCOS_CALL::not-json-at-all`)
		scanner := bufio.NewScanner(proc.inR)
		scanner.Scan() // drain the error reply so the host's write doesn't block

		fmt.Fprintln(proc.outW, "trailing output line")
		_ = proc.outW.Close()
		proc.waitCh <- nil
	}()

	result, err := host.Run(context.Background(), Spec{Command: []string{"python3", "script.py"}})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("expected no dispatched calls for malformed JSON, got %v", exec.calls)
	}
	if strings.TrimSpace(result.Stdout) != "trailing output line" {
		t.Fatalf("expected trailing output preserved, got %q", result.Stdout)
	}
}

// TestLineProtocolCapabilityErrorBecomesFailureEnvelope confirms a
// dispatch error never crashes the loop, only yields success:false.
func TestLineProtocolCapabilityErrorBecomesFailureEnvelope(t *testing.T) {
	proc := newFakeProcess()
	exec := &fakeExecutor{errs: map[string]error{"memory.get": fmt.Errorf("host: capability denied")}}
	host := NewLineProtocolHost(&fakeRunner{proc: proc}, exec, nil)

	done := make(chan string, 1)
	go func() {
		fmt.Fprintln(proc.outW, `CCOS_CALL::{"cap":"memory.get","inputs":{"key":"k"}}`)
		scanner := bufio.NewScanner(proc.inR)
		scanner.Scan()
		done <- scanner.Text()
		_ = proc.outW.Close()
		proc.waitCh <- nil
	}()

	if _, err := host.Run(context.Background(), Spec{Command: []string{"python3", "script.py"}}); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	reply := <-done
	if !strings.Contains(reply, `"success":false`) || !strings.Contains(reply, "denied") {
		t.Fatalf("expected a failure envelope naming the error, got %q", reply)
	}
}

// TestLineProtocolKillsOnDeadline confirms a child that never closes
// stdout is killed once the context deadline expires.
func TestLineProtocolKillsOnDeadline(t *testing.T) {
	proc := newFakeProcess()
	host := NewLineProtocolHost(&fakeRunner{proc: proc}, &fakeExecutor{}, nil)

	_, err := host.Run(context.Background(), Spec{Command: []string{"sleep", "infinity"}, Timeout: 20 * time.Millisecond})
	if err == nil {
		t.Fatalf("expected a deadline error")
	}
}
