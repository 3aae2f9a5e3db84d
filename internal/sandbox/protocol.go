package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antigravity-dev/ccos/internal/marketplace"
	"github.com/antigravity-dev/ccos/internal/values"
)

const (
	callPrefix   = "CCOS_CALL::"
	resultPrefix = "CCOS_RESULT::"
)

// CapabilityExecutor is the minimal host capability a CCOS_CALL:: line is
// dispatched through; *host.Host satisfies this.
type CapabilityExecutor interface {
	ExecuteCapability(id string, args []values.Value) (values.Value, error)
}

type callEnvelope struct {
	Cap    string      `json:"cap"`
	Inputs interface{} `json:"inputs"`
}

type resultEnvelope struct {
	Success bool        `json:"success"`
	Value   interface{} `json:"value,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Result is what Run hands back: the sandbox's non-protocol stdout plus
// whether the run completed normally or was cut short by the deadline.
type Result struct {
	Stdout      string
	TimedOut    bool
}

// LineProtocolHost drives the CCOS_CALL::/CCOS_RESULT:: exchange over a
// Runner-provided child's stdio, dispatching each call into a
// CapabilityExecutor (normally *host.Host) and capturing every other line
// as the sandbox's own stdout.
type LineProtocolHost struct {
	runner   Runner
	executor CapabilityExecutor
	logger   *slog.Logger
}

func NewLineProtocolHost(runner Runner, executor CapabilityExecutor, logger *slog.Logger) *LineProtocolHost {
	return &LineProtocolHost{runner: runner, executor: executor, logger: logger}
}

// Run starts spec's child and services the line protocol until the child
// closes stdout (normal termination), ctx's deadline expires (the child is
// killed and a timeout error returned). A reply that cannot be written to
// the child's stdin is logged and the loop continues; it does not end the
// run.
func (h *LineProtocolHost) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	proc, err := h.runner.Start(ctx, spec)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: start child: %w", err)
	}

	var captured strings.Builder
	scanDone := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(proc.Stdout())
		scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			rest, isCall := strings.CutPrefix(line, callPrefix)
			if !isCall {
				captured.WriteString(line)
				captured.WriteByte('\n')
				continue
			}
			resp := h.dispatch(rest)
			encoded, _ := json.Marshal(resp)
			if _, werr := fmt.Fprintln(proc.Stdin(), resultPrefix+string(encoded)); werr != nil {
				if h.logger != nil {
					h.logger.Warn("sandbox: could not write CCOS_RESULT:: reply", "error", werr)
				}
				continue
			}
			if !resp.Success && h.logger != nil {
				h.logger.Warn("sandbox: capability call failed", "error", resp.Error)
			}
		}
		scanDone <- scanner.Err()
	}()

	select {
	case <-ctx.Done():
		_ = proc.Kill()
		<-scanDone
		return Result{Stdout: captured.String(), TimedOut: true}, ctx.Err()
	case scanErr := <-scanDone:
		waitErr := proc.Wait()
		if scanErr != nil {
			return Result{Stdout: captured.String()}, fmt.Errorf("sandbox: scan child stdout: %w", scanErr)
		}
		return Result{Stdout: captured.String()}, waitErr
	}
}

// dispatch parses one CCOS_CALL:: payload and executes it, collapsing any
// JSON or dispatch error into a success:false envelope rather than ever
// propagating a panic or crash into the protocol loop.
func (h *LineProtocolHost) dispatch(payload string) resultEnvelope {
	var call callEnvelope
	if err := json.Unmarshal([]byte(payload), &call); err != nil {
		return resultEnvelope{Success: false, Error: fmt.Sprintf("sandbox: malformed CCOS_CALL:: payload: %v", err)}
	}
	if call.Cap == "" {
		return resultEnvelope{Success: false, Error: "sandbox: CCOS_CALL:: missing cap"}
	}

	args := inputsToArgs(call.Inputs)
	result, err := h.executor.ExecuteCapability(call.Cap, args)
	if err != nil {
		return resultEnvelope{Success: false, Error: err.Error()}
	}
	valueJSON, err := marketplace.ValueToJSON(result)
	if err != nil {
		return resultEnvelope{Success: false, Error: err.Error()}
	}
	return resultEnvelope{Success: true, Value: valueJSON}
}

// inputsToArgs projects the call envelope's single `inputs` field into the
// capability's argument vector: a JSON array becomes positional args, any
// other shape (object, scalar) becomes a single argument.
func inputsToArgs(inputs interface{}) []values.Value {
	if arr, ok := inputs.([]interface{}); ok {
		out := make([]values.Value, len(arr))
		for i, e := range arr {
			out[i] = marketplace.JSONToValue(e)
		}
		return out
	}
	if inputs == nil {
		return nil
	}
	return []values.Value{marketplace.JSONToValue(inputs)}
}
