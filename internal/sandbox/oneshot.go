package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// OneShotSpec describes a sandboxed run with no line protocol: the host
// just wants the child's output, exit status, and a handful of files it
// wrote under WorkDir.
type OneShotSpec struct {
	Command     []string
	WorkDir     string
	Env         []string
	Timeout     time.Duration
	OutputFiles []string // paths relative to WorkDir read back after exit
}

// OneShotResult is what RunOneShot hands back: stdout/stderr/exit code plus
// the contents of any requested output files.
type OneShotResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Files    map[string][]byte
}

// RunOneShot execs spec.Command directly (no CCOS_CALL:: protocol) via
// exec.CommandContext, capturing stdout/stderr into buffers rather than a
// log file.
func RunOneShot(ctx context.Context, spec OneShotSpec) (OneShotResult, error) {
	if len(spec.Command) == 0 {
		return OneShotResult{}, fmt.Errorf("sandbox: one-shot command is empty")
	}
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.WorkDir
	cmd.Env = spec.Env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := OneShotResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	} else if runErr == nil {
		result.ExitCode = 0
	}

	if len(spec.OutputFiles) > 0 {
		result.Files = make(map[string][]byte, len(spec.OutputFiles))
		for _, rel := range spec.OutputFiles {
			data, err := os.ReadFile(filepath.Join(spec.WorkDir, rel))
			if err != nil {
				continue
			}
			result.Files[rel] = data
		}
	}

	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return result, fmt.Errorf("sandbox: run one-shot command: %w", runErr)
		}
	}
	return result, nil
}
