package sandbox

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// BubblewrapRunner documents the real sandbox's invocation shape
// (`bwrap --ro-bind / / --unshare-all ...`) without requiring the bwrap
// binary at import time; it only execs when Start is actually called.
// Tests substitute an in-process fake Runner so the protocol logic never
// depends on the binary being present.
type BubblewrapRunner struct {
	// Path to the bwrap binary; defaults to "bwrap" (looked up on PATH).
	Path string
	// Flags prepended before spec.Command; defaults to a read-only root
	// bind plus full namespace isolation.
	Flags []string
}

func (r *BubblewrapRunner) argv(spec Spec) []string {
	path := r.Path
	if path == "" {
		path = "bwrap"
	}
	flags := r.Flags
	if len(flags) == 0 {
		flags = []string{"--ro-bind", "/", "/", "--unshare-all", "--die-with-parent"}
	}
	if spec.WorkDir != "" {
		flags = append(flags, "--bind", spec.WorkDir, spec.WorkDir, "--chdir", spec.WorkDir)
	}
	argv := append([]string{path}, flags...)
	return append(argv, spec.Command...)
}

func (r *BubblewrapRunner) Start(ctx context.Context, spec Spec) (Process, error) {
	argv := r.argv(spec)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = spec.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sandbox: bubblewrap stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("sandbox: bubblewrap stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("sandbox: start bwrap: %w", err)
	}
	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// execProcess adapts a started os/exec.Cmd to Process.
type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }
func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
