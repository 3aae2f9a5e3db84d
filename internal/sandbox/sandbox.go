// Package sandbox implements the two-way line protocol that lets a
// sandboxed external child process invoke host capabilities over its own
// stdout/stdin, plus the process backends that can own that child
// (container or bubblewrap).
package sandbox

import (
	"context"
	"io"
	"time"
)

// Spec describes the child process a Runner starts: the command to run, its
// working directory, environment, and the overall deadline the caller wants
// enforced.
type Spec struct {
	Command []string
	WorkDir string
	Env     []string
	Timeout time.Duration
}

// Process is a started child exposing the stdio the line protocol drives.
// DockerRunner and BubblewrapRunner each produce one; tests substitute an
// in-process fake backed by io.Pipe so the protocol logic never needs a
// real container or the bwrap binary.
type Process interface {
	Stdout() io.Reader
	Stdin() io.Writer
	// Wait blocks until the child exits and returns its run error, if any.
	Wait() error
	// Kill terminates the child immediately; used on deadline expiry.
	Kill() error
}

// Runner starts a Spec and hands back the running Process.
type Runner interface {
	Start(ctx context.Context, spec Spec) (Process, error)
}
