package sandbox

import (
	"context"
	"fmt"
	"io"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// DockerRunner starts one sandboxed plan-spawned child per Spec inside a
// container, wiring its stdio to the returned Process so the host can
// exchange CCOS_CALL::/CCOS_RESULT:: lines over it.
type DockerRunner struct {
	cli   *client.Client
	image string
}

// NewDockerRunner builds a runner against image, defaulting to
// "ccos-sandbox:latest" when unset.
func NewDockerRunner(image string) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker client: %w", err)
	}
	if image == "" {
		image = "ccos-sandbox:latest"
	}
	return &DockerRunner{cli: cli, image: image}, nil
}

func (r *DockerRunner) Start(ctx context.Context, spec Spec) (Process, error) {
	cfg := &container.Config{
		Image:        r.image,
		Cmd:          spec.Command,
		Env:          spec.Env,
		WorkingDir:   spec.WorkDir,
		Tty:          true,
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
	}
	resp, err := r.cli.ContainerCreate(ctx, cfg, &container.HostConfig{AutoRemove: true}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("sandbox: create container: %w", err)
	}

	hijacked, err := r.cli.ContainerAttach(ctx, resp.ID, container.AttachOptions{Stream: true, Stdin: true, Stdout: true})
	if err != nil {
		return nil, fmt.Errorf("sandbox: attach container: %w", err)
	}

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		hijacked.Close()
		_ = r.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("sandbox: start container: %w", err)
	}

	return &dockerProcess{cli: r.cli, id: resp.ID, conn: hijacked}, nil
}

type dockerProcess struct {
	cli  *client.Client
	id   string
	conn dockertypes.HijackedResponse
}

func (p *dockerProcess) Stdout() io.Reader { return p.conn.Reader }
func (p *dockerProcess) Stdin() io.Writer  { return p.conn.Conn }

func (p *dockerProcess) Wait() error {
	statusCh, errCh := p.cli.ContainerWait(context.Background(), p.id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return err
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("sandbox: container %s exited %d", p.id, status.StatusCode)
		}
		return nil
	}
}

func (p *dockerProcess) Kill() error {
	p.conn.Close()
	return p.cli.ContainerRemove(context.Background(), p.id, container.RemoveOptions{Force: true})
}
