package temporalrt

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/antigravity-dev/ccos/internal/host"
	"github.com/antigravity-dev/ccos/internal/orchestrator"
)

// StartWorker dials the Temporal frontend at target, registers PlanWorkflow
// plus the Activities bound to orch/rctx on taskQueue, and blocks running
// the worker until interrupted.
func StartWorker(target, namespace, taskQueue string, orch *orchestrator.Orchestrator, rctx *host.RuntimeContext) error {
	c, err := client.Dial(client.Options{HostPort: target, Namespace: namespace})
	if err != nil {
		return fmt.Errorf("temporalrt: dial temporal frontend: %w", err)
	}
	defer c.Close()

	w := worker.New(c, taskQueue, worker.Options{})

	acts := &Activities{Orchestrator: orch, RuntimeCtx: rctx}
	w.RegisterWorkflow(PlanWorkflow)
	w.RegisterActivity(acts.ExecutePlanActivity)
	w.RegisterActivity(acts.ResumeCheckpointActivity)

	if err := w.Run(worker.InterruptCh()); err != nil {
		return fmt.Errorf("temporalrt: worker run: %w", err)
	}
	return nil
}
