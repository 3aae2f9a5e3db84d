package temporalrt

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// PlanWorkflow executes req once via ExecutePlanActivity; every time the
// plan pauses at user.ask, it parks on that checkpoint's signal channel
// until a UserAskAnswer arrives on it, then resumes via
// ResumeCheckpointActivity — repeating until the plan completes, aborts,
// or the activity itself errors. Each checkpoint gets its own signal
// channel so concurrent paused plans never cross answers.
func PlanWorkflow(ctx workflow.Context, req PlanRequest) (PlanOutcome, error) {
	logger := workflow.GetLogger(ctx)
	var a *Activities

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	actCtx := workflow.WithActivityOptions(ctx, actOpts)

	var outcome activityOutcome
	if err := workflow.ExecuteActivity(actCtx, a.ExecutePlanActivity, req).Get(ctx, &outcome); err != nil {
		return PlanOutcome{}, fmt.Errorf("temporalrt: execute plan: %w", err)
	}

	for outcome.Paused {
		logger.Info("plan paused awaiting user.ask answer", "checkpoint_id", outcome.CheckpointID)

		signalChan := workflow.GetSignalChannel(ctx, askSignalName(outcome.CheckpointID))
		var ans UserAskAnswer
		signalChan.Receive(ctx, &ans)

		checkpointID := outcome.CheckpointID
		if err := workflow.ExecuteActivity(actCtx, a.ResumeCheckpointActivity, req, checkpointID, ans.Answer).Get(ctx, &outcome); err != nil {
			return PlanOutcome{}, fmt.Errorf("temporalrt: resume checkpoint %s: %w", checkpointID, err)
		}
	}

	result := PlanOutcome{Success: outcome.Success, Value: outcome.Value, Err: outcome.Err}
	if !outcome.Success {
		logger.Warn("plan did not complete successfully", "error", outcome.Err)
	}
	return result, nil
}
