package temporalrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func TestPlanWorkflowCompletesWithoutPausing(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()

	var a *Activities
	env.OnActivity(a.ExecutePlanActivity, mock.Anything, mock.Anything).Return(activityOutcome{
		Success: true, Value: "hi",
	}, nil)

	env.ExecuteWorkflow(PlanWorkflow, PlanRequest{PlanID: "plan-1", Source: "(:echo \"hi\")"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var outcome PlanOutcome
	require.NoError(t, env.GetWorkflowResult(&outcome))
	require.True(t, outcome.Success)
	require.Equal(t, "hi", outcome.Value)
}

func TestPlanWorkflowPausesAndResumesOnSignal(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()

	var a *Activities
	env.OnActivity(a.ExecutePlanActivity, mock.Anything, mock.Anything).Return(activityOutcome{
		Paused: true, CheckpointID: "chk-1", Question: "continue?",
	}, nil)
	env.OnActivity(a.ResumeCheckpointActivity, mock.Anything, mock.Anything, "chk-1", "yes").Return(activityOutcome{
		Success: true, Value: "done",
	}, nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(askSignalName("chk-1"), UserAskAnswer{Answer: "yes"})
	}, 0)

	env.ExecuteWorkflow(PlanWorkflow, PlanRequest{PlanID: "plan-2", Source: "(:user.ask \"continue?\")"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var outcome PlanOutcome
	require.NoError(t, env.GetWorkflowResult(&outcome))
	require.True(t, outcome.Success)
	require.Equal(t, "done", outcome.Value)
}

func TestPlanWorkflowPausesMultipleTimesInSequence(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()

	var a *Activities
	env.OnActivity(a.ExecutePlanActivity, mock.Anything, mock.Anything).Return(activityOutcome{
		Paused: true, CheckpointID: "chk-a", Question: "first?",
	}, nil)
	env.OnActivity(a.ResumeCheckpointActivity, mock.Anything, mock.Anything, "chk-a", "yes").Return(activityOutcome{
		Paused: true, CheckpointID: "chk-b", Question: "second?",
	}, nil)
	env.OnActivity(a.ResumeCheckpointActivity, mock.Anything, mock.Anything, "chk-b", "also yes").Return(activityOutcome{
		Success: true, Value: "finished",
	}, nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(askSignalName("chk-a"), UserAskAnswer{Answer: "yes"})
	}, 0)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(askSignalName("chk-b"), UserAskAnswer{Answer: "also yes"})
	}, 0)

	env.ExecuteWorkflow(PlanWorkflow, PlanRequest{PlanID: "plan-3", Source: "(:user.ask \"first?\")"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var outcome PlanOutcome
	require.NoError(t, env.GetWorkflowResult(&outcome))
	require.True(t, outcome.Success)
	require.Equal(t, "finished", outcome.Value)
}

func TestPlanWorkflowPropagatesActivityError(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()

	var a *Activities
	env.OnActivity(a.ExecutePlanActivity, mock.Anything, mock.Anything).Return(activityOutcome{}, errors.New("capability marketplace unavailable"))

	env.ExecuteWorkflow(PlanWorkflow, PlanRequest{PlanID: "plan-4", Source: "(:boom)"})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}
