package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

func TestEvaluationGate_Evaluate(t *testing.T) {
	evaluator := new(MockEvaluator)
	reporter := &recordingReporter{}
	history := NewHistory(0)
	outcome := newAgentOutcome()
	gate := NewEvaluationGate(evaluator, history, reporter, &outcome, zap.NewNop())

	failing := NewTask("first", nil)
	passing := NewTask("second", nil)
	evaluator.On("EvaluateTaskCompletion", mock.Anything, failing).Return(&schemas.EvaluationResult{Reason: "no"}, nil).Once()
	evaluator.On("EvaluateTaskCompletion", mock.Anything, passing).Return(&schemas.EvaluationResult{IsCompleted: true, Reason: "yes"}, nil).Once()

	assert.False(t, gate.Evaluate(context.Background(), failing))
	assert.Equal(t, 1, outcome.ConsecutiveFailures())
	assert.True(t, gate.Evaluate(context.Background(), passing))
	assert.Equal(t, 0, outcome.ConsecutiveFailures())

	assert.True(t, outcome.IsRunning(), "verdicts never end the run")
	assert.Equal(t, []progressCall{
		{planning: false, status: TaskFailed, goal: "first"},
		{planning: false, status: TaskCompleted, goal: "second"},
	}, reporter.progress)
	assert.Len(t, history.Records(), 2)
	evaluator.AssertExpectations(t)
}

func TestEvaluationGate_NilResultCountsAsFailure(t *testing.T) {
	evaluator := new(MockEvaluator)
	outcome := newAgentOutcome()
	gate := NewEvaluationGate(evaluator, NewHistory(0), &recordingReporter{}, &outcome, zap.NewNop())
	evaluator.On("EvaluateTaskCompletion", mock.Anything, mock.Anything).Return(nil, nil).Once()

	task := NewTask("g", nil)
	assert.False(t, gate.Evaluate(context.Background(), task))
	assert.Equal(t, "evaluator returned no result", task.Reason())
}

func TestEvaluationGate_AlreadyResolvedTaskKeepsFirstStatus(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	evaluator := new(MockEvaluator)
	outcome := newAgentOutcome()
	gate := NewEvaluationGate(evaluator, NewHistory(0), &recordingReporter{}, &outcome, zap.New(core))

	task := NewTask("g", nil)
	require.NoError(t, task.Complete("done earlier"))
	evaluator.On("EvaluateTaskCompletion", mock.Anything, task).Return(&schemas.EvaluationResult{Reason: "no"}, nil).Once()

	assert.True(t, gate.Evaluate(context.Background(), task))
	assert.Equal(t, TaskCompleted, task.Status())
	assert.Equal(t, 0, outcome.ConsecutiveFailures())

	entries := logs.FilterMessage("Task resolved twice").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "evaluation", entries[0].LoggerName)
}
