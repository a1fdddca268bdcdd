// internal/agent/evaluation.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// EvaluationGate resolves a task from the evaluator's verdict and keeps the
// consecutive failure counter. It never ends the run.
type EvaluationGate struct {
	evaluator Evaluator
	history   TaskHistory
	reporter  Reporter
	outcome   *AgentOutcome
	logger    *zap.Logger
}

func NewEvaluationGate(evaluator Evaluator, history TaskHistory, reporter Reporter, outcome *AgentOutcome, logger *zap.Logger) *EvaluationGate {
	return &EvaluationGate{
		evaluator: evaluator,
		history:   history,
		reporter:  reporter,
		outcome:   outcome,
		logger:    logger.Named("evaluation"),
	}
}

// Evaluate asks the evaluator about task, resolves it, appends it to the
// history and reports it. An evaluator error counts as not completed.
func (g *EvaluationGate) Evaluate(ctx context.Context, task *Task) (completed bool) {
	completed, reason := g.verdict(ctx, task)

	var err error
	if completed {
		err = task.Complete(reason)
	} else {
		err = task.Fail(reason)
	}
	if err != nil {
		// The task was resolved elsewhere; keep its first status.
		g.logger.Error("Task resolved twice", zap.String("task_id", task.ID()), zap.Error(err))
		completed = task.Status() == TaskCompleted
	}

	g.outcome.recordVerdict(completed)
	g.history.Add(task)
	g.reporter.ReportProgress(false, task)

	g.logger.Info("Task evaluated",
		zap.String("task_id", task.ID()),
		zap.String("goal", task.Goal()),
		zap.String("status", string(task.Status())),
		zap.String("reason", task.Reason()),
		zap.Int("consecutive_failures", g.outcome.ConsecutiveFailures()),
	)
	return completed
}

func (g *EvaluationGate) verdict(ctx context.Context, task *Task) (bool, string) {
	result, err := g.evaluator.EvaluateTaskCompletion(ctx, task)
	if err != nil {
		g.logger.Warn("Evaluator failed; counting the task as not completed", zap.String("task_id", task.ID()), zap.Error(err))
		g.reporter.Error(fmt.Sprintf("Could not evaluate task %q: %v", task.Goal(), err))
		return false, fmt.Sprintf("evaluation failed: %v", err)
	}
	if result == nil {
		return false, "evaluator returned no result"
	}
	return result.IsCompleted, result.Reason
}
