// internal/agent/manager.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/config"
)

const (
	// FallbackGoal names the empty task used when planning fails.
	FallbackGoal = "Keep trying"

	ReasonMaxRetries = "Max retries reached"
	ReasonMaxSteps   = "Max steps reached"

	recorderTimeout = 10 * time.Second
)

// Dependencies are the collaborators a Manager drives. Recorder is optional.
type Dependencies struct {
	Browser   BrowserDriver
	DOM       DOMProvider
	History   TaskHistory
	Planner   PlanProvider
	Evaluator Evaluator
	Reporter  Reporter
	Recorder  RunRecorder
}

func (d Dependencies) validate() error {
	switch {
	case d.Browser == nil:
		return errors.New("browser driver is required")
	case d.DOM == nil:
		return errors.New("DOM provider is required")
	case d.History == nil:
		return errors.New("task history is required")
	case d.Planner == nil:
		return errors.New("plan provider is required")
	case d.Evaluator == nil:
		return errors.New("evaluator is required")
	case d.Reporter == nil:
		return errors.New("reporter is required")
	}
	return nil
}

// Manager runs the plan, execute, evaluate loop for a single end goal. It is
// single use and not safe for concurrent use.
type Manager struct {
	cfg        config.AgentConfig
	logger     *zap.Logger
	deps       Dependencies
	outcome    AgentOutcome
	dispatcher *Dispatcher
	gate       *EvaluationGate

	runID    string
	endGoal  string
	startURL string
	steps    int
	started  bool
}

// NewManager wires a Manager from its collaborators.
func NewManager(cfg config.AgentConfig, deps Dependencies, logger *zap.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent configuration: %w", err)
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		cfg:     cfg,
		deps:    deps,
		outcome: newAgentOutcome(),
		runID:   uuid.NewString(),
	}
	m.logger = logger.Named("manager").With(zap.String("run_id", m.runID))
	m.dispatcher = NewDispatcher(deps.Browser, deps.DOM, deps.Reporter, &m.outcome, m.logger)
	m.gate = NewEvaluationGate(deps.Evaluator, deps.History, deps.Reporter, &m.outcome, m.logger)
	return m, nil
}

// RunID identifies this run in logs and in the run archive.
func (m *Manager) RunID() string { return m.runID }

// Outcome returns a copy of the current run outcome.
func (m *Manager) Outcome() AgentOutcome { return m.outcome }

// Launch opens the browser at startURL and runs the loop until it reaches
// a terminal outcome. Only a failure to launch the browser is returned as an
// error.
func (m *Manager) Launch(ctx context.Context, startURL, goal string) (RunResult, error) {
	m.logger.Info("Launching browser", zap.String("url", startURL), zap.String("goal", goal))
	if err := m.deps.Browser.Launch(ctx, startURL); err != nil {
		return RunResult{}, fmt.Errorf("failed to launch browser at %s: %w", startURL, err)
	}
	m.endGoal = goal
	m.startURL = startURL
	m.deps.History.SetEndGoal(goal)
	m.deps.Reporter.Info(fmt.Sprintf("Goal: %s", goal))
	return m.Run(ctx), nil
}

// Run drives the loop until the outcome is terminal. It never returns an
// error; every collaborator failure is absorbed and counted against the
// retry budget.
func (m *Manager) Run(ctx context.Context) RunResult {
	m.startRecording(ctx)

	for m.outcome.IsRunning() {
		if m.outcome.ConsecutiveFailures() >= m.cfg.MaxRetries {
			m.terminate(ReasonMaxRetries)
			break
		}
		if m.cfg.MaxSteps > 0 && m.steps >= m.cfg.MaxSteps {
			m.terminate(ReasonMaxSteps)
			break
		}
		m.steps++
		m.iterate(ctx)
	}

	result := m.result()
	if result.Status == RunSuccess {
		m.deps.Reporter.Success(result.Reason)
	} else {
		m.deps.Reporter.Error(fmt.Sprintf("Run failed: %s", result.Reason))
	}
	m.logger.Info("Run finished",
		zap.String("status", string(result.Status)),
		zap.String("reason", result.Reason),
		zap.Int("steps", result.Steps),
	)
	m.finishRecording(ctx, result)
	return result
}

func (m *Manager) result() RunResult {
	status := RunFailure
	if m.outcome.Outcome() == OutcomeSuccess {
		status = RunSuccess
	}
	return RunResult{
		RunID:  m.runID,
		Status: status,
		Reason: m.outcome.Reason(),
		Steps:  m.steps,
	}
}

func (m *Manager) terminate(reason string) {
	if err := m.outcome.Fail(reason); err != nil {
		m.logger.Error("Could not terminate run", zap.Error(err))
	}
}

// iterate runs one plan, execute, evaluate cycle. A panic anywhere in the
// cycle fails the current task instead of crashing the run.
func (m *Manager) iterate(ctx context.Context) {
	var task *Task
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		m.logger.Error("Panic recovered in agent loop",
			zap.Int("step", m.steps),
			zap.Any("panic_value", r),
			zap.Stack("stack"),
		)
		m.deps.Reporter.Error(fmt.Sprintf("Internal error during step %d: %v", m.steps, r))
		if task == nil || task.Status() == TaskPending {
			if task != nil {
				_ = task.Fail(fmt.Sprintf("internal error: %v", r))
				m.deps.History.Add(task)
			}
			m.outcome.recordVerdict(false)
		}
	}()

	task = m.defineNextTask(ctx)
	m.executeTask(ctx, task)
	m.gate.Evaluate(ctx, task)
	m.recordTask(ctx, task)
}

// defineNextTask gathers page context and asks the planner for the next
// task. Planner errors yield the empty fallback task.
func (m *Manager) defineNextTask(ctx context.Context) *Task {
	m.deps.Reporter.ReportProgress(true, nil)

	in := promptInput{
		EndGoal:           m.endGoal,
		MaxActionsPerTask: m.cfg.MaxActionsPerTask,
		History:           m.deps.History.GetSerializedTasks(),
	}

	snapshot, err := m.deps.DOM.GetInteractiveElements(ctx)
	if err != nil {
		m.logger.Warn("Could not read interactive elements; planning without them", zap.Error(err))
	} else if snapshot != nil {
		in.DOMState = snapshot.StringifiedDOMState
		in.Screenshot = snapshot.Screenshot
	}

	pageURL, err := m.deps.Browser.GetPageURL(ctx)
	if err != nil {
		m.logger.Warn("Could not read page URL; planning without it", zap.Error(err))
	}
	in.PageURL = pageURL

	plan, err := m.deps.Planner.InvokeAndParse(ctx, buildPlanMessages(in))
	if err == nil && plan == nil {
		err = fmt.Errorf("%w: planner returned no plan", ErrPlanParse)
	}
	if err != nil {
		m.logger.Warn("Planning failed; falling back to an empty task", zap.Int("step", m.steps), zap.Error(err))
		m.deps.Reporter.Error(fmt.Sprintf("Planning failed: %v", err))
		return NewTask(FallbackGoal, nil)
	}

	task := NewTask(plan.CurrentState.NextGoal, plan.Actions)
	m.logger.Info("Planned next task",
		zap.Int("step", m.steps),
		zap.String("task_id", task.ID()),
		zap.String("goal", task.Goal()),
		zap.Int("actions", len(plan.Actions)),
		zap.String("previous_goal", plan.CurrentState.EvaluationPreviousGoal),
		zap.String("memory", plan.CurrentState.Memory),
	)
	return task
}

// executeTask dispatches the task's actions in order. Once the outcome is
// terminal the remaining actions are skipped.
func (m *Manager) executeTask(ctx context.Context, task *Task) {
	actions := task.Actions()
	for i, action := range actions {
		if !m.outcome.IsRunning() {
			m.logger.Info("Run is terminal; skipping remaining actions",
				zap.String("task_id", task.ID()),
				zap.Int("skipped", len(actions)-i),
			)
			return
		}
		m.dispatcher.Execute(ctx, task, action)
	}
}

func (m *Manager) startRecording(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	if m.deps.Recorder == nil {
		return
	}
	recCtx, cancel := recorderContext(ctx)
	defer cancel()
	info := RunInfo{ID: m.runID, Goal: m.endGoal, StartURL: m.startURL, StartedAt: time.Now().UTC()}
	if err := m.deps.Recorder.StartRun(recCtx, info); err != nil {
		m.logger.Warn("Run recorder failed to start run", zap.Error(err))
	}
}

func (m *Manager) recordTask(ctx context.Context, task *Task) {
	if m.deps.Recorder == nil {
		return
	}
	recCtx, cancel := recorderContext(ctx)
	defer cancel()
	if err := m.deps.Recorder.RecordTask(recCtx, m.runID, m.steps, task.Record()); err != nil {
		m.logger.Warn("Run recorder failed to record task", zap.String("task_id", task.ID()), zap.Error(err))
	}
}

func (m *Manager) finishRecording(ctx context.Context, result RunResult) {
	if m.deps.Recorder == nil {
		return
	}
	recCtx, cancel := recorderContext(ctx)
	defer cancel()
	if err := m.deps.Recorder.FinishRun(recCtx, m.runID, result); err != nil {
		m.logger.Warn("Run recorder failed to finish run", zap.Error(err))
	}
}

// recorderContext outlives a cancelled run context so the archive still
// gets the final outcome.
func recorderContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), recorderTimeout)
}
