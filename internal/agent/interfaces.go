// internal/agent/interfaces.go
package agent

import (
	"context"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// TaskHistory keeps the end goal and every resolved task of a run.
type TaskHistory interface {
	SetEndGoal(goal string)
	Add(task *Task)
	// GetSerializedTasks renders the history as text for the planner prompt.
	GetSerializedTasks() string
}

// DOMProvider indexes the page's interactive elements and draws the on-page
// overlays that show what the agent is doing.
type DOMProvider interface {
	GetInteractiveElements(ctx context.Context) (*schemas.PageSnapshot, error)
	// GetIndexSelector resolves an element index to the centre of the element.
	// It returns ErrElementNotFound when the index does not resolve.
	GetIndexSelector(ctx context.Context, index int) (*schemas.Coordinate, error)
	ResetHighlightElements(ctx context.Context) error
	HighlightElementPointer(ctx context.Context, coord schemas.Coordinate) error
	HighlightElementWheel(ctx context.Context, direction schemas.ScrollDirection) error
	HighlightForSoM(ctx context.Context) error
}

// BrowserDriver performs the low level page interactions.
type BrowserDriver interface {
	Launch(ctx context.Context, url string) error
	GetPageURL(ctx context.Context) (string, error)
	MouseClick(ctx context.Context, x, y float64) error
	FillInput(ctx context.Context, text string, coord schemas.Coordinate) error
	ScrollDown(ctx context.Context) error
	ScrollUp(ctx context.Context) error
	GoToURL(ctx context.Context, url string) error
}

// PlanProvider asks a model for the next task. Output that cannot be parsed
// is reported as an error wrapping ErrPlanParse.
type PlanProvider interface {
	InvokeAndParse(ctx context.Context, messages []schemas.Message) (*schemas.PlanResponse, error)
}

// Evaluator judges whether a task reached its goal.
type Evaluator interface {
	EvaluateTaskCompletion(ctx context.Context, task *Task) (*schemas.EvaluationResult, error)
}

// Reporter surfaces run progress to the user.
type Reporter interface {
	Info(message string)
	Success(message string)
	Error(message string)
	// ReportProgress is called with isPlanning=true and a nil task before
	// planning, and with isPlanning=false once a task is resolved.
	ReportProgress(isPlanning bool, task *Task)
	BeforeAction(task *Task, action schemas.Action)
	AfterAction(task *Task, action schemas.Action, result ExecutionResult)
}

// RunRecorder is an optional audit sink for runs. Its errors are logged and
// never change the course of a run.
type RunRecorder interface {
	StartRun(ctx context.Context, run RunInfo) error
	RecordTask(ctx context.Context, runID string, step int, task TaskRecord) error
	FinishRun(ctx context.Context, runID string, result RunResult) error
}
