// internal/agent/models.go
package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskFailed    TaskStatus = "FAILED"
)

// Task is one planned sub-goal and the actions proposed to reach it. A task
// starts Pending and is resolved exactly once.
type Task struct {
	id         string
	goal       string
	actions    []schemas.Action
	status     TaskStatus
	reason     string
	createdAt  time.Time
	resolvedAt time.Time
}

// NewTask creates a Pending task. The action slice is copied.
func NewTask(goal string, actions []schemas.Action) *Task {
	return &Task{
		id:        uuid.NewString(),
		goal:      goal,
		actions:   append([]schemas.Action(nil), actions...),
		status:    TaskPending,
		createdAt: time.Now().UTC(),
	}
}

func (t *Task) ID() string            { return t.id }
func (t *Task) Goal() string          { return t.goal }
func (t *Task) Status() TaskStatus    { return t.status }
func (t *Task) Reason() string        { return t.reason }
func (t *Task) CreatedAt() time.Time  { return t.createdAt }
func (t *Task) ResolvedAt() time.Time { return t.resolvedAt }

// Actions returns a copy of the task's actions.
func (t *Task) Actions() []schemas.Action {
	out := make([]schemas.Action, len(t.actions))
	copy(out, t.actions)
	return out
}

// Complete marks the task as achieved.
func (t *Task) Complete(reason string) error {
	return t.resolve(TaskCompleted, reason)
}

// Fail marks the task as not achieved.
func (t *Task) Fail(reason string) error {
	return t.resolve(TaskFailed, reason)
}

func (t *Task) resolve(status TaskStatus, reason string) error {
	if t.status != TaskPending {
		return fmt.Errorf("%w: task %s is %s", ErrTaskAlreadyResolved, t.id, t.status)
	}
	t.status = status
	t.reason = reason
	t.resolvedAt = time.Now().UTC()
	return nil
}

// Record returns a serializable snapshot of the task.
func (t *Task) Record() TaskRecord {
	rec := TaskRecord{
		ID:        t.id,
		Goal:      t.goal,
		Actions:   schemas.ActionList(t.Actions()),
		Status:    t.status,
		Reason:    t.reason,
		CreatedAt: t.createdAt,
	}
	if !t.resolvedAt.IsZero() {
		resolved := t.resolvedAt
		rec.ResolvedAt = &resolved
	}
	return rec
}

// TaskRecord is the JSON form of a Task used by the history and the run archive.
type TaskRecord struct {
	ID         string             `json:"id"`
	Goal       string             `json:"goal"`
	Actions    schemas.ActionList `json:"actions"`
	Status     TaskStatus         `json:"status"`
	Reason     string             `json:"reason,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	ResolvedAt *time.Time         `json:"resolvedAt,omitempty"`
}

// Outcome is the overall state of a run.
type Outcome string

const (
	OutcomeRunning Outcome = "RUNNING"
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// AgentOutcome tracks the run outcome and the consecutive failure counter.
// The outcome only moves forward: Running to Success or Running to Failure.
type AgentOutcome struct {
	outcome             Outcome
	reason              string
	consecutiveFailures int
}

func newAgentOutcome() AgentOutcome {
	return AgentOutcome{outcome: OutcomeRunning}
}

func (o AgentOutcome) Outcome() Outcome         { return o.outcome }
func (o AgentOutcome) Reason() string           { return o.reason }
func (o AgentOutcome) ConsecutiveFailures() int { return o.consecutiveFailures }
func (o AgentOutcome) IsRunning() bool          { return o.outcome == OutcomeRunning }

// Succeed moves the run to Success. It fails if the run already ended.
func (o *AgentOutcome) Succeed(reason string) error {
	return o.transition(OutcomeSuccess, reason)
}

// Fail moves the run to Failure. It fails if the run already ended.
func (o *AgentOutcome) Fail(reason string) error {
	return o.transition(OutcomeFailure, reason)
}

func (o *AgentOutcome) transition(to Outcome, reason string) error {
	if o.outcome != OutcomeRunning {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrOutcomeFinal, o.outcome, to)
	}
	if to == OutcomeRunning {
		return fmt.Errorf("invalid outcome transition to %s", to)
	}
	o.outcome = to
	o.reason = reason
	return nil
}

// recordVerdict resets the failure counter on a completed task and
// increments it otherwise.
func (o *AgentOutcome) recordVerdict(completed bool) {
	if completed {
		o.consecutiveFailures = 0
		return
	}
	o.consecutiveFailures++
}

// RunStatus is the terminal status reported to callers.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
)

// RunResult is returned by Manager.Run once the run is terminal.
type RunResult struct {
	RunID  string    `json:"runId"`
	Status RunStatus `json:"status"`
	Reason string    `json:"reason"`
	Steps  int       `json:"steps"`
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	ID        string    `json:"id"`
	Goal      string    `json:"goal"`
	StartURL  string    `json:"startUrl"`
	StartedAt time.Time `json:"startedAt"`
}

// ExecutionResult is the structured result of dispatching one action.
type ExecutionResult struct {
	Action       schemas.ActionName     `json:"action"`
	Status       string                 `json:"status"` // "success" or "failed"
	ErrorCode    ErrorCode              `json:"error_code,omitempty"`
	ErrorDetails map[string]interface{} `json:"error_details,omitempty"`
	Duration     time.Duration          `json:"duration"`
}

// Succeeded reports whether the action ran without error.
func (r ExecutionResult) Succeeded() bool { return r.Status == "success" }
