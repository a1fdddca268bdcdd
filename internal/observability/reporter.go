// internal/observability/reporter.go
package observability

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/agent"
)

// EventKind classifies a progress event.
type EventKind string

const (
	EventInfo     EventKind = "info"
	EventSuccess  EventKind = "success"
	EventError    EventKind = "error"
	EventPlanning EventKind = "planning"
	EventTask     EventKind = "task"
	EventAction   EventKind = "action"
)

// Event is a progress update for live rendering, e.g. by the CLI.
type Event struct {
	Kind    EventKind `json:"kind"`
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`

	Goal   string           `json:"goal,omitempty"`
	Status agent.TaskStatus `json:"status,omitempty"`
	Reason string           `json:"reason,omitempty"`

	Action    string          `json:"action,omitempty"`
	ErrorCode agent.ErrorCode `json:"errorCode,omitempty"`
	Duration  time.Duration   `json:"duration,omitempty"`
}

// ZapReporter implements agent.Reporter by logging through zap and, when
// created with a buffer, by publishing Events. Publishing never blocks the
// run: events that do not fit in the buffer are dropped.
type ZapReporter struct {
	logger *zap.Logger

	mu      sync.Mutex
	events  chan Event
	closed  bool
	dropped int
}

var _ agent.Reporter = (*ZapReporter)(nil)

// NewZapReporter creates a reporter. A buffer of zero disables Events.
func NewZapReporter(logger *zap.Logger, buffer int) *ZapReporter {
	r := &ZapReporter{logger: logger.Named("reporter")}
	if buffer > 0 {
		r.events = make(chan Event, buffer)
	}
	return r
}

// Events returns the event stream, or nil when disabled. The channel is
// closed by Close.
func (r *ZapReporter) Events() <-chan Event { return r.events }

// Dropped returns how many events did not fit in the buffer.
func (r *ZapReporter) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close ends the event stream. Later reports are still logged.
func (r *ZapReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.events != nil {
		close(r.events)
	}
}

func (r *ZapReporter) Info(message string) {
	r.logger.Info(message)
	r.publish(Event{Kind: EventInfo, Message: message})
}

func (r *ZapReporter) Success(message string) {
	r.logger.Info(message, zap.String("outcome", "success"))
	r.publish(Event{Kind: EventSuccess, Message: message})
}

func (r *ZapReporter) Error(message string) {
	r.logger.Error(message)
	r.publish(Event{Kind: EventError, Message: message})
}

func (r *ZapReporter) ReportProgress(isPlanning bool, task *agent.Task) {
	if isPlanning || task == nil {
		r.logger.Info("Planning next task")
		r.publish(Event{Kind: EventPlanning})
		return
	}

	fields := []zap.Field{
		zap.String("task_id", task.ID()),
		zap.String("goal", task.Goal()),
		zap.String("status", string(task.Status())),
		zap.String("reason", task.Reason()),
		zap.Int("actions", len(task.Actions())),
	}
	if task.Status() == agent.TaskCompleted {
		r.logger.Info("Task completed", fields...)
	} else {
		r.logger.Warn("Task not completed", fields...)
	}
	r.publish(Event{Kind: EventTask, Goal: task.Goal(), Status: task.Status(), Reason: task.Reason()})
}

func (r *ZapReporter) BeforeAction(task *agent.Task, action schemas.Action) {
	r.logger.Debug("Executing action",
		zap.String("task_id", task.ID()),
		zap.String("action", schemas.DescribeAction(action)),
	)
}

func (r *ZapReporter) AfterAction(task *agent.Task, action schemas.Action, result agent.ExecutionResult) {
	described := schemas.DescribeAction(action)
	fields := []zap.Field{
		zap.String("task_id", task.ID()),
		zap.String("action", described),
		zap.Duration("duration", result.Duration),
	}
	if result.Succeeded() {
		r.logger.Debug("Action succeeded", fields...)
	} else {
		fields = append(fields, zap.String("error_code", string(result.ErrorCode)), zap.Any("details", result.ErrorDetails))
		r.logger.Warn("Action failed", fields...)
	}
	r.publish(Event{
		Kind:      EventAction,
		Goal:      task.Goal(),
		Action:    described,
		ErrorCode: result.ErrorCode,
		Duration:  result.Duration,
	})
}

func (r *ZapReporter) publish(ev Event) {
	if r.events == nil {
		return
	}
	ev.Time = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.dropped++
	}
}
