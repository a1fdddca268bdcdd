// internal/agent/history.go
package agent

import (
	"sync"

	json "github.com/json-iterator/go"
)

// DefaultHistoryWindow is how many recent tasks are serialized when no window
// is configured.
const DefaultHistoryWindow = 20

// History is the in-memory TaskHistory of a single run.
type History struct {
	mu      sync.RWMutex
	endGoal string
	tasks   []*Task
	window  int
}

var _ TaskHistory = (*History)(nil)

// NewHistory creates a history that serializes at most window recent tasks.
// A window of zero or less uses DefaultHistoryWindow.
func NewHistory(window int) *History {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &History{window: window}
}

func (h *History) SetEndGoal(goal string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endGoal = goal
}

func (h *History) EndGoal() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.endGoal
}

func (h *History) Add(task *Task) {
	if task == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, task)
}

// Records returns every task in insertion order.
func (h *History) Records() []TaskRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]TaskRecord, 0, len(h.tasks))
	for _, t := range h.tasks {
		out = append(out, t.Record())
	}
	return out
}

type serializedHistory struct {
	EndGoal   string           `json:"endGoal"`
	Total     int              `json:"totalTasks"`
	Completed int              `json:"completedTasks"`
	Failed    int              `json:"failedTasks"`
	Omitted   int              `json:"omittedTasks,omitempty"`
	Tasks     []serializedTask `json:"tasks"`
}

// serializedTask leaves out IDs and timestamps, which only cost tokens.
type serializedTask struct {
	Goal    string      `json:"goal"`
	Actions interface{} `json:"actions"`
	Status  TaskStatus  `json:"status"`
	Reason  string      `json:"reason,omitempty"`
}

// GetSerializedTasks renders the most recent tasks as compact JSON.
func (h *History) GetSerializedTasks() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	doc := serializedHistory{EndGoal: h.endGoal, Total: len(h.tasks), Tasks: []serializedTask{}}
	for _, t := range h.tasks {
		switch t.Status() {
		case TaskCompleted:
			doc.Completed++
		case TaskFailed:
			doc.Failed++
		}
	}

	recent := h.tasks
	if len(recent) > h.window {
		doc.Omitted = len(recent) - h.window
		recent = recent[len(recent)-h.window:]
	}
	for _, t := range recent {
		rec := t.Record()
		doc.Tasks = append(doc.Tasks, serializedTask{
			Goal:    rec.Goal,
			Actions: rec.Actions,
			Status:  rec.Status,
			Reason:  rec.Reason,
		})
	}

	out, err := json.Marshal(doc)
	if err != nil {
		// Only reachable with an action type the codec does not know.
		return "[]"
	}
	return string(out)
}
