package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/agent"
)

func TestZapReporter_Logs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewZapReporter(zap.New(core), 0)
	assert.Nil(t, r.Events())

	task := agent.NewTask("Open settings", []schemas.Action{schemas.ClickElement{Index: 4}})
	require.NoError(t, task.Fail("menu did not open"))

	r.Success("done")
	r.ReportProgress(true, nil)
	r.ReportProgress(false, task)
	r.AfterAction(task, schemas.ClickElement{Index: 4}, agent.ExecutionResult{
		Action:    schemas.ActionClickElement,
		Status:    "failed",
		ErrorCode: agent.ErrCodeElementNotFound,
	})

	success := logs.FilterMessage("done").All()
	require.Len(t, success, 1)
	assert.Equal(t, "reporter", success[0].LoggerName)
	assert.Equal(t, "success", success[0].ContextMap()["outcome"])

	assert.Equal(t, 1, logs.FilterMessage("Planning next task").Len())

	progress := logs.FilterMessage("Task not completed").All()
	require.Len(t, progress, 1)
	assert.Equal(t, zapcore.WarnLevel, progress[0].Level)
	fields := progress[0].ContextMap()
	assert.Equal(t, "Open settings", fields["goal"])
	assert.Equal(t, "FAILED", fields["status"])
	assert.Equal(t, "menu did not open", fields["reason"])
	assert.EqualValues(t, 1, fields["actions"])

	failed := logs.FilterMessage("Action failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "ELEMENT_NOT_FOUND", failed[0].ContextMap()["error_code"])
}

func TestZapReporter_Events(t *testing.T) {
	r := NewZapReporter(zap.NewNop(), 8)
	task := agent.NewTask("Search", nil)
	require.NoError(t, task.Complete("results shown"))

	r.ReportProgress(true, nil)
	r.ReportProgress(false, task)
	r.Error("boom")
	r.Close()
	r.Close()
	r.Info("after close is still safe")

	var kinds []EventKind
	for ev := range r.Events() {
		assert.False(t, ev.Time.IsZero())
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventTask {
			assert.Equal(t, "Search", ev.Goal)
			assert.Equal(t, agent.TaskCompleted, ev.Status)
		}
	}
	assert.Equal(t, []EventKind{EventPlanning, EventTask, EventError}, kinds)
}

func TestZapReporter_PublishNeverBlocks(t *testing.T) {
	r := NewZapReporter(zap.NewNop(), 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			r.Info("tick")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal(errors.New("publishing blocked on a full buffer"))
	}
	assert.Equal(t, 4, r.Dropped())
	r.Close()
}
