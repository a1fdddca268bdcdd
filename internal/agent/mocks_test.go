package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// -- Browser Driver Mock --

type MockBrowserDriver struct {
	mock.Mock
}

func (m *MockBrowserDriver) Launch(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockBrowserDriver) GetPageURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserDriver) MouseClick(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockBrowserDriver) FillInput(ctx context.Context, text string, coord schemas.Coordinate) error {
	return m.Called(ctx, text, coord).Error(0)
}

func (m *MockBrowserDriver) ScrollDown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBrowserDriver) ScrollUp(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBrowserDriver) GoToURL(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

// -- DOM Provider Mock --

type MockDOMProvider struct {
	mock.Mock
}

func (m *MockDOMProvider) GetInteractiveElements(ctx context.Context) (*schemas.PageSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.PageSnapshot), args.Error(1)
}

func (m *MockDOMProvider) GetIndexSelector(ctx context.Context, index int) (*schemas.Coordinate, error) {
	args := m.Called(ctx, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Coordinate), args.Error(1)
}

func (m *MockDOMProvider) ResetHighlightElements(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDOMProvider) HighlightElementPointer(ctx context.Context, coord schemas.Coordinate) error {
	return m.Called(ctx, coord).Error(0)
}

func (m *MockDOMProvider) HighlightElementWheel(ctx context.Context, direction schemas.ScrollDirection) error {
	return m.Called(ctx, direction).Error(0)
}

func (m *MockDOMProvider) HighlightForSoM(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Planner and Evaluator Mocks --

type MockPlanProvider struct {
	mock.Mock
}

func (m *MockPlanProvider) InvokeAndParse(ctx context.Context, messages []schemas.Message) (*schemas.PlanResponse, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.PlanResponse), args.Error(1)
}

type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) EvaluateTaskCompletion(ctx context.Context, task *Task) (*schemas.EvaluationResult, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.EvaluationResult), args.Error(1)
}

// -- Run Recorder Mock --

type MockRunRecorder struct {
	mock.Mock
}

func (m *MockRunRecorder) StartRun(ctx context.Context, run RunInfo) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRecorder) RecordTask(ctx context.Context, runID string, step int, task TaskRecord) error {
	return m.Called(ctx, runID, step, task).Error(0)
}

func (m *MockRunRecorder) FinishRun(ctx context.Context, runID string, result RunResult) error {
	return m.Called(ctx, runID, result).Error(0)
}

// -- Recording Reporter --

type progressCall struct {
	planning bool
	status   TaskStatus
	goal     string
}

// recordingReporter keeps every notification so tests can assert on them.
type recordingReporter struct {
	mu        sync.Mutex
	infos     []string
	successes []string
	errors    []string
	progress  []progressCall
	before    []schemas.Action
	after     []ExecutionResult
}

var _ Reporter = (*recordingReporter)(nil)

func (r *recordingReporter) Info(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, message)
}

func (r *recordingReporter) Success(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, message)
}

func (r *recordingReporter) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *recordingReporter) ReportProgress(isPlanning bool, task *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := progressCall{planning: isPlanning}
	if task != nil {
		call.status = task.Status()
		call.goal = task.Goal()
	}
	r.progress = append(r.progress, call)
}

func (r *recordingReporter) BeforeAction(_ *Task, action schemas.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.before = append(r.before, action)
}

func (r *recordingReporter) AfterAction(_ *Task, _ schemas.Action, result ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.after = append(r.after, result)
}

// -- Call Log Fakes --

// callLog records the order of browser and DOM effects.
type callLog struct {
	calls []string
	// failOn makes the named call return an error.
	failOn map[string]error
	// coords resolves element indexes; missing indexes are not found.
	coords map[int]schemas.Coordinate
}

func (l *callLog) record(name string) error {
	l.calls = append(l.calls, name)
	return l.failOn[name]
}

type fakeBrowser struct{ log *callLog }

func (f fakeBrowser) Launch(_ context.Context, url string) error { return f.log.record("launch " + url) }
func (f fakeBrowser) GetPageURL(context.Context) (string, error) {
	return "https://example.com", f.log.record("url")
}
func (f fakeBrowser) MouseClick(_ context.Context, x, y float64) error {
	return f.log.record(fmt.Sprintf("click %.0f,%.0f", x, y))
}
func (f fakeBrowser) FillInput(_ context.Context, text string, coord schemas.Coordinate) error {
	return f.log.record(fmt.Sprintf("fill %q %.0f,%.0f", text, coord.X, coord.Y))
}
func (f fakeBrowser) ScrollDown(context.Context) error            { return f.log.record("scrollDown") }
func (f fakeBrowser) ScrollUp(context.Context) error              { return f.log.record("scrollUp") }
func (f fakeBrowser) GoToURL(_ context.Context, url string) error { return f.log.record("goto " + url) }

type fakeDOM struct{ log *callLog }

func (f fakeDOM) GetInteractiveElements(context.Context) (*schemas.PageSnapshot, error) {
	return &schemas.PageSnapshot{}, f.log.record("elements")
}

func (f fakeDOM) GetIndexSelector(_ context.Context, index int) (*schemas.Coordinate, error) {
	if err := f.log.record(fmt.Sprintf("resolve %d", index)); err != nil {
		return nil, err
	}
	c, ok := f.log.coords[index]
	if !ok {
		return nil, ErrElementNotFound
	}
	return &c, nil
}

func (f fakeDOM) ResetHighlightElements(context.Context) error { return f.log.record("reset") }

func (f fakeDOM) HighlightElementPointer(_ context.Context, c schemas.Coordinate) error {
	return f.log.record(fmt.Sprintf("pointer %.0f,%.0f", c.X, c.Y))
}

func (f fakeDOM) HighlightElementWheel(_ context.Context, d schemas.ScrollDirection) error {
	return f.log.record("wheel " + string(d))
}

func (f fakeDOM) HighlightForSoM(context.Context) error { return f.log.record("som") }
