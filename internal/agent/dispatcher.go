// internal/agent/dispatcher.go
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// Dispatcher turns actions into browser and DOM effects. A failing action is
// reported and logged; it never stops the rest of the task.
type Dispatcher struct {
	browser  BrowserDriver
	dom      DOMProvider
	reporter Reporter
	outcome  *AgentOutcome
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher that writes terminal actions to outcome.
func NewDispatcher(browser BrowserDriver, dom DOMProvider, reporter Reporter, outcome *AgentOutcome, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		browser:  browser,
		dom:      dom,
		reporter: reporter,
		outcome:  outcome,
		logger:   logger.Named("dispatcher"),
	}
}

// Execute dispatches a single action inside the reporter's before/after
// brackets and returns its classified result.
func (d *Dispatcher) Execute(ctx context.Context, task *Task, action schemas.Action) (result ExecutionResult) {
	start := time.Now()
	if action != nil {
		result.Action = action.Name()
	}
	d.reporter.BeforeAction(task, action)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic while dispatching action",
				zap.String("action", schemas.DescribeAction(action)),
				zap.Any("panic_value", r),
				zap.Stack("stack"),
			)
			result.Status = "failed"
			result.ErrorCode = ErrCodeExecutorPanic
			result.ErrorDetails = map[string]interface{}{"message": fmt.Sprint(r)}
		}
		result.Duration = time.Since(start)
		d.reporter.AfterAction(task, action, result)
	}()

	if err := d.Dispatch(ctx, action); err != nil {
		code, details := ParseBrowserError(err, action)
		result.Status = "failed"
		result.ErrorCode = code
		result.ErrorDetails = details
		d.logger.Warn("Action failed",
			zap.String("task_id", task.ID()),
			zap.String("action", schemas.DescribeAction(action)),
			zap.String("error_code", string(code)),
			zap.Error(err),
		)
		return result
	}

	result.Status = "success"
	d.logger.Debug("Action executed", zap.String("task_id", task.ID()), zap.String("action", schemas.DescribeAction(action)))
	return result
}

// Dispatch runs the effects of one action. The type switch covers every
// action in the schemas package; anything else is ErrUnknownAction.
func (d *Dispatcher) Dispatch(ctx context.Context, action schemas.Action) error {
	switch a := action.(type) {
	case schemas.ClickElement:
		return d.clickElement(ctx, a)
	case schemas.FillInput:
		return d.fillInput(ctx, a)
	case schemas.ScrollDown:
		return d.scroll(ctx, schemas.ScrollDirectionDown)
	case schemas.ScrollUp:
		return d.scroll(ctx, schemas.ScrollDirectionUp)
	case schemas.TakeScreenshot:
		return d.takeScreenshot(ctx)
	case schemas.GoToURL:
		if err := d.browser.GoToURL(ctx, a.URL); err != nil {
			return fmt.Errorf("navigation to %s failed: %w", a.URL, err)
		}
		return nil
	case schemas.TriggerSuccess:
		return d.outcome.Succeed(a.Reason)
	case schemas.TriggerFailure:
		return d.outcome.Fail(a.Reason)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
}

func (d *Dispatcher) resolve(ctx context.Context, index int) (schemas.Coordinate, error) {
	coord, err := d.dom.GetIndexSelector(ctx, index)
	if err != nil {
		return schemas.Coordinate{}, fmt.Errorf("failed to resolve element %d: %w", index, err)
	}
	if coord == nil {
		return schemas.Coordinate{}, fmt.Errorf("element %d: %w", index, ErrElementNotFound)
	}
	return *coord, nil
}

func (d *Dispatcher) clickElement(ctx context.Context, a schemas.ClickElement) error {
	coord, err := d.resolve(ctx, a.Index)
	if err != nil {
		return err
	}
	if err := d.dom.ResetHighlightElements(ctx); err != nil {
		return fmt.Errorf("failed to reset highlights: %w", err)
	}
	if err := d.dom.HighlightElementPointer(ctx, coord); err != nil {
		return fmt.Errorf("failed to highlight pointer: %w", err)
	}
	if err := d.browser.MouseClick(ctx, coord.X, coord.Y); err != nil {
		return fmt.Errorf("click on element %d failed: %w", a.Index, err)
	}
	if err := d.dom.ResetHighlightElements(ctx); err != nil {
		return fmt.Errorf("failed to reset highlights: %w", err)
	}
	return nil
}

func (d *Dispatcher) fillInput(ctx context.Context, a schemas.FillInput) error {
	coord, err := d.resolve(ctx, a.Index)
	if err != nil {
		return err
	}
	if err := d.dom.HighlightElementPointer(ctx, coord); err != nil {
		return fmt.Errorf("failed to highlight pointer: %w", err)
	}
	if err := d.browser.FillInput(ctx, a.Text, coord); err != nil {
		return fmt.Errorf("fill on element %d failed: %w", a.Index, err)
	}
	if err := d.dom.ResetHighlightElements(ctx); err != nil {
		return fmt.Errorf("failed to reset highlights: %w", err)
	}
	return nil
}

func (d *Dispatcher) scroll(ctx context.Context, direction schemas.ScrollDirection) error {
	var err error
	if direction == schemas.ScrollDirectionUp {
		err = d.browser.ScrollUp(ctx)
	} else {
		err = d.browser.ScrollDown(ctx)
	}
	if err != nil {
		return fmt.Errorf("scroll %s failed: %w", direction, err)
	}
	if err := d.dom.ResetHighlightElements(ctx); err != nil {
		return fmt.Errorf("failed to reset highlights: %w", err)
	}
	if err := d.dom.HighlightElementWheel(ctx, direction); err != nil {
		return fmt.Errorf("failed to highlight wheel: %w", err)
	}
	return nil
}

func (d *Dispatcher) takeScreenshot(ctx context.Context) error {
	if err := d.dom.ResetHighlightElements(ctx); err != nil {
		return fmt.Errorf("failed to reset highlights: %w", err)
	}
	if err := d.dom.HighlightForSoM(ctx); err != nil {
		return fmt.Errorf("failed to draw set-of-marks: %w", err)
	}
	return nil
}
