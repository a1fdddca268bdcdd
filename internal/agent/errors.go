// internal/agent/errors.go
package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

var (
	// ErrPlanParse marks planner output that could not be turned into a plan.
	ErrPlanParse = errors.New("failed to parse plan response")
	// ErrElementNotFound is returned when an action's index does not resolve.
	ErrElementNotFound = schemas.ErrElementNotFound
	// ErrUnknownAction is returned when the dispatcher receives an action
	// type it has no handler for.
	ErrUnknownAction = errors.New("unknown action type")
	// ErrTaskAlreadyResolved is returned on a second status change of a task.
	ErrTaskAlreadyResolved = errors.New("task already resolved")
	// ErrOutcomeFinal is returned when the run outcome is already terminal.
	ErrOutcomeFinal = errors.New("agent outcome already final")
)

// ErrorCode is a string type used for structured error reporting from the
// action dispatcher.
type ErrorCode string

const (
	ErrCodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"
	ErrCodeUnknownAction    ErrorCode = "UNKNOWN_ACTION_TYPE"
	ErrCodeElementNotFound  ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeoutError     ErrorCode = "TIMEOUT_ERROR"
	ErrCodeNavigationError  ErrorCode = "NAVIGATION_ERROR"
	ErrCodeExecutorPanic    ErrorCode = "EXECUTOR_PANIC"
)

// ParseBrowserError classifies a dispatch error. Sentinels are matched first,
// then the browser's error text is checked heuristically.
func ParseBrowserError(err error, action schemas.Action) (ErrorCode, map[string]interface{}) {
	details := map[string]interface{}{
		"message": err.Error(),
	}
	if action != nil {
		details["action"] = string(action.Name())
		switch v := action.(type) {
		case schemas.ClickElement:
			details["index"] = v.Index
		case schemas.FillInput:
			details["index"] = v.Index
		case schemas.GoToURL:
			details["url"] = v.URL
		}
	}

	switch {
	case errors.Is(err, ErrElementNotFound):
		return ErrCodeElementNotFound, details
	case errors.Is(err, ErrUnknownAction):
		return ErrCodeUnknownAction, details
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeoutError, details
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "no element found") || strings.Contains(errStr, "could not find node") {
		return ErrCodeElementNotFound, details
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out") {
		return ErrCodeTimeoutError, details
	}
	if strings.Contains(errStr, "net::err") || strings.Contains(errStr, "navigation") {
		return ErrCodeNavigationError, details
	}
	return ErrCodeExecutionFailure, details
}
