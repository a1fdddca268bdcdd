package schemas

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

// ErrElementNotFound is returned by a DOM provider when an element index does
// not resolve to anything on the current page.
var ErrElementNotFound = errors.New("element not found")

// CurrentState is the planner's reflection on the previous step.
type CurrentState struct {
	EvaluationPreviousGoal string `json:"evaluationPreviousGoal"`
	Memory                 string `json:"memory"`
	NextGoal               string `json:"nextGoal"`
}

// PlanResponse is the structured output of one planning call.
type PlanResponse struct {
	CurrentState CurrentState `json:"currentState"`
	Actions      ActionList   `json:"actions"`
}

// DecodePlanResponse parses a planner reply. Errors from the action list keep
// ErrInvalidAction in their chain.
func DecodePlanResponse(data []byte) (*PlanResponse, error) {
	var wire struct {
		CurrentState CurrentState    `json:"currentState"`
		Actions      json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode plan response: %w", err)
	}

	plan := &PlanResponse{CurrentState: wire.CurrentState}
	if len(wire.Actions) > 0 {
		actions, err := DecodeActionList(wire.Actions)
		if err != nil {
			return nil, err
		}
		plan.Actions = actions
	}
	return plan, nil
}

// Validate checks the fields a task cannot be created without.
func (p *PlanResponse) Validate() error {
	if p == nil {
		return errors.New("plan response is nil")
	}
	if strings.TrimSpace(p.CurrentState.NextGoal) == "" {
		return errors.New("plan response has an empty nextGoal")
	}
	for i, a := range p.Actions {
		if a == nil {
			return fmt.Errorf("plan response action %d is null", i)
		}
	}
	return nil
}

// EvaluationResult is the evaluator's verdict for one task.
type EvaluationResult struct {
	IsCompleted bool   `json:"isCompleted"`
	Reason      string `json:"reason"`
}

// Coordinate is a viewport position in CSS pixels.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScrollDirection tells the wheel highlight which way the page moved.
type ScrollDirection string

const (
	ScrollDirectionUp   ScrollDirection = "up"
	ScrollDirectionDown ScrollDirection = "down"
)

// PageSnapshot is what the planner sees of the page: a PNG screenshot and the
// indexed interactive elements rendered as text.
type PageSnapshot struct {
	Screenshot          []byte `json:"-"`
	StringifiedDOMState string `json:"stringifiedDomState"`
	ElementCount        int    `json:"elementCount"`
}

// Role of a message sent to a language model.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// MessagePart is either text or an inline PNG image.
type MessagePart struct {
	Text     string `json:"text,omitempty"`
	ImagePNG []byte `json:"-"`
}

// IsImage reports whether the part carries image data.
func (p MessagePart) IsImage() bool { return len(p.ImagePNG) > 0 }

// Message is one entry of a multi-part prompt.
type Message struct {
	Role  Role          `json:"role"`
	Parts []MessagePart `json:"parts"`
}

// TextMessage builds a single-part text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []MessagePart{{Text: text}}}
}
