package schemas

import (
	encodingjson "encoding/json"
	"errors"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

// ActionName is the wire discriminator of an Action.
type ActionName string

const (
	ActionClickElement   ActionName = "clickElement"
	ActionFillInput      ActionName = "fillInput"
	ActionScrollDown     ActionName = "scrollDown"
	ActionScrollUp       ActionName = "scrollUp"
	ActionTakeScreenshot ActionName = "takeScreenshot"
	ActionGoToURL        ActionName = "goToUrl"
	ActionTriggerSuccess ActionName = "triggerSuccess"
	ActionTriggerFailure ActionName = "triggerFailure"
)

// ActionNames lists every action the agent understands, in the order the
// planner prompt documents them.
var ActionNames = []ActionName{
	ActionClickElement,
	ActionFillInput,
	ActionScrollDown,
	ActionScrollUp,
	ActionTakeScreenshot,
	ActionGoToURL,
	ActionTriggerSuccess,
	ActionTriggerFailure,
}

// ErrInvalidAction is returned when an action fails to decode or validate.
var ErrInvalidAction = errors.New("invalid action")

// Action is one atomic operation proposed by the planner. The set of
// implementations is closed; only types in this package satisfy it.
type Action interface {
	Name() ActionName
	isAction()
}

// ClickElement clicks the centre of the element with the given index.
type ClickElement struct {
	Index int `json:"index"`
}

// FillInput focuses the element with the given index and types Text into it.
type FillInput struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type ScrollDown struct{}

type ScrollUp struct{}

// TakeScreenshot refreshes the set-of-marks overlay so the next snapshot
// carries fresh element labels.
type TakeScreenshot struct{}

type GoToURL struct {
	URL string `json:"url"`
}

// TriggerSuccess ends the run successfully.
type TriggerSuccess struct {
	Reason string `json:"reason"`
}

// TriggerFailure ends the run as failed.
type TriggerFailure struct {
	Reason string `json:"reason"`
}

func (ClickElement) Name() ActionName   { return ActionClickElement }
func (FillInput) Name() ActionName      { return ActionFillInput }
func (ScrollDown) Name() ActionName     { return ActionScrollDown }
func (ScrollUp) Name() ActionName       { return ActionScrollUp }
func (TakeScreenshot) Name() ActionName { return ActionTakeScreenshot }
func (GoToURL) Name() ActionName        { return ActionGoToURL }
func (TriggerSuccess) Name() ActionName { return ActionTriggerSuccess }
func (TriggerFailure) Name() ActionName { return ActionTriggerFailure }

func (ClickElement) isAction()   {}
func (FillInput) isAction()      {}
func (ScrollDown) isAction()     {}
func (ScrollUp) isAction()       {}
func (TakeScreenshot) isAction() {}
func (GoToURL) isAction()        {}
func (TriggerSuccess) isAction() {}
func (TriggerFailure) isAction() {}

// wireAction is the {"name": ..., "params": {...}} envelope used by the
// planner output and by the task history.
type wireAction struct {
	Name   ActionName              `json:"name"`
	Params encodingjson.RawMessage `json:"params,omitempty"`
}

// indexParams uses a pointer so a missing index can be told apart from 0.
type indexParams struct {
	Index *int    `json:"index"`
	Text  *string `json:"text"`
}

type urlParams struct {
	URL string `json:"url"`
}

type reasonParams struct {
	Reason string `json:"reason"`
}

// EncodeAction renders a single action in its wire envelope.
func EncodeAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil action", ErrInvalidAction)
	}
	var params interface{}
	switch v := a.(type) {
	case ClickElement:
		params = v
	case FillInput:
		params = v
	case GoToURL:
		params = v
	case TriggerSuccess:
		params = v
	case TriggerFailure:
		params = v
	case ScrollDown, ScrollUp, TakeScreenshot:
		params = struct{}{}
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidAction, a)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params for %s: %w", a.Name(), err)
	}
	return json.Marshal(wireAction{Name: a.Name(), Params: raw})
}

// DecodeAction parses a single wire envelope into its concrete Action.
func DecodeAction(data []byte) (Action, error) {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return w.decode()
}

func (w wireAction) decode() (Action, error) {
	params := w.Params
	if len(params) == 0 || strings.TrimSpace(string(params)) == "null" {
		params = encodingjson.RawMessage("{}")
	}

	switch w.Name {
	case ActionClickElement:
		var p indexParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, paramError(w.Name, err)
		}
		if p.Index == nil {
			return nil, fmt.Errorf("%w: %s requires an index", ErrInvalidAction, w.Name)
		}
		return ClickElement{Index: *p.Index}, nil
	case ActionFillInput:
		var p indexParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, paramError(w.Name, err)
		}
		if p.Index == nil {
			return nil, fmt.Errorf("%w: %s requires an index", ErrInvalidAction, w.Name)
		}
		if p.Text == nil {
			return nil, fmt.Errorf("%w: %s requires text", ErrInvalidAction, w.Name)
		}
		return FillInput{Index: *p.Index, Text: *p.Text}, nil
	case ActionScrollDown:
		return ScrollDown{}, nil
	case ActionScrollUp:
		return ScrollUp{}, nil
	case ActionTakeScreenshot:
		return TakeScreenshot{}, nil
	case ActionGoToURL:
		var p urlParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, paramError(w.Name, err)
		}
		if strings.TrimSpace(p.URL) == "" {
			return nil, fmt.Errorf("%w: %s requires a url", ErrInvalidAction, w.Name)
		}
		return GoToURL{URL: p.URL}, nil
	case ActionTriggerSuccess:
		var p reasonParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, paramError(w.Name, err)
		}
		return TriggerSuccess{Reason: p.Reason}, nil
	case ActionTriggerFailure:
		var p reasonParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, paramError(w.Name, err)
		}
		return TriggerFailure{Reason: p.Reason}, nil
	case "":
		return nil, fmt.Errorf("%w: missing action name", ErrInvalidAction)
	default:
		return nil, fmt.Errorf("%w: unknown action name %q", ErrInvalidAction, w.Name)
	}
}

func paramError(name ActionName, err error) error {
	return fmt.Errorf("%w: bad params for %s: %v", ErrInvalidAction, name, err)
}

// ActionList is an ordered list of actions that (de)serializes through the
// wire envelope.
type ActionList []Action

// MarshalJSON implements json.Marshaler.
func (l ActionList) MarshalJSON() ([]byte, error) {
	out := make([]encodingjson.RawMessage, 0, len(l))
	for i, a := range l {
		raw, err := EncodeAction(a)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Decoders may flatten the
// returned error to text; use DecodeActionList to keep ErrInvalidAction in
// the chain.
func (l *ActionList) UnmarshalJSON(data []byte) error {
	actions, err := DecodeActionList(data)
	if err != nil {
		return err
	}
	*l = actions
	return nil
}

// DecodeActionList parses a JSON array of wire envelopes. A single bad entry
// fails the whole list.
func DecodeActionList(data []byte) (ActionList, error) {
	var wire []wireAction
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: actions must be an array: %v", ErrInvalidAction, err)
	}
	actions := make(ActionList, 0, len(wire))
	for i, w := range wire {
		a, err := w.decode()
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// DescribeAction renders an action as a short human readable string for logs.
func DescribeAction(a Action) string {
	switch v := a.(type) {
	case ClickElement:
		return fmt.Sprintf("clickElement(index=%d)", v.Index)
	case FillInput:
		return fmt.Sprintf("fillInput(index=%d, text=%q)", v.Index, v.Text)
	case GoToURL:
		return fmt.Sprintf("goToUrl(%s)", v.URL)
	case TriggerSuccess:
		return fmt.Sprintf("triggerSuccess(%q)", v.Reason)
	case TriggerFailure:
		return fmt.Sprintf("triggerFailure(%q)", v.Reason)
	case nil:
		return "<nil>"
	default:
		return string(a.Name()) + "()"
	}
}
