// internal/agent/prompts.go
package agent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// promptInput is everything the planner sees in one planning call.
type promptInput struct {
	EndGoal           string
	MaxActionsPerTask int
	PageURL           string
	History           string
	DOMState          string
	Screenshot        []byte
}

// buildPlanMessages returns the system and user messages for a planning call.
func buildPlanMessages(in promptInput) []schemas.Message {
	user := schemas.Message{
		Role:  schemas.RoleUser,
		Parts: []schemas.MessagePart{{Text: generateUserPrompt(in)}},
	}
	if len(in.Screenshot) > 0 {
		user.Parts = append(user.Parts, schemas.MessagePart{ImagePNG: in.Screenshot})
	}
	return []schemas.Message{
		schemas.TextMessage(schemas.RoleSystem, generateSystemPrompt(in.MaxActionsPerTask)),
		user,
	}
}

func generateSystemPrompt(maxActions int) string {
	base := `You are 'webpilot', an autonomous agent that operates a web browser to achieve the user's end goal.
You work in a loop. Each turn you receive the current page URL, a screenshot in which every interactive element
is labelled with a numeric index, the same elements as text, and the history of the tasks you already tried.
You then choose the next small goal and the actions that achieve it.`

	rules := fmt.Sprintf(`

    **Rules**:
    - Propose at most %d actions per turn.
    - Refer to elements only by the index shown in the element list. Indexes change after every action that
      alters the page, so never reuse an index from an earlier turn.
    - If an element you need is not listed, scroll or navigate first.
    - Use triggerSuccess only when the end goal is verifiably achieved on the current page.
    - Use triggerFailure only when the end goal is impossible (for example the site requires credentials you do not have).
    - Learn from failed tasks in the history and try a different approach instead of repeating them.`, maxActions)

	return base + actionListPrompt() + rules + responseFormatPrompt()
}

func actionListPrompt() string {
	return `

Available Actions:
    - clickElement: Click an element. (Params: {"index": number})
    - fillInput: Click an input and type text into it. (Params: {"index": number, "text": string})
    - scrollDown: Scroll one screen down. (No params)
    - scrollUp: Scroll one screen up. (No params)
    - takeScreenshot: Refresh the element labels before your next turn. (No params)
    - goToUrl: Navigate to a URL. (Params: {"url": string})
    - triggerSuccess: Finish the run because the end goal is achieved. (Params: {"reason": string})
    - triggerFailure: Finish the run because the end goal cannot be achieved. (Params: {"reason": string})`
}

func responseFormatPrompt() string {
	return `

    Respond with a single JSON object and nothing else:
    {
      "currentState": {
        "evaluationPreviousGoal": "Success|Failed|Unknown - short explanation of the previous task",
        "memory": "what you have done so far and what you need to remember",
        "nextGoal": "the next small goal"
      },
      "actions": [{"name": "clickElement", "params": {"index": 3}}]
    }`
}

func generateUserPrompt(in promptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "End Goal: %s\n\n", in.EndGoal)
	fmt.Fprintf(&b, "Current URL: %s\n\n", valueOr(in.PageURL, "unknown"))
	fmt.Fprintf(&b, "Task History (JSON):\n%s\n\n", valueOr(in.History, "[]"))
	fmt.Fprintf(&b, "Interactive Elements:\n%s\n\n", valueOr(in.DOMState, "(no elements available)"))
	if len(in.Screenshot) == 0 {
		b.WriteString("No screenshot is available for this turn.\n\n")
	}
	b.WriteString("Determine the next goal and actions. Respond with a single JSON object.")
	return b.String()
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
