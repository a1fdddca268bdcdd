// Package evaluator judges, with the fast model tier, whether a task reached
// its goal on the current page.
package evaluator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/llmutil"
)

// ReasonNoActions is the verdict for a task that had nothing to execute.
const ReasonNoActions = "No actions were executed for this task"

const systemPrompt = `You verify the work of a web browsing agent.
You receive the goal of one task, the actions the agent executed for it, the current page URL, the interactive
elements of the page and, when available, a screenshot. Decide whether the task's goal is achieved on the page
as it is now. Judge only this task, not the agent's overall objective. Be strict: an action that was executed
is not proof that its effect happened.

Respond with a single JSON object and nothing else:
{"isCompleted": true|false, "reason": "one sentence explaining the verdict"}`

// LLMEvaluator implements agent.Evaluator.
type LLMEvaluator struct {
	client  schemas.LLMClient
	dom     agent.DOMProvider
	browser agent.BrowserDriver
	logger  *zap.Logger
}

var _ agent.Evaluator = (*LLMEvaluator)(nil)

func NewLLMEvaluator(client schemas.LLMClient, dom agent.DOMProvider, browser agent.BrowserDriver, logger *zap.Logger) *LLMEvaluator {
	return &LLMEvaluator{client: client, dom: dom, browser: browser, logger: logger.Named("evaluator")}
}

// EvaluateTaskCompletion takes a fresh look at the page and asks the model
// for a verdict on the task.
func (e *LLMEvaluator) EvaluateTaskCompletion(ctx context.Context, task *agent.Task) (*schemas.EvaluationResult, error) {
	actions := task.Actions()
	if len(actions) == 0 {
		return &schemas.EvaluationResult{IsCompleted: false, Reason: ReasonNoActions}, nil
	}

	// The page is described as well as possible; a missing snapshot or URL
	// still leaves the model the task and its actions.
	pageURL, err := e.browser.GetPageURL(ctx)
	if err != nil {
		e.logger.Warn("Could not read page URL for evaluation", zap.Error(err))
	}
	snapshot, err := e.dom.GetInteractiveElements(ctx)
	if err != nil {
		e.logger.Warn("Could not capture page snapshot for evaluation", zap.Error(err))
		snapshot = nil
	}

	raw, err := e.client.Generate(ctx, schemas.GenerationRequest{
		Messages: buildMessages(task.Goal(), actions, pageURL, snapshot),
		Tier:     schemas.TierFast,
		Options:  schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation request failed: %w", err)
	}

	verdict, err := llmutil.ParseJSONResponse[schemas.EvaluationResult](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse evaluation: %w", err)
	}
	e.logger.Debug("Task evaluated",
		zap.String("goal", task.Goal()),
		zap.Bool("completed", verdict.IsCompleted),
		zap.String("reason", verdict.Reason),
	)
	return verdict, nil
}

func buildMessages(goal string, actions []schemas.Action, pageURL string, snapshot *schemas.PageSnapshot) []schemas.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Task Goal: %s\n\nExecuted Actions:\n", goal)
	for i, a := range actions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, schemas.DescribeAction(a))
	}
	if pageURL == "" {
		pageURL = "unknown"
	}
	fmt.Fprintf(&b, "\nCurrent URL: %s\n", pageURL)

	user := schemas.Message{Role: schemas.RoleUser}
	if snapshot != nil && snapshot.StringifiedDOMState != "" {
		fmt.Fprintf(&b, "\nInteractive Elements:\n%s\n", snapshot.StringifiedDOMState)
	} else {
		b.WriteString("\nInteractive Elements:\n(no elements available)\n")
	}
	user.Parts = append(user.Parts, schemas.MessagePart{Text: b.String()})
	if snapshot != nil && len(snapshot.Screenshot) > 0 {
		user.Parts = append(user.Parts, schemas.MessagePart{ImagePNG: snapshot.Screenshot})
	}

	return []schemas.Message{schemas.TextMessage(schemas.RoleSystem, systemPrompt), user}
}
