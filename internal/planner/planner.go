// Package planner asks the powerful model tier for the agent's next task.
package planner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/llmutil"
)

// planTemperature keeps plans mostly deterministic while leaving room to try
// something new after a failed task.
const planTemperature = 0.3

// LLMPlanner implements agent.PlanProvider.
type LLMPlanner struct {
	client schemas.LLMClient
	logger *zap.Logger
}

var _ agent.PlanProvider = (*LLMPlanner)(nil)

func NewLLMPlanner(client schemas.LLMClient, logger *zap.Logger) *LLMPlanner {
	return &LLMPlanner{client: client, logger: logger.Named("planner")}
}

// InvokeAndParse sends the planning messages and decodes the model's answer.
// Transport failures are returned as is; output that is not a usable plan is
// wrapped in agent.ErrPlanParse.
func (p *LLMPlanner) InvokeAndParse(ctx context.Context, messages []schemas.Message) (*schemas.PlanResponse, error) {
	raw, err := p.client.Generate(ctx, schemas.GenerationRequest{
		Messages: messages,
		Tier:     schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     planTemperature,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("planning request failed: %w", err)
	}

	payload, err := llmutil.ExtractJSON(raw)
	if err != nil {
		p.logger.Warn("Model returned no JSON plan", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", agent.ErrPlanParse, err)
	}
	plan, err := schemas.DecodePlanResponse([]byte(payload))
	if err != nil {
		p.logger.Warn("Model returned an unparsable plan", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", agent.ErrPlanParse, err)
	}
	if err := plan.Validate(); err != nil {
		p.logger.Warn("Model returned an invalid plan", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", agent.ErrPlanParse, err)
	}

	p.logger.Debug("Plan received",
		zap.String("next_goal", plan.CurrentState.NextGoal),
		zap.String("previous_goal_evaluation", plan.CurrentState.EvaluationPreviousGoal),
		zap.Int("actions", len(plan.Actions)),
	)
	return plan, nil
}
