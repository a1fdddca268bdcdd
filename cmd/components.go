// -- cmd/components.go --
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/browser"
	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/evaluator"
	"github.com/xkilldash9x/webpilot/internal/llmclient"
	"github.com/xkilldash9x/webpilot/internal/observability"
	"github.com/xkilldash9x/webpilot/internal/planner"
	"github.com/xkilldash9x/webpilot/internal/store"
)

// eventBuffer is how many progress events the CLI may lag behind the agent.
const eventBuffer = 64

// agentRunner is the part of agent.Manager the run command needs.
type agentRunner interface {
	Launch(ctx context.Context, startURL, goal string) (agent.RunResult, error)
}

// components holds everything a run needs and how to release it.
type components struct {
	runner   agentRunner
	reporter *observability.ZapReporter
	closers  []func(context.Context) error
}

// newComponents is a variable so tests can run the command without Chrome.
var newComponents = buildComponents

func buildComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *components, err error) {
	c := &components{reporter: observability.NewZapReporter(logger, eventBuffer)}
	defer func() {
		if err != nil {
			if shutdownErr := c.Shutdown(context.Background()); shutdownErr != nil {
				logger.Warn("Cleanup after failed initialization was incomplete", zap.Error(shutdownErr))
			}
		}
	}()

	llm, err := llmclient.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	c.closers = append(c.closers, func(context.Context) error { return llm.Close() })

	session := browser.NewSession(cfg.Browser, logger)
	c.closers = append(c.closers, session.Close)
	dom := browser.NewDOM(session, cfg.Browser, logger)

	deps := agent.Dependencies{
		Browser:   session,
		DOM:       dom,
		History:   agent.NewHistory(cfg.Agent.HistoryWindow),
		Planner:   planner.NewLLMPlanner(llm, logger),
		Evaluator: evaluator.NewLLMEvaluator(llm, dom, session, logger),
		Reporter:  c.reporter,
	}

	if cfg.Store.Enabled {
		archive, err := store.Connect(ctx, cfg.Store.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to run archive: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error {
			archive.Close()
			return nil
		})
		if err := archive.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare run archive: %w", err)
		}
		deps.Recorder = archive
	}

	manager, err := agent.NewManager(cfg.Agent, deps, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	c.runner = manager
	return c, nil
}

// Shutdown closes the event stream and releases every resource concurrently.
func (c *components) Shutdown(ctx context.Context) error {
	c.reporter.Close()

	var g errgroup.Group
	for _, closeFn := range c.closers {
		closeFn := closeFn
		g.Go(func() error { return closeFn(ctx) })
	}
	return g.Wait()
}
