// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/observability"
)

// ErrRunFailed is returned when the agent finished with a failure outcome.
var ErrRunFailed = errors.New("run ended in failure")

const shutdownTimeout = 15 * time.Second

// runFlagBindings maps config keys to the run flags that override them.
var runFlagBindings = map[string]string{
	"agent.max_retries":          "max-retries",
	"agent.max_actions_per_task": "max-actions",
	"agent.max_steps":            "max-steps",
	"browser.headless":           "headless",
}

func newRunCommand(state *appState, v *viper.Viper) *cobra.Command {
	var startURL, goal string
	var asJSON bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the browser from a start URL toward a goal",
		Example: `  webpilot run --url https://example.com --goal "Find the contact email"
  webpilot run -u duckduckgo.com -g "Search for golang and open the first result" --headless --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(goal) == "" {
				return errors.New("--goal must not be empty")
			}
			return runAgent(cmd.Context(), cmd.OutOrStdout(), state, startURL, goal, asJSON)
		},
	}

	flags := runCmd.Flags()
	flags.StringVarP(&startURL, "url", "u", "", "URL to open before the first task (required)")
	flags.StringVarP(&goal, "goal", "g", "", "what the agent should achieve, in plain language (required)")
	flags.Int("max-retries", 0, "consecutive failed tasks before giving up (overrides agent.max_retries)")
	flags.Int("max-actions", 0, "actions the planner may propose per task (overrides agent.max_actions_per_task)")
	flags.Int("max-steps", 0, "hard cap on loop iterations, 0 for none (overrides agent.max_steps)")
	flags.Bool("headless", false, "run Chrome without a window (overrides browser.headless)")
	flags.BoolVar(&asJSON, "json", false, "print the final result as JSON instead of a progress log")
	_ = runCmd.MarkFlagRequired("url")
	_ = runCmd.MarkFlagRequired("goal")

	for key, name := range runFlagBindings {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	return runCmd
}

func runAgent(ctx context.Context, out io.Writer, state *appState, startURL, goal string, asJSON bool) (err error) {
	logger := state.logger
	comps, err := newComponents(ctx, state.cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if shutdownErr := comps.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("Shutdown was not clean", zap.Error(shutdownErr))
		}
	}()

	var wg sync.WaitGroup
	if events := comps.reporter.Events(); events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range events {
				if !asJSON {
					renderEvent(out, ev)
				}
			}
		}()
	}

	result, err := comps.runner.Launch(ctx, startURL, goal)
	comps.reporter.Close()
	wg.Wait()
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprintf(out, "\n%s: %s (run %s, %d steps)\n", strings.ToUpper(string(result.Status)), result.Reason, result.RunID, result.Steps)
	}

	if result.Status != agent.RunSuccess {
		return ErrRunFailed
	}
	return nil
}

func renderEvent(w io.Writer, ev observability.Event) {
	switch ev.Kind {
	case observability.EventPlanning:
		fmt.Fprintln(w, "... planning next task")
	case observability.EventTask:
		line := fmt.Sprintf("[%s] %s", ev.Status, ev.Goal)
		if ev.Reason != "" {
			line += ": " + ev.Reason
		}
		fmt.Fprintln(w, line)
	case observability.EventAction:
		if ev.ErrorCode != "" {
			fmt.Fprintf(w, "    > %s (%s)\n", ev.Action, ev.ErrorCode)
			return
		}
		fmt.Fprintf(w, "    > %s\n", ev.Action)
	case observability.EventError:
		fmt.Fprintf(w, "!!! %s\n", ev.Message)
	default:
		fmt.Fprintln(w, ev.Message)
	}
}
