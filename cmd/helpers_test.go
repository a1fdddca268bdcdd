// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/observability"
)

// testConfigYAML keeps tests off the real log file and satisfies the API key
// check without touching the environment.
const testConfigYAML = `
logger:
  level: fatal
  format: console
  log_file: ""
llm:
  api_key: test-key
`

// writeTestConfig writes testConfigYAML to a temp dir and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o600))
	return path
}

// executeCommand runs a fresh root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// stubComponents replaces newComponents for the duration of the test. build
// receives the loaded config and a reporter that publishes events.
func stubComponents(t *testing.T, build func(cfg *config.Config, reporter *observability.ZapReporter) (agentRunner, error)) {
	t.Helper()
	original := newComponents
	t.Cleanup(func() { newComponents = original })

	newComponents = func(_ context.Context, cfg *config.Config, _ *zap.Logger) (*components, error) {
		reporter := observability.NewZapReporter(zap.NewNop(), eventBuffer)
		runner, err := build(cfg, reporter)
		if err != nil {
			return nil, err
		}
		return &components{runner: runner, reporter: reporter}, nil
	}
}
