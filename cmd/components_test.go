// File: cmd/components_test.go
package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/config"
)

func newTestConfig(apiKey string) *config.Config {
	cfg := config.NewDefaultConfig()
	for name, m := range cfg.LLM.Models {
		m.APIKey = apiKey
		cfg.LLM.Models[name] = m
	}
	return cfg
}

func TestBuildComponents(t *testing.T) {
	comps, err := buildComponents(context.Background(), newTestConfig("test-key"), zap.NewNop())
	require.NoError(t, err)

	_, isManager := comps.runner.(*agent.Manager)
	assert.True(t, isManager)
	assert.NotNil(t, comps.reporter.Events())
	// LLM client and browser session.
	assert.Len(t, comps.closers, 2)

	// The browser never started, so shutdown has nothing to wait for.
	require.NoError(t, comps.Shutdown(context.Background()))
	_, open := <-comps.reporter.Events()
	assert.False(t, open, "shutdown closes the event stream")
	require.NoError(t, comps.Shutdown(context.Background()), "shutdown is repeatable")
}

func TestBuildComponents_Errors(t *testing.T) {
	t.Run("missing API key", func(t *testing.T) {
		_, err := buildComponents(context.Background(), newTestConfig(""), zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create LLM client")
	})

	t.Run("unreachable archive", func(t *testing.T) {
		cfg := newTestConfig("test-key")
		cfg.Store.Enabled = true
		cfg.Store.URL = "postgres://webpilot@127.0.0.1:1/webpilot?connect_timeout=2"
		_, err := buildComponents(context.Background(), cfg, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to run archive")
	})
}
