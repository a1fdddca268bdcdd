// File: cmd/root_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "webpilot version "+Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	out, err := executeCommand(t)
	require.NoError(t, err)
	assert.Contains(t, out, "webpilot drives a web browser toward a goal")
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "logs")
}

func TestVersionCommand_SkipsConfig(t *testing.T) {
	// A broken config file must not matter to the version command.
	out, err := executeCommand(t, "version", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "webpilot "+Version)
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		cfg, err := loadConfig(viper.New(), writeTestConfig(t))
		require.NoError(t, err)
		assert.Equal(t, "fatal", cfg.Logger.Level)
		assert.Equal(t, "test-key", cfg.LLM.Models["flash"].APIKey)
		assert.Equal(t, 3, cfg.Agent.MaxRetries)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("WEBPILOT_AGENT_MAX_RETRIES", "9")
		cfg, err := loadConfig(viper.New(), writeTestConfig(t))
		require.NoError(t, err)
		assert.Equal(t, 9, cfg.Agent.MaxRetries)
	})

	t.Run("unreadable file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("agent: [unclosed"), 0o600))
		_, err := loadConfig(viper.New(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("WEBPILOT_AGENT_MAX_RETRIES", "-1")
		_, err := loadConfig(viper.New(), writeTestConfig(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent.max_retries")
	})
}
