// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root configuration for webpilot.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig configures the controlled Chrome instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// Highlight toggles the on-page overlays (pointer, wheel, set-of-marks).
	Highlight bool `mapstructure:"highlight" yaml:"highlight"`
}

// AgentConfig bounds the orchestration loop.
type AgentConfig struct {
	// MaxActionsPerTask is passed to the planner as a soft cap.
	MaxActionsPerTask int `mapstructure:"max_actions_per_task" yaml:"max_actions_per_task"`
	// MaxRetries is the number of consecutive failed tasks that ends the run.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// MaxSteps caps loop iterations. Zero disables the cap.
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// HistoryWindow is how many past tasks are shown to the planner.
	HistoryWindow int `mapstructure:"history_window" yaml:"history_window"`
}

type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the model routing logic.
type LLMConfig struct {
	// APIKey is used by every model that does not set its own.
	APIKey               string                    `mapstructure:"api_key" yaml:"api_key"`
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP              float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// StoreConfig configures the optional PostgreSQL run archive.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.log_file", "~/.webpilot/webpilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.action_timeout", "15s")
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.highlight", true)

	// -- Agent --
	v.SetDefault("agent.max_actions_per_task", 3)
	v.SetDefault("agent.max_retries", 3)
	v.SetDefault("agent.max_steps", 0)
	v.SetDefault("agent.history_window", 20)

	// -- LLM --
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.default_fast_model", "flash")
	v.SetDefault("llm.default_powerful_model", "pro")
	v.SetDefault("llm.models.flash.provider", string(ProviderGemini))
	v.SetDefault("llm.models.flash.model", "gemini-2.5-flash")
	v.SetDefault("llm.models.flash.api_timeout", "60s")
	v.SetDefault("llm.models.flash.temperature", 0.1)
	v.SetDefault("llm.models.flash.max_tokens", 1024)
	v.SetDefault("llm.models.flash.requests_per_minute", 60)
	v.SetDefault("llm.models.pro.provider", string(ProviderGemini))
	v.SetDefault("llm.models.pro.model", "gemini-2.5-pro")
	v.SetDefault("llm.models.pro.api_timeout", "120s")
	v.SetDefault("llm.models.pro.temperature", 0.2)
	v.SetDefault("llm.models.pro.max_tokens", 4096)
	v.SetDefault("llm.models.pro.requests_per_minute", 20)

	// -- Store --
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.url", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The API key is sensitive, so it is commonly only in the environment.
	_ = v.BindEnv("llm.api_key", "WEBPILOT_LLM_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("store.url", "WEBPILOT_STORE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	cfg.LLM.applyAPIKeyFallback()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	var err error
	if c.Logger.LogFile, err = homedir.Expand(c.Logger.LogFile); err != nil {
		return fmt.Errorf("failed to expand logger.log_file: %w", err)
	}
	if c.Browser.UserDataDir, err = homedir.Expand(c.Browser.UserDataDir); err != nil {
		return fmt.Errorf("failed to expand browser.user_data_dir: %w", err)
	}
	if c.Browser.ExecPath, err = homedir.Expand(c.Browser.ExecPath); err != nil {
		return fmt.Errorf("failed to expand browser.exec_path: %w", err)
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if c.Store.Enabled && strings.TrimSpace(c.Store.URL) == "" {
		return fmt.Errorf("store.url is required when store.enabled is true")
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", b.ViewportWidth, b.ViewportHeight)
	}
	if b.ActionTimeout <= 0 {
		return fmt.Errorf("browser.action_timeout must be positive")
	}
	if b.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be positive")
	}
	return nil
}

// Validate checks the loop bounds.
func (a *AgentConfig) Validate() error {
	if a.MaxRetries < 0 {
		return fmt.Errorf("agent.max_retries cannot be negative")
	}
	if a.MaxActionsPerTask <= 0 {
		return fmt.Errorf("agent.max_actions_per_task must be a positive integer")
	}
	if a.MaxSteps < 0 {
		return fmt.Errorf("agent.max_steps cannot be negative")
	}
	if a.HistoryWindow < 0 {
		return fmt.Errorf("agent.history_window cannot be negative")
	}
	return nil
}

// Validate checks that both tiers point at a configured model.
func (l *LLMConfig) Validate() error {
	for tier, name := range map[string]string{
		"default_fast_model":     l.DefaultFastModel,
		"default_powerful_model": l.DefaultPowerfulModel,
	} {
		if name == "" {
			return fmt.Errorf("llm.%s is required", tier)
		}
		model, ok := l.Models[name]
		if !ok {
			return fmt.Errorf("llm.%s refers to unknown model %q", tier, name)
		}
		if err := model.Validate(); err != nil {
			return fmt.Errorf("llm.models.%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks a single model entry. The API key is checked when the
// client is built, so commands that never call a model still work without one.
func (m *LLMModelConfig) Validate() error {
	if m.Provider != ProviderGemini {
		return fmt.Errorf("unsupported provider %q, supported: [%s]", m.Provider, ProviderGemini)
	}
	if m.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if m.APITimeout < 0 {
		return fmt.Errorf("api_timeout cannot be negative")
	}
	if m.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute cannot be negative")
	}
	return nil
}

func (l *LLMConfig) applyAPIKeyFallback() {
	for name, m := range l.Models {
		if m.APIKey == "" {
			m.APIKey = l.APIKey
			l.Models[name] = m
		}
	}
}
