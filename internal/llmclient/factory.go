// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// NewClient builds the tiered client described by the LLM configuration.
// The fast and powerful tiers may point at the same model alias.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*LLMRouter, error) {
	built := make(map[string]schemas.LLMClient, 2)
	clientFor := func(alias string) (schemas.LLMClient, error) {
		if c, ok := built[alias]; ok {
			return c, nil
		}
		modelCfg, ok := cfg.Models[alias]
		if !ok {
			return nil, fmt.Errorf("model alias %q is not configured under llm.models", alias)
		}
		c, err := newModelClient(ctx, modelCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", alias, err)
		}
		built[alias] = c
		return c, nil
	}

	fast, err := clientFor(cfg.DefaultFastModel)
	if err != nil {
		return nil, err
	}
	powerful, err := clientFor(cfg.DefaultPowerfulModel)
	if err != nil {
		return nil, err
	}
	return NewLLMRouter(logger, fast, powerful)
}

func newModelClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}
