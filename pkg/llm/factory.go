package llm

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig selects and configures a generation backend.
type ProviderConfig struct {
	Provider        string
	BaseURL         string
	Model           string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	MaxTokens       int
	JSONMode        bool
	Breaker         CircuitBreakerConfig
}

// NewClientFromConfig builds the configured client wrapped in a circuit breaker.
// It returns (nil, nil) when the selected provider has no API key: callers then
// run without a generation backend.
func NewClientFromConfig(cfg ProviderConfig, logger *zap.Logger) (LLMClient, error) {
	var (
		client LLMClient
		err    error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.BaseURL == "" {
			logger.Info("No OpenAI API key configured; generation backend disabled")
			return nil, nil
		}
		client, err = NewClient(&Config{
			Endpoint:  cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.OpenAIAPIKey,
			MaxTokens: cfg.MaxTokens,
			JSONMode:  cfg.JSONMode,
		}, logger)
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			logger.Info("No Anthropic API key configured; generation backend disabled")
			return nil, nil
		}
		client, err = NewAnthropicClient(&Config{
			Endpoint:  cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.AnthropicAPIKey,
			MaxTokens: cfg.MaxTokens,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.ResetAfter == 0 {
		breakerCfg.ResetAfter = 30 * time.Second
	}
	logger.Info("Generation backend configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", client.GetModel()))
	return NewBreakerClient(client, NewCircuitBreaker(breakerCfg)), nil
}
