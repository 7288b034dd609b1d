package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultOpenAIEndpoint is used when no base URL is configured.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1"

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint  string // Base URL, e.g., "https://api.openai.com/v1"
	Model     string
	APIKey    string // Optional for local endpoints
	MaxTokens int    // 0 leaves the provider default
	JSONMode  bool   // OpenAI-compatible only
}

// Client talks to OpenAI-compatible chat completion endpoints.
type Client struct {
	api    *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a new OpenAI-compatible client. An empty endpoint selects OpenAI.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	resolved := *cfg
	if resolved.Endpoint == "" {
		resolved.Endpoint = DefaultOpenAIEndpoint
	}

	apiCfg := openai.DefaultConfig(resolved.APIKey)
	apiCfg.BaseURL = strings.TrimSuffix(resolved.Endpoint, "/")
	apiCfg.HTTPClient = newHTTPClient()

	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		cfg:    resolved,
		logger: logger.Named("llm"),
	}, nil
}

func (c *Client) request(prompt, systemMessage string, temperature float64) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(temperature),
		MaxTokens:   c.cfg.MaxTokens,
	}
	if c.cfg.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

// GenerateResponse runs one chat completion and returns the first choice.
func (c *Client) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	temperature float64,
) (*GenerateResponseResult, error) {
	requestID := RequestIDFromContext(ctx)
	start := time.Now()

	resp, err := c.api.CreateChatCompletion(ctx, c.request(prompt, systemMessage, temperature))
	if err != nil {
		c.logger.Error("Chat completion failed",
			zap.String("request_id", requestID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewErrorWithContext(ErrorTypeResponse, "no choices in response", false, nil, c.cfg.Model, c.cfg.Endpoint, 0)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		c.logger.Warn("Completion truncated at max tokens",
			zap.String("request_id", requestID),
			zap.Int("max_tokens", c.cfg.MaxTokens))
	}
	c.logger.Debug("Chat completion done",
		zap.String("request_id", requestID),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.cfg.Model
}

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string {
	return c.cfg.Endpoint
}

func (c *Client) classify(err error) error {
	llmErr := ClassifyError(err)
	llmErr.Model = c.cfg.Model
	llmErr.Endpoint = c.cfg.Endpoint
	return llmErr
}
