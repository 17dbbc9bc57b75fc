// Package llm provides LLM client interfaces and implementations, and the
// process-wide generation engine built on top of them.
package llm

import (
	"context"
	"fmt"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// TextGenerator turns a prompt into text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderLocal     Provider = "local"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// ClientConfig selects and configures a provider.
type ClientConfig struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	// RawPrompt sends prompts to a local server verbatim, without the
	// server's chat template.
	RawPrompt bool
}

// NewClient creates a new LLM client based on provider.
func NewClient(ctx context.Context, cfg ClientConfig) (Client, error) {
	switch cfg.Provider {
	case ProviderLocal:
		return NewLocalClient(cfg.BaseURL, cfg.APIKey, cfg.RawPrompt)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey)
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func userPrompt(req *CompletionRequest) string {
	var prompt string
	for _, m := range req.Messages {
		if m.Role == "user" {
			prompt += m.Content
		}
	}
	return prompt
}
