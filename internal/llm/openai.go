package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to the OpenAI API or to any server exposing the same
// chat completions endpoint (Ollama, llama.cpp, vLLM). In raw mode it uses
// the plain completions endpoint so a prompt that already carries the
// model's turn template is not wrapped a second time.
type OpenAIClient struct {
	client *openai.Client
	name   string
	raw    bool
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		name:   string(ProviderOpenAI),
	}, nil
}

// NewLocalClient creates a client for an OpenAI-compatible local server.
// Local servers usually ignore the key, so an empty one is allowed.
func NewLocalClient(baseURL, apiKey string, raw bool) (*OpenAIClient, error) {
	if baseURL == "" {
		return nil, errors.New("local model base URL is required")
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		name:   string(ProviderLocal),
		raw:    raw,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Complete sends a completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	if c.raw {
		return c.completeRaw(ctx, model, maxTokens, req, start)
	}

	// Convert messages to OpenAI format
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, err
	}

	var content, stopReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		stopReason = string(resp.Choices[0].FinishReason)
	}

	return &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   resp.Usage.PromptTokens,
		TokensOut:  resp.Usage.CompletionTokens,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (c *OpenAIClient) completeRaw(ctx context.Context, model string, maxTokens int, req *CompletionRequest, start time.Time) (*CompletionResponse, error) {
	resp, err := c.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       model,
		Prompt:      userPrompt(req),
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, err
	}

	var content, stopReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Text
		stopReason = resp.Choices[0].FinishReason
	}

	return &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   resp.Usage.PromptTokens,
		TokensOut:  resp.Usage.CompletionTokens,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
