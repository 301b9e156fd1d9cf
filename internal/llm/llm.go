// Package llm is a thin gateway to an OpenAI-compatible chat
// completion provider. It performs one outbound call per invocation,
// never retries, and never caches.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ihkcoach/ihkcoach/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the provider answers without choices.
var ErrEmptyCompletion = errors.New("provider returned no choices")

// Options carries per-call model parameters.
type Options struct {
	Temperature float32 // sampling randomness, 0..2
	MaxTokens   int     // reply length cap, 0 = provider default
	JSONMode    bool    // request a JSON object response
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies that the provider endpoint is reachable and the
// credentials are accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

// Complete sends the ordered turn sequence to the provider and
// returns the single assistant turn it produces. Provider failures
// are surfaced immediately; retry policy belongs to the caller.
func (c *Client) Complete(ctx context.Context, turns []model.Turn, opts Options) (model.Turn, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(turns),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return model.Turn{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Turn{}, ErrEmptyCompletion
	}

	return model.AssistantTurn(resp.Choices[0].Message.Content), nil
}

func toChatMessages(turns []model.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		switch t.Role {
		case model.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case model.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: t.Content,
		})
	}
	return msgs
}
