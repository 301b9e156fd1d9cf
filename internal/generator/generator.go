// Package generator produces new exam questions on demand via the
// completion provider. Provider output is untrusted: it is parsed and
// validated before anything is returned to the caller.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ihkcoach/ihkcoach/internal/chat"
	"github.com/ihkcoach/ihkcoach/internal/llm"
	"github.com/ihkcoach/ihkcoach/internal/llm/prompts"
	"github.com/ihkcoach/ihkcoach/internal/model"
)

// ErrMalformedGeneration is returned when the provider's reply cannot
// be parsed into a valid question. The completion call itself
// succeeded; its payload contract was violated.
var ErrMalformedGeneration = errors.New("malformed generated question")

const generateTemperature = 0.7

// Generator requests structured questions from the completion provider.
type Generator struct {
	completer chat.Completer
}

// New creates a Generator.
func New(completer chat.Completer) *Generator {
	return &Generator{completer: completer}
}

// Generate asks the provider for one multiple-choice question on the
// given topic. The prompt is single-purpose: no prior conversation is
// carried.
func (g *Generator) Generate(ctx context.Context, topic string) (*model.GeneratedQuestion, error) {
	system, err := prompts.GenerateSystemPrompt()
	if err != nil {
		return nil, fmt.Errorf("system prompt: %w", err)
	}
	prompt, err := prompts.BuildGeneratePrompt(topic)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	turns := []model.Turn{
		model.SystemTurn(system),
		model.UserTurn(prompt),
	}

	reply, err := g.completer.Complete(ctx, turns, llm.Options{
		Temperature: generateTemperature,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate question: %w", err)
	}

	q, err := parseQuestion(reply.Content)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// parseQuestion decodes and validates the provider's reply.
func parseQuestion(raw string) (*model.GeneratedQuestion, error) {
	var q model.GeneratedQuestion
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
	}

	switch {
	case strings.TrimSpace(q.Question) == "":
		return nil, fmt.Errorf("%w: missing question text", ErrMalformedGeneration)
	case len(q.Options) < 2:
		return nil, fmt.Errorf("%w: got %d options, need at least 2", ErrMalformedGeneration, len(q.Options))
	case q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options):
		return nil, fmt.Errorf("%w: correctAnswer %d out of range for %d options", ErrMalformedGeneration, q.CorrectAnswer, len(q.Options))
	case strings.TrimSpace(q.Explanation) == "":
		return nil, fmt.Errorf("%w: missing explanation", ErrMalformedGeneration)
	}

	return &q, nil
}

// stripCodeFence removes a Markdown code fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
