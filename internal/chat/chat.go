// Package chat assembles conversation prompts and threads multi-turn
// dialogues with the completion provider. The server holds no session
// state: the full conversation context is an input and an output of
// every turn, and the client is its only keeper between requests.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/ihkcoach/ihkcoach/internal/llm"
	"github.com/ihkcoach/ihkcoach/internal/llm/prompts"
	"github.com/ihkcoach/ihkcoach/internal/model"
)

// ErrContextHasSystemTurn is returned when an incoming context already
// starts with a system turn. Injecting the single system turn is this
// package's job; a client-supplied one means tampering.
var ErrContextHasSystemTurn = errors.New("context must not contain a leading system turn")

// ErrEmptyMessage is returned when the user message is blank after sanitizing.
var ErrEmptyMessage = errors.New("message is empty")

// Completer is the slice of the LLM gateway this package needs.
type Completer interface {
	Complete(ctx context.Context, turns []model.Turn, opts llm.Options) (model.Turn, error)
}

// BuildPrompt assembles the full prompt sequence for the provider:
// a single system turn, the prior context unchanged and in order,
// then the new user turn. prior is never mutated.
func BuildPrompt(prior []model.Turn, userMessage, system string) ([]model.Turn, error) {
	if len(prior) > 0 && prior[0].Role == model.RoleSystem {
		return nil, ErrContextHasSystemTurn
	}

	out := make([]model.Turn, 0, len(prior)+2)
	out = append(out, model.SystemTurn(system))
	out = append(out, prior...)
	out = append(out, model.UserTurn(userMessage))
	return out, nil
}

// Orchestrator coordinates prompt assembly and the gateway call for
// one conversation turn.
type Orchestrator struct {
	completer Completer
	opts      llm.Options
	variant   prompts.Variant

	// historyWindow caps how many prior turns are replayed to the
	// provider; 0 replays the full history. The context returned to
	// the client always carries the full history regardless.
	historyWindow int
}

// New creates an Orchestrator.
func New(completer Completer, cfg model.ServerConfig) *Orchestrator {
	return &Orchestrator{
		completer: completer,
		opts: llm.Options{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		variant:       prompts.Variant(cfg.PromptVariant),
		historyWindow: cfg.HistoryWindow,
	}
}

// HandleTurn runs one conversation turn: build the prompt, call the
// provider, and append the user/assistant turn pair to the caller's
// context. On failure no context is returned; the caller's copy stays
// canonical and untouched.
func (o *Orchestrator) HandleTurn(ctx context.Context, prior []model.Turn, message string) (string, []model.Turn, error) {
	message = prompts.SanitizeMessage(message)
	if message == "" {
		return "", nil, ErrEmptyMessage
	}
	// Validate against the full incoming context, not the windowed
	// slice, so a smuggled system turn cannot hide behind trimming.
	if len(prior) > 0 && prior[0].Role == model.RoleSystem {
		return "", nil, ErrContextHasSystemTurn
	}

	system, err := prompts.ChatSystemPrompt(o.variant)
	if err != nil {
		return "", nil, fmt.Errorf("system prompt: %w", err)
	}

	prompt, err := BuildPrompt(o.windowed(prior), message, system)
	if err != nil {
		return "", nil, err
	}

	reply, err := o.completer.Complete(ctx, prompt, o.opts)
	if err != nil {
		return "", nil, fmt.Errorf("complete turn: %w", err)
	}

	// The injected system turn stays internal: the client-visible
	// context grows by exactly the user/assistant pair.
	updated := make([]model.Turn, 0, len(prior)+2)
	updated = append(updated, prior...)
	updated = append(updated, model.UserTurn(message), reply)

	return reply.Content, updated, nil
}

// windowed returns the prior turns to replay to the provider.
func (o *Orchestrator) windowed(prior []model.Turn) []model.Turn {
	if o.historyWindow <= 0 || len(prior) <= o.historyWindow {
		return prior
	}
	return prior[len(prior)-o.historyWindow:]
}
