// Package llm defines the out-of-scope-but-wired LLM collaborator contract:
// given a dialogue history, it emits a lazy sequence of text deltas
// (spec.md Section 1's scope note). The orchestrator never inspects a
// provider's internals beyond this interface.
package llm

import (
	"context"

	"github.com/xiaozhivoice/bridge/internal/dialogue"
)

// Delta is one incremental piece of assistant text.
type Delta struct {
	Text string
	Done bool
	Err  error
}

// Provider is the minimal contract the Session Orchestrator depends on.
type Provider interface {
	// StreamChat starts a completion over the given history and returns a
	// channel of deltas. The channel is closed after a Delta{Done: true}
	// or a Delta{Err: ...}.
	StreamChat(ctx context.Context, history []dialogue.Message, systemPrompt string) (<-chan Delta, error)
	// RegisterTool exposes a function tool the provider may call during
	// completion (spec.md's device-side MCP tool plane, thin binding).
	RegisterTool(name, description string, parameters map[string]any, handler ToolHandler)
	// Interrupt cancels any in-flight completion for this provider
	// instance, used on barge-in.
	Interrupt()
}

// ToolHandler executes a registered tool call and returns its result text.
type ToolHandler func(ctx context.Context, args map[string]any) (string, error)

// Kind enumerates supported LLM backends, mirroring the teacher's
// ProviderType enum.
type Kind string

const (
	KindOpenAI Kind = "openai"
	KindCoze   Kind = "coze"
)

// Config carries the credentials/endpoint a provider is constructed from.
type Config struct {
	Kind         Kind
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	// Coze-specific
	BotID  string
	UserID string
}

// New constructs a Provider for the given config, mirroring the teacher's
// dispatch-by-kind factory shape.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Kind {
	case KindCoze:
		return newCozeProvider(ctx, cfg)
	default:
		return newOpenAIProvider(ctx, cfg)
	}
}
