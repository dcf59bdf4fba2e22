package llm

import (
	"context"
	"errors"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xiaozhivoice/bridge/internal/dialogue"
)

// openAIProvider adapts an OpenAI-compatible chat-completion streaming API
// to the Provider contract, grounded on the teacher's
// pkg/hardwarefinal/tools/llm_config.go LLMService wrapper.
type openAIProvider struct {
	client *openai.Client
	model  string

	mu     sync.Mutex
	cancel context.CancelFunc

	tools []registeredTool
}

type registeredTool struct {
	name        string
	description string
	parameters  map[string]any
	handler     ToolHandler
}

func newOpenAIProvider(_ context.Context, cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

func (p *openAIProvider) RegisterTool(name, description string, parameters map[string]any, handler ToolHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tools = append(p.tools, registeredTool{name: name, description: description, parameters: parameters, handler: handler})
}

func (p *openAIProvider) Interrupt() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *openAIProvider) StreamChat(ctx context.Context, history []dialogue.Message, systemPrompt string) (<-chan Delta, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: toOpenAIRole(m.Role), Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: msgs,
		Stream:   true,
		Tools:    p.toolDefs(),
	}

	stream, err := p.client.CreateChatCompletionStream(streamCtx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Delta, 16)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					out <- Delta{Done: true}
					return
				}
				out <- Delta{Err: err}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.Delta.Content != "" {
				out <- Delta{Text: choice.Delta.Content}
			}
			if choice.FinishReason != "" {
				out <- Delta{Done: true}
				return
			}
		}
	}()
	return out, nil
}

func (p *openAIProvider) toolDefs() []openai.Tool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tools) == 0 {
		return nil
	}
	defs := make([]openai.Tool, 0, len(p.tools))
	for _, t := range p.tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.name,
				Description: t.description,
				Parameters:  t.parameters,
			},
		})
	}
	return defs
}

func toOpenAIRole(r dialogue.Role) string {
	switch r {
	case dialogue.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case dialogue.RoleTool:
		return openai.ChatMessageRoleTool
	case dialogue.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
