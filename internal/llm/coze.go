package llm

import (
	"context"
	"errors"
	"sync"

	coze "github.com/coze-dev/coze-go"

	"github.com/xiaozhivoice/bridge/internal/dialogue"
)

// cozeProvider adapts the Coze bot API to the Provider contract, mirroring
// the teacher's bot id / user id / base URL construction shape over the
// real SDK client.
type cozeProvider struct {
	client *coze.CozeAPI
	botID  string
	userID string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newCozeProvider(_ context.Context, cfg Config) (Provider, error) {
	if cfg.APIKey == "" || cfg.BotID == "" {
		return nil, errors.New("coze: api key and bot id required")
	}
	auth := coze.NewTokenAuth(cfg.APIKey)
	opts := []coze.CozeAPIOption{coze.WithAuth(auth)}
	if cfg.BaseURL != "" {
		opts = append(opts, coze.WithBaseURL(cfg.BaseURL))
	}
	client := coze.NewCozeAPI(auth, opts...)
	userID := cfg.UserID
	if userID == "" {
		userID = "xiaozhi-device"
	}
	return &cozeProvider{client: client, botID: cfg.BotID, userID: userID}, nil
}

func (p *cozeProvider) RegisterTool(string, string, map[string]any, ToolHandler) {
	// Coze bots register their tools in the Coze workspace, not at
	// runtime; nothing to wire here.
}

func (p *cozeProvider) Interrupt() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *cozeProvider) StreamChat(ctx context.Context, history []dialogue.Message, _ string) (<-chan Delta, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	lastUser := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == dialogue.RoleUser {
			lastUser = history[i].Content
			break
		}
	}

	req := &coze.CreateChatsReq{
		BotID:  p.botID,
		UserID: p.userID,
		Messages: []*coze.Message{
			coze.BuildUserQuestionText(lastUser, nil),
		},
	}

	stream, err := p.client.Chat.Stream(streamCtx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Delta, 16)
	go func() {
		defer close(out)
		for {
			event, err := stream.Recv()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, coze.ErrStreamDone) {
					out <- Delta{Done: true}
					return
				}
				out <- Delta{Err: err}
				return
			}
			if event.Message != nil && event.Message.Content != "" {
				out <- Delta{Text: event.Message.Content}
			}
			if event.Event == coze.ChatEventCompleted {
				out <- Delta{Done: true}
				return
			}
		}
	}()
	return out, nil
}
