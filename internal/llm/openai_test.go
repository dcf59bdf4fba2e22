package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaozhivoice/bridge/internal/dialogue"
)

func TestNewOpenAIProvider_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: KindOpenAI})
	require.Error(t, err)
}

func TestOpenAIProvider_StreamChatEmitsDeltasThenDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt","choices":[{"index":0,"delta":{"content":"hello"},"finish_reason":""}]}`,
			`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt","choices":[{"index":0,"delta":{"content":" world"},"finish_reason":""}]}`,
			`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		}
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	provider, err := New(context.Background(), Config{Kind: KindOpenAI, APIKey: "test", BaseURL: server.URL})
	require.NoError(t, err)

	deltas, err := provider.StreamChat(context.Background(), []dialogue.Message{
		{Role: dialogue.RoleUser, Content: "hi"},
	}, "be helpful")
	require.NoError(t, err)

	var got []Delta
	for d := range deltas {
		got = append(got, d)
		if d.Done || d.Err != nil {
			break
		}
	}
	require.NotEmpty(t, got)
	assert.Equal(t, "hello", got[0].Text)
	assert.True(t, got[len(got)-1].Done)
}

func TestOpenAIProvider_InterruptWithoutActiveStreamIsSafe(t *testing.T) {
	provider, err := New(context.Background(), Config{Kind: KindOpenAI, APIKey: "test"})
	require.NoError(t, err)
	provider.Interrupt()
}

func TestToOpenAIRole(t *testing.T) {
	cases := map[dialogue.Role]string{
		dialogue.RoleUser:      "user",
		dialogue.RoleAssistant: "assistant",
		dialogue.RoleTool:      "tool",
		dialogue.RoleSystem:    "system",
	}
	for role, want := range cases {
		assert.Equal(t, want, toOpenAIRole(role))
	}
}

func TestOpenAIProvider_RegisterToolIncludedInRequest(t *testing.T) {
	called := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case called <- struct{}{}:
		default:
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider, err := New(context.Background(), Config{Kind: KindOpenAI, APIKey: "test", BaseURL: server.URL})
	require.NoError(t, err)
	provider.RegisterTool("get_weather", "fetch weather", map[string]any{"type": "object"}, func(context.Context, map[string]any) (string, error) {
		return "sunny", nil
	})

	deltas, err := provider.StreamChat(context.Background(), nil, "")
	require.NoError(t, err)
	for range deltas {
	}

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("server was never called")
	}
}
