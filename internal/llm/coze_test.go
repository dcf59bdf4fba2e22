package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCozeProvider_RequiresAPIKeyAndBotID(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: KindCoze})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Kind: KindCoze, APIKey: "k"})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Kind: KindCoze, BotID: "b"})
	require.Error(t, err)
}

func TestNewCozeProvider_DefaultsUserID(t *testing.T) {
	p, err := New(context.Background(), Config{Kind: KindCoze, APIKey: "k", BotID: "b"})
	require.NoError(t, err)
	cp := p.(*cozeProvider)
	assert.Equal(t, "xiaozhi-device", cp.userID)
}

func TestCozeProvider_InterruptWithoutActiveStreamIsSafe(t *testing.T) {
	p, err := New(context.Background(), Config{Kind: KindCoze, APIKey: "k", BotID: "b"})
	require.NoError(t, err)
	p.Interrupt()
}
