package tts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalTTSProvider_DefaultsCommandWhenUnset(t *testing.T) {
	provider, err := newLocalProvider(Config{})
	require.NoError(t, err)
	assert.Equal(t, "espeak", provider.(*localProvider).cfg.LocalCommand)
}

func TestLocalTTSProvider_PushTextChunkWithoutSessionErrors(t *testing.T) {
	provider, err := newLocalProvider(Config{})
	require.NoError(t, err)
	require.Error(t, provider.PushTextChunk("hello"))
}

func TestLocalTTSProvider_FinishSessionWithoutSessionIsNoop(t *testing.T) {
	provider, err := newLocalProvider(Config{})
	require.NoError(t, err)
	var done bool
	provider.SetFrameCallback(nil, func(string) { done = true })
	require.NoError(t, provider.FinishSession(context.Background()))
	assert.False(t, done)
}

func TestLocalTTSProvider_CancelClearsSession(t *testing.T) {
	provider, err := newLocalProvider(Config{})
	require.NoError(t, err)
	require.NoError(t, provider.StartSession(context.Background(), "s1"))
	provider.Cancel()
	lp := provider.(*localProvider)
	assert.True(t, lp.cancelled)
	assert.Nil(t, lp.seg)
}

func TestLocalTTSProvider_StartSessionResetsSequence(t *testing.T) {
	provider, err := newLocalProvider(Config{})
	require.NoError(t, err)
	lp := provider.(*localProvider)
	lp.seq = 5
	require.NoError(t, provider.StartSession(context.Background(), "s2"))
	assert.Equal(t, uint64(0), lp.seq)
	assert.Equal(t, "s2", lp.sessionID)
}
