package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiaozhivoice/bridge/internal/asr"
	"github.com/xiaozhivoice/bridge/internal/audio"
	"github.com/xiaozhivoice/bridge/internal/config"
	"github.com/xiaozhivoice/bridge/internal/dialogue"
	"github.com/xiaozhivoice/bridge/internal/llm"
	"github.com/xiaozhivoice/bridge/internal/tts"
)

func TestNormalizeForWakeWord(t *testing.T) {
	assert.Equal(t, "你好小智", normalizeForWakeWord("你好，小智！"))
	assert.Equal(t, "hello", normalizeForWakeWord(" hello. "))
}

func TestMatchWakeWord(t *testing.T) {
	s := newTestSession()
	s.profile = &config.DeviceProfile{Audio: map[string]config.ProviderAudio{"tts": {Voice: "voice-1"}}}
	s.deps.WakeWordPhrases = []string{"你好小智"}

	key, ok := s.matchWakeWord("你好，小智")
	require.True(t, ok)
	assert.Equal(t, "voice-1:你好小智", key)

	_, ok = s.matchWakeWord("今天天气怎么样")
	assert.False(t, ok)
}

func TestMatchWakeWord_NoPhrasesConfigured(t *testing.T) {
	s := newTestSession()
	s.profile = &config.DeviceProfile{}
	_, ok := s.matchWakeWord("你好小智")
	assert.False(t, ok)
}

// fakeLLMProvider streams a fixed set of deltas and records interruption.
type fakeLLMProvider struct {
	deltas      []llm.Delta
	interrupted bool
}

func (f *fakeLLMProvider) StreamChat(ctx context.Context, history []dialogue.Message, systemPrompt string) (<-chan llm.Delta, error) {
	ch := make(chan llm.Delta, len(f.deltas))
	for _, d := range f.deltas {
		ch <- d
	}
	close(ch)
	return ch, nil
}
func (f *fakeLLMProvider) RegisterTool(string, string, map[string]any, llm.ToolHandler) {}
func (f *fakeLLMProvider) Interrupt()                                                   { f.interrupted = true }

// fakeTTSProvider records the lifecycle calls the orchestrator makes.
type fakeTTSProvider struct {
	started  []string
	pushed   []string
	finished bool
	onFrame  func(tts.Frame)
	onDone   func(string)
}

func (f *fakeTTSProvider) SetFrameCallback(onFrame func(tts.Frame), onDone func(string)) {
	f.onFrame, f.onDone = onFrame, onDone
}
func (f *fakeTTSProvider) StartSession(ctx context.Context, sentenceID string) error {
	f.started = append(f.started, sentenceID)
	return nil
}
func (f *fakeTTSProvider) PushTextChunk(text string) error {
	f.pushed = append(f.pushed, text)
	return nil
}
func (f *fakeTTSProvider) FinishSession(ctx context.Context) error {
	f.finished = true
	if f.onDone != nil {
		f.onDone(f.started[len(f.started)-1])
	}
	return nil
}
func (f *fakeTTSProvider) Cancel() {}

func newIntegrationTestSession(t *testing.T, ttsProvider *fakeTTSProvider, llmProvider *fakeLLMProvider) *Session {
	t.Helper()
	codec, err := audio.NewCodec()
	require.NoError(t, err)
	return &Session{
		logger:      zap.NewNop(),
		profile:     &config.DeviceProfile{},
		ctx:         context.Background(),
		codec:       codec,
		ttsProvider: ttsProvider,
		llmProvider: llmProvider,
		history:     dialogue.New(16),
		writer:      &flowWriter{},
	}
}

func TestDispatchLLM_StreamsDeltasIntoTTS(t *testing.T) {
	fakeTTS := &fakeTTSProvider{}
	fakeLLM := &fakeLLMProvider{deltas: []llm.Delta{
		{Text: "Hello"},
		{Text: " there."},
		{Done: true},
	}}
	s := newIntegrationTestSession(t, fakeTTS, fakeLLM)
	s.writer = newFlowWriter(context.Background(), nil, "sess", zap.NewNop())
	s.writer.cancel() // avoid spawning real socket writes; SendTTSState will fail silently

	s.dispatchLLM("hi")

	require.Len(t, fakeTTS.started, 1)
	assert.Equal(t, []string{"Hello", " there."}, fakeTTS.pushed)
	assert.True(t, fakeTTS.finished)
}

func TestOnASRError_ResetsStateToIdle(t *testing.T) {
	s := newTestSession()
	s.setState(StateRecognizing)
	s.asrOpen = true

	s.onASRError(&asr.ProviderError{Code: asr.ErrorCodeTransport, Message: "connection reset"})

	assert.Equal(t, StateIdle, s.getState())
	assert.False(t, s.asrOpen)
}
