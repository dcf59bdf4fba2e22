package wakeword

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/xiaozhivoice/bridge/internal/audio"
	"github.com/xiaozhivoice/bridge/internal/tts"
)

// synthesizeOneShot drives a tts.Provider through one blocking
// start/push/finish cycle and decodes its Opus frames back to PCM16 for
// WAV persistence (spec.md 4.4: "synthesize via current TTS (one-shot
// mode)"). It replaces the provider's frame callbacks with its own;
// cmd/server gives the cache a dedicated local provider that the cache
// holds for its whole lifetime.
func synthesizeOneShot(ctx context.Context, provider tts.Provider, voiceID, text string) ([]int16, error) {
	codec, err := audio.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("new codec: %w", err)
	}

	var pcm []int16
	decodeErr := error(nil)
	done := make(chan struct{})

	provider.SetFrameCallback(
		func(f tts.Frame) {
			if len(f.Opus) == 0 {
				return
			}
			frame, err := codec.Decode(f.Opus)
			if err != nil {
				decodeErr = err
				return
			}
			pcm = append(pcm, frame.PCM...)
		},
		func(string) { close(done) },
	)

	sentenceID := "wakeword-" + voiceID + "-" + uuid.NewString()
	if err := provider.StartSession(ctx, sentenceID); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if err := provider.PushTextChunk(text); err != nil {
		provider.Cancel()
		return nil, fmt.Errorf("push text: %w", err)
	}
	if err := provider.FinishSession(ctx); err != nil {
		return nil, fmt.Errorf("finish session: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		provider.Cancel()
		return nil, ctx.Err()
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return pcm, nil
}
