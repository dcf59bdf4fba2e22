// Package registry resolves per-device provider configuration
// (spec.md Section 6's `selected_module.{ASR,TTS,LLM,VAD}`) into concrete
// ASR/TTS/LLM/VAD instances, one set per session. Grounded on
// pkg/recognizer/factory.go's vendor-keyed factory pattern, generalized
// across all four provider families instead of just ASR.
package registry

import (
	"context"
	"fmt"

	"github.com/xiaozhivoice/bridge/internal/asr"
	"github.com/xiaozhivoice/bridge/internal/config"
	"github.com/xiaozhivoice/bridge/internal/llm"
	"github.com/xiaozhivoice/bridge/internal/tts"
	"github.com/xiaozhivoice/bridge/internal/vad"
)

// Registry builds the four provider instances a session needs from a
// resolved DeviceProfile. Unlike pkg/recognizer/factory.go's package-level
// singleton, this is an explicit service constructed at startup and passed
// by reference (spec.md Section 9's redesign note on global singletons).
type Registry struct {
	defaultVAD vad.Config
}

// New builds a Registry. defaultVAD seeds the VAD gate's thresholds for
// every session; spec.md does not make VAD vendor-pluggable across ASR/TTS
// vendor lines, so there is one concrete implementation here.
func New(defaultVAD vad.Config) *Registry {
	return &Registry{defaultVAD: defaultVAD}
}

// BuildASR resolves the device's ASR module selection into a Provider.
func (r *Registry) BuildASR(profile *config.DeviceProfile) (asr.Provider, error) {
	auth := profile.Auth["asr"]
	aud := profile.Audio["asr"]
	cfg := asr.Config{
		Vendor:     asr.Vendor(profile.Modules.ASR),
		AppID:      auth.AppID,
		APIKey:     auth.APIKey,
		Secret:     auth.Secret,
		SampleRate: nonZeroOr(aud.SampleRate, 16000),
		Language:   "",
	}
	provider, err := asr.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: build asr for device %s: %w", profile.DeviceID, err)
	}
	return provider, nil
}

// BuildTTS resolves the device's TTS module selection into a Provider.
func (r *Registry) BuildTTS(profile *config.DeviceProfile) (tts.Provider, error) {
	auth := profile.Auth["tts"]
	aud := profile.Audio["tts"]
	cfg := tts.Config{
		Vendor:     tts.Vendor(profile.Modules.TTS),
		APIKey:     auth.APIKey,
		AppID:      auth.AppID,
		Secret:     auth.Secret,
		Voice:      aud.Voice,
		SampleRate: nonZeroOr(aud.SampleRate, 16000),
		Volume:     aud.Volume,
		Rate:       aud.Rate,
		Pitch:      aud.Pitch,
	}
	provider, err := tts.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: build tts for device %s: %w", profile.DeviceID, err)
	}
	return provider, nil
}

// BuildLLM resolves the device's LLM module selection into a Provider.
func (r *Registry) BuildLLM(ctx context.Context, profile *config.DeviceProfile) (llm.Provider, error) {
	auth := profile.Auth["llm"]
	cfg := llm.Config{
		Kind:   llm.Kind(profile.Modules.LLM),
		APIKey: auth.APIKey,
		BotID:  auth.AppID,
		UserID: profile.DeviceID,
	}
	provider, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: build llm for device %s: %w", profile.DeviceID, err)
	}
	return provider, nil
}

// BuildVAD constructs the (single, concrete) VAD gate for a session.
func (r *Registry) BuildVAD() *vad.Gate {
	return vad.New(r.defaultVAD)
}

func nonZeroOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
