package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func loudFrame(n int) []int16 {
	frame := make([]int16, n)
	for i := range frame {
		frame[i] = 10000
	}
	return frame
}

func silentFrame(n int) []int16 {
	return make([]int16, n)
}

func TestGate_VoiceStartOnFirstLoudFrame(t *testing.T) {
	g := New(DefaultConfig())
	assert.Equal(t, EdgeVoiceStart, g.Process(loudFrame(960), ModeAuto))
	assert.True(t, g.Talking())
}

func TestGate_VoiceActiveWhileTalking(t *testing.T) {
	g := New(DefaultConfig())
	g.Process(loudFrame(960), ModeAuto)
	assert.Equal(t, EdgeVoiceActive, g.Process(loudFrame(960), ModeAuto))
}

func TestGate_VoiceStopAfterAutoSilenceThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSilenceMsAuto = 120 // two 60ms frames
	g := New(cfg)
	g.Process(loudFrame(960), ModeAuto)

	assert.Equal(t, EdgeVoiceActive, g.Process(silentFrame(960), ModeAuto))
	assert.Equal(t, EdgeVoiceStop, g.Process(silentFrame(960), ModeAuto))
	assert.False(t, g.Talking())
}

func TestGate_ManualModeUsesLongerSilenceThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSilenceMsAuto = 60
	cfg.MinSilenceMsMan = 180
	g := New(cfg)
	g.Process(loudFrame(960), ModeManual)

	// One frame of silence would already trip the 60ms auto threshold; the
	// manual threshold (180ms) needs three frames before voice_stop.
	assert.Equal(t, EdgeVoiceActive, g.Process(silentFrame(960), ModeManual))
	assert.Equal(t, EdgeVoiceActive, g.Process(silentFrame(960), ModeManual))
	assert.Equal(t, EdgeVoiceStop, g.Process(silentFrame(960), ModeManual))
}

func TestGate_SilenceBeforeAnyVoiceIsNone(t *testing.T) {
	g := New(DefaultConfig())
	assert.Equal(t, EdgeNone, g.Process(silentFrame(960), ModeAuto))
}

func TestGate_ResetClearsTalkingState(t *testing.T) {
	g := New(DefaultConfig())
	g.Process(loudFrame(960), ModeAuto)
	require := assert.New(t)
	require.True(g.Talking())

	g.Reset()
	require.False(g.Talking())
}

func TestEdge_String(t *testing.T) {
	cases := map[Edge]string{
		EdgeNone:        "none",
		EdgeVoiceStart:  "voice_start",
		EdgeVoiceActive: "voice_active",
		EdgeVoiceStop:   "voice_stop",
	}
	for edge, want := range cases {
		assert.Equal(t, want, edge.String())
	}
}
