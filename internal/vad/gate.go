// Package vad implements the VAD Gate component: a stateful classifier over
// 60ms PCM frames that emits voice_start / voice_active / voice_stop edges
// (spec.md Section 4.5).
package vad

import "math"

// Edge is the kind of transition the gate reports for a processed frame.
type Edge int

const (
	// EdgeNone means no state transition occurred this frame.
	EdgeNone Edge = iota
	EdgeVoiceStart
	EdgeVoiceActive
	EdgeVoiceStop
)

func (e Edge) String() string {
	switch e {
	case EdgeVoiceStart:
		return "voice_start"
	case EdgeVoiceActive:
		return "voice_active"
	case EdgeVoiceStop:
		return "voice_stop"
	default:
		return "none"
	}
}

// Mode selects which silence threshold applies, per spec.md 4.5
// (min_silence_ms_auto=600 / min_silence_ms_manual=6000).
type Mode int

const (
	ModeAuto Mode = iota
	ModeManual
)

// Config configures the gate. Threshold is an RMS energy threshold over
// int16 PCM samples, generalizing the teacher's barge-in-only RMS gate
// (pkg/hardwarefinal/sessions/vad.go) into a standing Idle/Listening
// detector.
type Config struct {
	Threshold        float64
	MinSilenceMsAuto int
	MinSilenceMsMan  int
	FrameMs          int // 60, per spec.md
}

// DefaultConfig matches spec.md 4.5's stated defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:        500.0,
		MinSilenceMsAuto: 600,
		MinSilenceMsMan:  6000,
		FrameMs:          60,
	}
}

// Gate is a stateful per-session VAD instance. Not safe for concurrent use
// by more than one goroutine; a session owns exactly one.
type Gate struct {
	cfg Config

	talking     bool
	silenceMs   int
	voiceFrames int
}

// New builds a Gate for one session.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Process classifies one 60ms PCM16 frame and returns any edge the frame
// produces under the supplied listening mode. It never allocates per
// frame (spec.md 4.5).
func (g *Gate) Process(pcm []int16, mode Mode) Edge {
	hasVoice := rms(pcm) >= g.cfg.Threshold

	minSilenceMs := g.cfg.MinSilenceMsAuto
	if mode == ModeManual {
		minSilenceMs = g.cfg.MinSilenceMsMan
	}

	if hasVoice {
		g.silenceMs = 0
		if !g.talking {
			g.talking = true
			g.voiceFrames = 1
			return EdgeVoiceStart
		}
		g.voiceFrames++
		return EdgeVoiceActive
	}

	if !g.talking {
		return EdgeNone
	}

	g.silenceMs += g.cfg.FrameMs
	if g.silenceMs >= minSilenceMs {
		g.talking = false
		g.silenceMs = 0
		g.voiceFrames = 0
		return EdgeVoiceStop
	}
	return EdgeVoiceActive
}

// Reset clears gate state, e.g. when a session's listening turn ends.
func (g *Gate) Reset() {
	g.talking = false
	g.silenceMs = 0
	g.voiceFrames = 0
}

// Talking reports whether the gate currently believes voice is active.
func (g *Gate) Talking() bool {
	return g.talking
}

func rms(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
