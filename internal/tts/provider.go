// Package tts implements the TTS Provider abstraction of spec.md Section
// 4.3: start_session/push_text_chunk/finish_session/cancel, emitting a
// lazy sequence of Opus frames tagged with sentence-boundary markers.
package tts

import (
	"context"

	"github.com/xiaozhivoice/bridge/internal/audio"
)

// Marker tags a frame's position within its sentence, mirroring
// pkg/hardware/stream/tts_worker.go's sentence_type/content_type framing.
type Marker int

const (
	MarkerFirst Marker = iota
	MarkerMid
	MarkerLast
)

// Frame is one Opus-encoded audio packet plus its place in the outbound
// stream, fenced by SentenceID for barge-in (spec.md Section 5: "frames
// tagged sentence_id S emitted in enqueue order").
type Frame struct {
	SentenceID string
	Seq        uint64
	Opus       []byte
	Marker     Marker
}

// Vendor enumerates the supported TTS backends (spec.md 2/4.3's
// "variants").
type Vendor string

const (
	VendorDuplexStreaming Vendor = "duplex_streaming" // e.g. Tencent Cloud TTS
	VendorChunkedHTTP     Vendor = "chunked_http"       // e.g. AWS Polly
	VendorLocal           Vendor = "local"
)

// Config carries per-device TTS settings (spec.md Section 6's
// "provider audio params").
type Config struct {
	Vendor     Vendor
	APIKey     string
	AppID      string
	Secret     string
	Voice      string
	SampleRate int
	Volume     float64
	Rate       float64
	Pitch      float64
	// LocalCommand is the shell command for the local vendor (e.g.
	// espeak/say/festival per pkg/synthesizer/local_gospeech.go).
	LocalCommand string
}

// Provider is the polymorphic TTS contract. Frames and markers are
// delivered through the callback registered via SetFrameCallback, since
// vendors synthesize asynchronously relative to text pushes.
type Provider interface {
	// StartSession begins a new utterance tagged with sentenceID. At most
	// one session may be in flight per provider instance (spec.md Section
	// 3 invariant 2): calling StartSession again implicitly cancels the
	// prior session.
	StartSession(ctx context.Context, sentenceID string) error

	// PushTextChunk streams one piece of assistant text into the current
	// session. Markdown is stripped before any sentence-boundary
	// splitting happens (spec.md Open Question (c)).
	PushTextChunk(text string) error

	// FinishSession signals end-of-utterance and awaits the provider's
	// drain.
	FinishSession(ctx context.Context) error

	// Cancel forcibly closes the current session with no drain wait,
	// used on barge-in.
	Cancel()

	// SetFrameCallback wires the orchestrator's audio sink. Must be set
	// before StartSession.
	SetFrameCallback(onFrame func(Frame), onDone func(sentenceID string))
}

// New constructs a Provider for the given vendor config, mirroring
// pkg/recognizer/factory.go's dispatch-by-vendor shape generalized to TTS.
func New(cfg Config) (Provider, error) {
	switch cfg.Vendor {
	case VendorChunkedHTTP:
		return newChunkedProvider(cfg)
	case VendorLocal:
		return newLocalProvider(cfg)
	default:
		return newDuplexProvider(cfg)
	}
}

// encodePCMToFrames slices raw PCM16 samples into 60ms Opus frames via a
// fresh per-utterance codec, zero-padding only the trailing partial frame
// (spec.md 4.3).
func encodePCMToFrames(codec *audio.Codec, pcm []int16) ([][]byte, error) {
	frames := audio.SplitFrames(pcm)
	out := make([][]byte, 0, len(frames))
	for _, f := range frames {
		enc, err := codec.Encode(f)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}
