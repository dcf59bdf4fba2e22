// Package asr implements the ASR Provider abstraction of spec.md Section
// 4.2: a polymorphic interface over streaming-duplex-WS, one-shot-HTTP, and
// local recognizer variants, with results expressed as a tagged union the
// orchestrator treats uniformly via its Content field.
package asr

import "context"

// Mode mirrors the session's listen_mode, which changes how a provider
// treats repeated finals (spec.md 4.2: manual mode concatenates finals
// until Finalize; auto mode's first final ends the turn).
type Mode int

const (
	ModeAuto Mode = iota
	ModeManual
	ModeRealtime
)

// Result is the tagged union spec.md 4.2 describes: a vendor may return a
// plain transcript or an enriched one with language/emotion/speaker.
// IsEnriched distinguishes the two; Content is always populated so the
// orchestrator can treat both uniformly.
type Result struct {
	Content    string
	Language   string
	Emotion    string
	Speaker    string
	IsEnriched bool
}

// ErrorCode classifies a provider failure (spec.md 4.2's task-failed
// event).
type ErrorCode string

const (
	ErrorCodeTransport ErrorCode = "transport"
	ErrorCodeBusiness  ErrorCode = "business"
)

// ProviderError is what a provider reports through OnError.
type ProviderError struct {
	Code    ErrorCode
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

// Provider is the polymorphic ASR contract spec.md 4.2 names:
// open/push_audio_frame/finalize/close, with results delivered
// asynchronously through callbacks since a duplex-streaming backend can't
// return a final synchronously from PushFrame.
type Provider interface {
	// Open starts (or reserves) a recognition session. At most one
	// recognition session is open at a time; the session calls Open again
	// for each new turn after the previous turn's Close.
	Open(ctx context.Context, sessionID string, mode Mode) error

	// PushFrame enqueues one Opus frame for recognition. It never returns
	// an error to the caller. It is not guaranteed to be non-blocking: the
	// duplex provider writes each frame to its connection synchronously, so
	// the session calls PushFrame only from its dedicated ASR frame worker.
	PushFrame(frame []byte)

	// Finalize signals end-of-utterance and waits (bounded) for the
	// provider's closing event; the transcript itself arrives through the
	// OnFinal callback, not as Finalize's return value, so callers that
	// only care about "did finalize succeed" can ignore the result.
	Finalize(ctx context.Context) error

	// Close releases the provider's transport resources. Safe to call
	// multiple times.
	Close() error

	// SetCallbacks wires the orchestrator's result/partial/error
	// handlers. Must be called before Open.
	SetCallbacks(onPartial func(Result), onFinal func(Result), onError func(*ProviderError))
}

// Vendor enumerates the supported backends, mirroring
// pkg/recognizer/factory.go's Vendor enum.
type Vendor string

const (
	VendorDuplexStreaming Vendor = "duplex_streaming" // e.g. Tencent Cloud ASR
	VendorOneShotHTTP     Vendor = "oneshot_http"      // e.g. Google Speech synchronous recognize
	VendorLocal           Vendor = "local"             // on-box recognizer
)

// Config carries the per-device settings a provider is built from.
type Config struct {
	Vendor     Vendor
	APIKey     string
	AppID      string
	Secret     string
	SampleRate int
	Language   string
	// LocalCommand is the shell command the local vendor shells out to,
	// matching pkg/recognizer/local.go's "processWithLocalCommand" idea.
	LocalCommand string
}

// New constructs a Provider for the given vendor config, mirroring
// pkg/recognizer/factory.go's CreateTranscriber dispatch.
func New(cfg Config) (Provider, error) {
	switch cfg.Vendor {
	case VendorOneShotHTTP:
		return newOneShotProvider(cfg)
	case VendorLocal:
		return newLocalProvider(cfg)
	default:
		return newDuplexProvider(cfg)
	}
}
