package asr

import (
	"context"
	"errors"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// oneShotProvider is a one-shot-HTTP ASR vendor: audio is buffered locally
// and a single synchronous Recognize call is issued on Finalize, rather
// than streaming frame-by-frame over a long-lived connection. This is the
// natural shape for Google's synchronous speech API.
type oneShotProvider struct {
	cfg Config

	mu      sync.Mutex
	client  *speech.Client
	buf     []byte
	mode    Mode
	state   *StateManager

	onFinal func(Result)
	onError func(*ProviderError)
}

func newOneShotProvider(cfg Config) (Provider, error) {
	return &oneShotProvider{cfg: cfg, state: NewStateManager()}, nil
}

func (p *oneShotProvider) SetCallbacks(_ func(Result), onFinal func(Result), onError func(*ProviderError)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFinal, p.onError = onFinal, onError
}

func (p *oneShotProvider) Open(ctx context.Context, _ string, mode Mode) error {
	client, err := speech.NewClient(ctx, option.WithAPIKey(p.cfg.APIKey))
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.client = client
	p.mode = mode
	p.buf = nil
	p.mu.Unlock()
	p.state.Reset()
	return nil
}

// PushFrame for a one-shot vendor simply appends to a local buffer; the
// recognizer call itself happens once, in Finalize, so no network call
// occurs per frame (spec.md 4.2's "one-shot-http" variant).
func (p *oneShotProvider) PushFrame(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = append(p.buf, frame...)
}

func (p *oneShotProvider) Finalize(ctx context.Context) error {
	p.mu.Lock()
	client := p.client
	audio := p.buf
	mode := p.mode
	p.buf = nil
	p.mu.Unlock()

	if client == nil {
		return errors.New("asr oneshot: not open")
	}
	if len(audio) == 0 {
		return nil
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_OGG_OPUS,
			SampleRateHertz: int32(p.cfg.SampleRate),
			LanguageCode:    languageOrDefault(p.cfg.Language),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		p.emitError(ErrorCodeTransport, err.Error())
		return err
	}

	var transcript string
	for _, r := range resp.Results {
		if len(r.Alternatives) > 0 {
			transcript += r.Alternatives[0].Transcript
		}
	}
	if transcript == "" {
		return nil
	}

	result := Result{Content: transcript, Language: p.cfg.Language, IsEnriched: p.cfg.Language != ""}
	if mode == ModeManual {
		result.Content = p.state.Accumulate(result.Content)
	}
	p.mu.Lock()
	cb := p.onFinal
	p.mu.Unlock()
	if cb != nil {
		cb(result)
	}
	return nil
}

func (p *oneShotProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *oneShotProvider) emitError(code ErrorCode, msg string) {
	p.mu.Lock()
	cb := p.onError
	p.mu.Unlock()
	if cb != nil {
		cb(&ProviderError{Code: code, Message: msg})
	}
}

func languageOrDefault(lang string) string {
	if lang == "" {
		return "cmn-Hans-CN"
	}
	return lang
}
