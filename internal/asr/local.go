package asr

import (
	"bytes"
	"context"
	"os/exec"
	"sync"

	"github.com/sirupsen/logrus"
)

// localProvider runs recognition on-box by shelling out to a configured
// command (e.g. a whisper.cpp binary), matching
// pkg/recognizer/local.go's processWithLocalCommand shape. No network
// round-trip occurs; PushFrame buffers raw Opus and Finalize invokes the
// command once over the buffered audio.
type localProvider struct {
	cfg Config

	mu    sync.Mutex
	buf   bytes.Buffer
	mode  Mode
	state *StateManager

	onFinal func(Result)
	onError func(*ProviderError)
}

func newLocalProvider(cfg Config) (Provider, error) {
	if cfg.LocalCommand == "" {
		cfg.LocalCommand = "whisper-cli"
	}
	return &localProvider{cfg: cfg, state: NewStateManager()}, nil
}

func (p *localProvider) SetCallbacks(_ func(Result), onFinal func(Result), onError func(*ProviderError)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFinal, p.onError = onFinal, onError
}

func (p *localProvider) Open(_ context.Context, _ string, mode Mode) error {
	p.mu.Lock()
	p.mode = mode
	p.buf.Reset()
	p.mu.Unlock()
	p.state.Reset()
	return nil
}

func (p *localProvider) PushFrame(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.Write(frame)
}

func (p *localProvider) Finalize(ctx context.Context) error {
	p.mu.Lock()
	audio := append([]byte(nil), p.buf.Bytes()...)
	mode := p.mode
	p.buf.Reset()
	p.mu.Unlock()

	if len(audio) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, p.cfg.LocalCommand, "--language", languageOrDefault(p.cfg.Language), "-")
	cmd.Stdin = bytes.NewReader(audio)
	out, err := cmd.Output()
	if err != nil {
		logrus.WithError(err).Warn("asr local: recognizer command failed")
		p.emitError(ErrorCodeTransport, err.Error())
		return err
	}

	transcript := string(bytes.TrimSpace(out))
	if transcript == "" {
		return nil
	}
	result := Result{Content: transcript}
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

func (p *localProvider) Close() error {
	return nil
}

func (p *localProvider) emitError(code ErrorCode, msg string) {
	p.mu.Lock()
	cb := p.onError
	p.mu.Unlock()
	if cb != nil {
		cb(&ProviderError{Code: code, Message: msg})
	}
}
