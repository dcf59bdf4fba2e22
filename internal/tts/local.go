package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/youpy/go-wav"

	"github.com/xiaozhivoice/bridge/internal/audio"
)

// localProvider shells out to an on-box TTS command per sentence, matching
// pkg/synthesizer/local_gospeech.go's espeak/say/festival/pico dispatch
// generalized to one configurable command.
type localProvider struct {
	cfg Config

	mu        sync.Mutex
	sessionID string
	seg       *segmenter
	seq       uint64
	codec     *audio.Codec
	cancelled bool

	onFrame func(Frame)
	onDone  func(string)
}

func newLocalProvider(cfg Config) (Provider, error) {
	if cfg.LocalCommand == "" {
		cfg.LocalCommand = "espeak"
	}
	return &localProvider{cfg: cfg}, nil
}

func (p *localProvider) SetFrameCallback(onFrame func(Frame), onDone func(string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFrame, p.onDone = onFrame, onDone
}

func (p *localProvider) StartSession(ctx context.Context, sentenceID string) error {
	codec, err := audio.NewCodec()
	if err != nil {
		return fmt.Errorf("tts local: new codec: %w", err)
	}
	p.mu.Lock()
	p.sessionID = sentenceID
	p.seg = newSegmenter()
	p.seq = 0
	p.codec = codec
	p.cancelled = false
	p.mu.Unlock()
	return nil
}

func (p *localProvider) PushTextChunk(text string) error {
	p.mu.Lock()
	seg := p.seg
	p.mu.Unlock()
	if seg == nil {
		return fmt.Errorf("tts local: no active session")
	}
	for _, sentence := range seg.Push(stripMarkdown(text)) {
		if err := p.synthesize(context.Background(), sentence, false); err != nil {
			return err
		}
	}
	return nil
}

func (p *localProvider) FinishSession(ctx context.Context) error {
	p.mu.Lock()
	seg := p.seg
	sessionID := p.sessionID
	p.mu.Unlock()
	if seg == nil {
		return nil
	}
	if rest := seg.Flush(); rest != "" {
		if err := p.synthesize(ctx, rest, true); err != nil {
			return err
		}
	} else {
		p.mu.Lock()
		cb := p.onFrame
		p.seq++
		seq := p.seq
		p.mu.Unlock()
		if cb != nil {
			cb(Frame{SentenceID: sessionID, Seq: seq, Marker: MarkerLast})
		}
	}
	p.mu.Lock()
	done := p.onDone
	p.mu.Unlock()
	if done != nil {
		done(sessionID)
	}
	return nil
}

func (p *localProvider) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.seg = nil
	p.mu.Unlock()
}

func (p *localProvider) synthesize(ctx context.Context, sentence string, isLastOfSession bool) error {
	if sentence == "" {
		return nil
	}
	p.mu.Lock()
	if p.cancelled {
		p.mu.Unlock()
		return nil
	}
	sessionID := p.sessionID
	codec := p.codec
	p.mu.Unlock()

	outputFile := filepath.Join(os.TempDir(), fmt.Sprintf("tts_local_%d.wav", time.Now().UnixNano()))
	defer os.Remove(outputFile)

	cmd := exec.CommandContext(ctx, p.cfg.LocalCommand, "-w", outputFile, sentence)
	if err := cmd.Run(); err != nil {
		logrus.WithError(err).Warn("tts local: command failed")
		return fmt.Errorf("tts local: %s: %w", p.cfg.LocalCommand, err)
	}

	f, err := os.Open(outputFile)
	if err != nil {
		return fmt.Errorf("tts local: open wav: %w", err)
	}
	defer f.Close()

	pcm, err := decodeWav(f)
	if err != nil {
		return fmt.Errorf("tts local: decode wav: %w", err)
	}

	frames := audio.SplitFrames(pcm)
	p.mu.Lock()
	cb := p.onFrame
	p.mu.Unlock()
	for i, frame := range frames {
		opusPacket, err := codec.Encode(frame)
		if err != nil {
			return fmt.Errorf("tts local: opus encode: %w", err)
		}
		marker := MarkerMid
		if i == len(frames)-1 && isLastOfSession {
			marker = MarkerLast
		} else if p.seq == 0 {
			marker = MarkerFirst
		}
		p.mu.Lock()
		p.seq++
		seq := p.seq
		p.mu.Unlock()
		if cb != nil {
			cb(Frame{SentenceID: sessionID, Seq: seq, Opus: opusPacket, Marker: marker})
		}
	}
	return nil
}

// decodeWav reads a WAV file's samples into mono PCM16, downmixing
// multi-channel output from the local command.
func decodeWav(f *os.File) ([]int16, error) {
	reader := wav.NewReader(f)
	var out []int16
	for {
		samples, err := reader.ReadSamples()
		if err != nil {
			break
		}
		format, ferr := reader.Format()
		if ferr != nil {
			break
		}
		for _, s := range samples {
			var mono int
			for ch := uint16(0); ch < format.NumChannels; ch++ {
				mono += reader.IntValue(s, ch)
			}
			out = append(out, int16(mono/int(format.NumChannels)))
		}
	}
	return out, nil
}
