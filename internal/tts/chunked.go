package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/xiaozhivoice/bridge/internal/audio"
)

// chunkedProvider synthesizes one HTTP request per sentence and receives
// the full PCM body back in one response, unlike the duplex vendor's
// streamed callback. Sentences are synthesized one at a time: each
// response's frames are delivered to the callback before the next
// sentence's request is sent.
type chunkedProvider struct {
	cfg    Config
	client *polly.Client

	mu        sync.Mutex
	sessionID string
	seg       *segmenter
	seq       uint64
	codec     *audio.Codec
	cancelled bool

	onFrame func(Frame)
	onDone  func(string)
}

func newChunkedProvider(cfg Config) (Provider, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("tts chunked: load aws config: %w", err)
	}
	return &chunkedProvider{cfg: cfg, client: polly.NewFromConfig(awsCfg)}, nil
}

func (p *chunkedProvider) SetFrameCallback(onFrame func(Frame), onDone func(string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFrame, p.onDone = onFrame, onDone
}

func (p *chunkedProvider) StartSession(ctx context.Context, sentenceID string) error {
	codec, err := audio.NewCodec()
	if err != nil {
		return fmt.Errorf("tts chunked: new codec: %w", err)
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

func (p *chunkedProvider) PushTextChunk(text string) error {
	p.mu.Lock()
	seg := p.seg
	p.mu.Unlock()
	if seg == nil {
		return fmt.Errorf("tts chunked: no active session")
	}
	for _, sentence := range seg.Push(stripMarkdown(text)) {
		if err := p.synthesize(context.Background(), sentence, false); err != nil {
			return err
		}
	}
	return nil
}

func (p *chunkedProvider) FinishSession(ctx context.Context) error {
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

func (p *chunkedProvider) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.seg = nil
	p.mu.Unlock()
}

func (p *chunkedProvider) synthesize(ctx context.Context, sentence string, isLastOfSession bool) error {
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

	voiceID := pollytypes.VoiceId(p.cfg.Voice)
	if p.cfg.Voice == "" {
		voiceID = pollytypes.VoiceIdZhiyu
	}
	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         &sentence,
		OutputFormat: pollytypes.OutputFormatPcm,
		VoiceId:      voiceID,
		SampleRate:   awsSampleRate(p.cfg.SampleRate),
	})
	if err != nil {
		return fmt.Errorf("tts chunked: synthesize speech: %w", err)
	}
	defer out.AudioStream.Close()

	raw, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return fmt.Errorf("tts chunked: read audio stream: %w", err)
	}

	pcm := bytesToInt16(raw)
	frames := audio.SplitFrames(pcm)

	p.mu.Lock()
	cb := p.onFrame
	p.mu.Unlock()
	for i, f := range frames {
		opusPacket, err := codec.Encode(f)
		if err != nil {
			return fmt.Errorf("tts chunked: opus encode: %w", err)
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

func bytesToInt16(raw []byte) []int16 {
	n := len(raw) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return out
}

func awsSampleRate(rate int) *string {
	if rate <= 0 {
		rate = 16000
	}
	s := fmt.Sprintf("%d", rate)
	return &s
}
