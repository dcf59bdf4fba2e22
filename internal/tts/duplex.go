package tts

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tencentcloud/tencentcloud-speech-sdk-go/common"
	vendortts "github.com/tencentcloud/tencentcloud-speech-sdk-go/tts"

	"github.com/xiaozhivoice/bridge/internal/audio"
)

// duplexProvider streams synthesized PCM back over a vendor WebSocket
// connection sentence-by-sentence, grounded on pkg/synthesizer/qcloud.go's
// QCloudService (tts.NewSpeechSynthesizer + a SpeechSynthesisListener).
// Each sentence is synthesized on a freshly constructed vendor synthesizer;
// the connection pool only records whether the previous call ended within
// the 60s idle window (spec.md Open Question (b)) and logs it. No vendor
// connection is kept open between calls.
type duplexProvider struct {
	cfg Config

	mu         sync.Mutex
	sessionID  string
	seg        *segmenter
	seq        uint64
	codec      *audio.Codec
	cancelled  bool

	onFrame func(Frame)
	onDone  func(string)

	pool *connectionPool
}

func newDuplexProvider(cfg Config) (Provider, error) {
	return &duplexProvider{cfg: cfg, pool: newConnectionPool()}, nil
}

func (p *duplexProvider) SetFrameCallback(onFrame func(Frame), onDone func(string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFrame, p.onDone = onFrame, onDone
}

func (p *duplexProvider) StartSession(ctx context.Context, sentenceID string) error {
	codec, err := audio.NewCodec()
	if err != nil {
		return fmt.Errorf("tts duplex: new codec: %w", err)
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

func (p *duplexProvider) PushTextChunk(text string) error {
	p.mu.Lock()
	seg := p.seg
	p.mu.Unlock()
	if seg == nil {
		return fmt.Errorf("tts duplex: no active session")
	}
	for _, sentence := range seg.Push(stripMarkdown(text)) {
		if err := p.synthesize(sentence, false); err != nil {
			return err
		}
	}
	return nil
}

func (p *duplexProvider) FinishSession(ctx context.Context) error {
	p.mu.Lock()
	seg := p.seg
	sessionID := p.sessionID
	p.mu.Unlock()
	if seg == nil {
		return nil
	}
	if rest := seg.Flush(); rest != "" {
		if err := p.synthesize(rest, true); err != nil {
			return err
		}
	} else {
		p.emitLastMarker()
	}
	p.mu.Lock()
	done := p.onDone
	p.mu.Unlock()
	if done != nil {
		done(sessionID)
	}
	return nil
}

func (p *duplexProvider) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.seg = nil
	p.mu.Unlock()
}

// synthesize dispatches one sentence through the pooled vendor connection,
// feeding returned PCM into the codec and delivering Opus frames via the
// registered callback as they become available.
func (p *duplexProvider) synthesize(sentence string, isLastOfSession bool) error {
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

	var pcmBuf []int16
	listener := &qcloudListener{
		onChunk: func(pcm []int16) {
			pcmBuf = append(pcmBuf, pcm...)
		},
	}

	synth, err := p.pool.acquire(p.cfg, listener)
	if err != nil {
		return fmt.Errorf("tts duplex: acquire connection: %w", err)
	}
	if err := synth.Synthesis(sentence); err != nil {
		p.pool.release(synth, false)
		return fmt.Errorf("tts duplex: synthesis: %w", err)
	}
	if err := synth.Wait(); err != nil {
		p.pool.release(synth, false)
		return fmt.Errorf("tts duplex: wait: %w", err)
	}
	p.pool.release(synth, true)

	if listener.err != nil {
		return listener.err
	}

	frames := audio.SplitFrames(pcmBuf)
	p.mu.Lock()
	cb := p.onFrame
	p.mu.Unlock()
	for i, f := range frames {
		opusPacket, err := codec.Encode(f)
		if err != nil {
			return fmt.Errorf("tts duplex: opus encode: %w", err)
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

func (p *duplexProvider) emitLastMarker() {
	p.mu.Lock()
	cb := p.onFrame
	sessionID := p.sessionID
	p.seq++
	seq := p.seq
	p.mu.Unlock()
	if cb != nil {
		cb(Frame{SentenceID: sessionID, Seq: seq, Marker: MarkerLast})
	}
}

// qcloudListener implements tts.SpeechSynthesisListener, buffering raw PCM
// as the vendor streams it back.
type qcloudListener struct {
	onChunk func([]int16)
	err     error
}

func (l *qcloudListener) OnMessage(resp *vendortts.SpeechSynthesisResponse) {
	if l.onChunk == nil || len(resp.Data) == 0 {
		return
	}
	samples := make([]int16, len(resp.Data)/2)
	for i := range samples {
		samples[i] = int16(resp.Data[2*i]) | int16(resp.Data[2*i+1])<<8
	}
	l.onChunk(samples)
}

func (l *qcloudListener) OnComplete(*vendortts.SpeechSynthesisResponse) {}

func (l *qcloudListener) OnCancel(*vendortts.SpeechSynthesisResponse) {
	logrus.Debug("tts duplex: vendor cancel")
}

func (l *qcloudListener) OnFail(_ *vendortts.SpeechSynthesisResponse, err error) {
	l.err = err
}

// newVendorSynthesizer builds one vendor synthesizer instance bound to a
// listener, mirroring QCloudService.Synthesize's construction.
func newVendorSynthesizer(cfg Config, listener vendortts.SpeechSynthesisListener) *vendortts.SpeechSynthesizer {
	credential := common.NewCredential(cfg.APIKey, cfg.Secret)
	synth := vendortts.NewSpeechSynthesizer(appIDInt(cfg.AppID), credential, listener)
	synth.VoiceType = voiceTypeOf(cfg.Voice)
	synth.SampleRate = int64(sampleRateOr(cfg.SampleRate))
	synth.Codec = "pcm"
	return synth
}
