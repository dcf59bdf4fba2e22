package asr

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Binary protocol byte flags, grounded on pkg/recognizer/common.go's
// envelope constants (protocol version / message type / serialization /
// compression), used to frame audio + control messages over the duplex
// WebSocket connection to a streaming ASR vendor.
const (
	protocolVersion       byte = 0x01
	msgTypeFullClient     byte = 0x01
	msgTypeAudioOnly      byte = 0x02
	msgTypeFullServer     byte = 0x09
	msgTypeServerError    byte = 0x0F
	serializationJSON     byte = 0x01
	compressionGzip       byte = 0x01
	compressionNone       byte = 0x00
	finalizeWaitTimeout        = 2 * time.Second
)

// duplexProvider is a streaming-duplex-WS ASR vendor adapter. Grounded on
// pkg/recognizer/client.go's connect/read/write-loop shape and
// pkg/recognizer/common.go's gzip'd JSON envelope framing.
type duplexProvider struct {
	cfg Config

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	mode      Mode
	open      bool

	onPartial func(Result)
	onFinal   func(Result)
	onError   func(*ProviderError)

	state      *StateManager
	dispatched bool // auto-mode: true once the current turn's first final has fired
	done       chan struct{}
	closeOnce  *sync.Once

	// ready gates pass-through: until the remote's task-started event
	// arrives, pushed frames accumulate in pending instead of going over
	// the wire (spec.md 4.2: "buffer inbound audio frames ... on
	// task-started, drain buffered pre-roll ... then switch to
	// pass-through").
	ready   bool
	pending [][]byte
}

func newDuplexProvider(cfg Config) (Provider, error) {
	return &duplexProvider{cfg: cfg, state: NewStateManager(), done: make(chan struct{}), closeOnce: &sync.Once{}}, nil
}

func (p *duplexProvider) SetCallbacks(onPartial func(Result), onFinal func(Result), onError func(*ProviderError)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPartial, p.onFinal, p.onError = onPartial, onFinal, onError
}

// Open starts a fresh turn on this (session-lived) provider instance. Every
// piece of per-turn state — the dedup/accumulation tracker, the
// auto-mode-dispatched latch, and the done/closeOnce pair a prior turn's
// Close/Finalize consumed — is rebuilt here so turn 2+ of a session never
// inherits turn 1's stale state (spec.md Section 8 property 5).
func (p *duplexProvider) Open(ctx context.Context, sessionID string, mode Mode) error {
	p.mu.Lock()
	if p.open {
		p.mu.Unlock()
		return errors.New("asr: duplex session already open")
	}
	p.sessionID = sessionID
	p.mode = mode
	p.dispatched = false
	p.state.Reset()
	p.ready = false
	p.pending = nil
	done := make(chan struct{})
	p.done = done
	p.closeOnce = &sync.Once{}
	p.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, p.endpoint(), nil)
	if err != nil {
		return fmt.Errorf("asr duplex dial: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.open = true
	p.mu.Unlock()

	if err := p.sendStart(); err != nil {
		_ = conn.Close()
		return err
	}

	go p.readLoop(done)
	return nil
}

func (p *duplexProvider) endpoint() string {
	return "wss://asr.example-vendor.invalid/v1/stream?appid=" + p.cfg.AppID
}

func (p *duplexProvider) sendStart() error {
	payload := map[string]any{
		"app_id":      p.cfg.AppID,
		"trace_id":    uuid.NewString(),
		"sample_rate": p.cfg.SampleRate,
		"language":    p.cfg.Language,
	}
	return p.writeEnvelope(msgTypeFullClient, payload)
}

func (p *duplexProvider) writeEnvelope(msgType byte, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	compressed, err := gzipCompress(body)
	if err != nil {
		return err
	}
	header := []byte{protocolVersion<<4 | 0x1, msgType<<4 | 0x0, serializationJSON<<4 | compressionGzip, 0x00}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(compressed)))

	frame := make([]byte, 0, len(header)+4+len(compressed))
	frame = append(frame, header...)
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, compressed...)

	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return errors.New("asr duplex: no connection")
	}
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// PushFrame is best-effort: a write error is logged and the frame dropped,
// never returned. Once ready, the write to the connection is synchronous
// and blocks until it completes. Until the remote's task-started event has
// been observed, frames are queued in pending rather than written, per
// spec.md 4.2's buffer-then-pass-through contract.
func (p *duplexProvider) PushFrame(frame []byte) {
	p.mu.Lock()
	if !p.ready {
		p.pending = append(p.pending, append([]byte(nil), frame...))
		p.mu.Unlock()
		return
	}
	conn := p.conn
	p.mu.Unlock()
	p.writeAudioFrame(conn, frame)
}

func (p *duplexProvider) writeAudioFrame(conn *websocket.Conn, frame []byte) {
	if conn == nil {
		return
	}
	header := []byte{protocolVersion<<4 | 0x1, msgTypeAudioOnly<<4 | 0x0, serializationJSON<<4 | compressionNone, 0x00}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	out := make([]byte, 0, len(header)+4+len(frame))
	out = append(out, header...)
	out = append(out, lenBuf[:]...)
	out = append(out, frame...)
	if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
		logrus.WithError(err).Debug("asr duplex: dropped frame on write error")
	}
}

// flushPending drains the pre-task-started queue over the wire in arrival
// order and flips the provider into direct pass-through mode.
func (p *duplexProvider) flushPending() {
	p.mu.Lock()
	conn := p.conn
	pending := p.pending
	p.pending = nil
	p.ready = true
	p.mu.Unlock()

	for _, frame := range pending {
		p.writeAudioFrame(conn, frame)
	}
}

func (p *duplexProvider) Finalize(ctx context.Context) error {
	if err := p.writeEnvelope(msgTypeFullClient, map[string]any{"finish": true}); err != nil {
		return err
	}
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, finalizeWaitTimeout)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-waitCtx.Done():
		return nil // bounded wait per spec.md 4.2; caller proceeds regardless
	}
}

func (p *duplexProvider) Close() error {
	p.mu.Lock()
	once := p.closeOnce
	conn := p.conn
	p.open = false
	p.mu.Unlock()

	if once == nil {
		return nil
	}
	var err error
	once.Do(func() {
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}

func (p *duplexProvider) readLoop(done chan struct{}) {
	for {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			p.emitError(ErrorCodeTransport, err.Error())
			p.finish(done)
			return
		}
		p.handleFrame(data, done)
	}
}

func (p *duplexProvider) handleFrame(data []byte, done chan struct{}) {
	if len(data) < 8 {
		return
	}
	msgType := data[1] >> 4
	compression := data[2] & 0x0F
	body := data[8:]

	if compression == compressionGzip {
		decompressed, err := gzipDecompress(body)
		if err == nil {
			body = decompressed
		}
	}

	if msgType == msgTypeServerError {
		var errResp struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &errResp)
		code := ErrorCodeTransport
		if errResp.Code >= 40000 && errResp.Code < 50000 {
			code = ErrorCodeBusiness
		}
		p.emitError(code, errResp.Message)
		p.finish(done)
		return
	}

	var event struct {
		SentenceEnd  bool   `json:"sentence_end"`
		EndTime      *int64 `json:"end_time"`
		Text         string `json:"text"`
		Language     string `json:"language"`
		Emotion      string `json:"emotion"`
		Speaker      string `json:"speaker"`
		TaskStarted  bool   `json:"task_started"`
		TaskFinished bool   `json:"task_finished"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return
	}

	if event.TaskStarted {
		p.flushPending()
		return
	}
	if event.TaskFinished {
		p.finish(done)
		return
	}
	if event.Text == "" {
		return
	}

	result := Result{Content: event.Text, Language: event.Language, Emotion: event.Emotion, Speaker: event.Speaker}
	result.IsEnriched = result.Language != "" || result.Emotion != "" || result.Speaker != ""

	if !event.SentenceEnd || event.EndTime == nil {
		p.mu.Lock()
		cb := p.onPartial
		p.mu.Unlock()
		if cb != nil {
			cb(result)
		}
		return
	}

	p.mu.Lock()
	if p.mode == ModeAuto && p.dispatched {
		// spec.md Open Question (a): explicit drop of subsequent finals
		// in auto mode once the first has been dispatched.
		p.mu.Unlock()
		return
	}
	p.dispatched = true
	cb := p.onFinal
	p.mu.Unlock()

	if p.mode == ModeManual {
		result.Content = p.state.Accumulate(result.Content)
	}
	if cb != nil {
		cb(result)
	}
}

func (p *duplexProvider) emitError(code ErrorCode, msg string) {
	p.mu.Lock()
	cb := p.onError
	p.mu.Unlock()
	if cb != nil {
		cb(&ProviderError{Code: code, Message: msg})
	}
}

func (p *duplexProvider) finish(done chan struct{}) {
	select {
	case <-done:
	default:
		close(done)
	}
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
