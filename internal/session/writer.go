package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writerBufferSize = 200
	preBufferFrames  = 5
)

// flowWriter owns the one WebSocket connection a session writes to. JSON
// control messages and binary audio frames go through separate buffered
// channels so a burst of TTS audio never starves a control message,
// mirroring pkg/hardwarefinal/protocol/writer.go's HardwareWriter.
type flowWriter struct {
	conn      *websocket.Conn
	logger    *zap.Logger
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	msgCh    chan []byte
	audioCh  chan audioFrame

	fcMu          sync.Mutex
	packetCount   int
	lastSend      time.Time
	frameDuration time.Duration

	fenceMu    sync.Mutex
	currentID  string // sentence_id frames are accepted for; "" admits none
}

type audioFrame struct {
	sentenceID string
	data       []byte
}

func newFlowWriter(ctx context.Context, conn *websocket.Conn, sessionID string, logger *zap.Logger) *flowWriter {
	wctx, cancel := context.WithCancel(ctx)
	w := &flowWriter{
		conn:          conn,
		logger:        logger,
		sessionID:     sessionID,
		ctx:           wctx,
		cancel:        cancel,
		msgCh:         make(chan []byte, writerBufferSize),
		audioCh:       make(chan audioFrame, writerBufferSize),
		frameDuration: 60 * time.Millisecond,
	}
	w.wg.Add(2)
	go w.writeTextLoop()
	go w.writeAudioLoop()
	return w
}

func (w *flowWriter) Close() {
	w.cancel()
	w.wg.Wait()
}

func (w *flowWriter) writeTextLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg, ok := <-w.msgCh:
			if !ok {
				return
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				w.logger.Debug("flow writer: text write failed", zap.Error(err))
				w.cancel()
				return
			}
		}
	}
}

// writeAudioLoop paces outbound Opus frames at approximately wall-clock
// rate after a short pre-buffer, matching spec.md Section 5's "frames are
// sent approximately at wall-clock rate to avoid device buffer overruns".
// Frames whose sentence_id no longer matches the fence set by SetFence are
// dropped here (spec.md 4.1's "dropped at the outbound stage").
func (w *flowWriter) writeAudioLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case frame, ok := <-w.audioCh:
			if !ok {
				return
			}
			if !w.admits(frame.sentenceID) {
				continue
			}
			w.pace()
			if err := w.conn.WriteMessage(websocket.BinaryMessage, frame.data); err != nil {
				w.logger.Debug("flow writer: audio write failed", zap.Error(err))
				w.cancel()
				return
			}
		}
	}
}

func (w *flowWriter) pace() {
	w.fcMu.Lock()
	defer w.fcMu.Unlock()
	now := time.Now()
	if w.lastSend.IsZero() {
		w.lastSend = now
	}
	w.packetCount++
	if w.packetCount <= preBufferFrames {
		return
	}
	next := w.lastSend.Add(w.frameDuration)
	if delay := time.Until(next); delay > 0 {
		time.Sleep(delay)
		w.lastSend = next
	} else {
		w.lastSend = time.Now()
	}
}

// SetFence restricts admitted audio frames to sentenceID ("" admits
// none); called on abort to invalidate the prior sentence_id without
// tearing down the channel (spec.md 4.1 barge-in semantics).
func (w *flowWriter) SetFence(sentenceID string) {
	w.fenceMu.Lock()
	w.currentID = sentenceID
	w.fenceMu.Unlock()
	w.fcMu.Lock()
	w.packetCount = 0
	w.lastSend = time.Time{}
	w.fcMu.Unlock()
}

func (w *flowWriter) admits(sentenceID string) bool {
	w.fenceMu.Lock()
	defer w.fenceMu.Unlock()
	return w.currentID == sentenceID
}

// DrainAudioQueue empties any buffered but not-yet-sent audio frames,
// matching spec.md's "drain outbound audio queue up to the current
// sentence_id boundary" on abort.
func (w *flowWriter) DrainAudioQueue() {
	for {
		select {
		case <-w.audioCh:
		default:
			return
		}
	}
}

func (w *flowWriter) SendAudio(sentenceID string, data []byte) {
	select {
	case <-w.ctx.Done():
	case w.audioCh <- audioFrame{sentenceID: sentenceID, data: data}:
	}
}

func (w *flowWriter) sendJSON(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("flow writer: marshal: %w", err)
	}
	select {
	case <-w.ctx.Done():
		return w.ctx.Err()
	case w.msgCh <- body:
		return nil
	}
}

func (w *flowWriter) SendHello(audioFormat string, sampleRate, channels int, features map[string]any) error {
	msg := map[string]any{
		"type":       "hello",
		"version":    1,
		"transport":  "websocket",
		"session_id": w.sessionID,
		"audio_params": map[string]any{
			"format":         audioFormat,
			"sample_rate":    sampleRate,
			"channels":       channels,
			"frame_duration": 60,
		},
	}
	if len(features) > 0 {
		msg["features"] = features
	}
	return w.sendJSON(msg)
}

func (w *flowWriter) SendSTT(text string) error {
	return w.sendJSON(map[string]any{"type": "stt", "text": text, "session_id": w.sessionID})
}

func (w *flowWriter) SendTTSState(state, sentenceID string) error {
	return w.sendJSON(map[string]any{"type": "tts", "state": state, "session_id": sentenceID})
}

func (w *flowWriter) SendAbortConfirmed() error {
	return w.sendJSON(map[string]any{"type": "abort", "state": "confirmed", "session_id": w.sessionID})
}

func (w *flowWriter) SendError(message string, fatal bool) error {
	return w.sendJSON(map[string]any{"type": "error", "message": message, "fatal": fatal})
}

func (w *flowWriter) SendPong() error {
	return w.sendJSON(map[string]any{"type": "pong", "session_id": w.sessionID})
}
