// Package session implements the Session Orchestrator of spec.md Section
// 4.1: it owns one device WebSocket, multiplexes inbound JSON control and
// binary Opus audio, and drives the ASR -> LLM -> TTS pipeline with
// barge-in and wake-word short-circuiting.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xiaozhivoice/bridge/internal/asr"
	"github.com/xiaozhivoice/bridge/internal/audio"
	"github.com/xiaozhivoice/bridge/internal/config"
	"github.com/xiaozhivoice/bridge/internal/dialogue"
	"github.com/xiaozhivoice/bridge/internal/llm"
	"github.com/xiaozhivoice/bridge/internal/mcp"
	"github.com/xiaozhivoice/bridge/internal/registry"
	"github.com/xiaozhivoice/bridge/internal/retry"
	"github.com/xiaozhivoice/bridge/internal/ring"
	"github.com/xiaozhivoice/bridge/internal/tts"
	"github.com/xiaozhivoice/bridge/internal/vad"
	"github.com/xiaozhivoice/bridge/internal/wakeword"
	"github.com/xiaozhivoice/bridge/pkg/utils"
	"github.com/xiaozhivoice/bridge/pkg/voiceprint"
)

const (
	messageTypeHello  = "hello"
	messageTypeListen = "listen"
	messageTypeAbort  = "abort"
	messageTypePing   = "ping"
	messageTypeIoT    = "iot"
	messageTypeMCP    = "mcp"
)

// asrQueueCapacity bounds the ASR audio worker's inbound queue (spec.md
// Section 5: "an ASR audio worker consuming a bounded audio queue — drop
// oldest on overflow — backpressure is not applied back to the network to
// avoid RTT stalls"). ~2s of 60ms frames.
const asrQueueCapacity = 32

// Deps bundles the shared services a Session borrows for its lifetime.
type Deps struct {
	Registry        *registry.Registry
	WakeWords       *wakeword.Cache
	WakeWordPhrases []string
	MCP             *mcp.Dispatcher
	Retry           retry.Policy
	Logger          *zap.Logger
	// Voiceprint is the optional speaker-identification service (spec.md
	// Section 3's "voiceprint_provider (optional)"). Nil disables it.
	Voiceprint *voiceprint.Service
}

// Session owns one device connection end-to-end.
type Session struct {
	conn    *websocket.Conn
	writer  *flowWriter
	logger  *zap.Logger
	deps    Deps
	profile *config.DeviceProfile

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	listenMode  asr.Mode
	sentenceID  string
	clientAbort bool

	ring    *ring.Buffer
	codec   *audio.Codec
	vadGate *vad.Gate

	// turnPCM accumulates decoded PCM for the in-progress listening turn,
	// consumed by speaker identification once the turn's final transcript
	// arrives.
	turnPCM []int16

	asrProvider asr.Provider
	asrOpen     bool
	asrFrameCh  chan []byte

	ttsProvider tts.Provider
	llmProvider llm.Provider

	history *dialogue.History
}

// New constructs a session bound to one accepted WebSocket connection.
// Provider instances are built once here and reused for the session's
// lifetime (spec.md Section 3: "ASR/TTS provider instances live for the
// session unless reconfigured").
func New(ctx context.Context, conn *websocket.Conn, profile *config.DeviceProfile, deps Deps) (*Session, error) {
	codec, err := audio.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("session: new codec: %w", err)
	}
	asrProvider, err := deps.Registry.BuildASR(profile)
	if err != nil {
		return nil, err
	}
	ttsProvider, err := deps.Registry.BuildTTS(profile)
	if err != nil {
		return nil, err
	}
	llmProvider, err := deps.Registry.BuildLLM(ctx, profile)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	sessionID := uuid.NewString()
	s := &Session{
		conn:        conn,
		logger:      deps.Logger.With(zap.String("device_id", profile.DeviceID), zap.String("session_id", sessionID)),
		deps:        deps,
		profile:     profile,
		ctx:         sctx,
		cancel:      cancel,
		state:       StateIdle,
		listenMode:  asr.ModeAuto,
		ring:        ring.New(ring.DefaultCapacity),
		codec:       codec,
		vadGate:     deps.Registry.BuildVAD(),
		asrProvider: asrProvider,
		ttsProvider: ttsProvider,
		llmProvider: llmProvider,
		asrFrameCh:  make(chan []byte, asrQueueCapacity),
		history:     dialogue.New(64),
	}
	s.writer = newFlowWriter(sctx, conn, sessionID, s.logger)
	s.ttsProvider.SetFrameCallback(s.onTTSFrame, s.onTTSDone)
	s.asrProvider.SetCallbacks(s.onASRPartial, s.onASRFinal, s.onASRError)
	go s.asrFrameWorker()
	return s, nil
}

// asrFrameWorker is the sole caller of asrProvider.PushFrame, decoupling it
// from the device's inbound read loop (spec.md Section 5) so a stalled ASR
// upstream write can never stall that loop's own deadline handling.
func (s *Session) asrFrameWorker() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame, ok := <-s.asrFrameCh:
			if !ok {
				return
			}
			s.asrProvider.PushFrame(frame)
		}
	}
}

// enqueueASRFrame is the bounded, non-blocking chokepoint for audio headed
// to the ASR provider: on overflow it drops the oldest queued frame rather
// than ever blocking its caller (spec.md Section 5).
func (s *Session) enqueueASRFrame(frame []byte) {
	select {
	case s.asrFrameCh <- frame:
		return
	default:
	}
	select {
	case <-s.asrFrameCh:
	default:
	}
	select {
	case s.asrFrameCh <- frame:
	default:
	}
}

// Run blocks reading the device WebSocket until the connection closes or
// stop_event fires. Cancelling s.ctx closes the socket, which unblocks the
// pending ReadMessage so the loop returns without waiting for device input.
func (s *Session) Run() {
	defer s.teardown()
	go func() {
		<-s.ctx.Done()
		_ = s.conn.Close()
	}()
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debug("session: read failed, closing", zap.Error(err))
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			s.handleAudioFrame(data)
		case websocket.TextMessage:
			s.handleControlMessage(data)
		}
	}
}

func (s *Session) teardown() {
	s.setState(StateTerminated)
	s.cancel()
	if s.asrProvider != nil {
		_ = s.asrProvider.Close()
	}
	s.ttsProvider.Cancel()
	s.writer.Close()
	_ = s.conn.Close()
}

func (s *Session) handleControlMessage(data []byte) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("session: malformed control message", zap.Error(err))
		return
	}
	msgType, _ := msg["type"].(string)
	switch msgType {
	case messageTypeHello:
		s.handleHello(msg)
	case messageTypeListen:
		s.handleListen(msg)
	case messageTypeAbort:
		s.handleAbort()
	case messageTypePing:
		_ = s.writer.SendPong()
	case messageTypeIoT, messageTypeMCP:
		s.handleToolPlane(msgType, msg)
	default:
		s.logger.Debug("session: unhandled message type", zap.String("type", msgType))
	}
}

// handleHello negotiates audio_params and replies immediately. An MCP
// features flag starts initializeMCP in the background so it never blocks
// the hello reply; initializeMCP only logs, and sends no MCP initialize or
// tools-list request to the device.
func (s *Session) handleHello(msg map[string]any) {
	audioFormat, sampleRate, channels := "opus", audio.SampleRate, audio.Channels
	if params, ok := msg["audio_params"].(map[string]any); ok {
		if v, ok := params["format"].(string); ok {
			audioFormat = v
		}
		if v, ok := params["sample_rate"].(float64); ok {
			sampleRate = int(v)
		}
		if v, ok := params["channels"].(float64); ok {
			channels = int(v)
		}
	}
	var features map[string]any
	if f, ok := msg["features"].(map[string]any); ok {
		features = f
	}
	if err := s.writer.SendHello(audioFormat, sampleRate, channels, features); err != nil {
		s.logger.Warn("session: send hello failed", zap.Error(err))
	}
	if mcpEnabled, _ := features["mcp"].(bool); mcpEnabled {
		go s.initializeMCP()
	}
}

// handleListen processes listen.start/stop/detect lifecycle signals
// (spec.md 4.1). In manual mode, listen.stop is the sole finalize trigger.
func (s *Session) handleListen(msg map[string]any) {
	state, _ := msg["state"].(string)
	mode, _ := msg["mode"].(string)

	s.mu.Lock()
	switch mode {
	case "manual":
		s.listenMode = asr.ModeManual
	case "realtime":
		s.listenMode = asr.ModeRealtime
	default:
		s.listenMode = asr.ModeAuto
	}
	listenMode := s.listenMode
	s.mu.Unlock()

	switch state {
	case "start":
		s.ensureASROpen()
		s.setState(StateListening)
	case "stop":
		if listenMode == asr.ModeManual {
			s.finalizeASR()
		}
	case "detect":
		// one-shot wake detection only; no state change required here.
	}
}

// handleAbort implements spec.md's barge-in contract: invalidate the
// current sentence_id, cancel TTS, drain the outbound queue, and confirm.
func (s *Session) handleAbort() {
	s.mu.Lock()
	s.clientAbort = true
	s.mu.Unlock()

	s.llmProvider.Interrupt()
	s.ttsProvider.Cancel()
	s.writer.SetFence("")
	s.writer.DrainAudioQueue()
	s.setState(StateIdle)

	if err := s.writer.SendAbortConfirmed(); err != nil {
		s.logger.Warn("session: send abort confirmation failed", zap.Error(err))
	}
}

// handleToolPlane forwards `iot`/`mcp` passthrough messages to the
// shared mcp.Dispatcher and writes back its JSON-RPC response, if any.
func (s *Session) handleToolPlane(kind string, msg map[string]any) {
	if s.deps.MCP == nil {
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("session: tool plane marshal failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	resp, err := s.deps.MCP.HandleMessage(s.ctx, raw)
	if err != nil {
		s.logger.Warn("session: tool plane dispatch failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	if resp == nil {
		return
	}
	if err := s.writer.sendJSON(json.RawMessage(resp)); err != nil {
		s.logger.Warn("session: tool plane response send failed", zap.Error(err))
	}
}

func (s *Session) initializeMCP() {
	s.logger.Debug("session: mcp initialize started in background")
}

// handleAudioFrame implements spec.md 4.1's per-frame audio path contract.
func (s *Session) handleAudioFrame(opusPacket []byte) {
	frame, err := s.codec.Decode(opusPacket)
	if err != nil {
		s.logger.Debug("session: opus decode failed, dropping frame", zap.Error(err))
		return
	}

	s.mu.Lock()
	mode := s.listenMode
	s.mu.Unlock()

	vadMode := vad.ModeAuto
	if mode == asr.ModeManual {
		vadMode = vad.ModeManual
	}
	edge := s.vadGate.Process(frame.PCM, vadMode)

	s.ring.Push(opusPacket)

	switch edge {
	case vad.EdgeVoiceStart:
		s.ensureASROpen()
		s.setState(StateListening)
	case vad.EdgeVoiceStop:
		if mode == asr.ModeAuto {
			s.finalizeASR()
		}
	}

	s.mu.Lock()
	open := s.asrOpen
	if open {
		s.turnPCM = append(s.turnPCM, frame.PCM...)
	}
	s.mu.Unlock()
	if open {
		s.enqueueASRFrame(opusPacket)
	}
}

// ensureASROpen opens the ASR provider once per turn, feeding the
// buffered pre-roll frames first (spec.md 4.2's "drain buffered pre-roll
// ... then switch to pass-through").
func (s *Session) ensureASROpen() {
	s.mu.Lock()
	if s.asrOpen {
		s.mu.Unlock()
		return
	}
	s.asrOpen = true
	mode := s.listenMode
	s.turnPCM = s.turnPCM[:0]
	s.mu.Unlock()

	err := retry.Do(s.ctx, s.deps.Retry, func(ctx context.Context) error {
		return s.asrProvider.Open(ctx, uuid.NewString(), mode)
	})
	if err != nil {
		s.logger.Warn("session: asr open failed", zap.Error(err))
		s.mu.Lock()
		s.asrOpen = false
		s.mu.Unlock()
		s.setState(StateIdle)
		return
	}
	for _, frame := range s.ring.Drain() {
		s.enqueueASRFrame(frame)
	}
}

func (s *Session) finalizeASR() {
	s.mu.Lock()
	if !s.asrOpen {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.setState(StateRecognizing)

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := s.asrProvider.Finalize(ctx); err != nil {
		s.logger.Warn("session: asr finalize failed", zap.Error(err))
	}
	_ = s.asrProvider.Close()
	s.mu.Lock()
	s.asrOpen = false
	s.mu.Unlock()
}

func (s *Session) onASRPartial(asr.Result) {
	// Partials are not required to be emitted (spec.md 4.2); the orchestrator
	// only acts on finals.
}

func (s *Session) onASRError(err *asr.ProviderError) {
	s.logger.Warn("session: asr provider error", zap.String("code", string(err.Code)), zap.String("message", err.Message))
	s.mu.Lock()
	s.asrOpen = false
	s.mu.Unlock()
	s.setState(StateIdle)
}

// onASRFinal runs the wake-word short-circuit before any LLM dispatch,
// then either serves the cached wake response or streams a fresh LLM
// completion into TTS (spec.md 4.1's ordering rule).
func (s *Session) onASRFinal(result asr.Result) {
	s.setState(StateDispatching)
	result.Content = utils.SanitizeInput(result.Content)
	if err := s.writer.SendSTT(result.Content); err != nil {
		s.logger.Warn("session: send stt failed", zap.Error(err))
	}
	speaker := s.identifySpeaker()
	s.history.Append(dialogue.Message{Role: dialogue.RoleUser, Content: result.Content, Speaker: speaker})

	if voiceID, ok := s.matchWakeWord(result.Content); ok {
		s.dispatchWakeWord(voiceID)
		return
	}
	s.dispatchLLM(result.Content)
}

// identifySpeaker runs the configured voiceprint_provider against the
// turn's captured audio, returning "" if identification is disabled,
// unconfigured for this device, or fails (spec.md Section 3's optional
// voiceprint_provider never blocks the dialogue turn on failure).
func (s *Session) identifySpeaker() string {
	if s.deps.Voiceprint == nil || !s.deps.Voiceprint.IsEnabled() {
		return ""
	}
	if len(s.profile.VoiceprintCandidates) == 0 {
		return ""
	}

	s.mu.Lock()
	pcm := append([]int16(nil), s.turnPCM...)
	s.mu.Unlock()
	if len(pcm) == 0 {
		return ""
	}

	wavBytes, err := audio.EncodeWAV(pcm, audio.SampleRate)
	if err != nil {
		s.logger.Warn("session: voiceprint wav encode failed", zap.Error(err))
		return ""
	}

	result, err := s.deps.Voiceprint.IdentifyVoiceprint(s.ctx, &voiceprint.IdentifyRequest{
		CandidateIDs: s.profile.VoiceprintCandidates,
		AssistantID:  s.profile.AgentID,
		AudioData:    wavBytes,
	})
	if err != nil {
		s.logger.Debug("session: voiceprint identification failed", zap.Error(err))
		return ""
	}
	if !result.IsMatch {
		return ""
	}
	return result.SpeakerID
}

// matchWakeWord compares the transcript against configured wake words
// modulo punctuation and whitespace (spec.md 4.1). The matched phrase
// doubles as the wake-word cache's voice_id key, scoped per the device's
// configured TTS voice so distinct voices don't share cached audio.
func (s *Session) matchWakeWord(transcript string) (string, bool) {
	if s.deps.WakeWords == nil || len(s.deps.WakeWordPhrases) == 0 {
		return "", false
	}
	normalized := normalizeForWakeWord(transcript)
	for _, phrase := range s.deps.WakeWordPhrases {
		if normalized == normalizeForWakeWord(phrase) {
			return s.voiceID() + ":" + phrase, true
		}
	}
	return "", false
}

func (s *Session) voiceID() string {
	if aud, ok := s.profile.Audio["tts"]; ok && aud.Voice != "" {
		return aud.Voice
	}
	return "default"
}

func normalizeForWakeWord(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' {
			continue
		}
		if strings.ContainsRune("，,。.！!？?；;：:", r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dispatchWakeWord serves a pre-rendered cache entry directly, bypassing
// the LLM entirely (spec.md 4.1's wake-word short-circuit).
func (s *Session) dispatchWakeWord(voiceID string) {
	entry, err := s.deps.WakeWords.EnsureFresh(s.ctx, voiceID)
	if err != nil {
		s.logger.Warn("session: wake-word cache miss, falling back to llm", zap.Error(err))
		s.dispatchLLM("")
		return
	}
	pcm, err := s.deps.WakeWords.LoadPCM(entry)
	if err != nil {
		s.logger.Warn("session: wake-word playback load failed, falling back to llm", zap.Error(err))
		s.dispatchLLM("")
		return
	}

	sentenceID := uuid.NewString()
	s.writer.SetFence(sentenceID)
	if err := s.writer.SendTTSState("start", sentenceID); err != nil {
		s.logger.Warn("session: send tts start failed", zap.Error(err))
	}
	s.setState(StateSpeaking)

	for _, frame := range audio.SplitFrames(pcm) {
		opusPacket, encErr := s.codec.Encode(frame)
		if encErr != nil {
			s.logger.Warn("session: wake-word opus encode failed", zap.Error(encErr))
			break
		}
		s.writer.SendAudio(sentenceID, opusPacket)
	}
	s.history.Append(dialogue.Message{Role: dialogue.RoleAssistant, Content: entry.Text})
	if err := s.writer.SendTTSState("stop", sentenceID); err != nil {
		s.logger.Warn("session: send tts stop failed", zap.Error(err))
	}
	s.setState(StateIdle)
}

// dispatchLLM streams an LLM completion, forwarding each text delta to the
// TTS provider as it arrives; the provider's segmenter splits the text at
// sentence boundaries before synthesis (spec.md 4.1's "TTS text streaming"
// rule).
func (s *Session) dispatchLLM(_ string) {
	sentenceID := uuid.NewString()
	s.mu.Lock()
	s.sentenceID = sentenceID
	s.mu.Unlock()
	s.writer.SetFence(sentenceID)

	deltas, err := s.llmProvider.StreamChat(s.ctx, s.history.Snapshot(), s.profile.SystemPrompt)
	if err != nil {
		s.logger.Warn("session: llm stream failed", zap.Error(err))
		s.speakApology(sentenceID)
		return
	}

	if err := s.ttsProvider.StartSession(s.ctx, sentenceID); err != nil {
		s.logger.Warn("session: tts start session failed", zap.Error(err))
		return
	}
	if err := s.writer.SendTTSState("start", sentenceID); err != nil {
		s.logger.Warn("session: send tts start failed", zap.Error(err))
	}
	s.setState(StateSpeaking)

	var assistantText strings.Builder
	for delta := range deltas {
		if delta.Err != nil {
			s.logger.Warn("session: llm delta error", zap.Error(delta.Err))
			break
		}
		if delta.Text != "" {
			assistantText.WriteString(delta.Text)
			if err := s.ttsProvider.PushTextChunk(delta.Text); err != nil {
				s.logger.Warn("session: tts push text failed", zap.Error(err))
			}
		}
		if delta.Done {
			break
		}
	}
	if err := s.ttsProvider.FinishSession(s.ctx); err != nil {
		s.logger.Warn("session: tts finish session failed", zap.Error(err))
	}
	s.history.Append(dialogue.Message{Role: dialogue.RoleAssistant, Content: assistantText.String()})
}

func (s *Session) speakApology(sentenceID string) {
	const apology = "抱歉，我现在无法回答，请稍后再试。"
	if err := s.ttsProvider.StartSession(s.ctx, sentenceID); err != nil {
		return
	}
	_ = s.ttsProvider.PushTextChunk(apology)
	_ = s.ttsProvider.FinishSession(s.ctx)
	s.history.Append(dialogue.Message{Role: dialogue.RoleAssistant, Content: apology})
}

func (s *Session) onTTSFrame(frame tts.Frame) {
	if len(frame.Opus) > 0 {
		s.writer.SendAudio(frame.SentenceID, frame.Opus)
	}
}

func (s *Session) onTTSDone(sentenceID string) {
	if err := s.writer.SendTTSState("stop", sentenceID); err != nil {
		s.logger.Warn("session: send tts stop failed", zap.Error(err))
	}
	s.setState(StateIdle)
}
