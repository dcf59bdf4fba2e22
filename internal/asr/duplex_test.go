package asr

import (
	"encoding/binary"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGzipCompressDecompressRoundTrip(t *testing.T) {
	original := []byte(`{"hello":"world"}`)
	compressed, err := gzipCompress(original)
	require.NoError(t, err)
	decompressed, err := gzipDecompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, decompressed)
}

func buildServerFrame(t *testing.T, msgType byte, payload any) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	compressed, err := gzipCompress(body)
	require.NoError(t, err)
	header := []byte{protocolVersion<<4 | 0x1, msgType<<4 | 0x0, serializationJSON<<4 | compressionGzip, 0x00}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
	frame := make([]byte, 0, len(header)+4+len(compressed))
	frame = append(frame, header...)
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, compressed...)
	return frame
}

func newTestDuplexProvider() *duplexProvider {
	p, _ := newDuplexProvider(Config{AppID: "app", SampleRate: 16000})
	return p.(*duplexProvider)
}

func TestDuplexProvider_HandleFramePartialResult(t *testing.T) {
	p := newTestDuplexProvider()
	var got Result
	p.SetCallbacks(func(r Result) { got = r }, nil, nil)

	frame := buildServerFrame(t, msgTypeFullServer, map[string]any{
		"text":         "hel",
		"sentence_end": false,
	})
	p.handleFrame(frame, p.done)
	assert.Equal(t, "hel", got.Content)
}

func TestDuplexProvider_HandleFrameFinalResult(t *testing.T) {
	p := newTestDuplexProvider()
	var got Result
	endTime := int64(1200)
	p.SetCallbacks(nil, func(r Result) { got = r }, nil)

	frame := buildServerFrame(t, msgTypeFullServer, map[string]any{
		"text":         "hello",
		"sentence_end": true,
		"end_time":     endTime,
		"language":     "en-US",
	})
	p.handleFrame(frame, p.done)
	assert.Equal(t, "hello", got.Content)
	assert.True(t, got.IsEnriched)
}

func TestDuplexProvider_AutoModeDropsSecondFinal(t *testing.T) {
	p := newTestDuplexProvider()
	p.mode = ModeAuto
	var calls int
	p.SetCallbacks(nil, func(Result) { calls++ }, nil)
	endTime := int64(1200)

	frame := buildServerFrame(t, msgTypeFullServer, map[string]any{
		"text": "first", "sentence_end": true, "end_time": endTime,
	})
	p.handleFrame(frame, p.done)
	p.handleFrame(frame, p.done)
	assert.Equal(t, 1, calls)
}

func TestDuplexProvider_ManualModeAccumulatesFinals(t *testing.T) {
	p := newTestDuplexProvider()
	p.mode = ModeManual
	var got []string
	p.SetCallbacks(nil, func(r Result) { got = append(got, r.Content) }, nil)
	endTime := int64(1200)

	f1 := buildServerFrame(t, msgTypeFullServer, map[string]any{"text": "turn off the lights", "sentence_end": true, "end_time": endTime})
	f2 := buildServerFrame(t, msgTypeFullServer, map[string]any{"text": "and lock the door", "sentence_end": true, "end_time": endTime})
	p.handleFrame(f1, p.done)
	p.handleFrame(f2, p.done)
	require.Len(t, got, 2)
	assert.Equal(t, "turn off the lightsand lock the door", got[1])
}

func TestDuplexProvider_HandleFrameServerErrorEmitsBusinessCode(t *testing.T) {
	p := newTestDuplexProvider()
	var got *ProviderError
	p.SetCallbacks(nil, nil, func(e *ProviderError) { got = e })

	frame := buildServerFrame(t, msgTypeServerError, map[string]any{"code": 45000, "message": "quota exceeded"})
	p.handleFrame(frame, p.done)
	require.NotNil(t, got)
	assert.Equal(t, ErrorCodeBusiness, got.Code)
	assert.Equal(t, "quota exceeded", got.Message)
}

func TestDuplexProvider_HandleFrameTooShortIsIgnored(t *testing.T) {
	p := newTestDuplexProvider()
	var called bool
	p.SetCallbacks(func(Result) { called = true }, func(Result) { called = true }, nil)
	p.handleFrame([]byte{1, 2, 3}, p.done)
	assert.False(t, called)
}

func TestDuplexProvider_FinishIsIdempotent(t *testing.T) {
	p := newTestDuplexProvider()
	p.finish(p.done)
	p.finish(p.done)
	select {
	case <-p.done:
	default:
		t.Fatal("expected done channel to be closed")
	}
}

func TestDuplexProvider_OpenTwiceErrors(t *testing.T) {
	p := newTestDuplexProvider()
	p.open = true
	err := p.Open(nil, "sess", ModeAuto) //nolint:staticcheck // nil ctx unused before the already-open check
	require.Error(t, err)
}

func TestDuplexProvider_PushFrameQueuesUntilTaskStarted(t *testing.T) {
	p := newTestDuplexProvider()
	p.ready = false
	p.PushFrame([]byte{1, 2, 3})
	p.PushFrame([]byte{4, 5, 6})
	require.Len(t, p.pending, 2)

	frame := buildServerFrame(t, msgTypeFullServer, map[string]any{"task_started": true})
	p.handleFrame(frame, p.done)

	assert.True(t, p.ready)
	assert.Empty(t, p.pending)
}

func TestDuplexProvider_SecondTurnResetsDispatchedAndState(t *testing.T) {
	p := newTestDuplexProvider()
	p.mode = ModeAuto
	var calls int
	p.SetCallbacks(nil, func(Result) { calls++ }, nil)
	endTime := int64(1200)

	frame := buildServerFrame(t, msgTypeFullServer, map[string]any{
		"text": "first turn", "sentence_end": true, "end_time": endTime,
	})
	p.handleFrame(frame, p.done)
	assert.Equal(t, 1, calls)
	assert.True(t, p.dispatched)

	// Simulate what Open does between turns without a real dial.
	p.dispatched = false
	p.state.Reset()
	p.ready = false
	p.pending = nil
	p.done = make(chan struct{})
	p.closeOnce = &sync.Once{}

	frame2 := buildServerFrame(t, msgTypeFullServer, map[string]any{
		"text": "second turn", "sentence_end": true, "end_time": endTime,
	})
	p.handleFrame(frame2, p.done)
	assert.Equal(t, 2, calls, "second turn's first final must not be dropped as a stale dispatched latch")
}

func TestDuplexProvider_CloseRecreatedPerOpenActuallyCloses(t *testing.T) {
	p := newTestDuplexProvider()
	firstOnce := p.closeOnce
	p.closeOnce = &sync.Once{}
	assert.NotSame(t, firstOnce, p.closeOnce)

	err := p.Close()
	require.NoError(t, err)
}
