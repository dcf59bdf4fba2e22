package tts

import (
	"context"
	"errors"
	"testing"

	vendortts "github.com/tencentcloud/tencentcloud-speech-sdk-go/tts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQCloudListener_OnMessageDecodesLittleEndianPCM(t *testing.T) {
	var got []int16
	l := &qcloudListener{onChunk: func(pcm []int16) { got = append(got, pcm...) }}
	l.OnMessage(&vendortts.SpeechSynthesisResponse{Data: []byte{0x01, 0x00, 0xFF, 0xFF}})
	require.Len(t, got, 2)
	assert.Equal(t, int16(1), got[0])
	assert.Equal(t, int16(-1), got[1])
}

func TestQCloudListener_OnMessageIgnoresEmptyData(t *testing.T) {
	called := false
	l := &qcloudListener{onChunk: func([]int16) { called = true }}
	l.OnMessage(&vendortts.SpeechSynthesisResponse{Data: nil})
	assert.False(t, called)
}

func TestQCloudListener_OnFailRecordsError(t *testing.T) {
	l := &qcloudListener{}
	l.OnFail(nil, errors.New("vendor failure"))
	require.Error(t, l.err)
}

func TestDuplexTTSProvider_PushTextChunkWithoutSessionErrors(t *testing.T) {
	provider, err := newDuplexProvider(Config{})
	require.NoError(t, err)
	require.Error(t, provider.PushTextChunk("hi"))
}

func TestDuplexTTSProvider_CancelClearsSegment(t *testing.T) {
	provider, err := newDuplexProvider(Config{})
	require.NoError(t, err)
	require.NoError(t, provider.StartSession(context.Background(), "s1"))
	provider.Cancel()
	dp := provider.(*duplexProvider)
	assert.True(t, dp.cancelled)
	assert.Nil(t, dp.seg)
}
