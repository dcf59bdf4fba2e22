package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToInt16(t *testing.T) {
	raw := []byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x80}
	pcm := bytesToInt16(raw)
	require.Len(t, pcm, 3)
	assert.Equal(t, int16(1), pcm[0])
	assert.Equal(t, int16(-1), pcm[1])
	assert.Equal(t, int16(-32768), pcm[2])
}

func TestBytesToInt16_OddLengthDropsTrailingByte(t *testing.T) {
	raw := []byte{0x01, 0x00, 0x02}
	pcm := bytesToInt16(raw)
	assert.Len(t, pcm, 1)
}

func TestAWSSampleRate(t *testing.T) {
	assert.Equal(t, "16000", *awsSampleRate(0))
	assert.Equal(t, "16000", *awsSampleRate(-1))
	assert.Equal(t, "24000", *awsSampleRate(24000))
}
