package tts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppIDInt(t *testing.T) {
	assert.Equal(t, int64(12345), appIDInt("12345"))
	assert.Equal(t, int64(0), appIDInt("not-a-number"))
}

func TestVoiceTypeOf(t *testing.T) {
	assert.Equal(t, int64(1005), voiceTypeOf(""))
	assert.Equal(t, int64(1005), voiceTypeOf("not-a-number"))
	assert.Equal(t, int64(501000), voiceTypeOf("501000"))
}

func TestSampleRateOr(t *testing.T) {
	assert.Equal(t, 16000, sampleRateOr(0))
	assert.Equal(t, 16000, sampleRateOr(-5))
	assert.Equal(t, 24000, sampleRateOr(24000))
}

func TestConnectionPool_ReleaseMarksWarmAndUpdatesActivity(t *testing.T) {
	pool := newConnectionPool()
	before := time.Now()
	pool.release(nil, true)
	assert.True(t, pool.warm)
	assert.False(t, pool.lastActivity.Before(before))
}

func TestConnectionPool_ReleaseNotOkClearsWarm(t *testing.T) {
	pool := newConnectionPool()
	pool.release(nil, true)
	pool.release(nil, false)
	assert.False(t, pool.warm)
}
