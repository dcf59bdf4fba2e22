package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	cfg, err := Load("/nonexistent/.env")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "production", cfg.Server.Mode)
	assert.Equal(t, 6, cfg.Retry.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Retry.InitialDelay)
	assert.True(t, cfg.WakeWord.Enabled)
	assert.Equal(t, []string{"你好小智", "你好小志"}, cfg.WakeWord.Phrases)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("MAX_RETRIES", "3")
	t.Setenv("ENABLE_WAKEUP_WORDS_RESPONSE_CACHE", "false")
	t.Setenv("WAKEUP_WORDS", "你好小智, 嗨小智 ,")

	cfg, err := Load("/nonexistent/.env")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.False(t, cfg.WakeWord.Enabled)
	assert.Equal(t, []string{"你好小智", "嗨小智"}, cfg.WakeWord.Phrases)
}

func TestSplitCSV_TrimsAndDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , b ,,"))
	assert.Equal(t, []string{}, splitCSV(""))
}

func TestGetenvInt_FallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("SOME_INT_KEY", "not-a-number")
	assert.Equal(t, 42, getenvInt("SOME_INT_KEY", 42))
}

func TestGetenvDuration_FallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("SOME_DURATION_KEY", "not-a-duration")
	assert.Equal(t, 5*time.Second, getenvDuration("SOME_DURATION_KEY", 5*time.Second))
}
