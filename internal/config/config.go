// Package config loads server-wide and per-device settings for the voice
// dialogue bridge.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/xiaozhivoice/bridge/pkg/cache"
	"github.com/xiaozhivoice/bridge/pkg/logger"
	"github.com/xiaozhivoice/bridge/pkg/voiceprint"
)

// Config is the process-wide configuration tree.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Log        logger.LogConfig  `mapstructure:"log"`
	Cache      cache.Config      `mapstructure:"cache"`
	Retry      RetryConfig       `mapstructure:"retry"`
	WakeWord   WakeWordConfig    `mapstructure:"wakeup_words"`
	Voiceprint voiceprint.Config `mapstructure:"voiceprint"`
}

// ServerConfig controls the WebSocket listener and the control-plane client.
type ServerConfig struct {
	Addr             string `env:"ADDR"`
	Mode             string `env:"MODE"`
	ControlPlaneBase string `env:"CONTROL_PLANE_BASE_URL"`
}

// RetryConfig matches spec.md Section 5's transient-failure retry policy.
type RetryConfig struct {
	MaxRetries   int           `env:"MAX_RETRIES"`
	InitialDelay time.Duration `env:"RETRY_DELAY"`
	Timeout      time.Duration `env:"TIMEOUT"`
}

// WakeWordConfig controls the wake-word response cache (spec.md 4.4/6).
type WakeWordConfig struct {
	Enabled     bool          `env:"ENABLE_WAKEUP_WORDS_RESPONSE_CACHE"`
	Phrases     []string      `env:"WAKEUP_WORDS"`
	RefreshTime time.Duration `env:"WAKEUP_WORDS_REFRESH_TIME"`
	StorageDir  string        `env:"WAKEUP_WORDS_STORAGE_DIR"`
	IndexDSN    string        `env:"WAKEUP_WORDS_INDEX_DSN"`
}

// ProviderModuleConfig is the "selected_module.{ASR,TTS,LLM,VAD}" knob from
// spec.md Section 6, resolved once per device connection, before the
// WebSocket upgrade.
type ProviderModuleConfig struct {
	ASR string `json:"asr"`
	TTS string `json:"tts"`
	LLM string `json:"llm"`
	VAD string `json:"vad"`
}

// ProviderAuth holds vendor credentials, also per-device (spec.md 6).
type ProviderAuth struct {
	APIKey string `json:"api_key"`
	AppID  string `json:"app_id"`
	Secret string `json:"secret"`
}

// ProviderAudio holds vendor audio parameters (spec.md 6).
type ProviderAudio struct {
	SampleRate int     `json:"sample_rate"`
	Voice      string  `json:"voice"`
	Format     string  `json:"format"`
	Volume     float64 `json:"volume"`
	Rate       float64 `json:"rate"`
	Pitch      float64 `json:"pitch"`
}

// DeviceProfile is the resolved per-device configuration a session is built
// from, looked up from the connection's device id before the WebSocket
// upgrade.
type DeviceProfile struct {
	DeviceID     string
	AgentID      string
	Modules      ProviderModuleConfig
	Auth         map[string]ProviderAuth  // keyed by provider family: "asr", "tts", "llm"
	Audio        map[string]ProviderAudio // keyed by provider family
	Features     map[string]bool
	SystemPrompt string
	// VoiceprintCandidates lists the speaker_ids enrolled against this
	// device's assistant, passed as the candidate pool to a configured
	// voiceprint_provider (spec.md Section 3). Empty disables identification
	// for the device even if the service itself is enabled.
	VoiceprintCandidates []string
}

// Load reads process environment (optionally seeded by a .env file) into a
// Config, applying the same style of zero-value defaulting the teacher's
// hardware handler config does.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:             getenv("ADDR", ":8080"),
			Mode:             getenv("MODE", "production"),
			ControlPlaneBase: getenv("CONTROL_PLANE_BASE_URL", ""),
		},
		Log: logger.LogConfig{
			Level:      getenv("LOG_LEVEL", "info"),
			Filename:   getenv("LOG_FILENAME", "logs/app.log"),
			MaxSize:    getenvInt("LOG_MAX_SIZE", 100),
			MaxAge:     getenvInt("LOG_MAX_AGE", 30),
			MaxBackups: getenvInt("LOG_MAX_BACKUPS", 10),
			Daily:      getenvBool("LOG_DAILY", true),
		},
		Cache: cache.Config{
			Type: getenv("CACHE_TYPE", "local"),
			Local: cache.LocalConfig{
				MaxSize:           getenvInt("LOCAL_CACHE_MAX_SIZE", 1000),
				DefaultExpiration: getenvDuration("LOCAL_CACHE_DEFAULT_EXPIRATION", 10*time.Minute),
				CleanupInterval:   getenvDuration("LOCAL_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
			},
			Redis: cache.RedisConfig{
				Addr:     getenv("REDIS_ADDR", "localhost:6379"),
				Password: getenv("REDIS_PASSWORD", ""),
			},
		},
		Retry: RetryConfig{
			MaxRetries:   getenvInt("MAX_RETRIES", 6),
			InitialDelay: getenvDuration("RETRY_DELAY", 10*time.Second),
			Timeout:      getenvDuration("TIMEOUT", 30*time.Second),
		},
		WakeWord: WakeWordConfig{
			Enabled:     getenvBool("ENABLE_WAKEUP_WORDS_RESPONSE_CACHE", true),
			Phrases:     splitCSV(getenv("WAKEUP_WORDS", "你好小智,你好小志")),
			RefreshTime: getenvDuration("WAKEUP_WORDS_REFRESH_TIME", 10*time.Second),
			StorageDir:  getenv("WAKEUP_WORDS_STORAGE_DIR", "data/wakeword"),
			IndexDSN:    getenv("WAKEUP_WORDS_INDEX_DSN", "data/wakeword/index.db"),
		},
		Voiceprint: *voiceprint.DefaultConfig(),
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
