// Command server is the voice-dialogue bridge's process entrypoint: it
// loads configuration, wires the shared registry/wake-word-cache/MCP
// services, and accepts one WebSocket connection per device, handing each
// off to its own internal/session.Session.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xiaozhivoice/bridge/internal/config"
	"github.com/xiaozhivoice/bridge/internal/controlplane"
	"github.com/xiaozhivoice/bridge/internal/mcp"
	"github.com/xiaozhivoice/bridge/internal/registry"
	"github.com/xiaozhivoice/bridge/internal/retry"
	"github.com/xiaozhivoice/bridge/internal/session"
	"github.com/xiaozhivoice/bridge/internal/tts"
	"github.com/xiaozhivoice/bridge/internal/vad"
	"github.com/xiaozhivoice/bridge/internal/wakeword"
	"github.com/xiaozhivoice/bridge/pkg/cache"
	"github.com/xiaozhivoice/bridge/pkg/ipinfo"
	applogger "github.com/xiaozhivoice/bridge/pkg/logger"
	"github.com/xiaozhivoice/bridge/pkg/voiceprint"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	if err := applogger.Init(&cfg.Log, cfg.Server.Mode); err != nil {
		panic(err)
	}
	logger := applogger.Lg
	defer logger.Sync()

	reg := registry.New(vad.DefaultConfig())

	var wakeCache *wakeword.Cache
	if cfg.WakeWord.Enabled {
		bootstrapTTS, err := tts.New(tts.Config{Vendor: tts.VendorLocal})
		if err != nil {
			logger.Fatal("server: build wake-word bootstrap tts provider", zap.Error(err))
		}
		wakeCache, err = wakeword.Open(cfg.WakeWord.IndexDSN, cfg.WakeWord.StorageDir, cfg.WakeWord.Phrases, bootstrapTTS)
		if err != nil {
			logger.Fatal("server: open wake-word cache", zap.Error(err))
		}
	}

	var controlPlane *controlplane.Client
	if cfg.Server.ControlPlaneBase != "" {
		controlPlane = controlplane.New(cfg.Server.ControlPlaneBase)
	}

	mcpDispatcher := mcp.NewDispatcher(nil)

	cacheInstance, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Fatal("server: build cache", zap.Error(err))
	}

	var voiceprintSvc *voiceprint.Service
	if cfg.Voiceprint.Enabled {
		voiceprintSvc, err = voiceprint.NewService(&cfg.Voiceprint, cacheInstance)
		if err != nil {
			logger.Fatal("server: build voiceprint service", zap.Error(err))
		}
	}

	deps := session.Deps{
		Registry:        reg,
		WakeWords:       wakeCache,
		WakeWordPhrases: cfg.WakeWord.Phrases,
		MCP:             mcpDispatcher,
		Retry:           retry.Policy{MaxAttempts: cfg.Retry.MaxRetries, InitialDelay: cfg.Retry.InitialDelay},
		Logger:          logger,
		Voiceprint:      voiceprintSvc,
	}

	ipLookup, err := ipinfo.New(ipinfo.DefaultCapacity)
	if err != nil {
		logger.Fatal("server: build ip-info cache", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/xiaozhi/v1/", func(w http.ResponseWriter, r *http.Request) {
		handleDeviceConnect(w, r, deps, controlPlane, ipLookup, logger)
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	go func() {
		logger.Info("server: listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server: listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("server: shutting down")
	_ = srv.Shutdown(ctx)
}

func handleDeviceConnect(w http.ResponseWriter, r *http.Request, deps session.Deps, cp *controlplane.Client, ipLookup *ipinfo.Lookup, logger *zap.Logger) {
	deviceID := r.Header.Get("Device-Id")
	if deviceID == "" {
		deviceID = r.URL.Query().Get("device_id")
	}
	if deviceID == "" {
		http.Error(w, "missing Device-Id", http.StatusBadRequest)
		return
	}

	info := ipLookup.Resolve(r.Context(), r.RemoteAddr)
	logger.Info("server: device connecting", zap.String("device_id", deviceID), zap.String("remote_addr", r.RemoteAddr), zap.String("city", info.City))

	profile, err := resolveDeviceProfile(r.Context(), deviceID, cp)
	if err != nil {
		logger.Warn("server: resolve device profile failed", zap.String("device_id", deviceID), zap.Error(err))
		http.Error(w, "device not provisioned", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("server: websocket upgrade failed", zap.Error(err))
		return
	}

	sess, err := session.New(r.Context(), conn, profile, deps)
	if err != nil {
		logger.Error("server: session construction failed", zap.String("device_id", deviceID), zap.Error(err))
		_ = conn.Close()
		return
	}
	sess.Run()
}

// resolveDeviceProfile looks up a device's provider configuration through
// the control plane if one is configured, falling back to a single
// locally-configured default profile otherwise (useful for bench testing
// without a control-plane deployment).
func resolveDeviceProfile(ctx context.Context, deviceID string, cp *controlplane.Client) (*config.DeviceProfile, error) {
	if cp == nil {
		return defaultDeviceProfile(deviceID), nil
	}
	models, err := cp.AgentModels(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	profile := &config.DeviceProfile{
		DeviceID: deviceID,
		AgentID:  models.AgentID,
		Modules: config.ProviderModuleConfig{
			ASR: models.Modules["asr"],
			TTS: models.Modules["tts"],
			LLM: models.Modules["llm"],
			VAD: models.Modules["vad"],
		},
		Auth:  map[string]config.ProviderAuth{},
		Audio: map[string]config.ProviderAudio{},
	}
	for family, auth := range models.Auth {
		profile.Auth[family] = config.ProviderAuth{
			APIKey: auth["api_key"],
			AppID:  auth["app_id"],
			Secret: auth["secret"],
		}
	}
	for family, aud := range models.Audio {
		profile.Audio[family] = config.ProviderAudio{
			SampleRate: intField(aud["sample_rate"]),
			Voice:      stringField(aud["voice"]),
			Format:     stringField(aud["format"]),
			Volume:     floatField(aud["volume"]),
			Rate:       floatField(aud["rate"]),
			Pitch:      floatField(aud["pitch"]),
		}
	}
	return profile, nil
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

func intField(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func floatField(v any) float64 {
	f, _ := v.(float64)
	return f
}

func defaultDeviceProfile(deviceID string) *config.DeviceProfile {
	return &config.DeviceProfile{
		DeviceID: deviceID,
		Modules: config.ProviderModuleConfig{
			ASR: "duplex_streaming",
			TTS: "duplex_streaming",
			LLM: "openai",
			VAD: "default",
		},
		Auth:  map[string]config.ProviderAuth{},
		Audio: map[string]config.ProviderAudio{},
	}
}
