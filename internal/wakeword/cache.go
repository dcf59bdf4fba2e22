// Package wakeword implements the voice_id -> cached-response map of
// spec.md Section 4.4: O(1) lookup, lazy background refresh bounded by a
// per-voice mutex, and on-disk WAV + gorm-indexed persistence.
package wakeword

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/youpy/go-wav"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/xiaozhivoice/bridge/internal/audio"
	"github.com/xiaozhivoice/bridge/internal/tts"
)

// DefaultRefreshTime is how stale a cached entry may be before the next
// lookup triggers a background regeneration (spec.md 4.4).
const DefaultRefreshTime = 10 * time.Second

// Entry mirrors spec.md's `{file_path, text, generated_at_unix}` map value.
type Entry struct {
	VoiceID     string `gorm:"primaryKey"`
	FilePath    string
	Text        string
	GeneratedAt int64
}

// Cache is the wake-word response cache. One instance is shared across all
// sessions for a deployment (spec.md Section 5: "Global ... caches").
type Cache struct {
	db        *gorm.DB
	outputDir string
	responses []string
	tts       tts.Provider

	mu      sync.Mutex
	entries map[string]Entry
	inFlight map[string]*sync.Mutex
}

// Open opens (or creates) the SQLite-backed index at dbPath and loads its
// rows into memory. Reads of that map take the cache mutex briefly; they
// never wait on a per-voice refresh lock, but they are not lock-free.
func Open(dbPath, outputDir string, responses []string, synth tts.Provider) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("wakeword: open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("wakeword: automigrate: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("wakeword: mkdir output dir: %w", err)
	}

	c := &Cache{
		db:        db,
		outputDir: outputDir,
		responses: responses,
		tts:       synth,
		entries:   make(map[string]Entry),
		inFlight:  make(map[string]*sync.Mutex),
	}

	var rows []Entry
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("wakeword: load entries: %w", err)
	}
	for _, r := range rows {
		c.entries[r.VoiceID] = r
	}
	return c, nil
}

// Lookup returns the cached entry for voiceID, kicking off a background
// refresh (at most one in flight per voice) if the entry is missing or
// older than DefaultRefreshTime. The returned entry may be stale or zero-
// valued if no refresh has completed yet; callers needing a guaranteed hit
// should call EnsureFresh instead.
func (c *Cache) Lookup(voiceID string) (Entry, bool) {
	c.mu.Lock()
	entry, ok := c.entries[voiceID]
	stale := !ok || time.Since(time.Unix(entry.GeneratedAt, 0)) > DefaultRefreshTime
	c.mu.Unlock()

	if stale {
		c.refreshAsync(voiceID)
	}
	return entry, ok
}

// EnsureFresh blocks until voiceID has at least one cached entry, used on
// cold start before the first wake-word hit can be served.
func (c *Cache) EnsureFresh(ctx context.Context, voiceID string) (Entry, error) {
	if entry, ok := c.Lookup(voiceID); ok {
		return entry, nil
	}
	lock := c.voiceLock(voiceID)
	lock.Lock()
	defer lock.Unlock()

	if entry, ok := c.snapshot(voiceID); ok {
		return entry, nil
	}
	entry, err := c.regenerate(ctx, voiceID)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (c *Cache) snapshot(voiceID string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[voiceID]
	return e, ok
}

func (c *Cache) voiceLock(voiceID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.inFlight[voiceID]
	if !ok {
		l = &sync.Mutex{}
		c.inFlight[voiceID] = l
	}
	return l
}

// refreshAsync launches a background regeneration if the per-voice lock is
// free; otherwise it's a no-op, enforcing "at most one refresh in flight
// per voice_id" (spec.md 4.4).
func (c *Cache) refreshAsync(voiceID string) {
	lock := c.voiceLock(voiceID)
	if !lock.TryLock() {
		return
	}
	go func() {
		defer lock.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := c.regenerate(ctx, voiceID); err != nil {
			logrus.WithError(err).WithField("voice_id", voiceID).Warn("wakeword: background refresh failed")
		}
	}()
}

// regenerate picks a random configured response, synthesizes it via the
// one-shot TTS path, writes the WAV to disk, and updates both the
// in-memory map and the sqlite index. Caller must hold the per-voice lock.
func (c *Cache) regenerate(ctx context.Context, voiceID string) (Entry, error) {
	if len(c.responses) == 0 {
		return Entry{}, fmt.Errorf("wakeword: no configured responses for %s", voiceID)
	}
	text := c.responses[rand.Intn(len(c.responses))]

	pcm, err := synthesizeOneShot(ctx, c.tts, voiceID, text)
	if err != nil {
		return Entry{}, fmt.Errorf("wakeword: synthesize: %w", err)
	}

	path := filepath.Join(c.outputDir, voiceID+".wav")
	if err := writeWav(path, pcm); err != nil {
		return Entry{}, fmt.Errorf("wakeword: write wav: %w", err)
	}

	entry := Entry{VoiceID: voiceID, FilePath: path, Text: text, GeneratedAt: time.Now().Unix()}
	if err := c.db.Save(&entry).Error; err != nil {
		return Entry{}, fmt.Errorf("wakeword: persist index: %w", err)
	}

	c.mu.Lock()
	c.entries[voiceID] = entry
	c.mu.Unlock()
	return entry, nil
}

// LoadPCM reads a cached entry's WAV file back into mono PCM16, for
// playback through the session's own Opus encode/send path.
func (c *Cache) LoadPCM(entry Entry) ([]int16, error) {
	f, err := os.Open(entry.FilePath)
	if err != nil {
		return nil, fmt.Errorf("wakeword: open cached wav: %w", err)
	}
	defer f.Close()

	reader := wav.NewReader(f)
	var out []int16
	for {
		samples, err := reader.ReadSamples()
		if err != nil {
			break
		}
		format, ferr := reader.Format()
		if ferr != nil {
			break
		}
		for _, s := range samples {
			var mono int
			for ch := uint16(0); ch < format.NumChannels; ch++ {
				mono += reader.IntValue(s, ch)
			}
			out = append(out, int16(mono/int(format.NumChannels)))
		}
	}
	return out, nil
}

func writeWav(path string, pcm []int16) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := wav.NewWriter(f, uint32(len(pcm)), 1, uint32(audio.SampleRate), 16)
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		buf[2*i] = byte(s)
		buf[2*i+1] = byte(s >> 8)
	}
	_, err = writer.Write(buf)
	return err
}
