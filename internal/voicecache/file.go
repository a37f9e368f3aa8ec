// Package voicecache persists per-provider voice catalogs with TTL-based
// invalidation. Records never leak across providers; each provider owns
// exactly one record keyed by its name.
package voicecache

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/voxgate/voxgate/internal/tts"
)

// DefaultTTL is how long a cached catalog stays valid: 7 days.
const DefaultTTL = 7 * 24 * time.Hour

type record struct {
	Timestamp int64           `json:"timestamp"`
	Voices    []tts.VoiceInfo `json:"voices"`
}

// FileStore keeps one JSON record per provider under a cache root
// directory, created on first use. Writes are atomic: a temp file is
// renamed into place so concurrent readers never observe a partial record.
type FileStore struct {
	root string
	ttl  time.Duration
	now  func() time.Time
}

func NewFileStore(root string, ttl time.Duration) *FileStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FileStore{root: root, ttl: ttl, now: time.Now}
}

func (s *FileStore) path(provider string) string {
	return filepath.Join(s.root, provider+"_voices.json")
}

// Read returns the cached catalog, or ok=false when the record is absent,
// malformed or older than the TTL. Problems are logged, never surfaced.
func (s *FileStore) Read(ctx context.Context, provider string) ([]tts.VoiceInfo, bool) {
	data, err := os.ReadFile(s.path(provider))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("voice cache unreadable", "provider", provider, "error", err)
		}
		return nil, false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("voice cache malformed", "provider", provider, "error", err)
		return nil, false
	}

	if s.now().Unix()-rec.Timestamp > int64(s.ttl.Seconds()) {
		slog.Info("voice cache expired", "provider", provider)
		return nil, false
	}
	return rec.Voices, true
}

// Write overwrites the provider's record with the current timestamp.
func (s *FileStore) Write(ctx context.Context, provider string, voices []tts.VoiceInfo) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record{
		Timestamp: s.now().Unix(),
		Voices:    voices,
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, provider+"_voices_*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(provider))
}

// Clear removes the provider's record; a missing record is a no-op.
func (s *FileStore) Clear(ctx context.Context, provider string) error {
	err := os.Remove(s.path(provider))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
