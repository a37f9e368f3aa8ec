package tts

import (
	"context"
	"log/slog"
	"sync"
)

type fetchFunc func(ctx context.Context) ([]VoiceInfo, error)

// catalog layers the voice list lookup shared by every provider:
// in-memory slot, then the persistent store, then a remote fetch. A fetch
// failure propagates without touching existing cache entries.
type catalog struct {
	provider string
	store    VoiceStore
	fetch    fetchFunc

	mu     sync.Mutex
	voices []VoiceInfo
}

func newCatalog(provider string, store VoiceStore, fetch fetchFunc) *catalog {
	return &catalog{provider: provider, store: store, fetch: fetch}
}

func (c *catalog) list(ctx context.Context, forceRefresh bool) ([]VoiceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh {
		if c.voices != nil {
			return c.voices, nil
		}
		if c.store != nil {
			if cached, ok := c.store.Read(ctx, c.provider); ok {
				c.voices = cached
				return cached, nil
			}
		}
	}

	voices, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.voices = voices
	if c.store != nil {
		if err := c.store.Write(ctx, c.provider, voices); err != nil {
			slog.Warn("failed to persist voice catalog", "provider", c.provider, "error", err)
		} else {
			slog.Info("cached voice catalog", "provider", c.provider, "voices", len(voices))
		}
	}
	return voices, nil
}
