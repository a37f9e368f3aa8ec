package voicecache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxgate/voxgate/internal/tts"
)

const redisKeyPrefix = "voices:"

// RedisStore keeps voice catalogs in redis, letting redis enforce the TTL
// natively. Used when several gateway instances should share one cache.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Read(ctx context.Context, provider string) ([]tts.VoiceInfo, bool) {
	val, err := s.client.Get(ctx, redisKeyPrefix+provider).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("voice cache unreadable", "provider", provider, "error", err)
		}
		return nil, false
	}

	var voices []tts.VoiceInfo
	if err := json.Unmarshal([]byte(val), &voices); err != nil {
		slog.Warn("voice cache malformed", "provider", provider, "error", err)
		return nil, false
	}
	return voices, true
}

func (s *RedisStore) Write(ctx context.Context, provider string, voices []tts.VoiceInfo) error {
	data, err := json.Marshal(voices)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+provider, data, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, provider string) error {
	return s.client.Del(ctx, redisKeyPrefix+provider).Err()
}
