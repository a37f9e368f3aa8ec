package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Cache  CacheConfig
	TTS    TTSConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	Backend string // "file" or "redis"
	Dir     string
	TTL     time.Duration
}

type TTSConfig struct {
	DefaultModel  string // provider used when a request omits one
	DefaultVoice  string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cacheTTL, err := getEnvInt("VOICE_CACHE_TTL_SECONDS", 604800)
	if err != nil {
		return nil, fmt.Errorf("invalid VOICE_CACHE_TTL_SECONDS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			Backend: getEnv("VOICE_CACHE_BACKEND", "file"),
			Dir:     getEnv("VOICE_CACHE_DIR", ".cache"),
			TTL:     time.Duration(cacheTTL) * time.Second,
		},
		TTS: TTSConfig{
			DefaultModel:  getEnv("TTS_DEFAULT_MODEL", "azure"),
			DefaultVoice:  getEnv("TTS_DEFAULT_VOICE", "zh-CN-XiaoxiaoMultilingualNeural"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("TTS_OPENAI_MODEL", "tts-1"),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
