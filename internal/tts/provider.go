package tts

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Request bounds enforced at the API boundary before any provider call.
const (
	MaxInputLength = 4096
	MinSpeed       = 0.25
	MaxSpeed       = 4.0
)

// AudioFormat is the requested output encoding.
type AudioFormat string

const (
	FormatMP3  AudioFormat = "mp3"
	FormatOpus AudioFormat = "opus"
	FormatAAC  AudioFormat = "aac"
	FormatFLAC AudioFormat = "flac"
	FormatWAV  AudioFormat = "wav"
	FormatPCM  AudioFormat = "pcm"
)

// ParseFormat validates a response_format value.
func ParseFormat(s string) (AudioFormat, error) {
	if s == "" {
		return FormatMP3, nil
	}
	switch f := AudioFormat(s); f {
	case FormatMP3, FormatOpus, FormatAAC, FormatFLAC, FormatWAV, FormatPCM:
		return f, nil
	}
	return "", &ValidationError{Message: fmt.Sprintf("unsupported response_format: %s", s)}
}

// ContentType returns the HTTP content type served for this format.
func (f AudioFormat) ContentType() string {
	switch f {
	case FormatOpus:
		return "audio/opus"
	case FormatAAC:
		return "audio/aac"
	case FormatFLAC:
		return "audio/flac"
	case FormatWAV:
		return "audio/wav"
	case FormatPCM:
		return "audio/pcm"
	default:
		return "audio/mpeg"
	}
}

// SynthesisRequest holds the normalized parameters for one synthesis call.
// Constructed per inbound request and not mutated afterwards.
type SynthesisRequest struct {
	Text   string
	Voice  string
	Speed  float64
	Format AudioFormat
}

// Validate enforces the request bounds. Providers can assume a validated
// request.
func (r SynthesisRequest) Validate() error {
	if r.Text == "" {
		return &ValidationError{Message: "input text required"}
	}
	if utf8.RuneCountInString(r.Text) > MaxInputLength {
		return &ValidationError{Message: fmt.Sprintf("input exceeds %d characters", MaxInputLength)}
	}
	if r.Speed < MinSpeed || r.Speed > MaxSpeed {
		return &ValidationError{Message: fmt.Sprintf("speed must be between %g and %g", MinSpeed, MaxSpeed)}
	}
	return nil
}

// VoiceInfo describes one selectable voice in a provider's catalog.
type VoiceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender,omitempty"`
	Provider string `json:"provider"`
}

// StreamChunk is a single chunk of synthesized audio. A chunk with Err set
// terminates the stream.
type StreamChunk struct {
	Data []byte
	Err  error
}

// Provider abstracts a TTS vendor (Azure, Volcengine, OpenAI, ...).
type Provider interface {
	// Name is the stable identifier used as registry and cache key.
	Name() string

	// Synthesize performs a full, non-streaming synthesis.
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)

	// SynthesizeStream produces audio progressively. Vendors without
	// native streaming synthesize fully and re-chunk; callers cannot tell
	// the difference except by latency. The channel is closed after the
	// final chunk and the sequence is not restartable.
	SynthesizeStream(ctx context.Context, req SynthesisRequest) (<-chan StreamChunk, error)

	// ListVoices returns the provider's voice catalog, consulting the
	// in-memory slot and the persistent cache unless forceRefresh is set.
	ListVoices(ctx context.Context, forceRefresh bool) ([]VoiceInfo, error)

	// SupportsVoice reports whether a voice id is usable. Providers are
	// deliberately permissive here; the vendor has the final say.
	SupportsVoice(voiceID string) bool
}

// VoiceStore persists a provider's voice catalog between processes.
// Implementations live in internal/voicecache.
type VoiceStore interface {
	// Read returns the cached catalog, or ok=false on absence, expiry or
	// a malformed record. It never fails the caller.
	Read(ctx context.Context, provider string) (voices []VoiceInfo, ok bool)
	Write(ctx context.Context, provider string, voices []VoiceInfo) error
	Clear(ctx context.Context, provider string) error
}
