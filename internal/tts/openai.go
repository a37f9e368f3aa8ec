package tts

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxgate/voxgate/internal/config"
)

const openaiDefaultVoice = "alloy"

// The published tts-1 voice set; OpenAI exposes no voice-list endpoint.
var openaiVoices = []VoiceInfo{
	{ID: "alloy", Name: "Alloy", Language: "en-US"},
	{ID: "echo", Name: "Echo", Language: "en-US"},
	{ID: "fable", Name: "Fable", Language: "en-US"},
	{ID: "onyx", Name: "Onyx", Language: "en-US"},
	{ID: "nova", Name: "Nova", Language: "en-US"},
	{ID: "shimmer", Name: "Shimmer", Language: "en-US"},
}

// OpenAIProvider passes synthesis through to the OpenAI speech API. Unlike
// the reverse-engineered vendors it streams natively and accepts every
// gateway output format unchanged.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	cat    *catalog
}

func NewOpenAIProvider(cfg config.TTSConfig, store VoiceStore) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = "tts-1"
	}

	p := &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
	p.cat = newCatalog(p.Name(), store, p.fetchVoices)
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) SupportsVoice(voiceID string) bool { return true }

func (p *OpenAIProvider) speech(ctx context.Context, req SynthesisRequest) (io.ReadCloser, error) {
	voice := req.Voice
	if voice == "" {
		voice = openaiDefaultVoice
	}

	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(req.Format),
		Speed:          req.Speed,
	})
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "speech request", Err: err}
	}
	return resp, nil
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	body, err := p.speech(ctx, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	audio, err := io.ReadAll(body)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "read audio", Err: err}
	}
	if len(audio) == 0 {
		return nil, &UpstreamError{Provider: p.Name(), Message: "empty audio payload"}
	}
	return audio, nil
}

func (p *OpenAIProvider) SynthesizeStream(ctx context.Context, req SynthesisRequest) (<-chan StreamChunk, error) {
	body, err := p.speech(ctx, req)
	if err != nil {
		return nil, err
	}
	return streamBody(ctx, body), nil
}

func (p *OpenAIProvider) ListVoices(ctx context.Context, forceRefresh bool) ([]VoiceInfo, error) {
	return p.cat.list(ctx, forceRefresh)
}

func (p *OpenAIProvider) fetchVoices(ctx context.Context) ([]VoiceInfo, error) {
	voices := make([]VoiceInfo, len(openaiVoices))
	copy(voices, openaiVoices)
	for i := range voices {
		voices[i].Provider = p.Name()
	}
	return voices, nil
}
