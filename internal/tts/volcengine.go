package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	volcLangDetectURL = "https://translate.volcengine.com/web/langdetect/v1/"
	volcTTSURL        = "https://translate.volcengine.com/crx/tts/v1/"

	volcDefaultVoice = "zh_female_qingxin"
)

// volcHeaders mimics the browser-extension client the endpoints expect.
var volcHeaders = map[string]string{
	"Accept-Language": "en-US,en;q=0.9,zh-CN;q=0.8,zh;q=0.7",
	"Cache-Control":   "no-cache",
	"Connection":      "keep-alive",
	"Origin":          "chrome-extension://klgfhbiooeogdfodpopgppeadghjjemk",
	"Pragma":          "no-cache",
	"Sec-Fetch-Dest":  "empty",
	"Sec-Fetch-Mode":  "cors",
	"Sec-Fetch-Site":  "none",
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Content-Type":    "application/json",
}

// The catalog is fixed; Volcengine exposes no voice-list endpoint.
var volcVoices = []VoiceInfo{
	{ID: "zh_female_story", Name: "少儿故事 中英混", Language: "zh-CN", Gender: "Female"},
	{ID: "zh_female_qingxin", Name: "清新女声 中英混", Language: "zh-CN", Gender: "Female"},
	{ID: "zh_female_zhubo", Name: "女主播 中英混", Language: "zh-CN", Gender: "Female"},
	{ID: "zh_male_zhubo", Name: "男主播 中英混", Language: "zh-CN", Gender: "Male"},
	{ID: "zh_male_xiaoming", Name: "影视男解说 中英混", Language: "zh-CN", Gender: "Male"},
	{ID: "zh_female_sichuan", Name: "四川女声 川英混", Language: "zh-CN", Gender: "Female"},
	{ID: "zh_male_rap", Name: "嘻哈男歌手 中英混", Language: "zh-CN", Gender: "Male"},
	{ID: "en_female_sarah", Name: "澳英女声 澳洲英语", Language: "en-AU", Gender: "Female"},
	{ID: "jp_male_satoshi", Name: "活力男青年 日语", Language: "ja-JP", Gender: "Male"},
	{ID: "jp_female_hana", Name: "温柔女声 日语", Language: "ja-JP", Gender: "Female"},
}

// VolcengineProvider synthesizes speech through the Volcengine translate
// extension endpoints. Calls are self-contained; there is no session state.
type VolcengineProvider struct {
	httpClient *http.Client
	cat        *catalog

	langDetectURL string
	ttsURL        string
}

func NewVolcengineProvider(store VoiceStore) *VolcengineProvider {
	p := &VolcengineProvider{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		langDetectURL: volcLangDetectURL,
		ttsURL:        volcTTSURL,
	}
	p.cat = newCatalog(p.Name(), store, p.fetchVoices)
	return p
}

func (p *VolcengineProvider) Name() string { return "volcengine" }

// SupportsVoice is permissive; unknown speakers fail at the vendor.
func (p *VolcengineProvider) SupportsVoice(voiceID string) bool { return true }

func (p *VolcengineProvider) post(ctx context.Context, url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range volcHeaders {
		req.Header.Set(k, v)
	}
	return p.httpClient.Do(req)
}

// detectLanguage is best effort; on any failure the language hint is
// simply omitted from the synthesis call.
func (p *VolcengineProvider) detectLanguage(ctx context.Context, text string) string {
	resp, err := p.post(ctx, p.langDetectURL, map[string]string{"text": text})
	if err != nil {
		slog.Debug("language detection failed", "error", err)
		return ""
	}
	defer resp.Body.Close()

	var out struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ""
	}
	return out.Language
}

func (p *VolcengineProvider) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	voice := req.Voice
	if voice == "" {
		voice = volcDefaultVoice
	}

	payload := map[string]string{"text": req.Text, "speaker": voice}
	if lang := p.detectLanguage(ctx, req.Text); lang != "" {
		payload["language"] = lang
	}

	resp, err := p.post(ctx, p.ttsURL, payload)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "synthesis request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("synthesis returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var out struct {
		Audio *struct {
			Data string `json:"data"`
		} `json:"audio"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "decode synthesis response", Err: err}
	}

	if out.Audio == nil {
		msg := out.Message
		if msg == "" {
			msg = "response missing audio"
		}
		slog.Error("volcengine synthesis failed", "voice", voice, "message", msg)
		return nil, &UpstreamError{Provider: p.Name(), Message: fmt.Sprintf("voice %s: %s", voice, msg)}
	}
	if out.Audio.Data == "" {
		slog.Error("volcengine synthesis returned no audio data", "voice", voice)
		return nil, &UpstreamError{Provider: p.Name(), Message: fmt.Sprintf("voice %s: response missing audio data", voice)}
	}

	audio, err := base64.StdEncoding.DecodeString(out.Audio.Data)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "decode audio payload", Err: err}
	}
	return audio, nil
}

// SynthesizeStream simulates streaming; the vendor has no streaming API.
func (p *VolcengineProvider) SynthesizeStream(ctx context.Context, req SynthesisRequest) (<-chan StreamChunk, error) {
	audio, err := p.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	return simulateStream(ctx, audio), nil
}

func (p *VolcengineProvider) ListVoices(ctx context.Context, forceRefresh bool) ([]VoiceInfo, error) {
	return p.cat.list(ctx, forceRefresh)
}

// fetchVoices serves the static table through the common cache path so
// every provider behaves uniformly.
func (p *VolcengineProvider) fetchVoices(ctx context.Context) ([]VoiceInfo, error) {
	voices := make([]VoiceInfo, len(volcVoices))
	copy(voices, volcVoices)
	for i := range voices {
		voices[i].Provider = p.Name()
	}
	return voices, nil
}
