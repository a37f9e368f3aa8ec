package tts

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	azureEndpointURL  = "https://dev.microsofttranslator.com/apps/endpoint?api-version=1.0"
	azureVoiceListURL = "https://eastus.api.speech.microsoft.com/cognitiveservices/voices/list"
	azureSynthesisURL = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"

	azureUserAgent     = "okhttp/4.5.0"
	azureClientVersion = "4.0.530a 5fe1dc6c"
	azureUserID        = "0f04d16a175c411e"
	azureHomeRegion    = "zh-Hans-CN"
	azureClientTraceID = "aab069b9-70a7-4844-a734-96cd78d94be9"
	azureSignPrefix    = "MSTranslatorAndroidApp"

	// Shared secret for the endpoint-negotiation HMAC, base64 encoded.
	azureSigningKey = "oik6PdDdMnOXemTbwvMn9de/h9lFnfBaCWbGMMZqqoSaQaqUOqjVGm5NqsmjcBI1x+sS9ugjB55HEJWRiFXYFw=="

	azureDefaultVoice  = "zh-CN-XiaoxiaoMultilingualNeural"
	azureDefaultFormat = "audio-24khz-48kbitrate-mono-mp3"
	azureStyle         = "general"

	// Tokens within this margin of expiry are refreshed before use.
	azureTokenMargin = 60 * time.Second
)

// azureSession is the negotiated synthesis endpoint: a bearer token bound
// to a regional host, valid until expiry. Owned by the provider, mutated
// only under its mutex.
type azureSession struct {
	token  string
	region string
	expiry time.Time
}

// AzureProvider synthesizes speech through the Microsoft Translator app
// endpoints. Each synthesis call first ensures a valid session token via
// the HMAC-signed negotiation request.
type AzureProvider struct {
	httpClient *http.Client
	cat        *catalog
	now        func() time.Time

	endpointURL  string
	voiceListURL string
	synthesisURL string // format string receiving the negotiated region

	mu      sync.Mutex
	session *azureSession
}

func NewAzureProvider(store VoiceStore) *AzureProvider {
	p := &AzureProvider{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
		endpointURL:  azureEndpointURL,
		voiceListURL: azureVoiceListURL,
		synthesisURL: azureSynthesisURL,
	}
	p.cat = newCatalog(p.Name(), store, p.fetchVoices)
	return p
}

func (p *AzureProvider) Name() string { return "azure" }

// SupportsVoice is permissive; the vendor rejects unknown voices itself.
func (p *AzureProvider) SupportsVoice(voiceID string) bool { return true }

// azureSignature builds the negotiation signature: HMAC-SHA256 over the
// lowercased concatenation of the app identifier, the percent-encoded URL
// (scheme stripped), an RFC-1123-style lowercase gmt timestamp and a
// hyphenless random UUID.
func azureSignature(rawURL string, at time.Time) string {
	stripped := rawURL
	if i := strings.Index(rawURL, "://"); i >= 0 {
		stripped = rawURL[i+3:]
	}
	encoded := url.QueryEscape(stripped)
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	date := strings.ToLower(at.UTC().Format("Mon, 02 Jan 2006 15:04:05")) + "gmt"

	payload := strings.ToLower(azureSignPrefix + encoded + date + nonce)
	key, _ := base64.StdEncoding.DecodeString(azureSigningKey)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return azureSignPrefix + "::" + sig + "::" + date + "::" + nonce
}

// endpoint returns a session valid for at least azureTokenMargin past now,
// refreshing synchronously when needed. Validity is re-checked under the
// lock, so concurrent callers may duplicate a refresh but never reuse an
// expired token.
func (p *AzureProvider) endpoint(ctx context.Context) (*azureSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil && p.now().Before(p.session.expiry.Add(-azureTokenMargin)) {
		return p.session, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointURL, nil)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "build negotiation request", Err: err}
	}
	req.Header.Set("Accept-Language", "zh-Hans")
	req.Header.Set("X-ClientVersion", azureClientVersion)
	req.Header.Set("X-UserId", azureUserID)
	req.Header.Set("X-HomeGeographicRegion", azureHomeRegion)
	req.Header.Set("X-ClientTraceId", azureClientTraceID)
	req.Header.Set("X-MT-Signature", azureSignature(p.endpointURL, p.now()))
	req.Header.Set("User-Agent", azureUserAgent)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Content-Length", "0")
	// Accept-Encoding stays unset: the transport negotiates gzip and
	// decodes it transparently only when it added the header itself.

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "endpoint negotiation", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("endpoint negotiation returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var negotiated struct {
		Token  string `json:"t"`
		Region string `json:"r"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&negotiated); err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "decode negotiation response", Err: err}
	}
	if negotiated.Token == "" || negotiated.Region == "" {
		return nil, &UpstreamError{Provider: p.Name(), Message: "negotiation response missing token or region"}
	}

	expiry, err := tokenExpiry(negotiated.Token)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "parse token expiry", Err: err}
	}

	p.session = &azureSession{
		token:  negotiated.Token,
		region: negotiated.Region,
		expiry: expiry,
	}
	slog.Info("refreshed azure session", "region", negotiated.Region, "expiry", expiry)
	return p.session, nil
}

// tokenExpiry reads the exp claim from the negotiated token without
// verifying its signature; the secret is Microsoft's, not ours.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim: %v", err)
	}
	return exp.Time, nil
}

func buildSSML(text, voice, rate, pitch, style string) string {
	return fmt.Sprintf(`<speak xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="http://www.w3.org/2001/mstts" version="1.0" xml:lang="zh-CN">
<voice name="%s">
    <mstts:express-as style="%s" styledegree="1.0" role="default">
        <prosody rate="%s%%" pitch="%s%%">
            %s
        </prosody>
    </mstts:express-as>
</voice>
</speak>`, voice, style, rate, pitch, text)
}

// speakingRate converts the normalized speed multiplier to the prosody
// rate percentage.
func speakingRate(speed float64) string {
	return strconv.Itoa(int(math.Round((speed - 1) * 100)))
}

func azureOutputFormat(f AudioFormat) string {
	switch f {
	case FormatMP3:
		return "audio-24khz-48kbitrate-mono-mp3"
	case FormatOpus:
		return "ogg-24khz-16bit-mono-opus"
	case FormatAAC:
		return "audio-24khz-96kbitrate-mono-mp3"
	case FormatFLAC:
		// No native flac profile; the payload is actually mp3 even though
		// the gateway labels it audio/flac. Kept for upstream
		// compatibility, logged so the mismatch is visible.
		slog.Warn("azure has no flac profile, serving mp3-encoded audio")
		return "audio-24khz-48kbitrate-mono-mp3"
	case FormatWAV:
		return "riff-24khz-16bit-mono-pcm"
	case FormatPCM:
		return "raw-24khz-16bit-mono-pcm"
	default:
		return azureDefaultFormat
	}
}

func (p *AzureProvider) synthesisRequest(ctx context.Context, req SynthesisRequest) (*http.Request, error) {
	sess, err := p.endpoint(ctx)
	if err != nil {
		return nil, err
	}

	voice := req.Voice
	if voice == "" {
		voice = azureDefaultVoice
	}
	ssml := buildSSML(req.Text, voice, speakingRate(req.Speed), "0", azureStyle)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf(p.synthesisURL, sess.region), strings.NewReader(ssml))
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "build synthesis request", Err: err}
	}
	httpReq.Header.Set("Authorization", sess.token)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat(req.Format))
	return httpReq, nil
}

func (p *AzureProvider) doSynthesis(ctx context.Context, req SynthesisRequest) (*http.Response, error) {
	httpReq, err := p.synthesisRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "synthesis request", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &UpstreamError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("synthesis returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	return resp, nil
}

func (p *AzureProvider) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	resp, err := p.doSynthesis(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "read audio", Err: err}
	}
	if len(audio) == 0 {
		return nil, &UpstreamError{Provider: p.Name(), Message: "empty audio payload"}
	}
	return audio, nil
}

// SynthesizeStream issues the same request as Synthesize but hands the
// response body off for incremental chunked reads.
func (p *AzureProvider) SynthesizeStream(ctx context.Context, req SynthesisRequest) (<-chan StreamChunk, error) {
	resp, err := p.doSynthesis(ctx, req)
	if err != nil {
		return nil, err
	}
	return streamBody(ctx, resp.Body), nil
}

func (p *AzureProvider) ListVoices(ctx context.Context, forceRefresh bool) ([]VoiceInfo, error) {
	return p.cat.list(ctx, forceRefresh)
}

// fetchVoices pulls the public voice list. The endpoint is unauthenticated
// but expects a browser-like header set.
func (p *AzureProvider) fetchVoices(ctx context.Context) ([]VoiceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.voiceListURL, nil)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "build voice list request", Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("X-Ms-Useragent", "SpeechStudio/2021.05.001")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://azure.microsoft.com")
	req.Header.Set("Referer", "https://azure.microsoft.com")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "fetch voice list", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("voice list returned %d", resp.StatusCode),
		}
	}

	var entries []struct {
		ShortName   string `json:"ShortName"`
		DisplayName string `json:"DisplayName"`
		Locale      string `json:"Locale"`
		Gender      string `json:"Gender"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: "decode voice list", Err: err}
	}

	voices := make([]VoiceInfo, 0, len(entries))
	for _, e := range entries {
		voices = append(voices, VoiceInfo{
			ID:       e.ShortName,
			Name:     e.DisplayName,
			Language: e.Locale,
			Gender:   e.Gender,
			Provider: p.Name(),
		})
	}
	return voices, nil
}
