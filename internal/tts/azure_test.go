package tts

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken builds an unsigned JWT-shaped token carrying an exp claim.
func fakeToken(exp time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())))
	return header + "." + payload + ".sig"
}

func TestAzureSignatureShape(t *testing.T) {
	sig := azureSignature(azureEndpointURL, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC))

	parts := strings.Split(sig, "::")
	require.Len(t, parts, 4)
	assert.Equal(t, azureSignPrefix, parts[0])

	// Base64 HMAC-SHA256 digest.
	digest, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Len(t, digest, 32)

	assert.Equal(t, "fri, 01 mar 2024 10:30:00gmt", parts[2])
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), parts[3])
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, err := tokenExpiry(fakeToken(exp))
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))

	_, err = tokenExpiry("not-a-token")
	require.Error(t, err)
}

func TestSpeakingRate(t *testing.T) {
	tests := []struct {
		speed float64
		want  string
	}{
		{1.0, "0"},
		{1.5, "50"},
		{0.25, "-75"},
		{4.0, "300"},
		{1.254, "25"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, speakingRate(tt.speed), "speed %g", tt.speed)
	}
}

func TestAzureOutputFormat(t *testing.T) {
	tests := []struct {
		format AudioFormat
		want   string
	}{
		{FormatMP3, "audio-24khz-48kbitrate-mono-mp3"},
		{FormatOpus, "ogg-24khz-16bit-mono-opus"},
		{FormatAAC, "audio-24khz-96kbitrate-mono-mp3"},
		{FormatFLAC, "audio-24khz-48kbitrate-mono-mp3"},
		{FormatWAV, "riff-24khz-16bit-mono-pcm"},
		{FormatPCM, "raw-24khz-16bit-mono-pcm"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, azureOutputFormat(tt.format), "format %s", tt.format)
	}
}

// testAzureProvider wires an AzureProvider against stub negotiation and
// synthesis servers.
func testAzureProvider(t *testing.T, audio []byte) (*AzureProvider, *atomic.Int64) {
	t.Helper()

	var negotiations atomic.Int64
	now := time.Now()

	negotiation := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		negotiations.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.NotEmpty(t, r.Header.Get("X-MT-Signature"))
		json.NewEncoder(w).Encode(map[string]string{
			"t": fakeToken(now.Add(10 * time.Minute)),
			"r": "eastus",
		})
	}))
	t.Cleanup(negotiation.Close)

	synthesis := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/ssml+xml", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Microsoft-OutputFormat"))
		w.Write(audio)
	}))
	t.Cleanup(synthesis.Close)

	p := NewAzureProvider(nil)
	p.endpointURL = negotiation.URL
	p.synthesisURL = synthesis.URL + "/%s"
	p.now = func() time.Time { return now }
	return p, &negotiations
}

func TestAzureSynthesizeNegotiatesOnce(t *testing.T) {
	audio := bytes.Repeat([]byte("mp3!"), 100)
	p, negotiations := testAzureProvider(t, audio)

	req := SynthesisRequest{Text: "hello", Speed: 1.0, Format: FormatMP3}

	got, err := p.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, audio, got)
	assert.EqualValues(t, 1, negotiations.Load())

	// The session is still valid; no second negotiation.
	_, err = p.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 1, negotiations.Load())
}

func TestAzureRefreshInsideSafetyMargin(t *testing.T) {
	p, negotiations := testAzureProvider(t, []byte("audio"))
	now := p.now()

	// 30s to expiry is inside the 60s margin: the next call must refresh
	// exactly once before hitting the vendor.
	p.session = &azureSession{token: "stale", region: "eastus", expiry: now.Add(30 * time.Second)}

	_, err := p.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Speed: 1.0, Format: FormatMP3})
	require.NoError(t, err)
	assert.EqualValues(t, 1, negotiations.Load())
}

func TestAzureNoRefreshForFreshSession(t *testing.T) {
	p, negotiations := testAzureProvider(t, []byte("audio"))
	now := p.now()

	p.session = &azureSession{token: fakeToken(now.Add(time.Hour)), region: "eastus", expiry: now.Add(time.Hour)}

	_, err := p.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Speed: 1.0, Format: FormatMP3})
	require.NoError(t, err)
	assert.EqualValues(t, 0, negotiations.Load())
}

func TestAzureStreamMatchesFullSynthesis(t *testing.T) {
	audio := bytes.Repeat([]byte{0x5A}, StreamChunkSize*2+99)
	p, _ := testAzureProvider(t, audio)

	req := SynthesisRequest{Text: "hello", Speed: 1.0, Format: FormatMP3}

	full, err := p.Synthesize(context.Background(), req)
	require.NoError(t, err)

	ch, err := p.SynthesizeStream(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, full, collect(t, ch))
}

func TestAzureNegotiationFailureIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	p := NewAzureProvider(nil)
	p.endpointURL = srv.URL

	_, err := p.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Speed: 1.0, Format: FormatMP3})
	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "azure", uerr.Provider)
}

func TestAzureNegotiationGzipResponse(t *testing.T) {
	token := fakeToken(time.Now().Add(10 * time.Minute))

	// The endpoint serves gzip when the client advertises it; the session
	// must still decode.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")

		body, err := json.Marshal(map[string]string{"t": token, "r": "eastus"})
		require.NoError(t, err)

		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, err = gz.Write(body)
		require.NoError(t, err)
		require.NoError(t, gz.Close())

		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)

	p := NewAzureProvider(nil)
	p.endpointURL = srv.URL

	sess, err := p.endpoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, sess.token)
	assert.Equal(t, "eastus", sess.region)
}

func TestAzureFetchVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.Header.Get("X-Ms-Useragent"))
		json.NewEncoder(w).Encode([]map[string]string{
			{"ShortName": "en-US-JennyNeural", "DisplayName": "Jenny", "Locale": "en-US", "Gender": "Female"},
			{"ShortName": "zh-CN-YunxiNeural", "DisplayName": "Yunxi", "Locale": "zh-CN", "Gender": "Male"},
		})
	}))
	t.Cleanup(srv.Close)

	p := NewAzureProvider(nil)
	p.voiceListURL = srv.URL

	voices, err := p.ListVoices(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, VoiceInfo{
		ID: "en-US-JennyNeural", Name: "Jenny", Language: "en-US", Gender: "Female", Provider: "azure",
	}, voices[0])
}
