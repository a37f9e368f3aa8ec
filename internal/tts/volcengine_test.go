package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testVolcProvider wires a provider against stub langdetect/tts servers.
// ttsResponse is served verbatim from the tts endpoint.
func testVolcProvider(t *testing.T, ttsResponse any) (*VolcengineProvider, *[]map[string]string) {
	t.Helper()

	var ttsPayloads []map[string]string

	detect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"language": "zh"})
	}))
	t.Cleanup(detect.Close)

	synth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		ttsPayloads = append(ttsPayloads, payload)
		json.NewEncoder(w).Encode(ttsResponse)
	}))
	t.Cleanup(synth.Close)

	p := NewVolcengineProvider(nil)
	p.langDetectURL = detect.URL
	p.ttsURL = synth.URL
	return p, &ttsPayloads
}

func TestVolcengineSynthesize(t *testing.T) {
	audio := bytes.Repeat([]byte("pcm"), 500)
	p, payloads := testVolcProvider(t, map[string]any{
		"audio": map[string]string{"data": base64.StdEncoding.EncodeToString(audio)},
	})

	got, err := p.Synthesize(context.Background(), SynthesisRequest{Text: "你好", Speed: 1.0, Format: FormatMP3})
	require.NoError(t, err)
	assert.Equal(t, audio, got)

	require.Len(t, *payloads, 1)
	sent := (*payloads)[0]
	assert.Equal(t, "你好", sent["text"])
	assert.Equal(t, volcDefaultVoice, sent["speaker"], "empty voice falls back to the default")
	assert.Equal(t, "zh", sent["language"], "detected language is forwarded")
}

func TestVolcengineMissingAudioData(t *testing.T) {
	// {"audio": {}} — audio present but no data key.
	p, _ := testVolcProvider(t, map[string]any{"audio": map[string]string{}})

	_, err := p.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Voice: "zh_male_zhubo", Speed: 1.0, Format: FormatMP3})
	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "volcengine", uerr.Provider)
}

func TestVolcengineMissingAudioCarriesVendorMessage(t *testing.T) {
	p, _ := testVolcProvider(t, map[string]any{"message": "speaker not found"})

	_, err := p.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Speed: 1.0, Format: FormatMP3})
	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Contains(t, uerr.Message, "speaker not found")
}

func TestVolcengineLanguageDetectionFailureIsNonFatal(t *testing.T) {
	audio := []byte("ok")
	synth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, hasLang := payload["language"]
		assert.False(t, hasLang, "language must be omitted when detection fails")
		json.NewEncoder(w).Encode(map[string]any{
			"audio": map[string]string{"data": base64.StdEncoding.EncodeToString(audio)},
		})
	}))
	t.Cleanup(synth.Close)

	p := NewVolcengineProvider(nil)
	p.langDetectURL = "http://127.0.0.1:1" // unreachable
	p.ttsURL = synth.URL

	got, err := p.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Speed: 1.0, Format: FormatMP3})
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestVolcengineStreamMatchesFullSynthesis(t *testing.T) {
	audio := bytes.Repeat([]byte{0x42}, StreamChunkSize*3+1)
	p, _ := testVolcProvider(t, map[string]any{
		"audio": map[string]string{"data": base64.StdEncoding.EncodeToString(audio)},
	})

	req := SynthesisRequest{Text: "hello", Speed: 1.0, Format: FormatMP3}

	full, err := p.Synthesize(context.Background(), req)
	require.NoError(t, err)

	ch, err := p.SynthesizeStream(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, full, collect(t, ch))
}

func TestVolcengineVoicesServedThroughCatalog(t *testing.T) {
	store := newFakeStore()
	p := NewVolcengineProvider(store)

	voices, err := p.ListVoices(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, voices, 10)
	for _, v := range voices {
		assert.Equal(t, "volcengine", v.Provider)
	}

	// The static table still lands in the persistent cache.
	cached, ok := store.Read(context.Background(), "volcengine")
	require.True(t, ok)
	assert.Equal(t, voices, cached)
}

func TestVolcengineSupportsAnyVoice(t *testing.T) {
	p := NewVolcengineProvider(nil)
	assert.True(t, p.SupportsVoice("zh_female_qingxin"))
	assert.True(t, p.SupportsVoice("definitely-not-a-voice"))
}
