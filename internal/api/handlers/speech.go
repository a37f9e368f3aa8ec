package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/voxgate/voxgate/internal/tts"
)

// SpeechHandler serves the OpenAI-compatible /v1/audio/speech endpoint.
// The "model" field selects the provider.
type SpeechHandler struct {
	registry     *tts.Registry
	defaultModel string
	defaultVoice string
}

func NewSpeechHandler(registry *tts.Registry, defaultModel, defaultVoice string) *SpeechHandler {
	return &SpeechHandler{
		registry:     registry,
		defaultModel: defaultModel,
		defaultVoice: defaultVoice,
	}
}

type speechRequest struct {
	Model          string   `json:"model"`
	Input          string   `json:"input"`
	Voice          string   `json:"voice"`
	ResponseFormat string   `json:"response_format"`
	Speed          *float64 `json:"speed"` // pointer: an explicit 0 is rejected, absence defaults to 1.0
}

// Create handles POST requests with a JSON body.
func (h *SpeechHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.synthesize(w, r, req)
}

// CreateFromQuery handles GET requests with query-string parameters.
func (h *SpeechHandler) CreateFromQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := speechRequest{
		Model:          q.Get("model"),
		Input:          q.Get("input"),
		Voice:          q.Get("voice_id"),
		ResponseFormat: q.Get("response_format"),
	}
	if s := q.Get("speed"); s != "" {
		speed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid speed")
			return
		}
		req.Speed = &speed
	}
	h.synthesize(w, r, req)
}

func (h *SpeechHandler) synthesize(w http.ResponseWriter, r *http.Request, req speechRequest) {
	model := req.Model
	if model == "" {
		model = h.defaultModel
	}
	voice := req.Voice
	if voice == "" {
		voice = h.defaultVoice
	}
	speed := 1.0
	if req.Speed != nil {
		speed = *req.Speed
	}

	format, err := tts.ParseFormat(req.ResponseFormat)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	synthReq := tts.SynthesisRequest{
		Text:   req.Input,
		Voice:  voice,
		Speed:  speed,
		Format: format,
	}
	if err := synthReq.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	provider, ok := h.registry.Provider(model)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported model: %s", model))
		return
	}

	stream, err := provider.SynthesizeStream(r.Context(), synthReq)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for chunk := range stream {
		if chunk.Err != nil {
			// Headers are already on the wire; all we can do is stop.
			slog.Error("synthesis stream aborted", "provider", provider.Name(), "error", chunk.Err)
			return
		}
		if _, err := w.Write(chunk.Data); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeProviderError(w http.ResponseWriter, err error) {
	var verr *tts.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	var uerr *tts.UpstreamError
	if errors.As(err, &uerr) {
		writeError(w, http.StatusBadGateway, uerr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
