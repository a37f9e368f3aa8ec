package handlers

import (
	"fmt"
	"net/http"

	"github.com/voxgate/voxgate/internal/tts"
)

type VoicesHandler struct {
	registry *tts.Registry
}

func NewVoicesHandler(registry *tts.Registry) *VoicesHandler {
	return &VoicesHandler{registry: registry}
}

type voicesResponse struct {
	Voices []tts.VoiceInfo `json:"voices"`
}

// List returns the voice catalog for one provider, or the union across all
// registered providers when none is named. refresh=true bypasses caches.
func (h *VoicesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	refresh := q.Get("refresh") == "true"

	providers := h.registry.All()
	if name := q.Get("provider"); name != "" {
		p, ok := h.registry.Provider(name)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported provider: %s", name))
			return
		}
		providers = []tts.Provider{p}
	}

	voices := make([]tts.VoiceInfo, 0)
	for _, p := range providers {
		got, err := p.ListVoices(r.Context(), refresh)
		if err != nil {
			writeProviderError(w, err)
			return
		}
		voices = append(voices, got...)
	}

	writeJSON(w, http.StatusOK, voicesResponse{Voices: voices})
}
