package tts

import (
	"sort"

	"github.com/voxgate/voxgate/internal/config"
)

// Registry maps provider names to live Provider instances. It is built
// once at startup and passed explicitly through the request path.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry instantiates the configured provider set. Azure and
// Volcengine are always available; OpenAI joins when an API key is set.
func NewRegistry(cfg config.TTSConfig, store VoiceStore) *Registry {
	r := &Registry{}
	r.Register(NewAzureProvider(store))
	r.Register(NewVolcengineProvider(store))
	if cfg.OpenAIKey != "" {
		r.Register(NewOpenAIProvider(cfg, store))
	}
	return r
}

// Register adds a provider under its own name.
func (r *Registry) Register(p Provider) {
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[p.Name()] = p
}

// Provider looks up a provider by name.
func (r *Registry) Provider(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered providers ordered by name.
func (r *Registry) All() []Provider {
	all := make([]Provider, 0, len(r.providers))
	for _, name := range r.Names() {
		all = append(all, r.providers[name])
	}
	return all
}
