package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/voxgate/voxgate/internal/api/handlers"
	"github.com/voxgate/voxgate/internal/api/middleware"
	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/tts"
)

type Router struct {
	mux      *chi.Mux
	cfg      *config.Config
	registry *tts.Registry
}

func NewRouter(cfg *config.Config, registry *tts.Registry) *Router {
	return &Router{
		mux:      chi.NewRouter(),
		cfg:      cfg,
		registry: registry,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(rt.registry)
	r.Get("/health", health.Health)

	speechH := handlers.NewSpeechHandler(rt.registry, rt.cfg.TTS.DefaultModel, rt.cfg.TTS.DefaultVoice)
	voicesH := handlers.NewVoicesHandler(rt.registry)

	r.Route("/v1/audio", func(r chi.Router) {
		r.Post("/speech", speechH.Create)
		r.Get("/speech", speechH.CreateFromQuery)
		r.Get("/voices", voicesH.List)
	})

	return r
}
