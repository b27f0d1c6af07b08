package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"onetime.share/config"
	"onetime.share/internal/secrets"
)

func SetupRouter(e *secrets.Engine, cfg *config.Config, log *slog.Logger) *chi.Mux {
	h := NewHandler(e, cfg, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(StructuredLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.Server.BaseURL},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Health
	r.Get("/health", h.Health)

	// API routes
	r.Route("/api/secrets", func(r chi.Router) {
		reveal := r
		if cfg.RateLimit.Enabled {
			apiLimiter := NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
			revealLimiter := NewRateLimiter(cfg.RateLimit.RevealPerMin, time.Minute)

			r.Use(apiLimiter.Middleware)
			reveal = r.With(revealLimiter.Middleware)
		}

		r.Post("/", h.CreateSecret)
		reveal.Get("/{id}", h.RevealSecret)
		r.Get("/{id}/meta", h.GetMeta)
		r.Delete("/{id}", h.DeleteSecret)
	})

	// Frontend
	r.Get("/", h.Index)
	r.Get("/s/{id}", h.RevealPage)

	return r
}
