package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"secure.notes/config"
	"secure.notes/internal/logger"
	"secure.notes/internal/store"
)

func SetupRouter(s store.Store, cfg *config.Config, log *logger.Logger) *chi.Mux {
	h := NewHandler(s, cfg)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID(log))
	r.Use(Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         86400,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(httprate.LimitByIP(cfg.RateLimit.RequestsPerMin, time.Minute))
		}
		r.Use(middleware.AllowContentType("application/json"))

		r.Route("/notes", func(r chi.Router) {
			r.Post("/", h.CreateNote)
			r.Get("/{token}/status", h.GetStatus)

			// Fetching destroys the note, so it gets the tighter budget.
			if cfg.RateLimit.Enabled {
				r.With(httprate.LimitByIP(cfg.RateLimit.FetchPerMin, time.Minute)).Delete("/{token}", h.FetchNote)
			} else {
				r.Delete("/{token}", h.FetchNote)
			}
		})
	})

	// Share links land here in a browser. Serving the page never touches
	// the store.
	r.Get("/", h.Index)
	r.Get("/notes/{token}", h.Index)
	r.Get("/read/{token}", h.Index)

	return r
}
