package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/api/middleware"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/config"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/handlers"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, h *handlers.Handler, redisStore *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - the platform frontend may be served from another origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Connectify-User"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	sendLimiter := middleware.NewSendLimiter(redisStore, cfg.SendsPerMinute, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Identified routes (user id header required)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Get("/api/rooms", h.ListRooms)
		r.Get("/api/rooms/{identifier}/messages", h.GetMessages)
		r.With(sendLimiter.Limit).Post("/api/rooms/{identifier}/messages", h.SendMessage)
		r.Post("/api/rooms/{identifier}/read", h.MarkRead)
		r.Post("/api/rooms/{identifier}/typing", h.Typing)
		r.Get("/api/rooms/{identifier}/participants", h.Participants)
		r.Get("/api/users/{id}", h.GetUser)
		r.Get("/api/stats", h.Stats)
		r.Get("/ws", h.WS)
	})

	return r
}
