package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"vibecode.dev/vibe-code/internal/ratelimit"
)

// DefaultMaxBodyBytes is the request body limit used when none is configured.
const DefaultMaxBodyBytes = 10 << 20

type RouterConfig struct {
	CORSOrigin    string
	Development   bool   // serve the welcome document at "/" and skip HSTS
	StaticDir     string // serve the web client from here when set
	MaxBodyBytes  int64
	GenerateLimit ratelimit.Tier
	GeneralLimit  ratelimit.Tier
}

func NewRouter(apiHandler *APIHandler, cfg RouterConfig, log *zap.Logger) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(Recoverer(log))
	r.Use(middleware.StripSlashes)
	r.Use(SecureHeaders(cfg.Development))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestSize(cfg.MaxBodyBytes))

	notFound := http.HandlerFunc(apiHandler.NotFoundHandler)
	if cfg.StaticDir != "" {
		notFound = spaHandler(cfg.StaticDir, apiHandler.NotFoundHandler)
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(apiHandler.MethodNotAllowedHandler)

	if cfg.Development && cfg.StaticDir == "" {
		r.Get("/", apiHandler.WelcomeHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		r.Route("/ai", func(r chi.Router) {
			r.With(RateLimit(cfg.GenerateLimit, log)).Post("/generate", apiHandler.GenerateHandler)

			r.Group(func(r chi.Router) {
				r.Use(RateLimit(cfg.GeneralLimit, log))

				r.Post("/save", apiHandler.SaveHandler)
				r.Get("/history", apiHandler.HistoryHandler)
				r.Get("/history/{id}", apiHandler.GetResponseHandler)
			})
		})
	})

	return r
}
