package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"breadthcli/internal/config"
	custommw "breadthcli/internal/middleware"
	"breadthcli/internal/services"
)

// RouterDeps groups the dependencies the router needs to assemble all routes.
type RouterDeps struct {
	Config  *config.Config
	Breadth *services.BreadthService
	Health  *services.HealthService
	Logger  *slog.Logger
	// Metrics overrides the Prometheus handler served at /metrics.
	// Defaults to promhttp.Handler when nil.
	Metrics http.Handler
}

// NewRouter builds the chi router with the full middleware chain and all
// API routes mounted under /api.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)

	r.Group(func(r chi.Router) {
		r.Use(custommw.StructuredLogger(deps.Logger))
		r.Use(custommw.Recoverer(deps.Logger))
		r.Use(custommw.SecurityHeaders)
		r.Use(custommw.Compress(5))
		r.Use(chimiddleware.Timeout(deps.Config.Server.ReadTimeout))

		if deps.Config.Security.EnableCORS {
			r.Use(custommw.CORS(custommw.CORSConfig{
				AllowedOrigins:   deps.Config.Security.AllowedOrigins,
				AllowCredentials: true,
				Logger:           deps.Logger,
			}))
		}

		if deps.Config.Security.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(
				deps.Config.Security.RateLimit.RPS,
				deps.Config.Security.RateLimit.Burst,
				deps.Logger,
			).Handler)
		}

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			NewHealthHandler(deps.Health, deps.Logger).RegisterRoutes(r)
			NewBreadthHandler(deps.Breadth, deps.Logger).RegisterRoutes(r)
			NewConfigHandler(deps.Breadth, deps.Logger).RegisterRoutes(r)
			NewPerfHandler(deps.Breadth, deps.Logger).RegisterRoutes(r)
		})
	})

	// Metrics endpoint stays outside the middleware group so scrapes
	// skip logging and rate limiting.
	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Handle("/metrics", metrics)

	return r
}
