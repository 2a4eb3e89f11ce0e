package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"breadthcli/internal/services"
)

// PerfHandler exposes the performance metrics log
type PerfHandler struct {
	service *services.BreadthService
	logger  *slog.Logger
}

// NewPerfHandler creates a new performance handler
func NewPerfHandler(service *services.BreadthService, logger *slog.Logger) *PerfHandler {
	return &PerfHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the performance routes
func (h *PerfHandler) RegisterRoutes(r chi.Router) {
	r.Route("/performance", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
	})
}

// Get returns the append-only metrics log
func (h *PerfHandler) Get(w http.ResponseWriter, r *http.Request) {
	metrics := h.service.GetPerformanceMetrics(r.Context())
	render.JSON(w, r, map[string]interface{}{
		"count":   len(metrics),
		"metrics": metrics,
	})
}

// Clear purges the metrics log
func (h *PerfHandler) Clear(w http.ResponseWriter, r *http.Request) {
	purged := h.service.ClearPerformanceMetrics(r.Context())
	render.JSON(w, r, map[string]int{"purged": purged})
}
