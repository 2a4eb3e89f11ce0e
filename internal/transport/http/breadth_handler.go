// Package http contains the chi handlers exposing the breadth engine's
// boundary operations.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"breadthcli/internal/breadth"
	apierrors "breadthcli/internal/errors"
	"breadthcli/internal/services"
)

// BreadthHandler handles calculation-related HTTP requests
type BreadthHandler struct {
	service *services.BreadthService
	logger  *slog.Logger
}

// NewBreadthHandler creates a new breadth handler
func NewBreadthHandler(service *services.BreadthService, logger *slog.Logger) *BreadthHandler {
	return &BreadthHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the calculation routes
func (h *BreadthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/breadth", func(r chi.Router) {
		r.Post("/calculate", h.Calculate)
		r.Post("/historical", h.CalculateHistorical)
		r.Post("/realtime", h.CalculateRealTime)
		r.Post("/validate", h.ValidateData)
		r.Post("/algorithm", h.SwitchAlgorithm)
	})
}

// Calculate scores a single raw record supplied in the request body
func (h *BreadthHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.CalculateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.service.CalculateSingle(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "calculation failed",
			slog.String("date", req.Data.Date),
			slog.String("error", err.Error()))
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	render.JSON(w, r, result)
}

// historicalRequest is the body for CalculateHistorical
type historicalRequest struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
}

// CalculateHistorical runs a batch calculation over the stored corpus
func (h *BreadthHandler) CalculateHistorical(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req historicalRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
		return
	}

	start, err := parseDay(req.StartDate)
	if err != nil {
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}
	end, err := parseDay(req.EndDate)
	if err != nil {
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	outcome, err := h.service.CalculateHistorical(ctx, start, end, req.Algorithm)
	if err != nil {
		h.logger.ErrorContext(ctx, "historical calculation failed",
			slog.String("error", err.Error()))
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	render.JSON(w, r, outcome)
}

// realTimeRequest is the body for CalculateRealTime
type realTimeRequest struct {
	Algorithm string `json:"algorithm,omitempty"`
}

// CalculateRealTime scores the latest stored record
func (h *BreadthHandler) CalculateRealTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req realTimeRequest
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
			return
		}
	}

	result, err := h.service.CalculateRealTime(ctx, req.Algorithm)
	if err != nil {
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	render.JSON(w, r, result)
}

// ValidateData runs the standalone pre-flight validation check
func (h *BreadthHandler) ValidateData(w http.ResponseWriter, r *http.Request) {
	var raw breadth.RawData
	if err := render.DecodeJSON(r.Body, &raw); err != nil {
		apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
		return
	}

	render.JSON(w, r, h.service.ValidateData(r.Context(), raw))
}

// switchRequest is the body for SwitchAlgorithm
type switchRequest struct {
	Algorithm string          `json:"algorithm"`
	Config    *breadth.Config `json:"config,omitempty"`
}

// SwitchAlgorithm changes the active configuration
func (h *BreadthHandler) SwitchAlgorithm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req switchRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
		return
	}
	if req.Algorithm == "" {
		apierrors.WriteError(w, apierrors.ErrMissingParameter)
		return
	}

	cfg, err := h.service.SwitchAlgorithm(ctx, req.Algorithm, req.Config)
	if err != nil {
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"config":  cfg,
	})
}

// parseDay parses an optional ISO day boundary
func parseDay(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, &breadth.ValidationError{Field: "date", Message: "must be an ISO day (YYYY-MM-DD)", Value: value}
	}
	return &day, nil
}
