package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"breadthcli/internal/configstore"
	apierrors "breadthcli/internal/errors"
	"breadthcli/internal/services"
)

// ConfigHandler handles configuration CRUD requests
type ConfigHandler struct {
	service *services.BreadthService
	logger  *slog.Logger
}

// NewConfigHandler creates a new configuration handler
func NewConfigHandler(service *services.BreadthService, logger *slog.Logger) *ConfigHandler {
	return &ConfigHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the configuration routes
func (h *ConfigHandler) RegisterRoutes(r chi.Router) {
	r.Route("/configs", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
		r.Get("/{version}", h.Get)
		r.Put("/{version}", h.Update)
		r.Post("/{version}/default", h.SetDefault)
	})
}

// createConfigRequest is the body for Create
type createConfigRequest struct {
	Algorithm string `json:"algorithm"`
	configstore.CreateParams
}

// Create persists a new configuration version
func (h *ConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createConfigRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
		return
	}

	version, err := h.service.CreateConfiguration(ctx, req.Algorithm, req.CreateParams)
	if err != nil {
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{"version": version})
}

// Get returns one configuration version
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	cfg, err := h.service.GetConfiguration(r.Context(), version)
	if err != nil {
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	render.JSON(w, r, cfg)
}

// List returns configurations sorted by recency. ?defaults_only=true
// restricts the list to default configurations.
func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	defaultsOnly := r.URL.Query().Get("defaults_only") == "true"
	render.JSON(w, r, h.service.ListConfigurations(r.Context(), defaultsOnly))
}

// Update merges a partial correction into an existing version
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	var params configstore.UpdateParams
	if err := render.DecodeJSON(r.Body, &params); err != nil {
		apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
		return
	}

	cfg, err := h.service.UpdateConfiguration(r.Context(), version, params)
	if err != nil {
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	render.JSON(w, r, cfg)
}

// SetDefault makes version the single default for its algorithm
func (h *ConfigHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	cfg, err := h.service.SetDefaultConfiguration(r.Context(), version)
	if err != nil {
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	render.JSON(w, r, cfg)
}

// Export serializes configurations. ?versions=a,b restricts the export.
func (h *ConfigHandler) Export(w http.ResponseWriter, r *http.Request) {
	var versions []string
	if raw := r.URL.Query()["version"]; len(raw) > 0 {
		versions = raw
	}

	payload, err := h.service.ExportConfigurations(r.Context(), versions...)
	if err != nil {
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="breadth-configs.json"`)
	w.Write(payload)
}

// Import validates and stores each uploaded record independently
func (h *ConfigHandler) Import(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
		return
	}

	outcome, err := h.service.ImportConfigurations(r.Context(), payload)
	if err != nil {
		apierrors.WriteError(w, apierrors.FromDomain(err))
		return
	}

	render.JSON(w, r, outcome)
}
