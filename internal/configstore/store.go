package configstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"breadthcli/internal/breadth"
)

// NotFoundError reports an unknown configuration version
type NotFoundError struct {
	Version string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("configuration version %s not found", e.Version)
}

// Store holds versioned scoring configurations. Every version is immutable
// once handed out; the "current default per algorithm" index is a separate
// single-writer structure so readers can never observe two defaults for the
// same algorithm.
type Store struct {
	mu       sync.RWMutex
	configs  map[string]*breadth.Config
	defaults map[breadth.Algorithm]string // algorithm -> default version
	logger   *slog.Logger
}

// NewStore creates an empty configuration store
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		configs:  make(map[string]*breadth.Config),
		defaults: make(map[breadth.Algorithm]string),
		logger:   logger,
	}
}

// CreateParams are the caller-supplied parts of a new configuration.
// Unset fields take the engine defaults.
type CreateParams struct {
	Name          string                   `json:"name"`
	Description   string                   `json:"description,omitempty"`
	Weights       *breadth.Weights         `json:"weights,omitempty"`
	Indicators    *breadth.IndicatorParams `json:"indicators,omitempty"`
	CustomFormula string                   `json:"custom_formula,omitempty"`
	SetDefault    bool                     `json:"set_default,omitempty"`
}

// Create validates and persists a new immutable configuration version and
// returns its version id. Nothing partially valid is ever stored.
func (s *Store) Create(algorithm breadth.Algorithm, params CreateParams) (string, error) {
	now := time.Now().UTC()
	cfg := breadth.Config{
		Version:       uuid.NewString(),
		Algorithm:     algorithm,
		Name:          params.Name,
		Description:   params.Description,
		Weights:       breadth.DefaultWeights(),
		Indicators:    breadth.DefaultIndicatorParams(),
		CustomFormula: params.CustomFormula,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if params.Name == "" {
		cfg.Name = "Config " + string(algorithm)
	}
	if params.Weights != nil {
		cfg.Weights = *params.Weights
	}
	if params.Indicators != nil {
		cfg.Indicators = *params.Indicators
	}

	if err := breadth.ValidateConfig(&cfg); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.Version] = &cfg
	if params.SetDefault {
		s.setDefaultLocked(&cfg)
	}

	s.logger.Info("configuration created",
		slog.String("version", cfg.Version),
		slog.String("algorithm", string(algorithm)),
		slog.Bool("is_default", cfg.IsDefault))
	return cfg.Version, nil
}

// Get returns a copy of the configuration at the given version
func (s *Store) Get(version string) (breadth.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[version]
	if !ok {
		return breadth.Config{}, &NotFoundError{Version: version}
	}
	return *cfg, nil
}

// GetRef returns the stored configuration pointer for calculation use.
// Callers must treat the value as immutable.
func (s *Store) GetRef(version string) (*breadth.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[version]
	if !ok {
		return nil, &NotFoundError{Version: version}
	}
	return cfg, nil
}

// Default returns the default configuration for an algorithm, if one is set
func (s *Store) Default(algorithm breadth.Algorithm) (breadth.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, ok := s.defaults[algorithm]
	if !ok {
		return breadth.Config{}, false
	}
	return *s.configs[version], true
}

// List returns configurations sorted by recency (most recently updated
// first). With defaultsOnly set, only per-algorithm defaults are returned.
func (s *Store) List(defaultsOnly bool) []breadth.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]breadth.Config, 0, len(s.configs))
	for _, cfg := range s.configs {
		if defaultsOnly && !cfg.IsDefault {
			continue
		}
		out = append(out, *cfg)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// UpdateParams are the fields a correction may change. Nil fields keep
// their stored value.
type UpdateParams struct {
	Name          *string                  `json:"name,omitempty"`
	Description   *string                  `json:"description,omitempty"`
	Weights       *breadth.Weights         `json:"weights,omitempty"`
	Indicators    *breadth.IndicatorParams `json:"indicators,omitempty"`
	CustomFormula *string                  `json:"custom_formula,omitempty"`
}

// Update merges a correction into an existing version and re-validates the
// whole record. The version id is preserved: this is a correction, not a new
// version; callers needing history should Create instead.
func (s *Store) Update(version string, params UpdateParams) (breadth.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.configs[version]
	if !ok {
		return breadth.Config{}, &NotFoundError{Version: version}
	}

	merged := *existing
	if params.Name != nil {
		merged.Name = *params.Name
	}
	if params.Description != nil {
		merged.Description = *params.Description
	}
	if params.Weights != nil {
		merged.Weights = *params.Weights
	}
	if params.Indicators != nil {
		merged.Indicators = *params.Indicators
	}
	if params.CustomFormula != nil {
		merged.CustomFormula = *params.CustomFormula
		merged.ResetCompiledFormula()
	}
	merged.UpdatedAt = time.Now().UTC()

	if err := breadth.ValidateConfig(&merged); err != nil {
		return breadth.Config{}, err
	}

	s.configs[version] = &merged
	s.logger.Info("configuration corrected", slog.String("version", version))
	return merged, nil
}

// SetDefault atomically clears any existing default for the version's
// algorithm and sets the new one. Readers can never observe more than one
// default per algorithm.
func (s *Store) SetDefault(version string) (breadth.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[version]
	if !ok {
		return breadth.Config{}, &NotFoundError{Version: version}
	}
	s.setDefaultLocked(cfg)
	return *cfg, nil
}

// setDefaultLocked flips the default flag under the write lock. Flag changes
// go through fresh copies so configurations already handed out stay frozen.
func (s *Store) setDefaultLocked(cfg *breadth.Config) {
	if prev, ok := s.defaults[cfg.Algorithm]; ok && prev != cfg.Version {
		cleared := *s.configs[prev]
		cleared.IsDefault = false
		s.configs[prev] = &cleared
	}
	promoted := *cfg
	promoted.IsDefault = true
	s.configs[cfg.Version] = &promoted
	s.defaults[cfg.Algorithm] = cfg.Version
}

// ExportPayload is the wire format for configuration export/import
type ExportPayload struct {
	ExportedAt time.Time        `json:"exported_at"`
	Configs    []breadth.Config `json:"configs"`
}

// Export serializes the named versions (or every version when none are
// named) as a JSON payload.
func (s *Store) Export(versions ...string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload := ExportPayload{ExportedAt: time.Now().UTC()}
	if len(versions) == 0 {
		for _, cfg := range s.configs {
			payload.Configs = append(payload.Configs, *cfg)
		}
		sort.Slice(payload.Configs, func(i, j int) bool {
			return payload.Configs[i].Version < payload.Configs[j].Version
		})
	} else {
		for _, v := range versions {
			cfg, ok := s.configs[v]
			if !ok {
				return nil, &NotFoundError{Version: v}
			}
			payload.Configs = append(payload.Configs, *cfg)
		}
	}
	return json.MarshalIndent(payload, "", "  ")
}

// ImportError reports one rejected record in an import batch
type ImportError struct {
	Version string `json:"version,omitempty"`
	Name    string `json:"name,omitempty"`
	Error   string `json:"error"`
}

// ImportOutcome summarizes an import batch
type ImportOutcome struct {
	Imported int           `json:"imported"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// Import validates each record independently and stores the valid ones.
// One bad record never aborts the batch. Imported records never arrive as
// defaults; promotion stays an explicit SetDefault call. A record reusing
// an existing version id is rejected: stored versions are immutable and an
// import must never replace one.
func (s *Store) Import(payload []byte) (ImportOutcome, error) {
	var parsed ExportPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return ImportOutcome{}, &breadth.ValidationError{Field: "payload", Message: "payload is not valid JSON: " + err.Error()}
	}

	outcome := ImportOutcome{}
	for i := range parsed.Configs {
		cfg := parsed.Configs[i]
		cfg.IsDefault = false
		if cfg.Version == "" {
			cfg.Version = uuid.NewString()
		}
		if cfg.CreatedAt.IsZero() {
			cfg.CreatedAt = time.Now().UTC()
		}
		cfg.UpdatedAt = time.Now().UTC()

		if err := breadth.ValidateConfig(&cfg); err != nil {
			outcome.Errors = append(outcome.Errors, ImportError{Version: cfg.Version, Name: cfg.Name, Error: err.Error()})
			continue
		}

		s.mu.Lock()
		if _, exists := s.configs[cfg.Version]; exists {
			s.mu.Unlock()
			outcome.Errors = append(outcome.Errors, ImportError{Version: cfg.Version, Name: cfg.Name, Error: "version already exists"})
			continue
		}
		s.configs[cfg.Version] = &cfg
		s.mu.Unlock()
		outcome.Imported++
	}

	s.logger.Info("configuration import finished",
		slog.Int("imported", outcome.Imported),
		slog.Int("rejected", len(outcome.Errors)))
	return outcome, nil
}

// Len returns the number of stored versions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.configs)
}
