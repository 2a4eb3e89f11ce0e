package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"breadthcli/internal/breadth"
	"breadthcli/internal/configstore"
	"breadthcli/internal/perf"
)

// RawSource supplies raw breadth records from external persistence,
// keyed by date. Ingestion and storage are outside this service.
type RawSource interface {
	RawRecords(ctx context.Context) ([]breadth.RawData, error)
	Latest(ctx context.Context) (breadth.RawData, error)
}

// ResultSink persists calculation results externally. Implementations
// key results by (date, config version).
type ResultSink interface {
	SaveResult(ctx context.Context, result breadth.Result) error
}

// BreadthService exposes the calculation engine's boundary operations.
type BreadthService struct {
	calculator *breadth.Calculator
	store      *configstore.Store
	monitor    *perf.Monitor
	source     RawSource
	sink       ResultSink
	logger     *slog.Logger
}

// NewBreadthService wires the engine behind its boundary surface.
// source and sink are optional; operations needing them fail cleanly
// when absent.
func NewBreadthService(calculator *breadth.Calculator, store *configstore.Store, monitor *perf.Monitor, source RawSource, sink ResultSink, logger *slog.Logger) *BreadthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreadthService{
		calculator: calculator,
		store:      store,
		monitor:    monitor,
		source:     source,
		sink:       sink,
		logger:     logger.With(slog.String("service", "breadth")),
	}
}

// CalculateRequest is the input to CalculateSingle.
type CalculateRequest struct {
	Data           breadth.RawData   `json:"data"`
	Historical     []breadth.RawData `json:"historical,omitempty"`
	Algorithm      string            `json:"algorithm,omitempty"`
	ConfigVersion  string            `json:"config_version,omitempty"`
	SaveToDatabase bool              `json:"save_to_database,omitempty"`
}

// CalculateSingle scores one raw record. An algorithm or config version
// override applies to this call only; the active configuration is not
// touched. With SaveToDatabase set the result is also written to the
// sink.
func (s *BreadthService) CalculateSingle(ctx context.Context, req CalculateRequest) (breadth.Result, error) {
	cfg, err := s.resolveConfig(req.Algorithm, req.ConfigVersion)
	if err != nil {
		return breadth.Result{}, err
	}

	var result breadth.Result
	if cfg != nil {
		result, err = s.calculator.CalculateWith(ctx, req.Data, cfg, req.Historical)
	} else {
		result, err = s.calculator.Calculate(ctx, req.Data, req.Historical)
	}
	if err != nil {
		return breadth.Result{}, err
	}

	if req.SaveToDatabase {
		if s.sink == nil {
			return breadth.Result{}, fmt.Errorf("save requested but no result sink is configured")
		}
		if err := s.sink.SaveResult(ctx, result); err != nil {
			return breadth.Result{}, fmt.Errorf("save result: %w", err)
		}
	}
	return result, nil
}

// CalculateHistorical scores every stored raw record inside the
// inclusive [start, end] range, sorted ascending. Per-record failures
// are reported alongside the successes.
func (s *BreadthService) CalculateHistorical(ctx context.Context, start, end *time.Time, algorithm string) (breadth.BatchOutcome, error) {
	if s.source == nil {
		return breadth.BatchOutcome{}, fmt.Errorf("historical calculation requires a raw source")
	}
	records, err := s.source.RawRecords(ctx)
	if err != nil {
		return breadth.BatchOutcome{}, fmt.Errorf("load raw records: %w", err)
	}

	cfg, err := s.resolveConfig(algorithm, "")
	if err != nil {
		return breadth.BatchOutcome{}, err
	}
	return s.calculator.CalculateHistoricalWith(ctx, records, breadth.DateRange{Start: start, End: end}, cfg)
}

// CalculateRealTime scores the latest stored raw record, with the rest
// of the corpus as history.
func (s *BreadthService) CalculateRealTime(ctx context.Context, algorithm string) (breadth.Result, error) {
	if s.source == nil {
		return breadth.Result{}, fmt.Errorf("real-time calculation requires a raw source")
	}
	latest, err := s.source.Latest(ctx)
	if err != nil {
		return breadth.Result{}, fmt.Errorf("load latest record: %w", err)
	}
	historical, err := s.source.RawRecords(ctx)
	if err != nil {
		return breadth.Result{}, fmt.Errorf("load raw records: %w", err)
	}
	return s.CalculateSingle(ctx, CalculateRequest{
		Data:       latest,
		Historical: historical,
		Algorithm:  algorithm,
	})
}

// SwitchAlgorithm changes the active configuration for subsequent
// calculations. Already-produced results are unaffected.
func (s *BreadthService) SwitchAlgorithm(ctx context.Context, algorithm string, custom *breadth.Config) (breadth.Config, error) {
	algo := breadth.Algorithm(algorithm)
	cfg, err := s.calculator.SwitchAlgorithm(algo, custom)
	if err != nil {
		return breadth.Config{}, err
	}
	s.logger.InfoContext(ctx, "active algorithm switched",
		slog.String("algorithm", string(algo)),
		slog.String("config_version", cfg.Version))
	return *cfg, nil
}

// ValidateData exposes standardization as a standalone pre-flight check.
func (s *BreadthService) ValidateData(ctx context.Context, raw breadth.RawData) breadth.ValidationReport {
	return s.calculator.ValidateData(raw)
}

// resolveConfig maps an optional algorithm name or config version to a
// configuration. Version beats algorithm; an empty override returns nil
// meaning "use the active configuration".
func (s *BreadthService) resolveConfig(algorithm, version string) (*breadth.Config, error) {
	if version != "" {
		return s.store.GetRef(version)
	}
	if algorithm == "" {
		return nil, nil
	}
	algo := breadth.Algorithm(algorithm)
	if !algo.IsValid() {
		return nil, &breadth.ValidationError{Field: "algorithm", Message: "unknown algorithm", Value: algorithm}
	}
	if cfg, ok := s.store.Default(algo); ok {
		return &cfg, nil
	}
	cfg := breadth.DefaultConfig(algo)
	return &cfg, nil
}

// CreateConfiguration persists a new immutable configuration version.
func (s *BreadthService) CreateConfiguration(ctx context.Context, algorithm string, params configstore.CreateParams) (string, error) {
	algo := breadth.Algorithm(algorithm)
	version, err := s.store.Create(algo, params)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "configuration created",
		slog.String("algorithm", algorithm),
		slog.String("version", version))
	return version, nil
}

// GetConfiguration returns one configuration version.
func (s *BreadthService) GetConfiguration(ctx context.Context, version string) (breadth.Config, error) {
	return s.store.Get(version)
}

// ListConfigurations returns configurations sorted by recency.
func (s *BreadthService) ListConfigurations(ctx context.Context, defaultsOnly bool) []breadth.Config {
	return s.store.List(defaultsOnly)
}

// UpdateConfiguration merges a partial correction into an existing
// version and revalidates it as a whole.
func (s *BreadthService) UpdateConfiguration(ctx context.Context, version string, params configstore.UpdateParams) (breadth.Config, error) {
	return s.store.Update(version, params)
}

// SetDefaultConfiguration atomically makes version the single default
// for its algorithm.
func (s *BreadthService) SetDefaultConfiguration(ctx context.Context, version string) (breadth.Config, error) {
	cfg, err := s.store.SetDefault(version)
	if err != nil {
		return breadth.Config{}, err
	}
	s.logger.InfoContext(ctx, "default configuration changed",
		slog.String("algorithm", string(cfg.Algorithm)),
		slog.String("version", version))
	return cfg, nil
}

// ExportConfigurations serializes the selected versions, or all of them.
func (s *BreadthService) ExportConfigurations(ctx context.Context, versions ...string) ([]byte, error) {
	return s.store.Export(versions...)
}

// ImportConfigurations validates and stores each record independently.
func (s *BreadthService) ImportConfigurations(ctx context.Context, payload []byte) (configstore.ImportOutcome, error) {
	outcome, err := s.store.Import(payload)
	if err != nil {
		return outcome, err
	}
	s.logger.InfoContext(ctx, "configurations imported",
		slog.Int("imported", outcome.Imported),
		slog.Int("rejected", len(outcome.Errors)))
	return outcome, nil
}

// GetPerformanceMetrics returns the append-only calculation log.
func (s *BreadthService) GetPerformanceMetrics(ctx context.Context) []perf.Metric {
	return s.monitor.Snapshot()
}

// ClearPerformanceMetrics purges the calculation log and returns the
// number of entries removed.
func (s *BreadthService) ClearPerformanceMetrics(ctx context.Context) int {
	return s.monitor.Clear()
}

// HealthCheckResult reports service readiness.
type HealthCheckResult struct {
	Status              string   `json:"status"`
	AlgorithmsAvailable []string `json:"algorithms_available"`
	ActiveAlgorithm     string   `json:"active_algorithm"`
	ConfigCount         int      `json:"config_count"`
}

// HealthCheck reports the engine's status and available algorithms.
func (s *BreadthService) HealthCheck(ctx context.Context) HealthCheckResult {
	algorithms := breadth.Algorithms()
	names := make([]string, len(algorithms))
	for i, a := range algorithms {
		names[i] = string(a)
	}
	return HealthCheckResult{
		Status:              "healthy",
		AlgorithmsAvailable: names,
		ActiveAlgorithm:     string(s.calculator.ActiveConfig().Algorithm),
		ConfigCount:         s.store.Len(),
	}
}
