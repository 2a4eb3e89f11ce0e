package breadth

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync/atomic"
	"time"
)

// Observer receives a notification for every completed calculation.
// The performance monitor implements it; nil observers are allowed.
type Observer interface {
	Observe(algorithm Algorithm, took time.Duration, records int)
}

// Calculator orchestrates standardize -> select algorithm -> score ->
// classify -> stamp metadata. Each call reads only its arguments plus the
// currently active immutable configuration version; switching the active
// algorithm reassigns a pointer and never mutates a version already handed
// to in-flight work.
type Calculator struct {
	active     atomic.Pointer[Config]
	batchLimit atomic.Int32
	observer   Observer
	logger     *slog.Logger
}

// NewCalculator creates a calculator with the given starting configuration
func NewCalculator(cfg *Config, observer Observer, logger *slog.Logger) (*Calculator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		def := DefaultConfig(AlgorithmSixFactor)
		cfg = &def
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate starting configuration: %w", err)
	}

	c := &Calculator{observer: observer, logger: logger}
	c.active.Store(cfg)
	return c, nil
}

// SetBatchConcurrency bounds the workers used for historical batches.
// Values below 1 restore the default.
func (c *Calculator) SetBatchConcurrency(n int) {
	c.batchLimit.Store(int32(n))
}

// BatchConcurrency returns the effective historical batch worker bound
func (c *Calculator) BatchConcurrency() int {
	if n := int(c.batchLimit.Load()); n > 0 {
		return n
	}
	return defaultBatchConcurrency
}

// DefaultConfig builds an unpersisted configuration with standard parameters
func DefaultConfig(algorithm Algorithm) Config {
	now := time.Now().UTC()
	return Config{
		Version:    string(algorithm) + "_default",
		Algorithm:  algorithm,
		Name:       "Default " + string(algorithm),
		Weights:    DefaultWeights(),
		Indicators: DefaultIndicatorParams(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ActiveConfig returns the configuration subsequent calculations will use
func (c *Calculator) ActiveConfig() *Config {
	return c.active.Load()
}

// SwitchAlgorithm changes the active configuration pointer for subsequent
// calls. It does not retroactively affect already-produced results and does
// not persist anything by itself.
func (c *Calculator) SwitchAlgorithm(algorithm Algorithm, custom *Config) (*Config, error) {
	var cfg Config
	if custom != nil {
		cfg = *custom
		cfg.Algorithm = algorithm
	} else {
		cfg = DefaultConfig(algorithm)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	c.active.Store(&cfg)
	c.logger.Info("active algorithm switched",
		slog.String("algorithm", string(algorithm)),
		slog.String("config_version", cfg.Version))
	return &cfg, nil
}

// Calculate computes the breadth score for one raw record using the active
// configuration. Historical records, when provided, feed momentum, trend and
// z-score context; they are standardized internally and records that fail
// standardization are skipped.
func (c *Calculator) Calculate(ctx context.Context, raw RawData, historical []RawData) (Result, error) {
	return c.CalculateWith(ctx, raw, c.active.Load(), historical)
}

// CalculateWith computes the breadth score under an explicit configuration
// version, bypassing the active pointer.
func (c *Calculator) CalculateWith(ctx context.Context, raw RawData, cfg *Config, historical []RawData) (Result, error) {
	start := time.Now()

	s, err := Standardize(raw)
	if err != nil {
		return Result{}, err
	}

	history := c.standardizeHistory(ctx, historical, s.Date)
	result, err := c.score(s, cfg, history)
	if err != nil {
		return Result{}, err
	}

	took := time.Since(start)
	result.Metadata.CalculationTime = took
	if c.observer != nil {
		c.observer.Observe(cfg.Algorithm, took, 1)
	}

	c.logger.DebugContext(ctx, "breadth score calculated",
		slog.String("date", raw.Date),
		slog.String("algorithm", string(cfg.Algorithm)),
		slog.Float64("score", result.Score),
		slog.Float64("confidence", result.Confidence),
		slog.Duration("took", took))

	return result, nil
}

// score runs the pure scoring path for an already standardized record
func (c *Calculator) score(s IndicatorSet, cfg *Config, history []IndicatorSet) (Result, error) {
	impl, ok := registry[cfg.Algorithm]
	if !ok {
		return Result{}, &ValidationError{Field: "algorithm", Message: "unknown algorithm type", Value: cfg.Algorithm}
	}

	out, err := impl(s, cfg, history)
	if err != nil {
		return Result{}, err
	}
	if math.IsNaN(out.score) || math.IsInf(out.score, 0) {
		return Result{}, &CalculationError{Date: s.Date.Format("2006-01-02"), Err: fmt.Errorf("non-finite score produced")}
	}

	prevScore := c.previousScore(s.Date, cfg, history)

	return Result{
		Date:            s.Date,
		Score:           out.score,
		NormalizedScore: out.score,
		Confidence:      ConfidenceFrom(out.confidencePenalty),
		Components:      out.components,
		MarketCondition: ClassifyMarket(out.score, out.primaryRatio, prevScore),
		Metadata: Metadata{
			AlgorithmUsed:     cfg.Algorithm,
			ConfigVersion:     cfg.Version,
			DataQuality:       s.DataQuality,
			MissingIndicators: s.MissingFields,
			Warnings:          out.warnings,
		},
	}, nil
}

// previousScore computes the prior session's score for trend and transition
// classification. Only the raw algorithm output is needed, so the lookback is
// a single extra scoring pass with no classification of its own.
func (c *Calculator) previousScore(date time.Time, cfg *Config, history []IndicatorSet) *float64 {
	idx := latestIndexAtOrBefore(history, date.AddDate(0, 0, -1))
	if idx < 0 {
		return nil
	}
	impl, ok := registry[cfg.Algorithm]
	if !ok {
		return nil
	}
	out, err := impl(history[idx], cfg, history[:idx])
	if err != nil || math.IsNaN(out.score) {
		return nil
	}
	return &out.score
}

// standardizeHistory converts raw history into sorted indicator sets,
// dropping records dated at or after the target day and records that fail
// standardization.
func (c *Calculator) standardizeHistory(ctx context.Context, historical []RawData, before time.Time) []IndicatorSet {
	if len(historical) == 0 {
		return nil
	}
	sets := make([]IndicatorSet, 0, len(historical))
	for _, raw := range historical {
		s, err := Standardize(raw)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping invalid historical record",
				slog.String("date", raw.Date),
				slog.String("error", err.Error()))
			continue
		}
		if !s.Date.Before(before) {
			continue
		}
		sets = append(sets, s)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].Date.Before(sets[j].Date) })
	return sets
}

// ValidationReport is the outcome of a standalone pre-flight data check
type ValidationReport struct {
	IsValid bool     `json:"is_valid"`
	Quality float64  `json:"score"`
	Errors  []string `json:"errors,omitempty"`
	Missing []string `json:"missing_fields,omitempty"`
}

// ValidateData exposes standardization as a standalone pre-flight check
// without producing a score.
func (c *Calculator) ValidateData(raw RawData) ValidationReport {
	s, err := Standardize(raw)
	if err != nil {
		return ValidationReport{IsValid: false, Errors: []string{err.Error()}}
	}
	return ValidationReport{IsValid: true, Quality: s.DataQuality, Missing: s.MissingFields}
}
