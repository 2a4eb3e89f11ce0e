package breadth

import (
	"math"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// ValidateConfig performs comprehensive validation of a scoring configuration.
// Nothing partially valid is ever persisted: the store calls this before any
// write, and a custom formula is compiled (and cached) here exactly once.
func ValidateConfig(cfg *Config) error {
	if !cfg.Algorithm.IsValid() {
		return &ValidationError{Field: "algorithm", Message: "unknown algorithm type", Value: cfg.Algorithm}
	}

	if err := structValidator.Struct(cfg); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fe.Field(), Message: "failed " + fe.Tag() + " constraint", Value: fe.Value()}
		}
		return &ValidationError{Field: "config", Message: err.Error()}
	}

	if err := ValidateWeights(cfg.Weights); err != nil {
		return err
	}
	if err := ValidateIndicatorParams(cfg.Indicators); err != nil {
		return err
	}

	switch cfg.Algorithm {
	case AlgorithmCustom:
		if cfg.CustomFormula == "" {
			return &ValidationError{Field: "custom_formula", Message: "custom algorithm requires a formula"}
		}
		if _, err := cfg.Formula(); err != nil {
			return err
		}
	default:
		if cfg.CustomFormula != "" {
			return &ValidationError{Field: "custom_formula", Message: "formula is only allowed for the custom algorithm", Value: cfg.Algorithm}
		}
	}

	return nil
}

// ValidateWeights checks individual bounds and the sum constraint
func ValidateWeights(w Weights) error {
	for _, check := range []struct {
		name  string
		value float64
	}{
		{"primary_indicators", w.Primary},
		{"secondary_indicators", w.Secondary},
		{"reference_data", w.Reference},
		{"sector_data", w.Sector},
	} {
		if check.value < 0 || check.value > 1 {
			return &ValidationError{Field: check.name, Message: "weight must be between 0 and 1", Value: check.value}
		}
	}

	if sum := w.Sum(); math.Abs(sum-1.0) > WeightSumTolerance {
		return &ValidationError{Field: "weights", Message: "component weights must sum to 1.0", Value: sum}
	}
	return nil
}

// ValidateIndicatorParams checks the indicator parameter domains
func ValidateIndicatorParams(p IndicatorParams) error {
	if p.T2108Threshold < 0 || p.T2108Threshold > 100 {
		return &ValidationError{Field: "t2108_threshold", Message: "threshold must be between 0 and 100", Value: p.T2108Threshold}
	}
	if p.SectorCountThreshold <= 0 {
		return &ValidationError{Field: "sector_count_threshold", Message: "threshold must be positive", Value: p.SectorCountThreshold}
	}
	if p.MomentumLookbackDays <= 0 {
		return &ValidationError{Field: "momentum_lookback_days", Message: "lookback must be positive", Value: p.MomentumLookbackDays}
	}
	if p.ZScale < 0 {
		return &ValidationError{Field: "z_scale", Message: "z scale must not be negative", Value: p.ZScale}
	}
	return nil
}
