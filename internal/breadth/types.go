package breadth

import (
	"time"
)

// Algorithm identifies a scoring algorithm implementation
type Algorithm string

const (
	// AlgorithmSixFactor combines six weighted ratio/level sub-scores
	AlgorithmSixFactor Algorithm = "six_factor"
	// AlgorithmNormalized maps z-scores against a rolling historical distribution
	AlgorithmNormalized Algorithm = "normalized"
	// AlgorithmSectorWeighted blends sector participation into the reference component
	AlgorithmSectorWeighted Algorithm = "sector_weighted"
	// AlgorithmCustom evaluates a whitelisted arithmetic formula over the sub-scores
	AlgorithmCustom Algorithm = "custom"
)

// IsValid reports whether the algorithm is one of the registered types
func (a Algorithm) IsValid() bool {
	switch a {
	case AlgorithmSixFactor, AlgorithmNormalized, AlgorithmSectorWeighted, AlgorithmCustom:
		return true
	}
	return false
}

// Algorithms lists every registered algorithm type
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmSixFactor, AlgorithmNormalized, AlgorithmSectorWeighted, AlgorithmCustom}
}

// RawData is a single day's market breadth record as delivered by ingestion.
// Every indicator is optional: a nil pointer means "unknown", never zero.
// The record is read-only to the engine; recovery produces amended copies.
type RawData struct {
	Date string `json:"date"` // ISO day, e.g. "2024-03-15", unique per day

	AdvancingIssues *float64 `json:"advancing_issues,omitempty"`
	DecliningIssues *float64 `json:"declining_issues,omitempty"`
	NewHighs        *float64 `json:"new_highs,omitempty"`
	NewLows         *float64 `json:"new_lows,omitempty"`
	UpVolume        *float64 `json:"up_volume,omitempty"`
	DownVolume      *float64 `json:"down_volume,omitempty"`

	StocksUp4PctDaily        *float64 `json:"stocks_up_4pct_daily,omitempty"`
	StocksDown4PctDaily      *float64 `json:"stocks_down_4pct_daily,omitempty"`
	StocksUp25PctQuarterly   *float64 `json:"stocks_up_25pct_quarterly,omitempty"`
	StocksDown25PctQuarterly *float64 `json:"stocks_down_25pct_quarterly,omitempty"`
	StocksUp25PctMonthly     *float64 `json:"stocks_up_25pct_monthly,omitempty"`
	StocksDown25PctMonthly   *float64 `json:"stocks_down_25pct_monthly,omitempty"`
	StocksUp50PctMonthly     *float64 `json:"stocks_up_50pct_monthly,omitempty"`
	StocksDown50PctMonthly   *float64 `json:"stocks_down_50pct_monthly,omitempty"`
	StocksUp13Pct34Days      *float64 `json:"stocks_up_13pct_34days,omitempty"`
	StocksDown13Pct34Days    *float64 `json:"stocks_down_13pct_34days,omitempty"`

	T2108          *float64 `json:"t2108,omitempty"`       // percent of stocks above 40-day MA, 0..100
	SP500Level     string   `json:"sp500_level,omitempty"` // loosely formatted, e.g. "5,847.25"
	WordenUniverse *float64 `json:"worden_universe,omitempty"`

	// Sectors maps sector name to its breadth percentage (up to 11 sectors)
	Sectors map[string]float64 `json:"sectors,omitempty"`

	// SourceQuality is the ingestion-side quality score, if any
	SourceQuality *float64 `json:"source_quality,omitempty"`

	// Provenance marks fields that were reconstructed by the recovery pass
	// ("recovered") rather than observed. Observed fields carry no entry.
	Provenance map[string]string `json:"provenance,omitempty"`
}

// Day parses the record's date. The bool is false when the date is
// absent or not an ISO calendar day.
func (r RawData) Day() (time.Time, bool) {
	t, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RecoveredFields returns the names of fields tagged as recovered
func (r RawData) RecoveredFields() []string {
	var fields []string
	for name, source := range r.Provenance {
		if source == ProvenanceRecovered {
			fields = append(fields, name)
		}
	}
	return fields
}

// Provenance tags for RawData fields
const (
	ProvenanceObserved  = "observed"
	ProvenanceRecovered = "recovered"
)

// IndicatorSet is the canonical numeric view of a raw record after
// standardization. Fields listed in MissingFields were defaulted to zero
// because neither the primary source field nor a fallback was available.
type IndicatorSet struct {
	Date time.Time `json:"date"`

	AdvancingIssues float64 `json:"advancing_issues"`
	DecliningIssues float64 `json:"declining_issues"`
	NewHighs        float64 `json:"new_highs"`
	NewLows         float64 `json:"new_lows"`
	UpVolume        float64 `json:"up_volume"`
	DownVolume      float64 `json:"down_volume"`

	Up4Daily     float64 `json:"up_4pct_daily"`
	Down4Daily   float64 `json:"down_4pct_daily"`
	Up25Quarter  float64 `json:"up_25pct_quarterly"`
	Down25Quarter float64 `json:"down_25pct_quarterly"`
	Up25Month    float64 `json:"up_25pct_monthly"`
	Down25Month  float64 `json:"down_25pct_monthly"`
	Up50Month    float64 `json:"up_50pct_monthly"`
	Down50Month  float64 `json:"down_50pct_monthly"`
	Up13In34     float64 `json:"up_13pct_34days"`
	Down13In34   float64 `json:"down_13pct_34days"`

	T2108          float64 `json:"t2108"`
	SP500          float64 `json:"sp500"`
	WordenUniverse float64 `json:"worden_universe"`

	// Sectors holds the populated sector percentages, in stable name order
	Sectors []float64 `json:"sectors,omitempty"`

	// MissingFields names every canonical field that had no usable source
	MissingFields []string `json:"missing_fields,omitempty"`
	// FallbackFields names fields filled from a substitute source
	FallbackFields []string `json:"fallback_fields,omitempty"`
	// RecoveredFields names fields whose raw value was reconstructed upstream
	RecoveredFields []string `json:"recovered_fields,omitempty"`

	// DataQuality = max(0, 100 - 10*len(MissingFields))
	DataQuality float64 `json:"data_quality"`
}

// Missing reports whether the named canonical field was defaulted
func (s IndicatorSet) Missing(field string) bool {
	for _, f := range s.MissingFields {
		if f == field {
			return true
		}
	}
	return false
}

// Canonical field names recorded in MissingFields / FallbackFields
const (
	FieldAdvancingIssues = "advancing_issues"
	FieldDecliningIssues = "declining_issues"
	FieldNewHighs        = "new_highs"
	FieldNewLows         = "new_lows"
	FieldUpVolume        = "up_volume"
	FieldDownVolume      = "down_volume"
	FieldUp4Daily        = "stocks_up_4pct_daily"
	FieldDown4Daily      = "stocks_down_4pct_daily"
	FieldUp25Quarter     = "stocks_up_25pct_quarterly"
	FieldDown25Quarter   = "stocks_down_25pct_quarterly"
	FieldUp25Month       = "stocks_up_25pct_monthly"
	FieldDown25Month     = "stocks_down_25pct_monthly"
	FieldUp50Month       = "stocks_up_50pct_monthly"
	FieldDown50Month     = "stocks_down_50pct_monthly"
	FieldUp13In34        = "stocks_up_13pct_34days"
	FieldDown13In34      = "stocks_down_13pct_34days"
	FieldT2108           = "t2108"
	FieldSP500           = "sp500_level"
	FieldWordenUniverse  = "worden_universe"
	FieldSectors         = "sectors"
)

// Weights distributes the composite score across the four components.
// The four weights must sum to 1.0 within WeightSumTolerance.
type Weights struct {
	Primary   float64 `json:"primary_indicators" yaml:"primary_indicators" validate:"gte=0,lte=1"`
	Secondary float64 `json:"secondary_indicators" yaml:"secondary_indicators" validate:"gte=0,lte=1"`
	Reference float64 `json:"reference_data" yaml:"reference_data" validate:"gte=0,lte=1"`
	Sector    float64 `json:"sector_data" yaml:"sector_data" validate:"gte=0,lte=1"`
}

// Sum returns the total of all four weights
func (w Weights) Sum() float64 {
	return w.Primary + w.Secondary + w.Reference + w.Sector
}

// IndicatorParams tunes per-algorithm indicator handling
type IndicatorParams struct {
	T2108Threshold       float64 `json:"t2108_threshold" yaml:"t2108_threshold" validate:"gte=0,lte=100"`
	SectorCountThreshold int     `json:"sector_count_threshold" yaml:"sector_count_threshold" validate:"gt=0"`
	VolatilityAdjustment bool    `json:"volatility_adjustment" yaml:"volatility_adjustment"`
	MomentumLookbackDays int     `json:"momentum_lookback_days" yaml:"momentum_lookback_days" validate:"gt=0"`
	RatioSmoothing       bool    `json:"ratio_smoothing" yaml:"ratio_smoothing"`
	// ZScale is the z-to-score multiplier used by the normalized algorithm
	ZScale float64 `json:"z_scale,omitempty" yaml:"z_scale,omitempty"`
}

// Config is one immutable version of a scoring configuration.
// Mutating a version already handed out is never allowed; corrections go
// through the store, new semantics get a new version.
type Config struct {
	Version       string          `json:"version" validate:"required"`
	Algorithm     Algorithm       `json:"algorithm" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description,omitempty"`
	Weights       Weights         `json:"weights"`
	Indicators    IndicatorParams `json:"indicators"`
	CustomFormula string          `json:"custom_formula,omitempty"`
	IsDefault     bool            `json:"is_default"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// compiled caches the parsed custom formula, populated at validation time
	compiled *Formula
}

// WeightSumTolerance is the allowed deviation of the weight sum from 1.0
const WeightSumTolerance = 0.001

// DefaultWeights returns the standard component weight distribution
func DefaultWeights() Weights {
	return Weights{Primary: 0.40, Secondary: 0.30, Reference: 0.20, Sector: 0.10}
}

// DefaultIndicatorParams returns the standard indicator parameters
func DefaultIndicatorParams() IndicatorParams {
	return IndicatorParams{
		T2108Threshold:       50,
		SectorCountThreshold: 3,
		VolatilityAdjustment: false,
		MomentumLookbackDays: 5,
		RatioSmoothing:       false,
		ZScale:               DefaultZScale,
	}
}

// DefaultZScale is the default z-to-score multiplier for the normalized algorithm
const DefaultZScale = 10.0

// MarketPhase classifies the broad market regime behind a score
type MarketPhase string

const (
	PhaseBull       MarketPhase = "BULL"
	PhaseBear       MarketPhase = "BEAR"
	PhaseNeutral    MarketPhase = "NEUTRAL"
	PhaseTransition MarketPhase = "TRANSITION"
)

// MarketStrength grades how far the score sits from neutral
type MarketStrength string

const (
	StrengthWeak     MarketStrength = "WEAK"
	StrengthModerate MarketStrength = "MODERATE"
	StrengthStrong   MarketStrength = "STRONG"
	StrengthExtreme  MarketStrength = "EXTREME"
)

// TrendDirection is the day-over-day direction of the score
type TrendDirection string

const (
	TrendUp       TrendDirection = "UP"
	TrendDown     TrendDirection = "DOWN"
	TrendSideways TrendDirection = "SIDEWAYS"
)

// MarketCondition is the coarse classification derived from a score
// and its trajectory
type MarketCondition struct {
	Phase          MarketPhase    `json:"phase"`
	Strength       MarketStrength `json:"strength"`
	TrendDirection TrendDirection `json:"trend_direction"`
}

// Components are the weighted sub-scores behind a composite score, each 0..100
type Components struct {
	Primary   float64 `json:"primary_score"`
	Secondary float64 `json:"secondary_score"`
	Reference float64 `json:"reference_score"`
	Sector    float64 `json:"sector_score"`
}

// Metadata records how a result was produced
type Metadata struct {
	AlgorithmUsed     Algorithm     `json:"algorithm_used"`
	ConfigVersion     string        `json:"config_version"`
	CalculationTime   time.Duration `json:"calculation_time"`
	DataQuality       float64       `json:"data_quality"`
	MissingIndicators []string      `json:"missing_indicators,omitempty"`
	Warnings          []string      `json:"warnings,omitempty"`
}

// Result is one day's composite breadth score. Immutable once produced;
// recomputing a day replaces the result rather than patching it.
type Result struct {
	Date            time.Time       `json:"date"`
	Score           float64         `json:"score"`            // 0..100
	NormalizedScore float64         `json:"normalized_score"` // 0..100
	Confidence      float64         `json:"confidence"`       // 0.1..1.0
	Components      Components      `json:"components"`
	MarketCondition MarketCondition `json:"market_condition"`
	Metadata        Metadata        `json:"metadata"`
}

// scoreOutput is what an algorithm implementation hands back to the calculator
type scoreOutput struct {
	score             float64
	components        Components
	primaryRatio      float64 // up/(up+down) of the primary 4% counts, 1.0 when undefined
	confidencePenalty float64
	warnings          []string
}
