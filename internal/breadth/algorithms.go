package breadth

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Confidence bookkeeping. Confidence starts at 1.0 and is decremented by a
// fixed penalty per missing required indicator group and per fallback or
// recovered field, floored so results stay orderable.
const (
	ConfidenceFloor          = 0.1
	MissingGroupPenalty      = 0.05
	FallbackPenalty          = 0.10
	RecoveredFieldPenalty    = 0.10
	volatilityDampingFactor  = 0.8
	momentumPrimaryInfluence = 0.25
)

// RatioScore maps an up/down pair onto 0..100. The mapping is monotonic in
// the up count and defined as exactly 50 when both counts are zero; division
// by zero is not an error condition anywhere in the engine.
func RatioScore(up, down float64) float64 {
	total := up + down
	if total == 0 {
		return 50
	}
	return 100 * up / total
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Min(100, math.Max(0, v))
}

// algorithmFunc is a pure scoring function: standardized data plus a
// configuration (and optional standardized history, ascending by date)
// in, score breakdown out.
type algorithmFunc func(s IndicatorSet, cfg *Config, historical []IndicatorSet) (scoreOutput, error)

// registry maps algorithm types to their implementations
var registry = map[Algorithm]algorithmFunc{
	AlgorithmSixFactor:      scoreSixFactor,
	AlgorithmNormalized:     scoreNormalized,
	AlgorithmSectorWeighted: scoreSectorWeighted,
	AlgorithmCustom:         scoreCustom,
}

// subScores holds the intermediate values shared by six_factor,
// sector_weighted and custom, plus the bookkeeping they generate.
type subScores struct {
	primary      float64 // 4% ratio score with momentum and smoothing applied
	secondary    float64 // mean of the quarterly/monthly/13-in-34 group ratios
	reference    float64 // S&P 500 trend score
	t2108        float64 // T2108 level score
	sectorMean   float64 // mean of populated sector percentages
	sectorCount  int
	momentum     float64 // momentum score around 50
	primaryRatio float64 // up/(up+down), 1.0 when undefined

	penalty  float64
	warnings []string
}

// computeSubScores derives every intermediate value the weighted algorithms
// combine. All degradation paths accumulate warnings and confidence penalty
// here so the algorithms themselves stay pure arithmetic.
func computeSubScores(s IndicatorSet, cfg *Config, historical []IndicatorSet) subScores {
	out := subScores{momentum: 50, primaryRatio: 1}

	// Primary 4% ratio
	primaryMissing := s.Missing(FieldUp4Daily) && s.Missing(FieldDown4Daily)
	if primaryMissing {
		out.primary = 50
		out.penalty += MissingGroupPenalty
		out.warnings = append(out.warnings, "primary 4% breadth counts unavailable")
	} else {
		out.primary = RatioScore(s.Up4Daily, s.Down4Daily)
		if total := s.Up4Daily + s.Down4Daily; total > 0 {
			out.primaryRatio = s.Up4Daily / math.Max(s.Down4Daily, 1e-9)
		}
		for _, f := range s.FallbackFields {
			if f == FieldUp4Daily || f == FieldDown4Daily {
				out.penalty += FallbackPenalty
				out.warnings = append(out.warnings, "primary counts substituted from advance/decline issues")
				break
			}
		}
	}

	// Momentum: rate of change of the primary ratio over the lookback window
	if past, ok := ratioScoreAt(historical, s.Date.AddDate(0, 0, -cfg.Indicators.MomentumLookbackDays)); ok {
		delta := out.primary - past
		out.momentum = clampScore(50 + delta)
		out.primary = clampScore(out.primary + delta*momentumPrimaryInfluence)
	} else {
		out.warnings = append(out.warnings, "momentum unavailable: insufficient historical data")
	}

	// Optional smoothing against the previous session's primary ratio
	if cfg.Indicators.RatioSmoothing {
		if prev, ok := latestRatioScoreBefore(historical, s.Date); ok {
			out.primary = clampScore(0.7*out.primary + 0.3*prev)
		}
	}

	// Secondary groups: quarterly 25%, monthly 25%/50%, 13%-in-34-days
	var groups []float64
	if !s.Missing(FieldUp25Quarter) || !s.Missing(FieldDown25Quarter) {
		groups = append(groups, RatioScore(s.Up25Quarter, s.Down25Quarter))
	}
	if !s.Missing(FieldUp25Month) || !s.Missing(FieldDown25Month) {
		groups = append(groups, RatioScore(s.Up25Month, s.Down25Month))
	}
	if !s.Missing(FieldUp50Month) || !s.Missing(FieldDown50Month) {
		groups = append(groups, RatioScore(s.Up50Month, s.Down50Month))
	}
	if !s.Missing(FieldUp13In34) || !s.Missing(FieldDown13In34) {
		groups = append(groups, RatioScore(s.Up13In34, s.Down13In34))
	}
	switch {
	case len(groups) > 0:
		out.secondary = mean(groups)
		for _, f := range s.FallbackFields {
			if f == FieldUp25Month || f == FieldDown25Month {
				out.penalty += FallbackPenalty
				out.warnings = append(out.warnings, "monthly 25% counts substituted from quarterly series")
				break
			}
		}
	case !s.Missing(FieldAdvancingIssues) || !s.Missing(FieldDecliningIssues):
		out.secondary = RatioScore(s.AdvancingIssues, s.DecliningIssues)
		out.penalty += FallbackPenalty
		out.warnings = append(out.warnings, "secondary groups substituted from advance/decline issues")
	default:
		out.secondary = 50
		out.penalty += MissingGroupPenalty
		out.warnings = append(out.warnings, "secondary breadth groups unavailable")
	}

	// T2108 level
	if s.Missing(FieldT2108) {
		out.t2108 = 50
		out.penalty += MissingGroupPenalty
		out.warnings = append(out.warnings, "t2108 unavailable")
	} else {
		out.t2108 = s.T2108
	}

	// Reference: S&P 500 trend over the lookback window
	if s.Missing(FieldSP500) {
		out.reference = 50
		out.penalty += MissingGroupPenalty
		out.warnings = append(out.warnings, "sp500 level unavailable")
	} else if past, ok := sp500At(historical, s.Date.AddDate(0, 0, -cfg.Indicators.MomentumLookbackDays)); ok && past > 0 {
		pct := (s.SP500 - past) / past
		out.reference = clampScore(50 + pct*1000)
	} else {
		out.reference = 50
		out.warnings = append(out.warnings, "sp500 trend unavailable: insufficient historical data")
	}

	// Sector participation
	out.sectorCount = len(s.Sectors)
	if out.sectorCount > 0 {
		out.sectorMean = mean(s.Sectors)
	}

	// Recovered raw fields carry less weight than observed ones
	for range s.RecoveredFields {
		out.penalty += RecoveredFieldPenalty
	}
	if len(s.RecoveredFields) > 0 {
		out.warnings = append(out.warnings, fmt.Sprintf("%d field(s) reconstructed by recovery", len(s.RecoveredFields)))
	}

	return out
}

// scoreSixFactor combines the six weighted sub-scores. The component slots
// map primary -> 4% ratio (momentum folded in), secondary -> group ratios,
// reference -> S&P trend, sector -> T2108 internals level.
func scoreSixFactor(s IndicatorSet, cfg *Config, historical []IndicatorSet) (scoreOutput, error) {
	sub := computeSubScores(s, cfg, historical)

	comps := Components{
		Primary:   sub.primary,
		Secondary: sub.secondary,
		Reference: sub.reference,
		Sector:    sub.t2108,
	}
	score := combineComponents(comps, cfg.Weights)
	score, warnings := applyVolatilityDamping(score, s, cfg, sub.warnings)

	return scoreOutput{
		score:             clampScore(score),
		components:        comps,
		primaryRatio:      sub.primaryRatio,
		confidencePenalty: sub.penalty,
		warnings:          warnings,
	}, nil
}

// scoreSectorWeighted is six_factor with the sector slot carrying actual
// sector participation. Below the configured population threshold the sector
// component is zero and a warning is recorded instead of guessing.
func scoreSectorWeighted(s IndicatorSet, cfg *Config, historical []IndicatorSet) (scoreOutput, error) {
	sub := computeSubScores(s, cfg, historical)

	comps := Components{
		Primary:   sub.primary,
		Secondary: sub.secondary,
		Reference: sub.reference,
	}
	if sub.sectorCount >= cfg.Indicators.SectorCountThreshold {
		comps.Sector = clampScore(sub.sectorMean)
		// Augment the reference trend with cross-sector participation
		comps.Reference = clampScore(0.5*sub.reference + 0.5*comps.Sector)
	} else {
		comps.Sector = 0
		sub.warnings = append(sub.warnings, fmt.Sprintf(
			"sector data below threshold: %d populated, %d required", sub.sectorCount, cfg.Indicators.SectorCountThreshold))
	}

	score := combineComponents(comps, cfg.Weights)
	score, warnings := applyVolatilityDamping(score, s, cfg, sub.warnings)

	return scoreOutput{
		score:             clampScore(score),
		components:        comps,
		primaryRatio:      sub.primaryRatio,
		confidencePenalty: sub.penalty,
		warnings:          warnings,
	}, nil
}

// scoreCustom evaluates the configuration's compiled formula over the
// six_factor intermediate values.
func scoreCustom(s IndicatorSet, cfg *Config, historical []IndicatorSet) (scoreOutput, error) {
	formula, err := cfg.Formula()
	if err != nil {
		return scoreOutput{}, err
	}

	sub := computeSubScores(s, cfg, historical)
	comps := Components{
		Primary:   sub.primary,
		Secondary: sub.secondary,
		Reference: sub.reference,
		Sector:    sub.t2108,
	}
	raw := formula.Eval(FormulaVars{
		Primary:   sub.primary,
		Secondary: sub.secondary,
		Reference: sub.reference,
		Sector:    sub.t2108,
		Momentum:  sub.momentum,
	})

	return scoreOutput{
		score:             clampScore(raw),
		components:        comps,
		primaryRatio:      sub.primaryRatio,
		confidencePenalty: sub.penalty,
		warnings:          sub.warnings,
	}, nil
}

func combineComponents(c Components, w Weights) float64 {
	return w.Primary*c.Primary + w.Secondary*c.Secondary + w.Reference*c.Reference + w.Sector*c.Sector
}

// applyVolatilityDamping pulls the score toward neutral when volatility
// adjustment is enabled but the volume inputs backing it are unavailable.
func applyVolatilityDamping(score float64, s IndicatorSet, cfg *Config, warnings []string) (float64, []string) {
	if !cfg.Indicators.VolatilityAdjustment {
		return score, warnings
	}
	if s.Missing(FieldUpVolume) || s.Missing(FieldDownVolume) {
		warnings = append(warnings, "volatility inputs unavailable: score dampened toward neutral")
		return 50 + (score-50)*volatilityDampingFactor, warnings
	}
	return score, warnings
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// ratioScoreAt returns the primary ratio score of the latest historical set
// dated at or before target.
func ratioScoreAt(historical []IndicatorSet, target time.Time) (float64, bool) {
	idx := latestIndexAtOrBefore(historical, target)
	if idx < 0 {
		return 0, false
	}
	h := historical[idx]
	if h.Missing(FieldUp4Daily) && h.Missing(FieldDown4Daily) {
		return 0, false
	}
	return RatioScore(h.Up4Daily, h.Down4Daily), true
}

// latestRatioScoreBefore returns the primary ratio score of the most recent
// historical set strictly before target.
func latestRatioScoreBefore(historical []IndicatorSet, target time.Time) (float64, bool) {
	idx := latestIndexAtOrBefore(historical, target.AddDate(0, 0, -1))
	if idx < 0 {
		return 0, false
	}
	h := historical[idx]
	if h.Missing(FieldUp4Daily) && h.Missing(FieldDown4Daily) {
		return 0, false
	}
	return RatioScore(h.Up4Daily, h.Down4Daily), true
}

// sp500At returns the S&P level of the latest historical set dated at or
// before target.
func sp500At(historical []IndicatorSet, target time.Time) (float64, bool) {
	idx := latestIndexAtOrBefore(historical, target)
	if idx < 0 {
		return 0, false
	}
	h := historical[idx]
	if h.Missing(FieldSP500) {
		return 0, false
	}
	return h.SP500, true
}

// latestIndexAtOrBefore finds the last entry dated at or before target.
// The historical slice must be sorted ascending by date.
func latestIndexAtOrBefore(historical []IndicatorSet, target time.Time) int {
	idx := sort.Search(len(historical), func(i int) bool {
		return historical[i].Date.After(target)
	})
	return idx - 1
}
