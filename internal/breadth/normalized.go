package breadth

import (
	"fmt"
	"math"
)

// minHistoryForZScore is the minimum number of historical observations an
// indicator needs before its rolling distribution is considered usable.
const minHistoryForZScore = 2

// scoreNormalized converts each available indicator to a z-score against its
// rolling historical distribution and maps the weighted mean z onto 0..100.
// Indicators with too little history fall back to the six_factor ratio
// mapping, and every such fallback lowers confidence.
func scoreNormalized(s IndicatorSet, cfg *Config, historical []IndicatorSet) (scoreOutput, error) {
	sub := computeSubScores(s, cfg, historical)

	zScale := cfg.Indicators.ZScale
	if zScale == 0 {
		zScale = DefaultZScale
	}

	type indicator struct {
		name    string
		weight  float64
		current float64
		series  []float64
	}
	indicators := []indicator{
		{"primary_ratio", cfg.Weights.Primary, RatioScore(s.Up4Daily, s.Down4Daily), primaryRatioSeries(historical)},
		{"secondary_ratio", cfg.Weights.Secondary, sub.secondary, secondarySeries(historical)},
		{"sp500", cfg.Weights.Reference, s.SP500, sp500Series(historical)},
		{"t2108", cfg.Weights.Sector, s.T2108, t2108Series(historical)},
	}

	var (
		weightedZ   float64
		totalWeight float64
		comps       [4]float64
		penalty     = sub.penalty
		warnings    = sub.warnings
	)
	fallbackScores := [4]float64{sub.primary, sub.secondary, sub.reference, sub.t2108}

	for i, ind := range indicators {
		var z float64
		if len(ind.series) >= minHistoryForZScore {
			m, sd := meanStddev(ind.series)
			if sd > 0 {
				z = (ind.current - m) / sd
			}
		} else {
			// Not enough distribution to normalize against: reuse the
			// six_factor mapping expressed as a pseudo z-score.
			z = (fallbackScores[i] - 50) / zScale
			penalty += FallbackPenalty
			warnings = append(warnings, fmt.Sprintf("%s: insufficient history for z-score, ratio fallback used", ind.name))
		}
		comps[i] = clampScore(50 + zScale*z)
		weightedZ += ind.weight * z
		totalWeight += ind.weight
	}
	if totalWeight > 0 {
		weightedZ /= totalWeight
	}

	score := clampScore(50 + zScale*weightedZ)
	score, warnings = applyVolatilityDamping(score, s, cfg, warnings)

	return scoreOutput{
		score: clampScore(score),
		components: Components{
			Primary:   comps[0],
			Secondary: comps[1],
			Reference: comps[2],
			Sector:    comps[3],
		},
		primaryRatio:      sub.primaryRatio,
		confidencePenalty: penalty,
		warnings:          warnings,
	}, nil
}

func meanStddev(series []float64) (float64, float64) {
	m := mean(series)
	sumSq := 0.0
	for _, v := range series {
		sumSq += (v - m) * (v - m)
	}
	return m, math.Sqrt(sumSq / float64(len(series)))
}

func primaryRatioSeries(historical []IndicatorSet) []float64 {
	var out []float64
	for _, h := range historical {
		if h.Missing(FieldUp4Daily) && h.Missing(FieldDown4Daily) {
			continue
		}
		out = append(out, RatioScore(h.Up4Daily, h.Down4Daily))
	}
	return out
}

func secondarySeries(historical []IndicatorSet) []float64 {
	var out []float64
	for _, h := range historical {
		if h.Missing(FieldUp25Quarter) && h.Missing(FieldDown25Quarter) {
			continue
		}
		out = append(out, RatioScore(h.Up25Quarter, h.Down25Quarter))
	}
	return out
}

func sp500Series(historical []IndicatorSet) []float64 {
	var out []float64
	for _, h := range historical {
		if h.Missing(FieldSP500) {
			continue
		}
		out = append(out, h.SP500)
	}
	return out
}

func t2108Series(historical []IndicatorSet) []float64 {
	var out []float64
	for _, h := range historical {
		if h.Missing(FieldT2108) {
			continue
		}
		out = append(out, h.T2108)
	}
	return out
}
