package breadth

import "math"

// sidewaysBand is the score delta treated as no trend either way
const sidewaysBand = 1.0

// ClassifyMarket derives the coarse market condition from a score, the
// primary up/down ratio, and the previous session's score when known.
func ClassifyMarket(score, primaryRatio float64, prevScore *float64) MarketCondition {
	cond := MarketCondition{
		Phase:          classifyPhase(score, primaryRatio, prevScore),
		Strength:       classifyStrength(score),
		TrendDirection: classifyTrend(score, prevScore),
	}
	return cond
}

func classifyPhase(score, primaryRatio float64, prevScore *float64) MarketPhase {
	switch {
	case score > 60 && primaryRatio > 1:
		return PhaseBull
	case score < 40 && primaryRatio < 1:
		return PhaseBear
	case prevScore != nil && crossesNeutral(*prevScore, score):
		return PhaseTransition
	default:
		return PhaseNeutral
	}
}

func crossesNeutral(prev, current float64) bool {
	return (prev < 50 && current >= 50) || (prev > 50 && current <= 50)
}

func classifyStrength(score float64) MarketStrength {
	switch {
	case score > 85 || score < 15:
		return StrengthExtreme
	case score > 70 || score < 30:
		return StrengthStrong
	case score > 55 || score < 45:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

func classifyTrend(score float64, prevScore *float64) TrendDirection {
	if prevScore == nil {
		return TrendSideways
	}
	delta := score - *prevScore
	switch {
	case math.Abs(delta) <= sidewaysBand:
		return TrendSideways
	case delta > 0:
		return TrendUp
	default:
		return TrendDown
	}
}

// ConfidenceFrom applies the accumulated penalty to the starting confidence,
// clamped into [ConfidenceFloor, 1.0] so results remain orderable.
func ConfidenceFrom(penalty float64) float64 {
	c := 1.0 - penalty
	if c < ConfidenceFloor {
		return ConfidenceFloor
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}
