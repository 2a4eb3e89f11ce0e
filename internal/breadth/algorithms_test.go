package breadth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioScore(t *testing.T) {
	t.Run("both zero is exactly neutral", func(t *testing.T) {
		assert.Equal(t, 50.0, RatioScore(0, 0))
	})

	t.Run("all up", func(t *testing.T) {
		assert.Equal(t, 100.0, RatioScore(500, 0))
	})

	t.Run("all down", func(t *testing.T) {
		assert.Equal(t, 0.0, RatioScore(0, 500))
	})

	t.Run("monotonic in up count with down fixed", func(t *testing.T) {
		prev := -1.0
		for up := 0.0; up <= 1000; up += 50 {
			score := RatioScore(up, 200)
			assert.Greater(t, score, prev, "score must strictly increase at up=%v", up)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 100.0)
			prev = score
		}
	})
}

func mustStandardize(t *testing.T, raw RawData) IndicatorSet {
	t.Helper()
	s, err := Standardize(raw)
	require.NoError(t, err)
	return s
}

func TestScoreSixFactor_Components(t *testing.T) {
	cfg := validTestConfig(AlgorithmSixFactor)

	t.Run("bullish day maps above neutral", func(t *testing.T) {
		s := mustStandardize(t, RawData{
			Date:                "2024-03-15",
			StocksUp4PctDaily:   fptr(300),
			StocksDown4PctDaily: fptr(100),
			T2108:               fptr(70),
		})
		out, err := scoreSixFactor(s, &cfg, nil)
		require.NoError(t, err)
		assert.Greater(t, out.score, 50.0)
		assert.Equal(t, 75.0, out.components.Primary)
		assert.Equal(t, 70.0, out.components.Sector) // t2108 fills the sector slot
	})

	t.Run("missing primary group is neutral with penalty", func(t *testing.T) {
		s := mustStandardize(t, RawData{Date: "2024-03-15", T2108: fptr(50)})
		out, err := scoreSixFactor(s, &cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, 50.0, out.components.Primary)
		assert.Greater(t, out.confidencePenalty, 0.0)
		assert.NotEmpty(t, out.warnings)
	})

	t.Run("momentum requires history and only warns without it", func(t *testing.T) {
		s := mustStandardize(t, RawData{
			Date:                "2024-03-15",
			StocksUp4PctDaily:   fptr(200),
			StocksDown4PctDaily: fptr(200),
		})
		out, err := scoreSixFactor(s, &cfg, nil)
		require.NoError(t, err)
		assert.Contains(t, fmt.Sprint(out.warnings), "momentum")
		assert.Equal(t, 50.0, out.components.Primary)
	})

	t.Run("momentum shifts primary with history", func(t *testing.T) {
		history := []IndicatorSet{
			mustStandardize(t, RawData{
				Date:                "2024-03-10",
				StocksUp4PctDaily:   fptr(100),
				StocksDown4PctDaily: fptr(300),
			}),
		}
		s := mustStandardize(t, RawData{
			Date:                "2024-03-15",
			StocksUp4PctDaily:   fptr(300),
			StocksDown4PctDaily: fptr(100),
		})
		out, err := scoreSixFactor(s, &cfg, history)
		require.NoError(t, err)
		// ratio climbed from 25 to 75, momentum pushes primary above the raw ratio
		assert.Greater(t, out.components.Primary, 75.0)
	})
}

func TestScoreSixFactor_VolatilityDamping(t *testing.T) {
	cfg := validTestConfig(AlgorithmSixFactor)
	cfg.Indicators.VolatilityAdjustment = true

	s := mustStandardize(t, RawData{
		Date:                "2024-03-15",
		StocksUp4PctDaily:   fptr(380),
		StocksDown4PctDaily: fptr(20),
		T2108:               fptr(90),
	})

	damped, err := scoreSixFactor(s, &cfg, nil)
	require.NoError(t, err)

	cfg.Indicators.VolatilityAdjustment = false
	raw, err := scoreSixFactor(s, &cfg, nil)
	require.NoError(t, err)

	assert.Less(t, damped.score, raw.score, "damping must pull an extreme score toward 50")
	assert.Greater(t, damped.score, 50.0)
}

func TestScoreSectorWeighted(t *testing.T) {
	cfg := validTestConfig(AlgorithmSectorWeighted)
	cfg.Algorithm = AlgorithmSectorWeighted
	cfg.Indicators.SectorCountThreshold = 3

	base := RawData{
		Date:                "2024-03-15",
		StocksUp4PctDaily:   fptr(250),
		StocksDown4PctDaily: fptr(150),
		T2108:               fptr(60),
	}

	t.Run("sector mean fills the sector component", func(t *testing.T) {
		raw := base
		raw.Sectors = map[string]float64{"tech": 80, "energy": 60, "financials": 70, "utilities": 50}
		s := mustStandardize(t, raw)
		out, err := scoreSectorWeighted(s, &cfg, nil)
		require.NoError(t, err)
		assert.InDelta(t, 65.0, out.components.Sector, 1e-9)
	})

	t.Run("below threshold scores zero and warns instead of guessing", func(t *testing.T) {
		raw := base
		raw.Sectors = map[string]float64{"tech": 80, "energy": 60}
		s := mustStandardize(t, raw)
		out, err := scoreSectorWeighted(s, &cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, 0.0, out.components.Sector)
		assert.Contains(t, fmt.Sprint(out.warnings), "sector data below threshold")
	})
}

func TestScoreNormalized(t *testing.T) {
	cfg := validTestConfig(AlgorithmNormalized)
	cfg.Algorithm = AlgorithmNormalized

	history := make([]IndicatorSet, 0, 10)
	for i := 1; i <= 10; i++ {
		history = append(history, mustStandardize(t, RawData{
			Date:                fmt.Sprintf("2024-03-%02d", i),
			StocksUp4PctDaily:   fptr(200),
			StocksDown4PctDaily: fptr(200),
			T2108:               fptr(50 + float64(i%3)),
			SP500Level:          fmt.Sprintf("%d", 5000+i*10),
		}))
	}

	t.Run("day in line with history is near neutral", func(t *testing.T) {
		s := mustStandardize(t, RawData{
			Date:                "2024-03-15",
			StocksUp4PctDaily:   fptr(200),
			StocksDown4PctDaily: fptr(200),
			T2108:               fptr(51),
			SP500Level:          "5050",
		})
		out, err := scoreNormalized(s, &cfg, history)
		require.NoError(t, err)
		assert.InDelta(t, 50.0, out.score, 15.0)
	})

	t.Run("strong day scores above weak day", func(t *testing.T) {
		strong := mustStandardize(t, RawData{
			Date:                "2024-03-15",
			StocksUp4PctDaily:   fptr(380),
			StocksDown4PctDaily: fptr(20),
			T2108:               fptr(80),
			SP500Level:          "5400",
		})
		weak := mustStandardize(t, RawData{
			Date:                "2024-03-15",
			StocksUp4PctDaily:   fptr(20),
			StocksDown4PctDaily: fptr(380),
			T2108:               fptr(20),
			SP500Level:          "4800",
		})
		strongOut, err := scoreNormalized(strong, &cfg, history)
		require.NoError(t, err)
		weakOut, err := scoreNormalized(weak, &cfg, history)
		require.NoError(t, err)
		assert.Greater(t, strongOut.score, weakOut.score)
	})

	t.Run("insufficient history falls back and lowers confidence", func(t *testing.T) {
		s := mustStandardize(t, RawData{
			Date:                "2024-03-15",
			StocksUp4PctDaily:   fptr(300),
			StocksDown4PctDaily: fptr(100),
			T2108:               fptr(65),
			SP500Level:          "5200",
		})
		out, err := scoreNormalized(s, &cfg, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.score, 0.0)
		assert.LessOrEqual(t, out.score, 100.0)
		assert.Contains(t, fmt.Sprint(out.warnings), "insufficient history")
		assert.Greater(t, out.confidencePenalty, 0.0)
	})
}

func TestScoreCustom(t *testing.T) {
	cfg := validTestConfig(AlgorithmCustom)
	cfg.Algorithm = AlgorithmCustom
	cfg.CustomFormula = "0.5*primary + 0.5*sector"

	s := mustStandardize(t, RawData{
		Date:                "2024-03-15",
		StocksUp4PctDaily:   fptr(300),
		StocksDown4PctDaily: fptr(100),
		T2108:               fptr(65),
	})

	out, err := scoreCustom(s, &cfg, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*75+0.5*65, out.score, 1e-9)
}
