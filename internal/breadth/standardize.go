package breadth

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// SP500 levels outside this band are treated as corrupt rather than used.
const (
	SP500PlausibleMin = 1000
	SP500PlausibleMax = 10000
)

// Standardize normalizes a raw record into the canonical indicator set.
// All fallback logic lives here: each canonical field uses its primary source
// when present, then a documented substitute, then zero plus a missing-field
// entry. The only error condition is an absent or non-ISO date; everything
// else degrades into MissingFields and a reduced DataQuality.
func Standardize(raw RawData) (IndicatorSet, error) {
	if strings.TrimSpace(raw.Date) == "" {
		return IndicatorSet{}, &ValidationError{Field: "date", Message: "date is required"}
	}
	day, ok := raw.Day()
	if !ok {
		return IndicatorSet{}, &ValidationError{Field: "date", Message: "date must be an ISO calendar day (YYYY-MM-DD)", Value: raw.Date}
	}

	s := IndicatorSet{Date: day}

	// Direct counts with no substitute source
	s.AdvancingIssues = s.take(raw.AdvancingIssues, FieldAdvancingIssues)
	s.DecliningIssues = s.take(raw.DecliningIssues, FieldDecliningIssues)
	s.NewHighs = s.take(raw.NewHighs, FieldNewHighs)
	s.NewLows = s.take(raw.NewLows, FieldNewLows)
	s.UpVolume = s.take(raw.UpVolume, FieldUpVolume)
	s.DownVolume = s.take(raw.DownVolume, FieldDownVolume)

	// Daily 4% movers substitute the plain advance/decline counts when absent
	s.Up4Daily = s.takeWithFallback(raw.StocksUp4PctDaily, raw.AdvancingIssues, FieldUp4Daily)
	s.Down4Daily = s.takeWithFallback(raw.StocksDown4PctDaily, raw.DecliningIssues, FieldDown4Daily)

	// Monthly 25% movers substitute the quarterly series when absent
	s.Up25Quarter = s.take(raw.StocksUp25PctQuarterly, FieldUp25Quarter)
	s.Down25Quarter = s.take(raw.StocksDown25PctQuarterly, FieldDown25Quarter)
	s.Up25Month = s.takeWithFallback(raw.StocksUp25PctMonthly, raw.StocksUp25PctQuarterly, FieldUp25Month)
	s.Down25Month = s.takeWithFallback(raw.StocksDown25PctMonthly, raw.StocksDown25PctQuarterly, FieldDown25Month)
	s.Up50Month = s.take(raw.StocksUp50PctMonthly, FieldUp50Month)
	s.Down50Month = s.take(raw.StocksDown50PctMonthly, FieldDown50Month)
	s.Up13In34 = s.take(raw.StocksUp13Pct34Days, FieldUp13In34)
	s.Down13In34 = s.take(raw.StocksDown13Pct34Days, FieldDown13In34)

	// T2108 is only usable inside its defined 0..100 band
	if raw.T2108 != nil && *raw.T2108 >= 0 && *raw.T2108 <= 100 {
		s.T2108 = *raw.T2108
	} else {
		s.MissingFields = append(s.MissingFields, FieldT2108)
	}

	if level, ok := ParseSP500Level(raw.SP500Level); ok {
		s.SP500 = level
	} else {
		s.MissingFields = append(s.MissingFields, FieldSP500)
	}

	s.WordenUniverse = s.take(raw.WordenUniverse, FieldWordenUniverse)

	if len(raw.Sectors) > 0 {
		names := make([]string, 0, len(raw.Sectors))
		for name := range raw.Sectors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s.Sectors = append(s.Sectors, raw.Sectors[name])
		}
	} else {
		s.MissingFields = append(s.MissingFields, FieldSectors)
	}

	s.RecoveredFields = raw.RecoveredFields()
	sort.Strings(s.RecoveredFields)

	s.DataQuality = math.Max(0, 100-10*float64(len(s.MissingFields)))
	return s, nil
}

// take uses the primary value or defaults to zero and records the field
func (s *IndicatorSet) take(primary *float64, field string) float64 {
	if primary != nil {
		return *primary
	}
	s.MissingFields = append(s.MissingFields, field)
	return 0
}

// takeWithFallback uses the primary value, then the substitute, then zero
func (s *IndicatorSet) takeWithFallback(primary, substitute *float64, field string) float64 {
	if primary != nil {
		return *primary
	}
	if substitute != nil {
		s.FallbackFields = append(s.FallbackFields, field)
		return *substitute
	}
	s.MissingFields = append(s.MissingFields, field)
	return 0
}

// ParseSP500Level parses a loosely formatted S&P 500 level string.
// Quotes and whitespace are stripped and thousands separators removed before
// parsing. Values outside the plausible band are rejected rather than used.
func ParseSP500Level(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, `"'`)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	// A value with interior whitespace is multi-token corruption, not a level
	if strings.ContainsAny(cleaned, " \t") {
		return 0, false
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	level, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if level < SP500PlausibleMin || level > SP500PlausibleMax {
		return 0, false
	}
	return level, true
}
