// Package breadth implements the composite market-breadth score engine.
//
// The engine reduces one trading day's breadth indicators (advancing and
// declining counts, 4%/25%/50%/13-in-34 mover counts, T2108, S&P 500 level,
// sector percentages) to a single comparable 0-100 score, under four
// interchangeable algorithms parameterized by versioned configurations.
//
// # Architecture
//
//   - types.go: raw record, canonical indicator set, configuration and result types
//   - standardize.go: all optional-field fallback logic in one place
//   - algorithms.go: shared sub-scores plus six_factor, sector_weighted, custom
//   - normalized.go: rolling z-score algorithm
//   - formula.go: whitelisted-grammar compiler for custom formulas
//   - classify.go: market phase/strength/trend classification and confidence
//   - calculator.go: orchestration, active-configuration switching, validation
//   - historical.go: batch runner with per-record failure isolation
//   - validate.go: configuration validation shared with the store
//
// # Calculation path
//
// raw record -> Standardize -> algorithm (selected by the active Config) ->
// classify -> Result. Every call is a pure computation over its arguments and
// one immutable configuration version; bulk calculation parallelizes safely.
//
// # Scoring
//
// The primary ratio mapping is score = 100*up/(up+down), monotonic in the up
// count and defined as exactly 50 when both counts are zero. Component scores
// are combined by the configuration's weights, which must sum to 1.0. Missing
// indicators degrade into warnings, reduced data quality, and a lower
// confidence (floored at 0.1), never into exceptions.
//
// # Usage
//
//	calc, err := breadth.NewCalculator(nil, monitor, slog.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := calc.Calculate(ctx, raw, history)
package breadth
