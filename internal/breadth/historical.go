package breadth

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// DateRange is an inclusive [Start, End] filter for batch calculation.
// A nil boundary leaves that side open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

func (r DateRange) contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// BatchFailure records one record's calculation failure without aborting
// the batch.
type BatchFailure struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

// BatchOutcome is the result of a historical calculation run. Results are
// ascending by date; failed records appear in Failures only.
type BatchOutcome struct {
	Results  []Result       `json:"results"`
	Failures []BatchFailure `json:"failures,omitempty"`
}

// defaultBatchConcurrency bounds the workers used for batch scoring.
// Each calculation is pure, so parallel scoring is safe.
const defaultBatchConcurrency = 4

// CalculateHistorical maps Calculate over records sorted ascending by date,
// optionally filtered to an inclusive date range. One record's failure never
// aborts the batch. The full record set (not just the filtered range) feeds
// each day's historical context.
func (c *Calculator) CalculateHistorical(ctx context.Context, records []RawData, dateRange DateRange) (BatchOutcome, error) {
	return c.CalculateHistoricalWith(ctx, records, dateRange, c.active.Load())
}

// CalculateHistoricalWith is CalculateHistorical with a one-off
// configuration override. The active configuration is not touched.
func (c *Calculator) CalculateHistoricalWith(ctx context.Context, records []RawData, dateRange DateRange, cfg *Config) (BatchOutcome, error) {
	start := time.Now()
	if cfg == nil {
		cfg = c.active.Load()
	} else if err := ValidateConfig(cfg); err != nil {
		return BatchOutcome{}, err
	}

	// Standardize the whole corpus once; it doubles as per-day history.
	type dated struct {
		raw RawData
		set IndicatorSet
	}
	var (
		valid    []dated
		failures []BatchFailure
	)
	for _, raw := range records {
		s, err := Standardize(raw)
		if err != nil {
			failures = append(failures, BatchFailure{Date: raw.Date, Error: err.Error()})
			continue
		}
		valid = append(valid, dated{raw: raw, set: s})
	}
	// Duplicate days collapse to the record supplied last; a later record
	// for the same day replaces the earlier one, like any recompute.
	lastIdx := make(map[time.Time]int, len(valid))
	for i, d := range valid {
		lastIdx[d.set.Date] = i
	}
	if len(lastIdx) != len(valid) {
		deduped := valid[:0]
		for i, d := range valid {
			if lastIdx[d.set.Date] == i {
				deduped = append(deduped, d)
			}
		}
		valid = deduped
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].set.Date.Before(valid[j].set.Date) })

	history := make([]IndicatorSet, len(valid))
	for i, d := range valid {
		history[i] = d.set
	}

	// Pick the records inside the requested range, keeping their corpus index
	// so each one sees exactly the records that precede it.
	type job struct {
		corpusIdx int
	}
	var jobs []job
	for i, d := range valid {
		if dateRange.contains(d.set.Date) {
			jobs = append(jobs, job{corpusIdx: i})
		}
	}

	results := make([]*Result, len(jobs))
	jobFailures := make([]*BatchFailure, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.BatchConcurrency())
	for i, j := range jobs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			d := valid[j.corpusIdx]
			res, err := c.scoreWithContext(d.set, cfg, history[:j.corpusIdx])
			if err != nil {
				jobFailures[i] = &BatchFailure{Date: d.raw.Date, Error: err.Error()}
				return nil
			}
			results[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchOutcome{}, err
	}

	outcome := BatchOutcome{Failures: failures}
	for i := range jobs {
		if jobFailures[i] != nil {
			outcome.Failures = append(outcome.Failures, *jobFailures[i])
			continue
		}
		if results[i] != nil {
			outcome.Results = append(outcome.Results, *results[i])
		}
	}

	took := time.Since(start)
	if c.observer != nil && len(outcome.Results) > 0 {
		c.observer.Observe(cfg.Algorithm, took, len(outcome.Results))
	}
	c.logger.InfoContext(ctx, "historical calculation completed",
		slog.Int("input_records", len(records)),
		slog.Int("results", len(outcome.Results)),
		slog.Int("failures", len(outcome.Failures)),
		slog.Duration("took", took))

	return outcome, nil
}

// scoreWithContext scores one standardized record with per-record timing
func (c *Calculator) scoreWithContext(s IndicatorSet, cfg *Config, history []IndicatorSet) (Result, error) {
	start := time.Now()
	res, err := c.score(s, cfg, history)
	if err != nil {
		return Result{}, err
	}
	res.Metadata.CalculationTime = time.Since(start)
	return res, nil
}
