// Package recovery repairs two corruption classes in historical raw
// breadth records before they reach the standardizer: mangled S&P 500
// level strings and missing quarterly/monthly move counts that can be
// estimated from correlated indicators. Estimated values are tagged
// with provenance "recovered" so confidence scoring can penalize them.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"breadthcli/internal/breadth"
)

// RecoveryError reports corruption judged unrecoverable for one record.
// It is recorded per record and never aborts a recovery batch.
type RecoveryError struct {
	Date   string
	Field  string
	Reason string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recovery failed for %s field %s: %s", e.Date, e.Field, e.Reason)
}

// Estimation model constants. The quarterly move counts track overall
// market health (T2108) scaled by universe size, with the legacy
// high/low counts as a secondary signal. Monthly counts run below
// quarterly ones for the same universe.
const (
	defaultUniverse = 6000

	quarterlyUniverseShare = 0.18
	highLowWeight          = 1.2
	monthlyOfQuarterly     = 0.45

	// No realistic day has more than half the universe moving 25% in a
	// quarter; estimates are clamped to this ceiling.
	maxUniverseShare = 0.5
)

var thousandsSep = regexp.MustCompile(`(\d),(\d{3})(\.\d+|\b)`)

// RepairSP500 applies the exactly-one-plausible-token rule to a corrupted
// S&P level string. The raw value is split into candidate tokens after
// thousands separators are collapsed; the repair succeeds only when
// exactly one token parses into the plausible range. Zero or multiple
// plausible tokens mean the true value cannot be determined and the
// field is left unset rather than guessed at.
func RepairSP500(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
	if cleaned == "" {
		return 0, false
	}
	for thousandsSep.MatchString(cleaned) {
		cleaned = thousandsSep.ReplaceAllString(cleaned, "$1$2$3")
	}
	tokens := strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})

	var (
		candidate float64
		plausible int
	)
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		if v >= breadth.SP500PlausibleMin && v <= breadth.SP500PlausibleMax {
			candidate = v
			plausible++
		}
	}
	if plausible != 1 {
		return 0, false
	}
	return candidate, true
}

// EstimateQuarterlyCounts estimates missing 25%-quarterly up/down counts
// from T2108 and the legacy new-high/new-low counts. Both correlated
// inputs must be present. Estimates are clamped to [0, universe/2].
func EstimateQuarterlyCounts(t2108 float64, newHighs, newLows float64, universe float64) (up, down float64) {
	if universe <= 0 {
		universe = defaultUniverse
	}
	health := t2108 / 100
	up = universe*quarterlyUniverseShare*health + highLowWeight*newHighs
	down = universe*quarterlyUniverseShare*(1-health) + highLowWeight*newLows
	ceiling := universe * maxUniverseShare
	return clamp(up, 0, ceiling), clamp(down, 0, ceiling)
}

// EstimateMonthlyCounts derives 25%-monthly counts from quarterly ones.
func EstimateMonthlyCounts(quarterlyUp, quarterlyDown float64) (up, down float64) {
	return quarterlyUp * monthlyOfQuarterly, quarterlyDown * monthlyOfQuarterly
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Outcome summarizes a complete recovery run over a corpus.
type Outcome struct {
	Recovered             int              `json:"recovered"`
	Failed                int              `json:"failed"`
	TotalRecordsProcessed int              `json:"total_records_processed"`
	Records               []breadth.RawData `json:"-"`
	Errors                []*RecoveryError `json:"errors,omitempty"`
}

// Verification reports post-repair corruption counts.
type Verification struct {
	SuccessRate         float64 `json:"success_rate"`
	CorruptedSP500Count int     `json:"corrupted_sp500_count"`
}

// Service runs the recovery passes over previously ingested raw records.
// Input records are never mutated; repaired copies are returned.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExecuteCompleteRecovery runs the S&P repair pass and the correlated
// estimation pass over every record, best effort. A record counts as
// recovered when at least one field was repaired or estimated; a record
// with corruption that could not be repaired counts as failed. Records
// needing no work count toward neither.
func (s *Service) ExecuteCompleteRecovery(ctx context.Context, records []breadth.RawData) Outcome {
	out := Outcome{
		TotalRecordsProcessed: len(records),
		Records:               make([]breadth.RawData, len(records)),
	}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			out.Records = out.Records[:i]
			out.TotalRecordsProcessed = i
			return out
		}
		repaired, changed, recErr := s.recoverRecord(rec)
		out.Records[i] = repaired
		if recErr != nil {
			out.Failed++
			out.Errors = append(out.Errors, recErr)
			s.logger.Warn("record unrecoverable",
				slog.String("date", recErr.Date),
				slog.String("field", recErr.Field),
				slog.String("reason", recErr.Reason))
			continue
		}
		if changed {
			out.Recovered++
		}
	}
	s.logger.Info("recovery run complete",
		slog.Int("total", out.TotalRecordsProcessed),
		slog.Int("recovered", out.Recovered),
		slog.Int("failed", out.Failed))
	return out
}

// recoverRecord returns a repaired copy of rec. changed reports whether
// any field was repaired or estimated. The estimation pass runs even
// when the S&P level is unrecoverable; the returned error then reports
// the S&P failure alongside whatever estimation achieved.
func (s *Service) recoverRecord(rec breadth.RawData) (breadth.RawData, bool, *RecoveryError) {
	changed := false
	var recErr *RecoveryError

	if rec.SP500Level != "" {
		if _, ok := breadth.ParseSP500Level(rec.SP500Level); !ok {
			level, repaired := RepairSP500(rec.SP500Level)
			if repaired {
				rec.SP500Level = strconv.FormatFloat(level, 'f', -1, 64)
				rec = tagRecovered(rec, breadth.FieldSP500)
				changed = true
			} else {
				rec.SP500Level = ""
				recErr = &RecoveryError{
					Date:   rec.Date,
					Field:  breadth.FieldSP500,
					Reason: "no single plausible token",
				}
			}
		}
	}

	if estimated := s.estimateMissingCounts(&rec); estimated {
		changed = true
	}
	return rec, changed, recErr
}

// estimateMissingCounts fills nil quarterly/monthly counts when the
// correlated inputs (T2108 plus new highs/lows) are observed.
func (s *Service) estimateMissingCounts(rec *breadth.RawData) bool {
	if rec.T2108 == nil || rec.NewHighs == nil || rec.NewLows == nil {
		return false
	}
	universe := float64(defaultUniverse)
	if rec.WordenUniverse != nil {
		universe = *rec.WordenUniverse
	}

	changed := false
	qUp, qDown := EstimateQuarterlyCounts(*rec.T2108, *rec.NewHighs, *rec.NewLows, universe)
	if rec.StocksUp25PctQuarterly == nil {
		rec.StocksUp25PctQuarterly = ptr(qUp)
		*rec = tagRecovered(*rec, breadth.FieldUp25Quarter)
		changed = true
	}
	if rec.StocksDown25PctQuarterly == nil {
		rec.StocksDown25PctQuarterly = ptr(qDown)
		*rec = tagRecovered(*rec, breadth.FieldDown25Quarter)
		changed = true
	}

	mUp, mDown := EstimateMonthlyCounts(*rec.StocksUp25PctQuarterly, *rec.StocksDown25PctQuarterly)
	if rec.StocksUp25PctMonthly == nil {
		rec.StocksUp25PctMonthly = ptr(mUp)
		*rec = tagRecovered(*rec, breadth.FieldUp25Month)
		changed = true
	}
	if rec.StocksDown25PctMonthly == nil {
		rec.StocksDown25PctMonthly = ptr(mDown)
		*rec = tagRecovered(*rec, breadth.FieldDown25Month)
		changed = true
	}
	return changed
}

// VerifyRecoverySuccess recomputes corruption counts after a repair run.
// SuccessRate is the share of records whose S&P level is either absent
// or parses cleanly.
func (s *Service) VerifyRecoverySuccess(records []breadth.RawData) Verification {
	if len(records) == 0 {
		return Verification{SuccessRate: 1}
	}
	corrupted := 0
	for _, rec := range records {
		if rec.SP500Level == "" {
			continue
		}
		if _, ok := breadth.ParseSP500Level(rec.SP500Level); !ok {
			corrupted++
		}
	}
	return Verification{
		SuccessRate:         float64(len(records)-corrupted) / float64(len(records)),
		CorruptedSP500Count: corrupted,
	}
}

// tagRecovered copies the provenance map before writing so the caller's
// original record is never mutated through the shared map.
func tagRecovered(rec breadth.RawData, field string) breadth.RawData {
	prov := make(map[string]string, len(rec.Provenance)+1)
	for k, v := range rec.Provenance {
		prov[k] = v
	}
	prov[field] = breadth.ProvenanceRecovered
	rec.Provenance = prov
	return rec
}

func ptr(v float64) *float64 { return &v }
