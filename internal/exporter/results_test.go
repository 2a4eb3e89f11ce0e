package exporter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"breadthcli/internal/breadth"
)

func sampleResult(day string, score float64) breadth.Result {
	date, _ := time.Parse("2006-01-02", day)
	return breadth.Result{
		Date:            date,
		Score:           score,
		NormalizedScore: score,
		Confidence:      0.9,
		Components: breadth.Components{
			Primary:   75,
			Secondary: 60.5,
			Reference: 55,
		},
		MarketCondition: breadth.MarketCondition{
			Phase:          breadth.PhaseBull,
			Strength:       breadth.StrengthModerate,
			TrendDirection: breadth.TrendUp,
		},
		Metadata: breadth.Metadata{
			AlgorithmUsed: breadth.AlgorithmSixFactor,
			ConfigVersion: "six_factor_default",
			DataQuality:   0.95,
		},
	}
}

func sampleOutcome() breadth.BatchOutcome {
	return breadth.BatchOutcome{
		Results: []breadth.Result{
			sampleResult("2024-03-15", 73.4),
			sampleResult("2024-03-16", 68.2),
		},
	}
}

func TestExportResultsCSV(t *testing.T) {
	dir := t.TempDir()
	e := NewResultsExporter(dir, testLogger())

	require.NoError(t, e.ExportResultsCSV("breadth.csv", sampleOutcome()))

	records := readCSVFile(t, filepath.Join(dir, "breadth.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, resultHeaders(), records[0])

	first := records[1]
	assert.Equal(t, "2024-03-15", first[0])
	assert.Equal(t, "six_factor", first[1])
	assert.Equal(t, "six_factor_default", first[2])
	assert.Equal(t, "73.40", first[3])
	assert.Equal(t, "0.9000", first[5])
	assert.Equal(t, "BULL", first[6])

	// No failures file without failures.
	_, err := os.Stat(filepath.Join(dir, "breadth_failures.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestExportResultsCSVWritesFailures(t *testing.T) {
	dir := t.TempDir()
	e := NewResultsExporter(dir, testLogger())

	outcome := sampleOutcome()
	outcome.Failures = []breadth.BatchFailure{
		{Date: "2024-03-17", Error: "no indicator groups present"},
	}
	require.NoError(t, e.ExportResultsCSV("breadth.csv", outcome))

	records := readCSVFile(t, filepath.Join(dir, "breadth_failures.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, []string{"2024-03-17", "no indicator groups present"}, records[1])
}

func TestExportResultsXLSX(t *testing.T) {
	dir := t.TempDir()
	e := NewResultsExporter(dir, testLogger())

	outcome := sampleOutcome()
	outcome.Failures = []breadth.BatchFailure{
		{Date: "2024-03-17", Error: "no indicator groups present"},
	}
	require.NoError(t, e.ExportResultsXLSX("breadth.xlsx", outcome))

	f, err := excelize.OpenFile(filepath.Join(dir, "breadth.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Results", "Failures"}, f.GetSheetList())

	header, err := f.GetCellValue("Results", "A1")
	require.NoError(t, err)
	assert.Equal(t, "date", header)

	score, err := f.GetCellValue("Results", "D2")
	require.NoError(t, err)
	assert.Equal(t, "73.40", score)

	failure, err := f.GetCellValue("Failures", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-17", failure)
}

func TestFailuresPath(t *testing.T) {
	assert.Equal(t, "breadth_failures.csv", failuresPath("breadth.csv"))
	assert.Equal(t, filepath.Join("out", "x_failures.csv"), failuresPath(filepath.Join("out", "x.csv")))
}
