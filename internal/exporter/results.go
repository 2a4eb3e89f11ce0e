package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"breadthcli/internal/breadth"
)

// ResultsExporter writes breadth score reports as CSV or XLSX files.
type ResultsExporter struct {
	csvWriter *CSVWriter
	baseDir   string
	logger    *slog.Logger
}

// NewResultsExporter creates a results exporter rooted at baseDir.
func NewResultsExporter(baseDir string, logger *slog.Logger) *ResultsExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsExporter{
		csvWriter: NewCSVWriter(baseDir, logger),
		baseDir:   baseDir,
		logger:    logger,
	}
}

func resultHeaders() []string {
	return []string{
		"date", "algorithm", "config_version",
		"score", "normalized_score", "confidence",
		"phase", "strength", "trend",
		"primary_score", "secondary_score", "reference_score", "sector_score",
		"data_quality",
	}
}

func resultRow(r breadth.Result) []string {
	return []string{
		formatDay(r.Date),
		string(r.Metadata.AlgorithmUsed),
		r.Metadata.ConfigVersion,
		formatFloat(r.Score),
		formatFloat(r.NormalizedScore),
		formatConfidence(r.Confidence),
		string(r.MarketCondition.Phase),
		string(r.MarketCondition.Strength),
		string(r.MarketCondition.TrendDirection),
		formatFloat(r.Components.Primary),
		formatFloat(r.Components.Secondary),
		formatFloat(r.Components.Reference),
		formatFloat(r.Components.Sector),
		formatConfidence(r.Metadata.DataQuality),
	}
}

// ExportResultsCSV writes the batch results to a CSV file. Failures are
// written alongside to <name>_failures.csv when present.
func (e *ResultsExporter) ExportResultsCSV(filePath string, outcome breadth.BatchOutcome) error {
	rows := make([][]string, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		rows = append(rows, resultRow(r))
	}
	if err := e.csvWriter.WriteSimpleCSV(filePath, resultHeaders(), rows); err != nil {
		return err
	}

	if len(outcome.Failures) == 0 {
		return nil
	}

	failurePath := failuresPath(filePath)
	failureRows := make([][]string, 0, len(outcome.Failures))
	for _, f := range outcome.Failures {
		failureRows = append(failureRows, []string{f.Date, f.Error})
	}
	return e.csvWriter.WriteSimpleCSV(failurePath, []string{"date", "error"}, failureRows)
}

// ExportResultsXLSX writes the batch results as a workbook with a
// Results sheet and, when failures exist, a Failures sheet.
func (e *ResultsExporter) ExportResultsXLSX(filePath string, outcome breadth.BatchOutcome) error {
	fullPath := e.csvWriter.resolvePath(filePath)
	if err := ensureDir(fullPath); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	rows := make([][]string, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		rows = append(rows, resultRow(r))
	}
	if err := writeSheet(f, sheet, headerStyle, resultHeaders(), rows); err != nil {
		return err
	}
	f.SetColWidth(sheet, "A", "C", 16)

	if len(outcome.Failures) > 0 {
		const failSheet = "Failures"
		if _, err := f.NewSheet(failSheet); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		rows := make([][]string, 0, len(outcome.Failures))
		for _, fl := range outcome.Failures {
			rows = append(rows, []string{fl.Date, fl.Error})
		}
		if err := writeSheet(f, failSheet, headerStyle, []string{"date", "error"}, rows); err != nil {
			return err
		}
		f.SetColWidth(failSheet, "B", "B", 48)
	}

	e.logger.Info("Writing XLSX file",
		slog.String("path", fullPath),
		slog.Int("result_count", len(outcome.Results)),
		slog.Int("failure_count", len(outcome.Failures)))

	if err := f.SaveAs(fullPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]string) error {
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for i, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func failuresPath(filePath string) string {
	ext := filepath.Ext(filePath)
	return filePath[:len(filePath)-len(ext)] + "_failures" + ext
}

func ensureDir(fullPath string) error {
	dir := filepath.Dir(fullPath)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}
