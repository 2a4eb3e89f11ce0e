package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"breadthcli/internal/breadth"
	"breadthcli/internal/config"
	"breadthcli/internal/exporter"
	"breadthcli/internal/perf"
	"breadthcli/internal/recovery"
)

func main() {
	inputPath := flag.String("input", "", "path to a JSON file of raw breadth records")
	outputDir := flag.String("out", "", "output directory for the report (defaults to the configured export directory)")
	format := flag.String("format", "csv", "output format: csv or xlsx")
	algorithm := flag.String("algorithm", "six_factor", "scoring algorithm (six_factor, normalized, sector_weighted)")
	startDate := flag.String("start", "", "inclusive start day (YYYY-MM-DD)")
	endDate := flag.String("end", "", "inclusive end day (YYYY-MM-DD)")
	repair := flag.Bool("repair", true, "repair corrupt fields and estimate missing counts before scoring")
	flag.Parse()

	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *outputDir == "" {
		*outputDir = cfg.Breadth.ExportDir
	}

	if *inputPath == "" {
		slog.Error("Missing required -input flag")
		flag.Usage()
		os.Exit(1)
	}
	if *format != "csv" && *format != "xlsx" {
		slog.Error("Unsupported format", "format", *format)
		os.Exit(1)
	}

	records, err := loadRecords(*inputPath)
	if err != nil {
		slog.Error("Failed to load records", "path", *inputPath, "error", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		slog.Error("No records found in input file", "path", *inputPath)
		os.Exit(1)
	}
	slog.Info("Loaded raw records", "count", len(records))

	ctx := context.Background()

	if *repair {
		svc := recovery.NewService(logger)
		outcome := svc.ExecuteCompleteRecovery(ctx, records)
		records = outcome.Records
		slog.Info("Recovery pass complete",
			"recovered", outcome.Recovered,
			"failed", outcome.Failed)
	}

	dateRange, err := parseRange(*startDate, *endDate)
	if err != nil {
		slog.Error("Invalid date range", "error", err)
		os.Exit(1)
	}

	scoring := breadth.DefaultConfig(breadth.Algorithm(*algorithm))
	monitor := perf.NewMonitor(prometheus.NewRegistry(), logger)
	calc, err := breadth.NewCalculator(&scoring, monitor, logger)
	if err != nil {
		slog.Error("Failed to build calculator", "algorithm", *algorithm, "error", err)
		os.Exit(1)
	}
	calc.SetBatchConcurrency(cfg.Breadth.BatchConcurrency)

	slog.Info("Calculating breadth scores", "algorithm", *algorithm)
	outcome, err := calc.CalculateHistorical(ctx, records, dateRange)
	if err != nil {
		slog.Error("Calculation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Calculation complete",
		"results", len(outcome.Results),
		"failures", len(outcome.Failures))

	results := exporter.NewResultsExporter(*outputDir, logger)
	filename := fmt.Sprintf("breadth_scores_%s.%s", time.Now().Format("20060102"), *format)

	switch *format {
	case "xlsx":
		err = results.ExportResultsXLSX(filename, outcome)
	default:
		err = results.ExportResultsCSV(filename, outcome)
	}
	if err != nil {
		slog.Error("Failed to write report", "file", filename, "error", err)
		os.Exit(1)
	}

	slog.Info("Report written", "dir", *outputDir, "file", filename)
}

func loadRecords(path string) ([]breadth.RawData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []breadth.RawData
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	return records, nil
}

func parseRange(start, end string) (breadth.DateRange, error) {
	var r breadth.DateRange
	if start != "" {
		day, err := time.Parse("2006-01-02", start)
		if err != nil {
			return r, fmt.Errorf("start: %w", err)
		}
		r.Start = &day
	}
	if end != "" {
		day, err := time.Parse("2006-01-02", end)
		if err != nil {
			return r, fmt.Errorf("end: %w", err)
		}
		r.End = &day
	}
	return r, nil
}
