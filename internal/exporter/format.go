package exporter

import (
	"fmt"
	"time"
)

// formatFloat formats a float64 value for CSV output with exactly 2
// decimal places, so 73.4 appears as 73.40.
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatConfidence keeps the extra precision confidence scores carry
func formatConfidence(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

// formatDay renders a result date as an ISO day
func formatDay(t time.Time) string {
	return t.Format("2006-01-02")
}
