// Package perf keeps an append-only log of calculation latency and
// throughput and mirrors it into prometheus collectors for scraping.
package perf

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"breadthcli/internal/breadth"
)

// Metric is one observed calculation. Entries are append-only and only
// removed by an explicit Clear.
type Metric struct {
	Timestamp        time.Time         `json:"timestamp"`
	Algorithm        breadth.Algorithm `json:"algorithm"`
	CalculationTime  time.Duration     `json:"calculation_time"`
	RecordsProcessed int               `json:"records_processed"`
	RecordsPerSecond float64           `json:"records_per_second"`
}

// Monitor implements breadth.Observer. Safe for concurrent writers.
type Monitor struct {
	mu      sync.Mutex
	entries []Metric
	logger  *slog.Logger

	calculations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	records      *prometheus.CounterVec
}

// NewMonitor registers the prometheus collectors on reg. Passing a
// dedicated registry keeps tests isolated; production wiring passes
// prometheus.DefaultRegisterer.
func NewMonitor(reg prometheus.Registerer, logger *slog.Logger) *Monitor {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}
	factory := promauto.With(reg)
	return &Monitor{
		logger: logger,
		calculations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "breadth_calculations_total",
			Help: "Completed breadth score calculations by algorithm.",
		}, []string{"algorithm"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "breadth_calculation_duration_seconds",
			Help:    "Breadth score calculation latency by algorithm.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"algorithm"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "breadth_records_processed_total",
			Help: "Raw records scored, including historical batch members.",
		}, []string{"algorithm"}),
	}
}

// Observe satisfies breadth.Observer.
func (m *Monitor) Observe(algorithm breadth.Algorithm, took time.Duration, records int) {
	m.Record(Metric{
		Timestamp:        time.Now().UTC(),
		Algorithm:        algorithm,
		CalculationTime:  took,
		RecordsProcessed: records,
		RecordsPerSecond: perSecond(records, took),
	})
}

// Record appends one entry and updates the prometheus collectors.
func (m *Monitor) Record(metric Metric) {
	label := string(metric.Algorithm)
	m.calculations.WithLabelValues(label).Inc()
	m.records.WithLabelValues(label).Add(float64(metric.RecordsProcessed))
	m.duration.WithLabelValues(label).Observe(metric.CalculationTime.Seconds())

	m.mu.Lock()
	m.entries = append(m.entries, metric)
	m.mu.Unlock()
}

// Snapshot returns a copy of the log in append order.
func (m *Monitor) Snapshot() []Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Metric, len(m.entries))
	copy(out, m.entries)
	return out
}

// Clear purges the log. Prometheus counters are cumulative and are not
// reset; scrapers handle resets via rate().
func (m *Monitor) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = nil
	m.logger.Info("performance metrics cleared", slog.Int("purged", n))
	return n
}

func perSecond(records int, took time.Duration) float64 {
	if took <= 0 {
		return 0
	}
	return float64(records) / took.Seconds()
}
