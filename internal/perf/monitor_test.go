package perf

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breadthcli/internal/breadth"
)

func newTestMonitor(t *testing.T) (*Monitor, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMonitor(reg, slog.Default()), reg
}

func TestMonitor_ObserveAppends(t *testing.T) {
	m, reg := newTestMonitor(t)

	m.Observe(breadth.AlgorithmSixFactor, 2*time.Millisecond, 1)
	m.Observe(breadth.AlgorithmSixFactor, 4*time.Millisecond, 10)
	m.Observe(breadth.AlgorithmNormalized, time.Millisecond, 1)

	entries := m.Snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, breadth.AlgorithmSixFactor, entries[0].Algorithm)
	assert.Equal(t, 10, entries[1].RecordsProcessed)
	assert.InDelta(t, 2500, entries[1].RecordsPerSecond, 0.001)
	assert.False(t, entries[0].Timestamp.IsZero())

	got := testutil.ToFloat64(m.calculations.WithLabelValues("six_factor"))
	assert.Equal(t, 2.0, got)
	got = testutil.ToFloat64(m.records.WithLabelValues("six_factor"))
	assert.Equal(t, 11.0, got)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMonitor_SnapshotIsACopy(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.Observe(breadth.AlgorithmSixFactor, time.Millisecond, 1)

	snap := m.Snapshot()
	snap[0].RecordsProcessed = 999

	assert.Equal(t, 1, m.Snapshot()[0].RecordsProcessed)
}

func TestMonitor_Clear(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.Observe(breadth.AlgorithmSixFactor, time.Millisecond, 1)
	m.Observe(breadth.AlgorithmCustom, time.Millisecond, 1)

	purged := m.Clear()
	assert.Equal(t, 2, purged)
	assert.Empty(t, m.Snapshot())

	// counters survive a log purge
	got := testutil.ToFloat64(m.calculations.WithLabelValues("six_factor"))
	assert.Equal(t, 1.0, got)
}

func TestMonitor_ConcurrentWriters(t *testing.T) {
	m, _ := newTestMonitor(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.Observe(breadth.AlgorithmSixFactor, time.Microsecond, 1)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, m.Snapshot(), 800)
}

func TestPerSecond(t *testing.T) {
	assert.Equal(t, 0.0, perSecond(10, 0))
	assert.InDelta(t, 100, perSecond(10, 100*time.Millisecond), 0.001)
}
