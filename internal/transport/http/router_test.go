package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breadthcli/internal/breadth"
	"breadthcli/internal/config"
	"breadthcli/internal/configstore"
	"breadthcli/internal/perf"
	"breadthcli/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func fptr(v float64) *float64 { return &v }

func rawDay(date string, up, down float64) breadth.RawData {
	return breadth.RawData{
		Date:                date,
		AdvancingIssues:     fptr(up * 5),
		DecliningIssues:     fptr(down * 5),
		StocksUp4PctDaily:   fptr(up),
		StocksDown4PctDaily: fptr(down),
		T2108:               fptr(55),
		SP500Level:          "5,832.92",
	}
}

type stubSource struct {
	records []breadth.RawData
}

func (s *stubSource) RawRecords(ctx context.Context) ([]breadth.RawData, error) {
	return s.records, nil
}

func (s *stubSource) Latest(ctx context.Context) (breadth.RawData, error) {
	if len(s.records) == 0 {
		return breadth.RawData{}, fmt.Errorf("no records")
	}
	return s.records[len(s.records)-1], nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := testLogger()
	reg := prometheus.NewRegistry()
	monitor := perf.NewMonitor(reg, logger)

	calc, err := breadth.NewCalculator(nil, monitor, logger)
	require.NoError(t, err)

	store := configstore.NewStore(logger)
	source := &stubSource{records: []breadth.RawData{
		rawDay("2024-03-04", 320, 80),
		rawDay("2024-03-05", 280, 120),
	}}

	svc := services.NewBreadthService(calc, store, monitor, source, nil, logger)
	health := services.NewHealthService("test", "", svc, logger)

	cfg := config.Default()
	cfg.Security.RateLimit.Enabled = false

	return NewRouter(RouterDeps{
		Config:  cfg,
		Breadth: svc,
		Health:  health,
		Logger:  logger,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouterCalculate(t *testing.T) {
	router := newTestRouter(t)

	t.Run("scores a valid record", func(t *testing.T) {
		body := `{"data": {"date": "2024-03-15", "stocks_up_4pct_daily": 300, "stocks_down_4pct_daily": 100, "t2108": 55, "sp500_level": "5,832.92"}}`
		rec := doJSON(t, router, http.MethodPost, "/api/breadth/calculate", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result breadth.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.InDelta(t, 75.0, result.Components.Primary, 0.001)
		assert.Equal(t, breadth.AlgorithmSixFactor, result.Metadata.AlgorithmUsed)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/breadth/calculate", `{"data": `)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown algorithm", func(t *testing.T) {
		body := `{"data": {"date": "2024-03-15", "stocks_up_4pct_daily": 300, "stocks_down_4pct_daily": 100}, "algorithm": "astrology"}`
		rec := doJSON(t, router, http.MethodPost, "/api/breadth/calculate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown config version maps to 404", func(t *testing.T) {
		body := `{"data": {"date": "2024-03-15", "stocks_up_4pct_daily": 300, "stocks_down_4pct_daily": 100}, "config_version": "missing"}`
		rec := doJSON(t, router, http.MethodPost, "/api/breadth/calculate", body)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouterHistorical(t *testing.T) {
	router := newTestRouter(t)

	t.Run("returns results for the stored range", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/breadth/historical", `{}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var outcome breadth.BatchOutcome
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
		assert.Len(t, outcome.Results, 2)
	})

	t.Run("rejects a malformed date boundary", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/breadth/historical", `{"start_date": "03/04/2024"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouterRealTime(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/breadth/realtime", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result breadth.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "2024-03-05", result.Date.Format("2006-01-02"))
}

func TestRouterSwitchAlgorithm(t *testing.T) {
	router := newTestRouter(t)

	t.Run("switches the active configuration", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/breadth/algorithm", `{"algorithm": "normalized"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"normalized"`)
	})

	t.Run("requires an algorithm", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/breadth/algorithm", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouterConfigLifecycle(t *testing.T) {
	router := newTestRouter(t)

	body := `{"algorithm": "six_factor", "name": "router test", "weights": {"primary_indicators": 0.4, "secondary_indicators": 0.3, "reference_data": 0.3, "sector_data": 0}}`
	rec := doJSON(t, router, http.MethodPost, "/api/configs", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	version := created["version"]
	require.NotEmpty(t, version)

	t.Run("get by version", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/configs/"+version, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var cfg breadth.Config
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
		assert.Equal(t, "router test", cfg.Name)
	})

	t.Run("list", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/configs", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), version)
	})

	t.Run("update", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/api/configs/"+version, `{"description": "tuned"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "tuned")
	})

	t.Run("set default", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/configs/"+version+"/default", "")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/api/configs?defaults_only=true", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), version)
	})

	t.Run("unknown version maps to 404", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/configs/does-not-exist", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("export and import round trip", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/configs/export?version="+version, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

		other := newTestRouter(t)
		imported := doJSON(t, other, http.MethodPost, "/api/configs/import", rec.Body.String())
		require.Equal(t, http.StatusOK, imported.Code, imported.Body.String())
		assert.Contains(t, imported.Body.String(), `"imported":1`)
	})

	t.Run("invalid weights are rejected", func(t *testing.T) {
		bad := `{"algorithm": "six_factor", "name": "bad", "weights": {"primary_indicators": 1, "secondary_indicators": 1, "reference_data": 0, "sector_data": 0}}`
		rec := doJSON(t, router, http.MethodPost, "/api/configs", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouterHealth(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/api/health", "/api/health/ready", "/api/health/live", "/api/version"} {
		rec := doJSON(t, router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouterPerformance(t *testing.T) {
	router := newTestRouter(t)

	// A calculation populates the metrics log.
	body := `{"data": {"date": "2024-03-15", "stocks_up_4pct_daily": 300, "stocks_down_4pct_daily": 100}}`
	rec := doJSON(t, router, http.MethodPost, "/api/breadth/calculate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/performance", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Count   int           `json:"count"`
		Metrics []perf.Metric `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)

	rec = doJSON(t, router, http.MethodDelete, "/api/performance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"purged":1`)
}

func TestRouterMiddleware(t *testing.T) {
	router := newTestRouter(t)

	t.Run("assigns a request id", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/health", "")
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("sets security headers", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/health", "")
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})

	t.Run("serves prometheus metrics", func(t *testing.T) {
		// Labeled collectors only surface once a calculation ran.
		body := `{"data": {"date": "2024-03-15", "stocks_up_4pct_daily": 300, "stocks_down_4pct_daily": 100}}`
		rec := doJSON(t, router, http.MethodPost, "/api/breadth/calculate", body)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "breadth_calculations_total")
	})

	t.Run("unknown route returns 404", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
