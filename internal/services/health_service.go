package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"breadthcli/internal/config"
)

// HealthService provides liveness and readiness checks for the server.
type HealthService struct {
	version   string
	buildTime string
	breadth   *BreadthService
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// NewHealthService creates a new health service
func NewHealthService(version, buildTime string, breadthService *BreadthService, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = config.AppVersion
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		breadth:   breadthService,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// Check returns the full health report including the engine's state.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	engine := s.breadth.HealthCheck(ctx)

	return HealthStatus{
		Status:    engine.Status,
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		},
		Services: map[string]interface{}{
			"breadth": engine,
		},
	}
}

// Ready reports whether the engine can serve calculations.
func (s *HealthService) Ready(ctx context.Context) bool {
	return len(s.breadth.HealthCheck(ctx).AlgorithmsAvailable) > 0
}

// Live reports process liveness. It always succeeds while the process
// can answer requests.
func (s *HealthService) Live(ctx context.Context) bool {
	return true
}

// Version returns build identification for the version endpoint.
func (s *HealthService) Version(ctx context.Context) map[string]string {
	return map[string]string{
		"name":       config.AppName,
		"version":    s.version,
		"build_time": s.buildTime,
	}
}
