package config

import "time"

// Application constants for the breadth scoring service
const (
	AppName    = "Breadth Score Engine"
	AppVersion = "1.0.0"

	// Rate limiting
	DefaultRateLimit = 100 // requests per minute
	DefaultBurstSize = 50

	// Network timeouts
	DefaultHTTPTimeout = 30 * time.Second

	// File paths (relative to working directory)
	DefaultExportDir = "exports"
	DefaultLogsDir   = "logs"

	// Log settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	MaxLogFileSize   = 100 * 1024 * 1024 // 100MB

	// Batch calculation
	DefaultBatchConcurrency = 4
	MaxBatchConcurrency     = 64
)
