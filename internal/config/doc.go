// Package config provides centralized configuration management for the
// breadth scoring service. Configuration is loaded from the following
// sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Struct-tag defaults (lowest priority)
//
// All environment variables follow the pattern BREADTH_* for
// namespacing:
//
//	BREADTH_SERVER_PORT=8080
//	BREADTH_LOGGING_LEVEL=info
//	BREADTH_BREADTH_DEFAULT_ALGORITHM=six_factor
//
// The loaded configuration is validated with go-playground/validator
// struct tags before use; an invalid configuration fails startup rather
// than degrading silently.
package config
