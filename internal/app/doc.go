// Package app wires configuration, logging, the calculation engine and
// the HTTP transport into a runnable server with graceful shutdown.
package app
