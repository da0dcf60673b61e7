// Package logger provides structured logging setup using Go's standard
// log/slog package. Output format switches between JSON for production and
// human-readable text for development.
package logger
