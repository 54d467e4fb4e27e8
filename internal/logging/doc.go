// Package logging wraps log/slog with the handlers and attribute helpers
// shared across transskribo.
//
// Two formats are supported: a compact console format for interactive use and
// JSON for log files or machine consumption. Output can fan out to stdout,
// stderr, and an append-only log file simultaneously.
package logging
