// Package logging assembles structured slog loggers and formatting helpers used
// across vidfinder.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes field helpers so the worker pool, cache committer, and
// watched database emit data with the same shape. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup.
package logging
