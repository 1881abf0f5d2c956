// Package failures defines the error taxonomy shared by the fingerprinting
// engine, its persistence layers, and the CLI.
//
// Key responsibilities:
//   - Sentinel markers for per-file, recoverable, and systemic failures.
//   - The Wrap helper that stamps component and operation context onto an
//     error while keeping the marker reachable through errors.Is.
//   - Classify, which maps any error to the severity the batch should apply:
//     skip the file, log and continue, or abort the run.
//
// Tag new failure paths with one of these markers so the worker pool and the
// CLI exit status stay consistent.
package failures
