// Package ffprobe asks ffprobe for container and stream durations. Prober is
// the implementation of the worker pool's duration probe; Result exposes the
// parsed JSON for tests and diagnostics.
package ffprobe
