package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidfinder/internal/config"
)

// ConfigOption adjusts a test configuration. dir is the temp directory that
// backs it.
type ConfigOption func(t testing.TB, dir string, cfg *config.Config)

// NewConfig returns defaults shrunk for tests: 4 frames of an 8x8 grid (256
// bits), two workers, a 10s minimum duration, tiny committer batches and a log
// file under a fresh temp directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Scan.Frames, cfg.Scan.HashSize, cfg.Scan.Workers = 4, 8, 2
	cfg.Scan.SkipDuration = 10
	cfg.Cache.QueueSize, cfg.Cache.BatchSize = 4, 4
	cfg.Cache.FlushIntervalMS = 20
	cfg.Logging.File = filepath.Join(dir, "logs", "vidfinder.log")

	for _, apply := range opts {
		apply(t, dir, &cfg)
	}
	return &cfg
}

// BaseDir returns the temp directory NewConfig allocated for cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(filepath.Dir(cfg.Logging.File))
}

// WithScan sets frames, hash size and worker count.
func WithScan(frames, hashSize, workers int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Scan.Frames, cfg.Scan.HashSize, cfg.Scan.Workers = frames, hashSize, workers
	}
}

// WithThreshold sets the similarity percentage.
func WithThreshold(threshold float64) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Scan.Threshold = threshold
	}
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg and ffprobe
// by default) at the front of PATH for the duration of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, dir string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		bin := filepath.Join(dir, "bin")
		for _, name := range names {
			WriteExecutable(t, filepath.Join(bin, name), "exit 0")
		}
		t.Setenv("PATH", strings.Join([]string{bin, os.Getenv("PATH")}, string(os.PathListSeparator)))
	}
}

// WriteExecutable writes a /bin/sh script with the given body.
func WriteExecutable(t testing.TB, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("testsupport: mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("testsupport: write %s: %v", path, err)
	}
}
