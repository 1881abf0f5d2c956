package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"vidfinder/internal/config"
	"vidfinder/internal/failures"
)

func TestLoadDefaultConfigWhenFileMissing(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Scan.Threshold != 90 {
		t.Fatalf("unexpected threshold: %v", cfg.Scan.Threshold)
	}
	if cfg.Scan.Frames != 20 || cfg.Scan.HashSize != 8 {
		t.Fatalf("unexpected sampling defaults: frames=%d hash_size=%d", cfg.Scan.Frames, cfg.Scan.HashSize)
	}
	if cfg.Scan.SkipDuration != 10 {
		t.Fatalf("unexpected skip duration: %v", cfg.Scan.SkipDuration)
	}
	if cfg.Scan.Workers != runtime.NumCPU() {
		t.Fatalf("expected workers to default to NumCPU, got %d", cfg.Scan.Workers)
	}
	if cfg.TotalBits() != 20*64 {
		t.Fatalf("unexpected total bits: %d", cfg.TotalBits())
	}
	if cfg.Cache.FileName != ".video_hashes_cache.json" {
		t.Fatalf("unexpected cache file: %q", cfg.Cache.FileName)
	}
}

func TestLoadFallsBackToProjectFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile("vidfinder.toml", []byte("[scan]\nframes = 7\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || filepath.Base(resolved) != "vidfinder.toml" {
		t.Fatalf("expected project config, got %q exists=%v", resolved, exists)
	}
	if cfg.Scan.Frames != 7 {
		t.Fatalf("expected frames from project file, got %d", cfg.Scan.Frames)
	}
}

func TestLoadExplicitFileExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "vidfinder.toml")
	content := `
[scan]
threshold = 85
frames = 12
hash_size = 16
extensions = ["MP4", "mkv", ".mkv"]

[watched]
db_path = "~/watched.db"

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Scan.Threshold != 85 || cfg.Scan.Frames != 12 || cfg.Scan.HashSize != 16 {
		t.Fatalf("unexpected scan section: %+v", cfg.Scan)
	}
	if got := strings.Join(cfg.Scan.Extensions, ","); got != ".mkv,.mp4" {
		t.Fatalf("expected normalized extensions, got %q", got)
	}
	if cfg.Watched.DBPath != filepath.Join(tempHome, "watched.db") {
		t.Fatalf("expected expanded watched path, got %q", cfg.Watched.DBPath)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercase level, got %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"threshold high", func(c *config.Config) { c.Scan.Threshold = 101 }, "scan.threshold"},
		{"threshold negative", func(c *config.Config) { c.Scan.Threshold = -1 }, "scan.threshold"},
		{"frames", func(c *config.Config) { c.Scan.Frames = 0 }, "scan.frames"},
		{"hash size", func(c *config.Config) { c.Scan.HashSize = 1 }, "scan.hash_size"},
		{"workers", func(c *config.Config) { c.Scan.Workers = -2 }, "scan.workers"},
		{"skip", func(c *config.Config) { c.Scan.SkipDuration = -1 }, "scan.skip_duration"},
		{"cache name", func(c *config.Config) { c.Cache.FileName = "" }, "cache.file_name"},
		{"cache nested", func(c *config.Config) { c.Cache.FileName = "a/b.json" }, "cache.file_name"},
		{"queue", func(c *config.Config) { c.Cache.QueueSize = 0 }, "cache.queue_size"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, failures.ErrConfiguration) {
				t.Fatalf("expected configuration marker, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	threshold := 75.0
	frames := 4
	workers := 0
	recursive := true
	if err := cfg.Apply(config.Overrides{
		Threshold: &threshold,
		Frames:    &frames,
		Workers:   &workers,
		Recursive: &recursive,
		Verbose:   true,
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.Scan.Threshold != 75 || cfg.Scan.Frames != 4 || !cfg.Scan.Recursive {
		t.Fatalf("overrides not applied: %+v", cfg.Scan)
	}
	if cfg.Scan.Workers != runtime.NumCPU() {
		t.Fatalf("expected zero workers to mean NumCPU, got %d", cfg.Scan.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected verbose to select debug, got %q", cfg.Logging.Level)
	}

	bad := 1
	if err := cfg.Apply(config.Overrides{HashSize: &bad}); !errors.Is(err, failures.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPathsRelativeToRoot(t *testing.T) {
	cfg := config.Default()
	root := filepath.Join(string(filepath.Separator), "videos")
	if got := cfg.CachePath(root); got != filepath.Join(root, ".video_hashes_cache.json") {
		t.Fatalf("unexpected cache path %q", got)
	}
	if got := cfg.WatchedDBPath(root); got != filepath.Join(root, "watched_videos.db") {
		t.Fatalf("unexpected watched path %q", got)
	}
	cfg.Watched.DBPath = "/elsewhere/w.db"
	if got := cfg.WatchedDBPath(root); got != "/elsewhere/w.db" {
		t.Fatalf("expected explicit watched path, got %q", got)
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	loaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if loaded.Scan.Workers != runtime.NumCPU() {
		t.Fatalf("expected sample workers=0 to resolve to NumCPU, got %d", loaded.Scan.Workers)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := config.Default()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), "hash_size = 8") {
		t.Fatalf("expected hash_size in encoded config:\n%s", data)
	}
}
