package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Scan contains sampling, hashing, and similarity parameters.
type Scan struct {
	// Threshold is the similarity percentage (0-100) two fingerprints must meet.
	Threshold float64 `toml:"threshold"`
	// Frames is the number of frames sampled per video.
	Frames int `toml:"frames"`
	// HashSize is the difference-hash grid edge; each frame yields HashSize² bits.
	HashSize int `toml:"hash_size"`
	// SkipDuration is the minimum video duration in seconds.
	SkipDuration float64  `toml:"skip_duration"`
	Workers      int      `toml:"workers"`
	Recursive    bool     `toml:"recursive"`
	Extensions   []string `toml:"extensions"`
}

// Cache contains configuration for the persistent fingerprint cache.
type Cache struct {
	FileName        string `toml:"file_name"`
	QueueSize       int    `toml:"queue_size"`
	BatchSize       int    `toml:"batch_size"`
	FlushIntervalMS int    `toml:"flush_interval_ms"`
}

// Watched contains configuration for the watched fingerprint database.
type Watched struct {
	DBPath   string `toml:"db_path"`
	FileName string `toml:"file_name"`
}

// Media contains configuration for the external probing and decoding tools.
type Media struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	FrameTimeout  int    `toml:"frame_timeout"`
	// DecodeWidth downsizes frames inside ffmpeg before they reach the hasher.
	DecodeWidth int `toml:"decode_width"`
}

// Move contains the subdirectory names used by the duplicate mover.
type Move struct {
	DuplicatesDir string `toml:"duplicates_dir"`
	WatchedDir    string `toml:"watched_dir"`
	SkippedDir    string `toml:"skipped_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for vidfinder.
//
// Configuration sections by subsystem:
//   - Scan: frame sampling, hash grid, similarity threshold, worker count
//   - Cache: fingerprint cache file name and committer tuning
//   - Watched: watched database location
//   - Media: ffmpeg/ffprobe binaries and decode limits
//   - Move: destination subdirectories for the mover
//   - Logging: log format, level, and optional file
type Config struct {
	Scan    Scan    `toml:"scan"`
	Cache   Cache   `toml:"cache"`
	Watched Watched `toml:"watched"`
	Media   Media   `toml:"media"`
	Move    Move    `toml:"move"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidfinder/config.toml")
}

// Load reads the configuration at path, or at the first existing default
// location when path is empty (~/.config/vidfinder/config.toml, then
// ./vidfinder.toml). A missing file is not an error: defaults are returned and
// exists is false. The result is normalized and validated.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	resolved, exists, err = locate(path)
	if err != nil {
		return nil, "", false, err
	}
	c := Default()
	if exists {
		if err := decodeFile(resolved, &c); err != nil {
			return nil, "", false, err
		}
	}
	if err := c.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}
	return &c, resolved, exists, nil
}

func decodeFile(path string, c *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(c); err != nil {
		return configError("parse config", err)
	}
	return nil
}

func locate(path string) (string, bool, error) {
	candidates := []string{path}
	if path == "" {
		candidates = []string{"~/.config/vidfinder/config.toml", "vidfinder.toml"}
	}
	var first string
	for _, candidate := range candidates {
		abs, err := expandPath(candidate)
		if err != nil {
			return "", false, err
		}
		if first == "" {
			first = abs
		}
		info, err := os.Stat(abs)
		switch {
		case err == nil && !info.IsDir():
			return abs, true, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}
	return first, false, nil
}

// Apply layers command-line overrides on top of the loaded values and
// re-validates the result.
func (c *Config) Apply(o Overrides) error {
	o.apply(c)
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

// SkipDurationValue returns the minimum duration as a time.Duration.
func (c *Config) SkipDurationValue() time.Duration {
	return time.Duration(c.Scan.SkipDuration * float64(time.Second))
}

// FrameTimeoutValue bounds a single frame decode.
func (c *Config) FrameTimeoutValue() time.Duration {
	return time.Duration(c.Media.FrameTimeout) * time.Second
}

// FlushInterval returns how long the cache committer waits before writing a partial batch.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Cache.FlushIntervalMS) * time.Millisecond
}

// BitsPerFrame returns the number of bits one frame hash carries.
func (c *Config) BitsPerFrame() int {
	return c.Scan.HashSize * c.Scan.HashSize
}

// TotalBits returns the configured fingerprint bit-length.
func (c *Config) TotalBits() int {
	return c.Scan.Frames * c.BitsPerFrame()
}

// CachePath returns the cache location for a scanned directory.
func (c *Config) CachePath(root string) string {
	if filepath.IsAbs(c.Cache.FileName) {
		return c.Cache.FileName
	}
	return filepath.Join(root, c.Cache.FileName)
}

// WatchedDBPath returns the configured watched database, falling back to the
// default file name inside root.
func (c *Config) WatchedDBPath(root string) string {
	if strings.TrimSpace(c.Watched.DBPath) != "" {
		return c.Watched.DBPath
	}
	return filepath.Join(root, c.Watched.FileName)
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, p[1:])
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return abs, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
