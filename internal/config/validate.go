package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"vidfinder/internal/failures"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScan(); err != nil {
		return configError("validate", err)
	}
	if err := c.validateCache(); err != nil {
		return configError("validate", err)
	}
	if err := c.validateMedia(); err != nil {
		return configError("validate", err)
	}
	if err := c.validateLogging(); err != nil {
		return configError("validate", err)
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.Threshold < 0 || c.Scan.Threshold > 100 {
		return fmt.Errorf("scan.threshold must be between 0 and 100, got %v", c.Scan.Threshold)
	}
	if c.Scan.Frames <= 0 {
		return fmt.Errorf("scan.frames must be positive, got %d", c.Scan.Frames)
	}
	if c.Scan.HashSize <= 1 {
		return fmt.Errorf("scan.hash_size must be greater than 1, got %d", c.Scan.HashSize)
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("scan.workers must be positive, got %d", c.Scan.Workers)
	}
	if c.Scan.SkipDuration < 0 {
		return fmt.Errorf("scan.skip_duration cannot be negative, got %v", c.Scan.SkipDuration)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.FileName == "" {
		return errors.New("cache.file_name must be set")
	}
	if !filepath.IsAbs(c.Cache.FileName) && filepath.Base(c.Cache.FileName) != c.Cache.FileName {
		return fmt.Errorf("cache.file_name %q must be a bare file name or an absolute path", c.Cache.FileName)
	}
	if c.Cache.QueueSize <= 0 {
		return errors.New("cache.queue_size must be positive")
	}
	if c.Cache.BatchSize <= 0 {
		return errors.New("cache.batch_size must be positive")
	}
	if c.Cache.FlushIntervalMS < 0 {
		return errors.New("cache.flush_interval_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.FrameTimeout <= 0 {
		return errors.New("media.frame_timeout must be positive (seconds)")
	}
	if c.Media.DecodeWidth < 0 {
		return errors.New("media.decode_width must be >= 0")
	}
	if c.Media.DecodeWidth > 0 && c.Media.DecodeWidth <= c.Scan.HashSize {
		return fmt.Errorf("media.decode_width (%d) must exceed scan.hash_size (%d)", c.Media.DecodeWidth, c.Scan.HashSize)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func configError(operation string, err error) error {
	return failures.Wrap(failures.ErrConfiguration, "config", operation, "", err)
}
