package config

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeScan()
	c.normalizeCache()
	if err := c.normalizeWatched(); err != nil {
		return err
	}
	c.normalizeMedia()
	c.normalizeMove()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizeScan() {
	if c.Scan.Workers == 0 {
		c.Scan.Workers = runtime.NumCPU()
	}
	seen := make(map[string]struct{}, len(c.Scan.Extensions))
	exts := make([]string, 0, len(c.Scan.Extensions))
	for _, ext := range c.Scan.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
		sort.Strings(exts)
	}
	c.Scan.Extensions = exts
}

func (c *Config) normalizeCache() {
	c.Cache.FileName = strings.TrimSpace(c.Cache.FileName)
}

func (c *Config) normalizeWatched() error {
	c.Watched.FileName = strings.TrimSpace(c.Watched.FileName)
	if c.Watched.FileName == "" {
		c.Watched.FileName = defaultWatchedFileName
	}
	if strings.TrimSpace(c.Watched.DBPath) == "" {
		c.Watched.DBPath = ""
		return nil
	}
	var err error
	if c.Watched.DBPath, err = expandPath(strings.TrimSpace(c.Watched.DBPath)); err != nil {
		return fmt.Errorf("watched.db_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeMove() {
	if strings.TrimSpace(c.Move.DuplicatesDir) == "" {
		c.Move.DuplicatesDir = defaultDuplicatesDir
	}
	if strings.TrimSpace(c.Move.WatchedDir) == "" {
		c.Move.WatchedDir = defaultWatchedDir
	}
	if strings.TrimSpace(c.Move.SkippedDir) == "" {
		c.Move.SkippedDir = defaultSkippedDir
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.File) == "" {
		c.Logging.File = ""
		return nil
	}
	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}
