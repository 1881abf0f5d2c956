package config

import "runtime"

const (
	defaultThreshold       = 90
	defaultFrames          = 20
	defaultHashSize        = 8
	defaultSkipDuration    = 10
	defaultCacheFileName   = ".video_hashes_cache.json"
	defaultCacheQueueSize  = 64
	defaultCacheBatchSize  = 32
	defaultCacheFlushMS    = 2000
	defaultWatchedFileName = "watched_videos.db"
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultFrameTimeout    = 30
	defaultDecodeWidth     = 160
	defaultDuplicatesDir   = "duplicates"
	defaultWatchedDir      = "watched"
	defaultSkippedDir      = "skipped"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

var defaultExtensions = []string{".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Scan: Scan{
			Threshold:    defaultThreshold,
			Frames:       defaultFrames,
			HashSize:     defaultHashSize,
			SkipDuration: defaultSkipDuration,
			Workers:      runtime.NumCPU(),
			Extensions:   append([]string(nil), defaultExtensions...),
		},
		Cache: Cache{
			FileName:        defaultCacheFileName,
			QueueSize:       defaultCacheQueueSize,
			BatchSize:       defaultCacheBatchSize,
			FlushIntervalMS: defaultCacheFlushMS,
		},
		Watched: Watched{
			FileName: defaultWatchedFileName,
		},
		Media: Media{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			FrameTimeout:  defaultFrameTimeout,
			DecodeWidth:   defaultDecodeWidth,
		},
		Move: Move{
			DuplicatesDir: defaultDuplicatesDir,
			WatchedDir:    defaultWatchedDir,
			SkippedDir:    defaultSkippedDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
