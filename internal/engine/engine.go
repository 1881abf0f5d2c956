// Package engine wires discovery, fingerprinting, watched filtering and
// grouping into the three operations the CLI exposes: finding similar
// videos, building a watched database and inspecting one.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"vidfinder/internal/config"
	"vidfinder/internal/failures"
	"vidfinder/internal/hashcache"
	"vidfinder/internal/logging"
	"vidfinder/internal/media/ffmpeg"
	"vidfinder/internal/media/ffprobe"
	"vidfinder/internal/pool"
	"vidfinder/internal/preflight"
	"vidfinder/internal/sampler"
	"vidfinder/internal/scan"
	"vidfinder/internal/similarity"
	"vidfinder/internal/video"
	"vidfinder/internal/watched"
)

// Engine runs scans with one configuration.
type Engine struct {
	cfg      *config.Config
	prober   pool.Prober
	decoder  sampler.FrameDecoder
	observer pool.Observer
	logger   *slog.Logger
	// externalMedia is set when the media tools are ffmpeg/ffprobe and must be
	// checked before a run.
	externalMedia bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMedia replaces the ffprobe/ffmpeg primitives.
func WithMedia(prober pool.Prober, decoder sampler.FrameDecoder) Option {
	return func(e *Engine) {
		e.prober = prober
		e.decoder = decoder
		e.externalMedia = false
	}
}

// WithObserver receives per-file progress.
func WithObserver(o pool.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New builds an Engine backed by ffprobe and ffmpeg unless overridden.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg: cfg,
		prober: ffprobe.Prober{
			Binary:  cfg.Media.FFprobeBinary,
			Timeout: cfg.FrameTimeoutValue(),
		},
		decoder: ffmpeg.Decoder{
			Binary:  cfg.Media.FFmpegBinary,
			Width:   cfg.Media.DecodeWidth,
			Timeout: cfg.FrameTimeoutValue(),
		},
		externalMedia: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.logger = logging.NewComponentLogger(e.logger, "engine")
	return e
}

// Params are the hashing and matching parameters a run used.
type Params struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Frames    int     `json:"frames" yaml:"frames"`
	HashSize  int     `json:"hash_size" yaml:"hash_size"`
	TotalBits int     `json:"total_bits" yaml:"total_bits"`
	MaxDist   int     `json:"max_distance" yaml:"max_distance"`
}

func paramsOf(cfg *config.Config) Params {
	return Params{
		Threshold: cfg.Scan.Threshold,
		Frames:    cfg.Scan.Frames,
		HashSize:  cfg.Scan.HashSize,
		TotalBits: cfg.TotalBits(),
		MaxDist:   similarity.Options{Threshold: cfg.Scan.Threshold, TotalBits: cfg.TotalBits()}.MaxDistance(),
	}
}

func (p Params) watched() watched.Params {
	return watched.Params{Frames: p.Frames, HashSize: p.HashSize}
}

// Stats summarises fingerprinting for one run.
type Stats struct {
	Discovered int             `json:"discovered" yaml:"discovered"`
	Computed   int             `json:"computed" yaml:"computed"`
	Cached     int             `json:"cached" yaml:"cached"`
	Failed     int             `json:"failed" yaml:"failed"`
	Cache      hashcache.Stats `json:"cache" yaml:"cache"`
	Elapsed    time.Duration   `json:"elapsed" yaml:"elapsed"`
}

type fingerprintRun struct {
	files  []video.File
	report pool.Report
	cache  hashcache.Stats
}

// fingerprintDir discovers videos under root and fingerprints them with the
// root's cache. The cache is always closed, so completed entries are flushed
// even when the run fails.
func (e *Engine) fingerprintDir(ctx context.Context, cfg *config.Config, root string, prune bool, logger *slog.Logger) (run fingerprintRun, err error) {
	files, err := scan.Discover(root, scan.Options{
		Recursive:   cfg.Scan.Recursive,
		Extensions:  cfg.Scan.Extensions,
		ExcludeDirs: []string{cfg.Move.DuplicatesDir, cfg.Move.WatchedDir, cfg.Move.SkippedDir},
	})
	if err != nil {
		return run, failures.Wrap(failures.ErrConfiguration, "engine", "discover", root, err)
	}
	run.files = files
	logger.Info("videos discovered",
		logging.String("root", root),
		logging.Int("count", len(files)),
		logging.Bool("recursive", cfg.Scan.Recursive),
	)

	cache, err := hashcache.Open(hashcache.Options{
		Path:          cfg.CachePath(root),
		Frames:        cfg.Scan.Frames,
		HashSize:      cfg.Scan.HashSize,
		QueueSize:     cfg.Cache.QueueSize,
		BatchSize:     cfg.Cache.BatchSize,
		FlushInterval: cfg.FlushInterval(),
		PruneOnClose:  prune,
		Logger:        logger,
	})
	if err != nil {
		return run, err
	}
	defer func() {
		closeErr := cache.Close()
		run.cache = cache.Stats()
		if closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	report, err := pool.Run(ctx, files, pool.Options{
		Workers:  cfg.Scan.Workers,
		HashSize: cfg.Scan.HashSize,
		Prober:   e.prober,
		Sampler:  sampler.New(e.decoder, cfg.Scan.Frames, cfg.SkipDurationValue(), logger),
		Cache:    cache,
		Observer: e.observer,
		Logger:   logger,
	})
	run.report = report
	return run, err
}

func (e *Engine) preflight(cfg *config.Config, plan preflight.Plan) error {
	plan.NeedsMedia = e.externalMedia
	return preflight.Err(preflight.RunAll(cfg, plan))
}

// adoptWatchedParams replaces frames and hash size with the database's when
// it exists.
func (e *Engine) adoptWatchedParams(ctx context.Context, cfg *config.Config, dbPath string, logger *slog.Logger) error {
	params, err := watched.ReadParams(ctx, dbPath, logger)
	if errors.Is(err, watched.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if params.Frames == cfg.Scan.Frames && params.HashSize == cfg.Scan.HashSize {
		return nil
	}
	logger.Info("adopting watched database parameters",
		logging.String(logging.FieldPath, dbPath),
		logging.Int("frames", params.Frames),
		logging.Int("hash_size", params.HashSize),
	)
	cfg.Scan.Frames = params.Frames
	cfg.Scan.HashSize = params.HashSize
	return cfg.Validate()
}

func absRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}
	return abs, nil
}

func toItems(results []pool.Result) []similarity.Item {
	items := make([]similarity.Item, 0, len(results))
	for _, r := range results {
		items = append(items, similarity.Item{File: r.File, Fingerprint: r.Fingerprint})
	}
	return items
}

func statsOf(run fingerprintRun) Stats {
	return Stats{
		Discovered: len(run.files),
		Computed:   run.report.Computed,
		Cached:     run.report.Cached,
		Failed:     len(run.report.Failures),
		Cache:      run.cache,
		Elapsed:    run.report.Elapsed,
	}
}
