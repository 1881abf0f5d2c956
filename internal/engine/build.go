package engine

import (
	"context"
	"time"

	"vidfinder/internal/failures"
	"vidfinder/internal/hashcache"
	"vidfinder/internal/logging"
	"vidfinder/internal/pool"
	"vidfinder/internal/preflight"
	"vidfinder/internal/watched"
)

// BuildRequest populates a watched database from a source directory.
type BuildRequest struct {
	Source    string
	WatchedDB string
	// UseWatchedParams adopts an existing database's frames and hash size.
	UseWatchedParams bool
}

// BuildResult is the outcome of a watched database build.
type BuildResult struct {
	RunID     string               `json:"run_id" yaml:"run_id"`
	Source    string               `json:"source" yaml:"source"`
	WatchedDB string               `json:"watched_db" yaml:"watched_db"`
	Params    Params               `json:"params" yaml:"params"`
	Stats     Stats                `json:"stats" yaml:"stats"`
	Upsert    watched.UpsertResult `json:"upsert" yaml:"upsert"`
	Records   int                  `json:"records" yaml:"records"`
	Skipped   []pool.Failure       `json:"skipped" yaml:"skipped"`
}

// BuildWatched fingerprints every eligible video under req.Source and upserts
// one record per file. The database stays exclusively locked for the whole
// build so that no filter run reads it half-written.
func (e *Engine) BuildWatched(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	started := time.Now()
	source, err := absRoot(req.Source)
	if err != nil {
		return nil, failures.Wrap(failures.ErrConfiguration, "engine", "resolve source", req.Source, err)
	}
	if req.WatchedDB == "" {
		return nil, failures.Wrap(failures.ErrConfiguration, "engine", "validate", "watched database path is empty", nil)
	}
	runID := logging.NewRunID()
	logger := logging.WithRun(e.logger, runID)

	cfg := *e.cfg
	if req.UseWatchedParams {
		if err := e.adoptWatchedParams(ctx, &cfg, req.WatchedDB, logger); err != nil {
			return nil, err
		}
	}
	params := paramsOf(&cfg)

	if err := e.preflight(&cfg, preflight.Plan{
		ScanRoot:     source,
		CachePath:    cfg.CachePath(source),
		WatchedDB:    req.WatchedDB,
		WriteWatched: true,
	}); err != nil {
		return nil, err
	}

	db, err := watched.OpenWritable(ctx, req.WatchedDB, params.watched(), logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	logger.Info("watched build started",
		logging.String("source", source),
		logging.String(logging.FieldPath, req.WatchedDB),
		logging.Int("frames", params.Frames),
		logging.Int("hash_size", params.HashSize),
	)

	result := &BuildResult{RunID: runID, Source: source, WatchedDB: req.WatchedDB, Params: params}
	run, err := e.fingerprintDir(ctx, &cfg, source, true, logger)
	result.Stats = statsOf(run)
	result.Skipped = run.report.Failures
	if err != nil {
		return result, err
	}

	entries := make([]watched.Entry, 0, len(run.report.Results))
	for _, r := range run.report.Results {
		entries = append(entries, watched.Entry{File: r.File, Fingerprint: r.Fingerprint})
	}
	result.Upsert, err = db.Upsert(ctx, entries)
	if err != nil {
		return result, err
	}
	if result.Records, err = db.Count(ctx); err != nil {
		return result, err
	}
	result.Stats.Elapsed = time.Since(started)
	logger.Info("watched build finished",
		logging.Int("inserted", result.Upsert.Inserted),
		logging.Int("updated", result.Upsert.Updated),
		logging.Int("unchanged", result.Upsert.Unchanged),
		logging.Int("records", result.Records),
		logging.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// Inspection describes a watched database.
type Inspection struct {
	Path    string           `json:"path" yaml:"path"`
	Params  watched.Params   `json:"params" yaml:"params"`
	Count   int              `json:"count" yaml:"count"`
	Records []watched.Record `json:"records,omitempty" yaml:"records,omitempty"`
}

// InspectWatched reads a database's parameters and record count, plus every
// record when list is set.
func (e *Engine) InspectWatched(ctx context.Context, path string, list bool) (*Inspection, error) {
	db, err := watched.OpenReadOnly(ctx, path, e.logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	out := &Inspection{Path: path, Params: db.Params()}
	if out.Count, err = db.Count(ctx); err != nil {
		return nil, err
	}
	if list {
		if out.Records, err = db.Records(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CacheInfo reports the cache file for a scan directory.
func (e *Engine) CacheInfo(root string) (hashcache.Info, error) {
	abs, err := absRoot(root)
	if err != nil {
		return hashcache.Info{}, err
	}
	info, err := hashcache.Inspect(e.cfg.CachePath(abs))
	if err != nil {
		return info, failures.Wrap(failures.ErrCacheCorruption, "engine", "inspect cache", info.Path, err)
	}
	return info, nil
}

// PruneCache drops entries for files that no longer exist. The cache keeps
// the parameters it was built with.
func (e *Engine) PruneCache(root string) (hashcache.Stats, error) {
	info, err := e.CacheInfo(root)
	if err != nil {
		return hashcache.Stats{}, err
	}
	if !info.Exists {
		return hashcache.Stats{}, nil
	}
	cache, err := hashcache.Open(hashcache.Options{
		Path:     info.Path,
		Frames:   info.Frames,
		HashSize: info.HashSize,
		Logger:   e.logger,
	})
	if err != nil {
		return hashcache.Stats{}, err
	}
	removed := cache.Prune()
	if err := cache.Close(); err != nil {
		return cache.Stats(), err
	}
	e.logger.Info("cache pruned",
		logging.String(logging.FieldPath, info.Path),
		logging.Int("removed", removed),
	)
	return cache.Stats(), nil
}
