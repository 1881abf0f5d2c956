package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vidfinder/internal/failures"
	"vidfinder/internal/logging"
	"vidfinder/internal/pool"
	"vidfinder/internal/preflight"
	"vidfinder/internal/similarity"
	"vidfinder/internal/video"
	"vidfinder/internal/watched"
)

// FindRequest selects what a similarity scan does besides grouping.
type FindRequest struct {
	Root string
	// WatchedDB enables filter mode when non-empty.
	WatchedDB string
	// UseWatchedParams adopts the database's frames and hash size.
	UseWatchedParams bool
	// UpdateWatched adds unique videos to WatchedDB after the scan.
	UpdateWatched bool
	// WritableRoot requires write access to Root; set when results will be
	// moved into subdirectories.
	WritableRoot bool
}

// FindResult is the outcome of a completed similarity scan.
type FindResult struct {
	RunID          string                `json:"run_id" yaml:"run_id"`
	Root           string                `json:"root" yaml:"root"`
	Params         Params                `json:"params" yaml:"params"`
	Stats          Stats                 `json:"stats" yaml:"stats"`
	Groups         []similarity.Group    `json:"groups" yaml:"groups"`
	Unique         []video.File          `json:"unique" yaml:"unique"`
	WatchedDB      string                `json:"watched_db,omitempty" yaml:"watched_db,omitempty"`
	WatchedRecords int                   `json:"watched_records" yaml:"watched_records"`
	WatchedMatches []watched.Match       `json:"watched_matches" yaml:"watched_matches"`
	WatchedUpdate  *watched.UpsertResult `json:"watched_update,omitempty" yaml:"watched_update,omitempty"`
	Skipped        []pool.Failure        `json:"skipped" yaml:"skipped"`
}

// FindSimilar fingerprints every video under req.Root, removes watched
// matches and groups the rest. On ErrInterrupted or any fatal error the
// returned result carries statistics only; groups are never partial.
func (e *Engine) FindSimilar(ctx context.Context, req FindRequest) (*FindResult, error) {
	started := time.Now()
	root, err := absRoot(req.Root)
	if err != nil {
		return nil, failures.Wrap(failures.ErrConfiguration, "engine", "resolve root", req.Root, err)
	}
	runID := logging.NewRunID()
	logger := logging.WithRun(e.logger, runID)

	cfg := *e.cfg
	if req.UpdateWatched && req.WatchedDB == "" {
		return nil, failures.Wrap(failures.ErrConfiguration, "engine", "validate", "updating the watched database requires a database path", nil)
	}
	if req.WatchedDB != "" && req.UseWatchedParams {
		if err := e.adoptWatchedParams(ctx, &cfg, req.WatchedDB, logger); err != nil {
			return nil, err
		}
	}
	params := paramsOf(&cfg)
	result := &FindResult{RunID: runID, Root: root, Params: params, WatchedDB: req.WatchedDB}

	if err := e.preflight(&cfg, preflight.Plan{
		ScanRoot:     root,
		CachePath:    cfg.CachePath(root),
		WatchedDB:    req.WatchedDB,
		WriteWatched: req.UpdateWatched,
		WritableRoot: req.WritableRoot,
	}); err != nil {
		return nil, err
	}

	var filter *watched.Filter
	if req.WatchedDB != "" {
		filter, err = e.loadFilter(ctx, req.WatchedDB, params, logger)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			result.WatchedRecords = filter.Len()
		}
	}

	logger.Info("similarity scan started",
		logging.String("root", root),
		logging.Float64("threshold", params.Threshold),
		logging.Int("frames", params.Frames),
		logging.Int("hash_size", params.HashSize),
		logging.Int("max_distance", params.MaxDist),
	)

	run, err := e.fingerprintDir(ctx, &cfg, root, true, logger)
	result.Stats = statsOf(run)
	result.Skipped = run.report.Failures
	if err != nil {
		if errors.Is(err, failures.ErrInterrupted) {
			logger.Warn("scan interrupted; completed fingerprints were flushed to the cache",
				logging.Int("completed", len(run.report.Results)),
				logging.Int("total", len(run.files)),
			)
		}
		return result, err
	}

	items := toItems(run.report.Results)
	if filter != nil {
		items, result.WatchedMatches = filter.Apply(items)
		logger.Info("watched filter applied",
			logging.Int("removed", len(result.WatchedMatches)),
			logging.Int("remaining", len(items)),
		)
	}

	result.Groups = similarity.FindGroups(items, similarity.Options{
		Threshold: params.Threshold,
		TotalBits: params.TotalBits,
		Logger:    logger,
	})
	result.Unique = uniqueFiles(items, result.Groups)

	if req.UpdateWatched {
		update, err := e.addUnique(ctx, req.WatchedDB, params, items, result.Groups, logger)
		if err != nil {
			return result, err
		}
		result.WatchedUpdate = &update
	}

	result.Stats.Elapsed = time.Since(started)
	logger.Info("similarity scan finished",
		logging.Int("videos", len(run.files)),
		logging.Int("groups", len(result.Groups)),
		logging.Int("skipped", len(result.Skipped)),
		logging.Int("watched_matches", len(result.WatchedMatches)),
		logging.Int64("cache_hits", run.cache.Hits),
		logging.Duration("elapsed", result.Stats.Elapsed),
	)
	return result, nil
}

// loadFilter reads every watched record and releases the database before
// fingerprinting starts. A missing database disables filtering.
func (e *Engine) loadFilter(ctx context.Context, path string, params Params, logger *slog.Logger) (*watched.Filter, error) {
	db, err := watched.OpenReadOnly(ctx, path, logger)
	if errors.Is(err, watched.ErrNotFound) {
		logging.WarnWithContext(logger, "watched database not found, filtering disabled", "watched_missing",
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldImpact, "watched videos will not be removed from results"),
			logging.String(logging.FieldErrorHint, "build it with vidfinder watched build"),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if db.Params() != params.watched() {
		return nil, failures.Wrap(failures.ErrParameterMismatch, "engine", "load watched",
			fmt.Sprintf("%s was built with %s, scan uses %s; pass --use-watched-params to adopt them",
				path, db.Params(), params.watched()), nil)
	}
	records, err := db.Records(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("watched records loaded",
		logging.String(logging.FieldPath, path),
		logging.Int("records", len(records)),
	)
	return watched.NewFilter(records, params.Threshold, params.TotalBits), nil
}

// addUnique re-opens the database exclusively and records every video that
// is neither grouped nor already watched.
func (e *Engine) addUnique(ctx context.Context, path string, params Params, items []similarity.Item, groups []similarity.Group, logger *slog.Logger) (watched.UpsertResult, error) {
	grouped := groupedPaths(groups)
	var entries []watched.Entry
	for _, it := range items {
		if _, ok := grouped[it.File.Path]; ok {
			continue
		}
		entries = append(entries, watched.Entry{File: it.File, Fingerprint: it.Fingerprint})
	}
	db, err := watched.OpenWritable(ctx, path, params.watched(), logger)
	if err != nil {
		return watched.UpsertResult{}, err
	}
	defer db.Close()
	res, err := db.Upsert(ctx, entries)
	if err != nil {
		return res, err
	}
	logger.Info("watched database updated",
		logging.String(logging.FieldPath, path),
		logging.Int("inserted", res.Inserted),
		logging.Int("updated", res.Updated),
		logging.Int("unchanged", res.Unchanged),
	)
	return res, nil
}

func groupedPaths(groups []similarity.Group) map[string]struct{} {
	out := make(map[string]struct{})
	for _, g := range groups {
		for _, m := range g.Members {
			out[m.Path] = struct{}{}
		}
	}
	return out
}

func uniqueFiles(items []similarity.Item, groups []similarity.Group) []video.File {
	grouped := groupedPaths(groups)
	var out []video.File
	for _, it := range items {
		if _, ok := grouped[it.File.Path]; !ok {
			out = append(out, it.File)
		}
	}
	return out
}
