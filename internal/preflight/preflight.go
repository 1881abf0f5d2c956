package preflight

import (
	"errors"
	"fmt"
	"strings"

	"vidfinder/internal/config"
	"vidfinder/internal/failures"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail" yaml:"detail"`
}

// Plan lists what a run is about to touch.
type Plan struct {
	ScanRoot     string
	CachePath    string
	WatchedDB    string
	WriteWatched bool
	NeedsMedia   bool
	// WritableRoot checks ScanRoot for write access instead of read access.
	WritableRoot bool
}

// RunAll executes the checks that apply to plan.
func RunAll(cfg *config.Config, plan Plan) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if plan.WritableRoot {
		results = append(results, CheckDirectoryAccess("Scan directory", plan.ScanRoot))
	} else {
		results = append(results, CheckDirectoryReadable("Scan directory", plan.ScanRoot))
	}
	if plan.CachePath != "" {
		results = append(results, CheckFileWritable("Cache file", plan.CachePath))
	}
	if plan.WriteWatched && plan.WatchedDB != "" {
		results = append(results, CheckFileWritable("Watched database", plan.WatchedDB))
	}
	if plan.NeedsMedia {
		for _, status := range CheckSystemDeps(cfg) {
			detail := status.Resolved
			if !status.Available {
				detail = status.Detail
			}
			results = append(results, Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: detail})
		}
	}
	return results
}

// Err folds failed results into a single error tagged with the matching
// fatal sentinel.
func Err(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Passed {
			continue
		}
		marker := failures.ErrConfiguration
		switch {
		case strings.HasPrefix(r.Name, "Cache"):
			marker = failures.ErrCacheUnwritable
		case strings.HasPrefix(r.Name, "Watched"):
			marker = failures.ErrWatchedDBUnwritable
		}
		errs = append(errs, fmt.Errorf("%w: %s: %s", marker, r.Name, r.Detail))
	}
	return errors.Join(errs...)
}
