// Package pool fingerprints many videos in parallel.
//
// Each file runs cache lookup, duration probe, frame sampling and hashing on
// one of Workers goroutines. Per-file failures are collected; a fatal error
// cancels the remaining work. Results are only returned after every worker
// has exited and are sorted by path, so the output does not depend on
// scheduling order or worker count.
package pool

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"vidfinder/internal/failures"
	"vidfinder/internal/hashcache"
	"vidfinder/internal/logging"
	"vidfinder/internal/phash"
	"vidfinder/internal/sampler"
	"vidfinder/internal/video"
)

// Prober resolves a video's duration.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Cache is the read-through/write-back fingerprint store.
type Cache interface {
	Lookup(f video.File) (hashcache.Entry, bool)
	Submit(ctx context.Context, f video.File, fp phash.Fingerprint) error
}

// Observer receives per-file completion events from worker goroutines.
// Implementations must be safe for concurrent use.
type Observer interface {
	OnFileDone(done, total int, outcome Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(done, total int, outcome Outcome)

func (f ObserverFunc) OnFileDone(done, total int, outcome Outcome) { f(done, total, outcome) }

// Result is a fingerprinted video.
type Result struct {
	File        video.File
	Fingerprint phash.Fingerprint
	Cached      bool
}

// Failure is a file that could not be fingerprinted.
type Failure struct {
	File   video.File `json:"file" yaml:"file"`
	Reason string     `json:"reason" yaml:"reason"`
	Err    error      `json:"-" yaml:"-"`
	Detail string     `json:"detail" yaml:"detail"`
}

// Outcome describes one finished file.
type Outcome struct {
	Path     string
	Cached   bool
	Failed   bool
	Reason   string
	Duration time.Duration
}

// Report is the joined output of a run.
type Report struct {
	Results  []Result
	Failures []Failure
	Cached   int
	Computed int
	Elapsed  time.Duration
}

// Options configures Run.
type Options struct {
	Workers  int
	HashSize int
	Prober   Prober
	Sampler  *sampler.Sampler
	// Cache may be nil, in which case every file is computed.
	Cache    Cache
	Observer Observer
	Logger   *slog.Logger
}

type outcome struct {
	result  *Result
	failure *Failure
	elapsed time.Duration
}

// Run fingerprints files. The returned error is ErrInterrupted when ctx ends
// or the first fatal error a worker hit; the Report then holds partial data
// that must not be treated as final.
func Run(ctx context.Context, files []video.File, opts Options) (Report, error) {
	started := time.Now()
	logger := logging.NewComponentLogger(opts.Logger, "pool")
	workers := max(opts.Workers, 1)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	jobs := make(chan video.File)
	results := make(chan outcome, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				oneStarted := time.Now()
				res, err := processFile(runCtx, f, opts, logger)
				out := outcome{elapsed: time.Since(oneStarted)}
				switch {
				case err == nil:
					out.result = &res
				case runCtx.Err() != nil:
					continue
				case failures.Classify(err) == failures.SeverityFile:
					out.failure = &Failure{File: f, Reason: failures.Reason(err), Err: err, Detail: err.Error()}
				default:
					cancel(err)
					continue
				}
				results <- out
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var report Report
	done := 0
	for out := range results {
		done++
		o := Outcome{Duration: out.elapsed}
		if out.result != nil {
			report.Results = append(report.Results, *out.result)
			if out.result.Cached {
				report.Cached++
			} else {
				report.Computed++
			}
			o.Path, o.Cached = out.result.File.Path, out.result.Cached
		} else {
			report.Failures = append(report.Failures, *out.failure)
			o.Path, o.Failed, o.Reason = out.failure.File.Path, true, out.failure.Reason
			logging.WarnWithContext(logger, "video skipped", "video_skipped",
				logging.String(logging.FieldPath, out.failure.File.Path),
				logging.String("reason", out.failure.Reason),
				logging.Error(out.failure.Err),
				logging.String(logging.FieldImpact, "video is left out of grouping"),
				logging.String(logging.FieldErrorHint, "check the file with ffprobe or raise --skip-duration"),
			)
		}
		if opts.Observer != nil {
			opts.Observer.OnFileDone(done, len(files), o)
		}
	}

	slices.SortFunc(report.Results, func(a, b Result) int { return cmp.Compare(a.File.Path, b.File.Path) })
	slices.SortFunc(report.Failures, func(a, b Failure) int { return cmp.Compare(a.File.Path, b.File.Path) })
	report.Elapsed = time.Since(started)

	if cause := context.Cause(runCtx); cause != nil {
		if ctx.Err() != nil {
			return report, failures.Interrupted(ctx.Err())
		}
		return report, cause
	}
	return report, nil
}

func processFile(ctx context.Context, f video.File, opts Options, logger *slog.Logger) (Result, error) {
	if opts.Cache != nil {
		if entry, ok := opts.Cache.Lookup(f); ok {
			// Entries are not keyed on the minimum duration.
			if err := opts.Sampler.CheckDuration(f.Path, entry.Duration); err != nil {
				return Result{}, err
			}
			f.Duration = entry.Duration
			logger.Debug("cache hit", logging.String(logging.FieldPath, f.Path))
			return Result{File: f, Fingerprint: entry.Fingerprint, Cached: true}, nil
		}
	}

	duration, err := opts.Prober.Duration(ctx, f.Path)
	if err != nil {
		return Result{}, err
	}
	f.Duration = duration

	builder := phash.NewBuilder(opts.HashSize)
	if _, err := opts.Sampler.Sample(ctx, f.Path, duration, func(frame video.FrameSample) error {
		if err := builder.Add(frame.Image); err != nil {
			return failures.Wrap(failures.ErrDecode, "pool", "hash frame", f.Path, err)
		}
		return nil
	}); err != nil {
		return Result{}, err
	}
	fp := builder.Fingerprint()

	if opts.Cache != nil {
		if err := opts.Cache.Submit(ctx, f, fp); err != nil {
			if errors.Is(err, context.Canceled) {
				return Result{}, failures.Interrupted(err)
			}
			return Result{}, err
		}
	}
	logger.Debug("fingerprint computed",
		logging.String(logging.FieldPath, f.Path),
		logging.Int("frames", len(fp.Frames)),
		logging.Duration("duration", duration),
	)
	return Result{File: f, Fingerprint: fp}, nil
}
