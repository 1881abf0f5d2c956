package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"vidfinder/internal/config"
	"vidfinder/internal/engine"
	"vidfinder/internal/mover"
	"vidfinder/internal/report"
)

type scanFlags struct {
	threshold        float64
	frames           int
	hashSize         int
	cacheFile        string
	workers          int
	recursive        bool
	skipDuration     float64
	watchedDB        string
	useWatchedParams bool
	updateWatched    bool
	format           string
	move             bool
	yes              bool
}

func (f *scanFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.Float64VarP(&f.threshold, "threshold", "t", 90, "Similarity threshold percentage (0-100)")
	fl.IntVarP(&f.frames, "frames", "f", 20, "Frames sampled per video")
	fl.IntVar(&f.hashSize, "hash-size", 8, "Difference-hash grid size")
	fl.StringVar(&f.cacheFile, "cache-file", "", "Cache file name inside the scanned directory, or an absolute path")
	fl.IntVarP(&f.workers, "workers", "w", 0, "Parallel workers (default: CPU count)")
	fl.BoolVarP(&f.recursive, "recursive", "r", false, "Scan subdirectories")
	fl.Float64Var(&f.skipDuration, "skip-duration", 10, "Skip videos shorter than this many seconds")
	fl.StringVar(&f.watchedDB, "watched-db", "", "Watched database used to exclude already seen videos")
	fl.BoolVar(&f.useWatchedParams, "use-watched-params", false, "Adopt the watched database's frames and hash size")
	fl.BoolVar(&f.updateWatched, "update-watched", false, "Add unique videos to the watched database after the scan")
	fl.StringVar(&f.format, "format", "table", "Output format (table, json, yaml)")
	fl.BoolVar(&f.move, "move", false, "Move duplicates, watched matches and skipped files into subdirectories")
	fl.BoolVarP(&f.yes, "yes", "y", false, "Do not ask for confirmation before moving")
}

// overrides returns only the flags the user set, so config file values
// survive unset flags.
func (f *scanFlags) overrides(cmd *cobra.Command) config.Overrides {
	fl := cmd.Flags()
	var o config.Overrides
	if fl.Changed("threshold") {
		o.Threshold = &f.threshold
	}
	if fl.Changed("frames") {
		o.Frames = &f.frames
	}
	if fl.Changed("hash-size") {
		o.HashSize = &f.hashSize
	}
	if fl.Changed("cache-file") {
		o.CacheFile = &f.cacheFile
	}
	if fl.Changed("workers") {
		o.Workers = &f.workers
	}
	if fl.Changed("recursive") {
		o.Recursive = &f.recursive
	}
	if fl.Changed("skip-duration") {
		o.SkipDuration = &f.skipDuration
	}
	if fl.Changed("watched-db") {
		o.WatchedDB = &f.watchedDB
	}
	return o
}

func runScan(cmd *cobra.Command, ctx *commandContext, flags *scanFlags, dir string) error {
	format, err := report.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	cfg, err := ctx.ensureConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Apply(flags.overrides(cmd)); err != nil {
		return err
	}
	logger, err := ctx.ensureLogger(cfg)
	if err != nil {
		return err
	}

	req := engine.FindRequest{
		Root:             dir,
		WatchedDB:        cfg.Watched.DBPath,
		UseWatchedParams: flags.useWatchedParams,
		UpdateWatched:    flags.updateWatched,
		WritableRoot:     flags.move,
	}
	if req.UpdateWatched && req.WatchedDB == "" {
		cwd, err := workingDir()
		if err != nil {
			return err
		}
		req.WatchedDB = cfg.WatchedDBPath(cwd)
	}

	eng, progress := ctx.newEngine(cmd, cfg, logger, format == report.FormatTable)
	res, err := eng.FindSimilar(cmd.Context(), req)
	progress.Finish()
	if err != nil {
		return err
	}
	if err := report.WriteScan(cmd.OutOrStdout(), format, res); err != nil {
		return err
	}
	if !flags.move {
		return nil
	}

	plan := mover.NewPlan(res.Root, mover.Dirs{
		Duplicates: cfg.Move.DuplicatesDir,
		Watched:    cfg.Move.WatchedDir,
		Skipped:    cfg.Move.SkippedDir,
	}, res.Groups, res.WatchedMatches, res.Skipped)
	if len(plan.Moves) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to move.")
		return nil
	}
	if !flags.yes {
		if err := report.WritePlan(cmd.ErrOrStderr(), plan); err != nil {
			return err
		}
		if !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Proceed?") {
			fmt.Fprintln(cmd.ErrOrStderr(), "No files moved.")
			return nil
		}
	}
	summary, err := mover.Execute(cmd.Context(), plan, logger)
	if err != nil {
		return err
	}
	return report.WriteMoves(cmd.OutOrStdout(), format, res.Root, summary)
}

// confirm asks a y/N question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
