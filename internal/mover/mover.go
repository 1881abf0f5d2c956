// Package mover relocates scan results into subdirectories of the scanned
// root: non-representative group members to the duplicates directory,
// watched matches to the watched directory and unprocessable files to the
// skipped directory.
package mover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vidfinder/internal/fileutil"
	"vidfinder/internal/logging"
	"vidfinder/internal/pool"
	"vidfinder/internal/similarity"
	"vidfinder/internal/watched"
)

// maxRenameAttempts bounds the name_N suffix search.
const maxRenameAttempts = 100

// Kind names the destination a file is moved to.
type Kind string

const (
	KindDuplicate Kind = "duplicate"
	KindWatched   Kind = "watched"
	KindSkipped   Kind = "skipped"
)

// Dirs are destination directories relative to the scan root.
type Dirs struct {
	Duplicates string
	Watched    string
	Skipped    string
}

// Move is one planned relocation.
type Move struct {
	Kind   Kind   `json:"kind" yaml:"kind"`
	Source string `json:"source" yaml:"source"`
	// Dir is the absolute destination directory; the file name is chosen at
	// execution time.
	Dir  string `json:"dir" yaml:"dir"`
	Size int64  `json:"size" yaml:"size"`
}

// Plan lists moves in a deterministic order: duplicates, watched, skipped,
// each sorted by source path.
type Plan struct {
	Root  string `json:"root" yaml:"root"`
	Moves []Move `json:"moves" yaml:"moves"`
}

// Bytes returns the total size of the planned files.
func (p Plan) Bytes() int64 {
	var total int64
	for _, m := range p.Moves {
		total += m.Size
	}
	return total
}

// Count returns the number of planned moves of kind k.
func (p Plan) Count(k Kind) int {
	n := 0
	for _, m := range p.Moves {
		if m.Kind == k {
			n++
		}
	}
	return n
}

// NewPlan builds the moves for a finished scan. Group representatives stay
// in place.
func NewPlan(root string, dirs Dirs, groups []similarity.Group, matches []watched.Match, skipped []pool.Failure) Plan {
	plan := Plan{Root: root}
	dupDir := filepath.Join(root, dirs.Duplicates)
	for _, g := range groups {
		for _, f := range g.Duplicates() {
			plan.Moves = append(plan.Moves, Move{Kind: KindDuplicate, Source: f.Path, Dir: dupDir, Size: f.Size})
		}
	}
	watchedDir := filepath.Join(root, dirs.Watched)
	for _, m := range matches {
		plan.Moves = append(plan.Moves, Move{Kind: KindWatched, Source: m.File.Path, Dir: watchedDir, Size: m.File.Size})
	}
	skippedDir := filepath.Join(root, dirs.Skipped)
	for _, s := range skipped {
		plan.Moves = append(plan.Moves, Move{Kind: KindSkipped, Source: s.File.Path, Dir: skippedDir, Size: s.File.Size})
	}
	return plan
}

// Done is a completed move.
type Done struct {
	Move
	Dest string `json:"dest" yaml:"dest"`
}

// Failed is a move that could not be performed.
type Failed struct {
	Move
	Error string `json:"error" yaml:"error"`
}

// Summary reports what Execute did.
type Summary struct {
	Moved []Done `json:"moved" yaml:"moved"`
	// Kept are skipped-file moves whose destination already existed.
	Kept   []Move   `json:"kept" yaml:"kept"`
	Failed []Failed `json:"failed" yaml:"failed"`
	Bytes  int64    `json:"bytes" yaml:"bytes"`
}

// Execute performs plan. Individual failures are recorded and do not stop
// the remaining moves; only cancellation does.
func Execute(ctx context.Context, plan Plan, logger *slog.Logger) (Summary, error) {
	logger = logging.NewComponentLogger(logger, "mover")
	var summary Summary
	for _, m := range plan.Moves {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := os.MkdirAll(m.Dir, 0o755); err != nil {
			summary.Failed = append(summary.Failed, Failed{Move: m, Error: err.Error()})
			continue
		}

		var (
			dest string
			err  error
		)
		if m.Kind == KindSkipped {
			dest = filepath.Join(m.Dir, filepath.Base(m.Source))
			if _, statErr := os.Stat(dest); statErr == nil {
				logger.Info("destination exists, leaving file in place",
					logging.String(logging.FieldPath, m.Source),
					logging.String("dest", dest),
				)
				summary.Kept = append(summary.Kept, m)
				continue
			}
		} else {
			dest, err = uniqueDest(m.Dir, filepath.Base(m.Source))
		}
		if err == nil {
			err = fileutil.MoveFile(m.Source, dest)
		}
		if err != nil {
			logging.WarnWithContext(logger, "move failed", "move_failed",
				logging.String(logging.FieldPath, m.Source),
				logging.String("kind", string(m.Kind)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file left in place"),
				logging.String(logging.FieldErrorHint, "check permissions on the destination directory"),
			)
			summary.Failed = append(summary.Failed, Failed{Move: m, Error: err.Error()})
			continue
		}
		logger.Debug("file moved",
			logging.String(logging.FieldPath, m.Source),
			logging.String("dest", dest),
			logging.String("kind", string(m.Kind)),
		)
		summary.Moved = append(summary.Moved, Done{Move: m, Dest: dest})
		summary.Bytes += m.Size
	}
	return summary, nil
}

// uniqueDest returns dir/name, or dir/stem_N.ext for the first free N.
func uniqueDest(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if free, err := isFree(candidate); err != nil || free {
		return candidate, err
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxRenameAttempts; i++ {
		candidate = filepath.Join(dir, stem+"_"+strconv.Itoa(i)+ext)
		free, err := isFree(candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s in %s after %d attempts", name, dir, maxRenameAttempts)
}

func isFree(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, fs.ErrNotExist):
		return true, nil
	default:
		return false, err
	}
}
