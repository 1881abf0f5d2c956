// Package scan discovers candidate video files below a root directory.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"vidfinder/internal/video"
)

// Options controls traversal.
type Options struct {
	Recursive bool
	// Extensions are lowercase, dot-prefixed suffixes; matching is case-insensitive.
	Extensions []string
	// ExcludeDirs are skipped entirely. Relative entries resolve against root.
	ExcludeDirs []string
}

// Discover lists video files under root sorted by absolute path. Only stat
// information is read; duration is filled in later by the prober.
func Discover(root string, opts Options) ([]video.File, error) {
	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", absRoot)
	}

	excluded := buildExcluded(absRoot, opts.ExcludeDirs)
	files := make([]video.File, 0, 128)
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if !opts.Recursive || isExcluded(path, excluded) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !hasExtension(d.Name(), opts.Extensions) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, video.File{
			Path:    path,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}

	slices.SortFunc(files, func(a, b video.File) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

// Stat builds a File for a single path.
func Stat(path string) (video.File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return video.File{}, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return video.File{}, err
	}
	return video.File{Path: abs, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	return slices.Contains(extensions, ext)
}

func buildExcluded(root string, dirs []string) []string {
	excluded := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		excluded = append(excluded, filepath.Clean(dir))
	}
	slices.Sort(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if path == base || strings.HasPrefix(path, base+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
