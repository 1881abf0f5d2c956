package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"vidfinder/internal/config"
	"vidfinder/internal/deps"
)

func failed(name, path, format string, args ...any) Result {
	return Result{Name: name, Detail: path + " (error: " + fmt.Sprintf(format, args...) + ")"}
}

// checkDir verifies path is a directory granting the unix access bits in mode.
func checkDir(name, path string, mode uint32, ok string) Result {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return failed(name, path, "does not exist")
	case err != nil:
		return failed(name, path, "stat: %v", err)
	case !info.IsDir():
		return failed(name, path, "is not a directory")
	}
	if err := unix.Access(path, mode); err != nil {
		return failed(name, path, "insufficient permissions: %v", err)
	}
	return Result{Name: name, Passed: true, Detail: path + " (" + ok + ")"}
}

// CheckDirectoryAccess verifies the directory can be listed and modified.
func CheckDirectoryAccess(name, path string) Result {
	return checkDir(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies the directory can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDir(name, path, unix.R_OK|unix.X_OK, "read ok")
}

// CheckFileWritable verifies that path can be replaced: an existing file must
// be writable and its directory must accept new entries for the atomic swap.
func CheckFileWritable(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return failed(name, path, "is a directory")
	case err == nil:
		if err := unix.Access(path, unix.W_OK); err != nil {
			return failed(name, path, "not writable: %v", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return failed(name, path, "stat: %v", err)
	}
	dir := filepath.Dir(path)
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return failed(name, path, "directory %s not writable: %v", dir, err)
	}
	return Result{Name: name, Passed: true, Detail: path + " (writable)"}
}

// Requirements lists the binaries the configured media tools resolve to.
func Requirements(cfg *config.Config) []deps.Requirement {
	return []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Media.FFmpegBinary,
			Description: "Required for frame extraction",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Media.FFprobeBinary,
			Description: "Required for duration probing",
		},
	}
}

// CheckSystemDeps evaluates the external binaries for the given config. Both
// the scan path and the doctor command use it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(Requirements(cfg))
}
