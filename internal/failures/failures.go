package failures

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// Per-file failures: the file is skipped and the batch continues.
	ErrTooShort          = errors.New("video too short")
	ErrFrameExtraction   = errors.New("frame extraction failed")
	ErrNoFramesExtracted = errors.New("no frames extracted")
	ErrDecode            = errors.New("decode failed")

	// Recoverable failures: logged, state discarded, run continues.
	ErrCacheCorruption = errors.New("cache corrupted")

	// Fatal failures: the run aborts.
	ErrConfiguration       = errors.New("configuration error")
	ErrCacheUnwritable     = errors.New("cache unwritable")
	ErrCacheLocked         = errors.New("cache locked by another run")
	ErrWatchedDBUnwritable = errors.New("watched database unwritable")
	ErrWatchedDBLocked     = errors.New("watched database locked")
	ErrParameterMismatch   = errors.New("hashing parameter mismatch")
	ErrInterrupted         = errors.New("interrupted")
)

// Severity describes how a batch reacts to an error.
type Severity int

const (
	// SeverityFatal aborts the run.
	SeverityFatal Severity = iota
	// SeverityFile skips the affected file only.
	SeverityFile
	// SeverityRecoverable is logged and otherwise ignored.
	SeverityRecoverable
)

func (s Severity) String() string {
	switch s {
	case SeverityFile:
		return "file"
	case SeverityRecoverable:
		return "recoverable"
	default:
		return "fatal"
	}
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker. The marker should be one of the sentinels above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrDecode
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps err to the severity the batch should apply. Context
// cancellation is fatal and surfaces as ErrInterrupted through Interrupted.
func Classify(err error) Severity {
	switch {
	case err == nil:
		return SeverityRecoverable
	case errors.Is(err, ErrTooShort),
		errors.Is(err, ErrFrameExtraction),
		errors.Is(err, ErrNoFramesExtracted),
		errors.Is(err, ErrDecode):
		return SeverityFile
	case errors.Is(err, ErrCacheCorruption):
		return SeverityRecoverable
	default:
		return SeverityFatal
	}
}

// Interrupted converts context cancellation into ErrInterrupted. Other errors
// are returned unchanged.
func Interrupted(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInterrupted) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return err
}

// Reason returns a short machine-friendly label for per-file failures.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrTooShort):
		return "too_short"
	case errors.Is(err, ErrNoFramesExtracted):
		return "no_frames"
	case errors.Is(err, ErrFrameExtraction):
		return "frame_extraction"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return "error"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
