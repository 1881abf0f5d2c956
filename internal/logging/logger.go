package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidfinder/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level string
	// Format is "console" (default) or "json".
	Format string
	// OutputPaths accepts "stdout", "stderr" or file paths. Empty means stderr.
	OutputPaths []string
	Development bool
	// Color forces level colouring on or off; nil detects a terminal.
	Color *bool
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New constructs a slog logger writing to every configured output.
func New(opts Options) (*slog.Logger, error) {
	level, ok := levelNames[strings.ToLower(strings.TrimSpace(opts.Level))]
	if !ok {
		level = slog.LevelInfo
	}

	out, err := openSinks(opts.OutputPaths)
	if err != nil {
		return nil, err
	}
	withSource := opts.Development || level <= slog.LevelDebug

	var handler slog.Handler
	switch f := strings.ToLower(strings.TrimSpace(opts.Format)); f {
	case "", "console":
		color := shouldColor(out)
		if opts.Color != nil {
			color = *opts.Color
		}
		handler = newPrettyHandler(out, levelVar(level), withSource, color)
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       level,
			AddSource:   withSource,
			ReplaceAttr: jsonAttr,
		})
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	return slog.New(handler), nil
}

// NewFromConfig builds the process logger from the [logging] section. Output
// always goes to stderr and additionally to logging.file when set.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	paths := []string{"stderr"}
	if cfg.Logging.File != "" {
		paths = append(paths, cfg.Logging.File)
	}
	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: paths,
	})
}

func levelVar(level slog.Level) *slog.LevelVar {
	v := new(slog.LevelVar)
	v.Set(level)
	return v
}

// jsonAttr renames time to ts in RFC 3339 UTC, lowercases the level and
// shortens source locations to file:line.
func jsonAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
		if a.Value.Kind() == slog.KindTime {
			a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
			a.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return a
}

func openSinks(paths []string) (io.Writer, error) {
	var sinks []io.Writer
	opened := make(map[string]bool, len(paths))
	for _, raw := range paths {
		p := strings.TrimSpace(raw)
		if p == "" || opened[p] {
			continue
		}
		opened[p] = true
		w, err := openSink(p)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, w)
	}
	if len(sinks) == 0 {
		return os.Stderr, nil
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return io.MultiWriter(sinks...), nil
}

func openSink(p string) (io.Writer, error) {
	switch p {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", p, err)
	}
	return f, nil
}
