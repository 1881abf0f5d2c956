package logging

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// Structured keys shared by every package. FieldPath is the video, cache or
// database file an event concerns; FieldErrorHint tells the operator what to
// do next; FieldImpact is what the user loses because of the event.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldPath      = "path"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key, value string) Attr { return slog.String(key, value) }

// Error renders err under the "error" key.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// NewNop returns a logger that drops every record.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with component. A nil logger yields a no-op
// logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// WarnWithContext logs a warning that always carries event_type, impact and
// error_hint; missing fields get generic values.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logWithContext(logger, slog.LevelWarn, msg, eventType, attrs, "results may be incomplete")
}

// ErrorWithContext is WarnWithContext at error level.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logWithContext(logger, slog.LevelError, msg, eventType, attrs, "run cannot continue")
}

func logWithContext(logger *slog.Logger, level slog.Level, msg, eventType string, attrs []Attr, impact string) {
	if logger == nil {
		return
	}
	defaults := []Attr{
		String(FieldEventType, eventType),
		String(FieldImpact, impact),
		String(FieldErrorHint, "rerun with --verbose for details"),
	}
	attrs = slices.Clip(attrs)
	for _, d := range defaults {
		if !slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == d.Key }) {
			attrs = append(attrs, d)
		}
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}
