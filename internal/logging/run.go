package logging

import (
	"log/slog"

	"github.com/google/uuid"
)

// NewRunID returns a fresh identifier for one engine invocation.
func NewRunID() string {
	return uuid.NewString()
}

// WithRun stamps every record emitted through the returned logger with runID.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if runID == "" {
		return logger
	}
	return logger.With(String(FieldRunID, runID))
}
