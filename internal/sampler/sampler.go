// Package sampler picks evenly spaced timestamps across a video and pulls one
// frame per timestamp from a FrameDecoder.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"vidfinder/internal/failures"
	"vidfinder/internal/logging"
	"vidfinder/internal/video"
)

// FrameDecoder turns (path, timestamp) into a pixel grid.
type FrameDecoder interface {
	DecodeFrame(ctx context.Context, path string, timestamp time.Duration) (image.Image, error)
}

// Sampler extracts Frames frames from videos at least MinDuration long.
type Sampler struct {
	Decoder     FrameDecoder
	Frames      int
	MinDuration time.Duration
	Logger      *slog.Logger
}

// New constructs a Sampler.
func New(decoder FrameDecoder, frames int, minDuration time.Duration, logger *slog.Logger) *Sampler {
	return &Sampler{
		Decoder:     decoder,
		Frames:      frames,
		MinDuration: minDuration,
		Logger:      logging.NewComponentLogger(logger, "sampler"),
	}
}

// Timestamps returns n points at i/(n+1) of duration for i = 1..n, which keeps
// the first and last instants out of the sample.
func Timestamps(duration time.Duration, n int) []time.Duration {
	if n <= 0 || duration <= 0 {
		return nil
	}
	out := make([]time.Duration, n)
	for i := 1; i <= n; i++ {
		out[i-1] = time.Duration(float64(duration) * float64(i) / float64(n+1))
	}
	return out
}

// CheckDuration returns failures.ErrTooShort when duration is below
// MinDuration.
func (s *Sampler) CheckDuration(path string, duration time.Duration) error {
	if duration >= s.MinDuration {
		return nil
	}
	return failures.Wrap(failures.ErrTooShort, "sampler", "sample",
		fmt.Sprintf("%s (%s < %s)", path, duration.Round(time.Millisecond), s.MinDuration), nil)
}

// Sample decodes every timestamp of path in order and hands each frame to
// visit. A frame that fails to decode is dropped and logged. It returns the
// number of frames delivered.
//
// Errors: failures.ErrTooShort when duration < MinDuration,
// failures.ErrNoFramesExtracted when nothing decoded, failures.ErrInterrupted
// when ctx ends. An error returned by visit aborts sampling unchanged.
func (s *Sampler) Sample(ctx context.Context, path string, duration time.Duration, visit func(video.FrameSample) error) (int, error) {
	if err := s.CheckDuration(path, duration); err != nil {
		return 0, err
	}
	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	delivered := 0
	for i, ts := range Timestamps(duration, s.Frames) {
		if err := ctx.Err(); err != nil {
			return delivered, failures.Interrupted(err)
		}
		img, err := s.Decoder.DecodeFrame(ctx, path, ts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return delivered, failures.Interrupted(ctxErr)
			}
			frameErr := failures.Wrap(failures.ErrFrameExtraction, "sampler", "decode frame", fmt.Sprintf("%s at %s", path, ts), err)
			logger.Debug("frame dropped",
				logging.String(logging.FieldPath, path),
				logging.Int("frame_index", i),
				logging.Duration("timestamp", ts),
				logging.Error(frameErr),
			)
			continue
		}
		if img == nil {
			continue
		}
		if err := visit(video.FrameSample{Index: i, Timestamp: ts, Image: img}); err != nil {
			return delivered, err
		}
		delivered++
	}

	if delivered == 0 {
		return 0, failures.Wrap(failures.ErrNoFramesExtracted, "sampler", "sample", path, errors.New("every frame failed to decode"))
	}
	if delivered < s.Frames {
		logging.WarnWithContext(logger, "fingerprint shorter than configured",
			"frames_dropped",
			logging.String(logging.FieldPath, path),
			logging.Int("frames", delivered),
			logging.Int("expected", s.Frames),
			logging.String(logging.FieldImpact, "video only matches videos with the same number of decoded frames"),
			logging.String(logging.FieldErrorHint, "check the file with ffprobe; it may be truncated"),
		)
	}
	return delivered, nil
}
