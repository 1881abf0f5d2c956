package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"vidfinder/internal/failures"
)

// Only the fields the duration probe reads are requested from ffprobe.
var probeArgs = []string{
	"-v", "error",
	"-show_entries", "format=duration:stream=index,codec_type,duration",
	"-of", "json",
}

// Result is the subset of ffprobe's JSON output vidfinder consumes.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream is one entry of the streams array. Durations stay strings because
// ffprobe reports "N/A" for unknown values.
type Stream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// Format holds container-level values.
type Format struct {
	Duration string `json:"duration"`
}

func (s Stream) isVideo() bool { return strings.EqualFold(s.CodecType, "video") }

// VideoStreamCount returns the number of video streams.
func (r Result) VideoStreamCount() int {
	n := 0
	for _, s := range r.Streams {
		if s.isVideo() {
			n++
		}
	}
	return n
}

// DurationSeconds returns the container duration. Empty yields 0, unparsable
// values yield NaN.
func (r Result) DurationSeconds() float64 {
	return seconds(r.Format.Duration)
}

// Duration returns the container duration, or the longest video stream when
// the container has none.
func (r Result) Duration() (time.Duration, bool) {
	best := r.DurationSeconds()
	if !usable(best) {
		best = 0
		for _, s := range r.Streams {
			if v := seconds(s.Duration); s.isVideo() && usable(v) {
				best = max(best, v)
			}
		}
	}
	if !usable(best) {
		return 0, false
	}
	return time.Duration(best * float64(time.Second)), true
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func seconds(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Prober resolves video durations with ffprobe. An empty Binary means
// "ffprobe" from PATH; a zero Timeout means no per-call limit.
type Prober struct {
	Binary  string
	Timeout time.Duration
}

// Duration probes path. Files without a video stream or a usable duration
// fail with failures.ErrDecode.
func (p Prober) Duration(ctx context.Context, path string) (time.Duration, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	fail := func(err error) (time.Duration, error) {
		return 0, failures.Wrap(failures.ErrDecode, "ffprobe", "probe duration", path, err)
	}

	result, err := p.inspect(ctx, path)
	switch {
	case err != nil && errors.Is(ctx.Err(), context.Canceled):
		return 0, failures.Interrupted(ctx.Err())
	case err != nil:
		return fail(err)
	case result.VideoStreamCount() == 0:
		return fail(errors.New("no video stream"))
	}
	d, ok := result.Duration()
	if !ok {
		return fail(errors.New("duration unavailable"))
	}
	return d, nil
}

func (p Prober) inspect(ctx context.Context, path string) (Result, error) {
	bin := strings.TrimSpace(p.Binary)
	if bin == "" {
		bin = "ffprobe"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, slices.Concat(probeArgs, []string{"--", path})...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Result{}, fmt.Errorf("%w: %s", err, msg)
		}
		return Result{}, err
	}
	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, err
	}
	return result, nil
}
