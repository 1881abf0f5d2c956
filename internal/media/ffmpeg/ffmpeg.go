// Package ffmpeg extracts single frames from video files by running ffmpeg and
// decoding the PNG it writes to stdout.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Decoder grabs frames with ffmpeg.
type Decoder struct {
	Binary string
	// Width scales the frame inside ffmpeg; zero keeps the source size.
	Width   int
	Timeout time.Duration
}

// Args returns the ffmpeg argument list for one frame grab.
func (d Decoder) Args(path string, timestamp time.Duration) []string {
	args := []string{
		"-v", "error",
		"-nostdin",
		"-ss", formatSeconds(timestamp),
		"-i", path,
		"-frames:v", "1",
		"-an", "-sn",
	}
	if d.Width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", d.Width))
	}
	return append(args, "-f", "image2pipe", "-vcodec", "png", "-")
}

// DecodeFrame returns the frame nearest to timestamp.
func (d Decoder) DecodeFrame(ctx context.Context, path string, timestamp time.Duration) (image.Image, error) {
	binary := strings.TrimSpace(d.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, d.Args(path, timestamp)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ffmpeg frame at %s: %w", timestamp, ctxErr)
		}
		return nil, fmt.Errorf("ffmpeg frame at %s: %w: %s", timestamp, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no frame (timestamp past end of stream?)")
	}
	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode frame png: %w", err)
	}
	return img, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
