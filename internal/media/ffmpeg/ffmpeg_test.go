package ffmpeg

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"
)

func TestArgs(t *testing.T) {
	args := Decoder{Width: 160}.Args("/videos/a.mp4", 1500*time.Millisecond)
	if i := slices.Index(args, "-ss"); i < 0 || args[i+1] != "1.500" {
		t.Fatalf("expected -ss 1.500, got %v", args)
	}
	if i := slices.Index(args, "-vf"); i < 0 || args[i+1] != "scale=160:-2" {
		t.Fatalf("expected scale filter, got %v", args)
	}
	if args[len(args)-1] != "-" {
		t.Fatalf("expected stdout output, got %v", args)
	}
	if slices.Contains(Decoder{}.Args("/a.mp4", 0), "-vf") {
		t.Fatal("zero width should not add a scale filter")
	}
}

func stub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestDecodeFrameReadsPNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.SetGray(1, 1, color.Gray{Y: 200})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	framePath := filepath.Join(t.TempDir(), "frame.png")
	if err := os.WriteFile(framePath, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	dec := Decoder{Binary: stub(t, "cat "+framePath), Timeout: 5 * time.Second}
	got, err := dec.DecodeFrame(t.Context(), "/videos/a.mp4", time.Second)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Bounds().Dx() != 4 || got.Bounds().Dy() != 3 {
		t.Fatalf("unexpected bounds %v", got.Bounds())
	}
}

func TestDecodeFrameFailures(t *testing.T) {
	for name, body := range map[string]string{
		"exit":  "echo boom >&2; exit 1",
		"empty": "exit 0",
		"junk":  "echo not-a-png",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := (Decoder{Binary: stub(t, body)}).DecodeFrame(t.Context(), "/a.mp4", 0); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
