package sampler

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"vidfinder/internal/failures"
	"vidfinder/internal/video"
)

type fakeDecoder struct {
	fail  map[time.Duration]bool
	calls atomic.Int32
}

func (f *fakeDecoder) DecodeFrame(_ context.Context, _ string, ts time.Duration) (image.Image, error) {
	f.calls.Add(1)
	if f.fail[ts] {
		return nil, errors.New("corrupt packet")
	}
	return image.NewGray(image.Rect(0, 0, 9, 8)), nil
}

func TestTimestampsAvoidEdges(t *testing.T) {
	got := Timestamps(100*time.Second, 4)
	want := []time.Duration{20 * time.Second, 40 * time.Second, 60 * time.Second, 80 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("want %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("timestamp %d: want %v got %v", i, want[i], got[i])
		}
	}
	if Timestamps(0, 4) != nil || Timestamps(time.Second, 0) != nil {
		t.Fatal("expected nil for degenerate input")
	}
}

func TestSampleTooShort(t *testing.T) {
	dec := &fakeDecoder{}
	s := New(dec, 5, 10*time.Second, nil)
	_, err := s.Sample(t.Context(), "/v/short.mp4", 5*time.Second, func(video.FrameSample) error { return nil })
	if !errors.Is(err, failures.ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	if dec.calls.Load() != 0 {
		t.Fatal("short videos must not be decoded")
	}
}

func TestSampleDropsFailedFrames(t *testing.T) {
	ts := Timestamps(60*time.Second, 5)
	dec := &fakeDecoder{fail: map[time.Duration]bool{ts[1]: true}}
	s := New(dec, 5, 10*time.Second, nil)

	var indices []int
	n, err := s.Sample(t.Context(), "/v/a.mp4", 60*time.Second, func(f video.FrameSample) error {
		indices = append(indices, f.Index)
		return nil
	})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 frames, got %d", n)
	}
	want := []int{0, 2, 3, 4}
	for i := range want {
		if indices[i] != want[i] {
			t.Fatalf("frames out of order: %v", indices)
		}
	}
}

func TestSampleNoFrames(t *testing.T) {
	ts := Timestamps(30*time.Second, 2)
	dec := &fakeDecoder{fail: map[time.Duration]bool{ts[0]: true, ts[1]: true}}
	s := New(dec, 2, 0, nil)
	_, err := s.Sample(t.Context(), "/v/a.mp4", 30*time.Second, func(video.FrameSample) error { return nil })
	if !errors.Is(err, failures.ErrNoFramesExtracted) {
		t.Fatalf("expected ErrNoFramesExtracted, got %v", err)
	}
	if failures.Classify(err) != failures.SeverityFile {
		t.Fatalf("expected per-file severity, got %v", failures.Classify(err))
	}
}

func TestSampleInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	s := New(&fakeDecoder{}, 3, 0, nil)
	_, err := s.Sample(ctx, "/v/a.mp4", 30*time.Second, func(video.FrameSample) error { return nil })
	if !errors.Is(err, failures.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
}

func TestSampleVisitErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	dec := &fakeDecoder{}
	s := New(dec, 4, 0, nil)
	_, err := s.Sample(t.Context(), "/v/a.mp4", 30*time.Second, func(video.FrameSample) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected visit error, got %v", err)
	}
	if dec.calls.Load() != 1 {
		t.Fatalf("expected sampling to stop after first frame, got %d calls", dec.calls.Load())
	}
}
