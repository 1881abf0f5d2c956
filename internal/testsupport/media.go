package testsupport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidfinder/internal/failures"
	"vidfinder/internal/scan"
	"vidfinder/internal/video"
)

// Clip describes the synthetic content behind a fake video path.
type Clip struct {
	Duration time.Duration
	// Seed selects the frame content. Equal seeds produce equal frames.
	Seed uint64
	// BadFrame reports whether the frame at ts fails to decode.
	BadFrame func(ts time.Duration) bool
	// Unprobeable makes the duration probe fail.
	Unprobeable bool
}

// FakeMedia implements both the duration prober and the frame decoder over
// registered clips.
type FakeMedia struct {
	mu      sync.RWMutex
	clips   map[string]Clip
	probes  atomic.Int64
	decodes atomic.Int64
}

func NewFakeMedia() *FakeMedia {
	return &FakeMedia{clips: make(map[string]Clip)}
}

// Add registers clip under path.
func (m *FakeMedia) Add(path string, clip Clip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clips[path] = clip
}

func (m *FakeMedia) clip(path string) (Clip, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clips[path]
	return c, ok
}

// Probes returns the number of Duration calls.
func (m *FakeMedia) Probes() int64 { return m.probes.Load() }

// Decodes returns the number of DecodeFrame calls.
func (m *FakeMedia) Decodes() int64 { return m.decodes.Load() }

func (m *FakeMedia) Duration(ctx context.Context, path string) (time.Duration, error) {
	m.probes.Add(1)
	if err := ctx.Err(); err != nil {
		return 0, failures.Interrupted(err)
	}
	c, ok := m.clip(path)
	if !ok || c.Unprobeable {
		return 0, failures.Wrap(failures.ErrDecode, "fake", "probe", path, errors.New("unreadable container"))
	}
	return c.Duration, nil
}

func (m *FakeMedia) DecodeFrame(ctx context.Context, path string, ts time.Duration) (image.Image, error) {
	m.decodes.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := m.clip(path)
	if !ok {
		return nil, fmt.Errorf("no clip for %s", path)
	}
	if c.BadFrame != nil && c.BadFrame(ts) {
		return nil, errors.New("corrupt packet")
	}
	return Frame(c.Seed, ts), nil
}

// Frame renders a 36×32 grayscale noise image determined by seed and the
// frame's position.
func Frame(seed uint64, ts time.Duration) image.Image {
	rng := rand.New(rand.NewPCG(seed, uint64(ts.Milliseconds())))
	img := image.NewGray(image.Rect(0, 0, 36, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.IntN(256))
	}
	return img
}

// WriteVideo creates dir/name on disk and registers clip for its absolute
// path. Files sharing a seed get identical bytes.
func WriteVideo(t testing.TB, media *FakeMedia, dir, name string, clip Clip) video.File {
	t.Helper()
	path := filepath.Join(dir, name)
	WriteFile(t, path, 4096+int64(clip.Seed%512), byte(clip.Seed))
	f, err := scan.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	media.Add(f.Path, clip)
	return f
}
