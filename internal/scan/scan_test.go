package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func paths(t *testing.T, root string, opts Options) []string {
	t.Helper()
	files, err := Discover(root, opts)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		if err != nil {
			t.Fatalf("rel: %v", err)
		}
		out = append(out, rel)
	}
	return out
}

func TestDiscoverFlatAndRecursive(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.mp4"), 10)
	touch(t, filepath.Join(root, "a.MKV"), 5)
	touch(t, filepath.Join(root, "notes.txt"), 1)
	touch(t, filepath.Join(root, ".video_hashes_cache.json"), 1)
	touch(t, filepath.Join(root, "season", "c.avi"), 1)
	touch(t, filepath.Join(root, "duplicates", "d.mp4"), 1)

	exts := []string{".avi", ".mkv", ".mp4"}

	flat := paths(t, root, Options{Extensions: exts})
	if len(flat) != 2 || flat[0] != "a.MKV" || flat[1] != "b.mp4" {
		t.Fatalf("unexpected flat listing: %v", flat)
	}

	deep := paths(t, root, Options{Recursive: true, Extensions: exts, ExcludeDirs: []string{"duplicates"}})
	want := []string{"a.MKV", "b.mp4", filepath.Join("season", "c.avi")}
	if len(deep) != len(want) {
		t.Fatalf("unexpected recursive listing: %v", deep)
	}
	for i := range want {
		if deep[i] != want[i] {
			t.Fatalf("entry %d: want %s got %s", i, want[i], deep[i])
		}
	}
}

func TestDiscoverCapturesStat(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.mp4"), 42)
	files, err := Discover(root, Options{Extensions: []string{".mp4"}})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 || files[0].Size != 42 || files[0].ModTime.IsZero() {
		t.Fatalf("unexpected file: %+v", files)
	}
	if !filepath.IsAbs(files[0].Path) {
		t.Fatalf("expected absolute path, got %s", files[0].Path)
	}
}

func TestDiscoverRejectsFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.mp4")
	touch(t, file, 1)
	if _, err := Discover(file, Options{}); err == nil {
		t.Fatal("expected error for non-directory root")
	}
	if _, err := Discover(filepath.Join(root, "missing"), Options{}); err == nil {
		t.Fatal("expected error for missing root")
	}
}
