package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidfinder/internal/config"
	"vidfinder/internal/failures"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	r := CheckDirectoryAccess("Test", dir)
	if !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	r := CheckDirectoryAccess("Test", "/nonexistent/path/abc123")
	if r.Passed {
		t.Fatal("expected failure")
	}
	if !strings.Contains(r.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", r.Detail)
	}
}

func TestCheckDirectoryReadable_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := CheckDirectoryReadable("Test", f)
	if r.Passed || !strings.Contains(r.Detail, "not a directory") {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestCheckFileWritable(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "cache.json")
	if r := CheckFileWritable("Cache file", missing); !r.Passed {
		t.Fatalf("missing file in writable dir should pass: %+v", r)
	}
	if r := CheckFileWritable("Cache file", dir); r.Passed {
		t.Fatal("directory should fail")
	}
	if r := CheckFileWritable("Cache file", filepath.Join(dir, "nope", "cache.json")); r.Passed {
		t.Fatal("missing parent should fail")
	}
}

func TestCheckFileWritable_ReadOnlyDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission bits")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
	r := CheckFileWritable("Cache file", filepath.Join(dir, "cache.json"))
	if r.Passed {
		t.Fatal("expected failure in read-only directory")
	}
	err := Err([]Result{r})
	if !errors.Is(err, failures.ErrCacheUnwritable) {
		t.Fatalf("expected ErrCacheUnwritable, got %v", err)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil, Plan{}); results != nil {
		t.Fatalf("expected nil, got %v", results)
	}
}

func TestRunAll_Plan(t *testing.T) {
	cfg := config.Default()
	cfg.Media.FFmpegBinary = "clearly-missing-ffmpeg"
	cfg.Media.FFprobeBinary = "clearly-missing-ffprobe"
	dir := t.TempDir()

	results := RunAll(&cfg, Plan{
		ScanRoot:     dir,
		CachePath:    filepath.Join(dir, ".video_hashes_cache.json"),
		WatchedDB:    filepath.Join(dir, "watched.db"),
		WriteWatched: true,
		NeedsMedia:   true,
	})
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	for _, r := range results[:3] {
		if !r.Passed {
			t.Fatalf("expected %s to pass: %+v", r.Name, r)
		}
	}
	err := Err(results)
	if !errors.Is(err, failures.ErrConfiguration) {
		t.Fatalf("missing binaries should be a configuration error, got %v", err)
	}
	if Err(results[:3]) != nil {
		t.Fatal("passing results should not produce an error")
	}
}

func TestRunAll_WritableRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission bits")
	}
	cfg := config.Default()
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	if r := RunAll(&cfg, Plan{ScanRoot: dir}); !r[0].Passed {
		t.Fatalf("read-only root should pass a plain scan: %+v", r[0])
	}
	r := RunAll(&cfg, Plan{ScanRoot: dir, WritableRoot: true})
	if r[0].Passed || !strings.Contains(r[0].Detail, "insufficient permissions") {
		t.Fatalf("expected write check to fail: %+v", r[0])
	}
}
