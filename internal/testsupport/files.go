package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path (and its parent directories) holding size bytes where
// byte i is seed+i%7. Distinct seeds give distinct contents; size <= 0 still
// produces a one-byte file.
func WriteFile(t testing.TB, path string, size int64, seed byte) {
	t.Helper()
	data := make([]byte, max(size, 1))
	for i := range data {
		data[i] = seed + byte(i%7)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("testsupport: mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("testsupport: write %s: %v", path, err)
	}
}
