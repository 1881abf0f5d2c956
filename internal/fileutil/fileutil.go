// Package fileutil holds the small file-system primitives shared by the cache,
// the mover and preflight checks.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// rename is swapped out by tests to simulate failures.
var rename = os.Rename

// WriteFileAtomic replaces path with data. The bytes go to a synced temp file
// in the same directory which is then renamed over path, so readers observe
// either the previous or the new contents and never a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	err = errors.Join(
		writeAll(tmp, data),
		tmp.Chmod(perm),
		tmp.Sync(),
	)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = rename(tmp.Name(), path)
	}
	if err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func writeAll(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}

// CopyFileVerified copies src to a new file dst, then re-reads dst and compares
// its SHA-256 against the source. dst must not exist; it is removed again on
// any failure. The source modification time is carried over.
func CopyFileVerified(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	srcSum := sha256.New()
	in, err := os.Open(src)
	if err != nil {
		_ = out.Close()
		return err
	}
	n, err := io.Copy(out, io.TeeReader(in, srcSum))
	_ = in.Close()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n != info.Size() {
		return fmt.Errorf("copy %s: wrote %d of %d bytes", src, n, info.Size())
	}

	dstSum, err := hashFile(dst)
	if err != nil {
		return err
	}
	if !bytes.Equal(srcSum.Sum(nil), dstSum) {
		return fmt.Errorf("copy %s: checksum mismatch", src)
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// MoveFile renames src to dst, falling back to a verified copy plus removal
// of src when they are on different file systems.
func MoveFile(src, dst string) error {
	err := rename(src, dst)
	if err == nil || !errors.Is(err, unix.EXDEV) {
		return err
	}
	if err := CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("cross-device move %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("cross-device move %s: remove source: %w", src, err)
	}
	return nil
}
