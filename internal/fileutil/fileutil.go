// Package fileutil moves finished artifacts into place.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// MoveFile moves src to dst, replacing any existing file at dst. When a
// rename is impossible because dst is on another filesystem, the data is
// copied to a hidden sibling of dst, checked, and renamed over dst.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	err := os.Rename(src, dst)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, syscall.EXDEV):
		return fmt.Errorf("rename %s: %w", filepath.Base(src), err)
	}

	part := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".part")
	if err := CopyFileVerified(src, part); err != nil {
		return err
	}
	if err := os.Rename(part, dst); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("publish %s: %w", filepath.Base(dst), err)
	}
	return os.Remove(src)
}

// CopyFileVerified copies src to dst, syncs it, then re-reads dst and
// compares its SHA-256 digest with the source. dst is removed on any failure.
func CopyFileVerified(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	want := sha256.New()
	_, copyErr := io.Copy(out, io.TeeReader(in, want))
	if copyErr == nil {
		copyErr = out.Sync()
	}
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), copyErr)
	}

	got, err := digest(dst)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want.Sum(nil)) {
		return fmt.Errorf("copy %s: checksum mismatch", filepath.Base(src))
	}
	return nil
}

func digest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}
	return h.Sum(nil), nil
}
