// Package fileutil holds the file operations shared by track publishing,
// minification and the site build.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// File permission constants.
const (
	DirPermissions  = 0o755 // output is served by a web server
	FilePermissions = 0o644
)

// ErrSourceIsDir is returned when a copy source is a directory.
var ErrSourceIsDir = errors.New("source is a directory")

// TempSibling creates an empty hidden file in path's directory with path's
// extension, so the result can be renamed over path without crossing
// filesystems. cleanup removes the temp file if it is still there.
func TempSibling(path string) (tmpPath string, cleanup func(), err error) {
	pattern := ".pelitrack-*" + filepath.Ext(path)
	tmpFile, err := os.CreateTemp(filepath.Dir(path), pattern)
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath = tmpFile.Name()
	cleanup = func() { _ = os.Remove(tmpPath) }

	if err := tmpFile.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp file: %w", err)
	}
	return tmpPath, cleanup, nil
}

// CopyFile copies src to dst, creating dst's parent directory.
// An existing dst is truncated.
func CopyFile(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceIsDir, src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), DirPermissions); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	in, err := os.Open(src) // #nosec G304 -- path comes from article metadata or site config
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, FilePermissions) // #nosec G304 -- output path built by caller
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}

// ReplaceFile moves src over dst. Falls back to copy+remove when a rename is
// not possible (e.g. across filesystems).
func ReplaceFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// HashFile returns the hex SHA-256 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- caller-provided track path
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists returns true if the path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsFilePath reports whether s contains a path separator, which tells a
// --config path ("./site.yaml") from a bare config name ("site").
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// IsURL reports whether s is absolute or protocol-relative http(s), as in
// a script location pointing at a CDN.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")
}
