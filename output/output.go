// Package output holds the small file-writing helpers shared by the run
// artifacts (submission, recipe, plot, metrics).
package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// EnsureDir creates path and its parents if they don't exist.
func EnsureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}

// WriteAtomic writes a file by streaming into a temp file in the target
// directory and renaming it over path once write and close succeed. Any
// existing file at path is replaced. On failure the temp file is removed and
// path is left untouched.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	if path == "" {
		return fmt.Errorf("empty output path")
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmpFile.Name()
	renamed := false
	defer func() {
		tmpFile.Close()
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := write(tmpFile); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmpFile.Sync(); err != nil {
		slog.Warn("sync temp file", "path", tmpName, "err", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	// CreateTemp uses 0600; artifacts are meant to be shared.
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	renamed = true
	return nil
}
