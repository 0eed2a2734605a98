// Package backup copies the sqlite ledger to and from durable storage.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Download when no backup object exists.
var ErrNotFound = errors.New("backup object not found")

// Backend stores whole files under an object name.
type Backend interface {
	Name() string
	Upload(ctx context.Context, object, srcPath string) error
	Download(ctx context.Context, object, dstPath string) error
}

// writeFileAtomic writes dstPath through a temp file in the same directory so
// a failed download never leaves a partial database behind.
func writeFileAtomic(dstPath string, write func(w io.Writer) error) error {
	dir := filepath.Dir(dstPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dstPath)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
