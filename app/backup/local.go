package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var _ Backend = (*LocalBackend)(nil)

// LocalBackend keeps backups in a directory, e.g. a mounted volume.
type LocalBackend struct {
	dir string
}

func NewLocalBackend(dir string) *LocalBackend {
	return &LocalBackend{dir: dir}
}

func (b *LocalBackend) Name() string {
	return "local"
}

func (b *LocalBackend) Upload(_ context.Context, object, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	return writeFileAtomic(b.path(object), func(w io.Writer) error {
		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("copy to backup: %w", err)
		}
		return nil
	})
}

func (b *LocalBackend) Download(_ context.Context, object, dstPath string) error {
	src, err := os.Open(b.path(object))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("open backup: %w", err)
	}
	defer src.Close()

	return writeFileAtomic(dstPath, func(w io.Writer) error {
		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("copy from backup: %w", err)
		}
		return nil
	})
}

func (b *LocalBackend) path(object string) string {
	return filepath.Join(b.dir, filepath.Base(object))
}
