package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Snapshotter writes a consistent copy of a live database to path.
type Snapshotter interface {
	Snapshot(ctx context.Context, path string) error
}

type Manager struct {
	backend Backend
	object  string
	logger  *slog.Logger
}

func NewManager(backend Backend, object string, logger *slog.Logger) *Manager {
	return &Manager{
		backend: backend,
		object:  object,
		logger:  logger,
	}
}

func (m *Manager) Backend() string {
	return m.backend.Name()
}

// Backup snapshots db and uploads the snapshot.
func (m *Manager) Backup(ctx context.Context, db Snapshotter) error {
	startedAt := time.Now()

	dir, err := os.MkdirTemp("", "ledger-backup-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if err := db.Snapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}

	if err := m.backend.Upload(ctx, m.object, snapshot); err != nil {
		return fmt.Errorf("failed to upload backup to %s: %w", m.backend.Name(), err)
	}

	m.logger.Info("Ledger backed up", "backend", m.backend.Name(), "object", m.object, "duration", time.Since(startedAt))
	return nil
}

// Restore downloads the backup to dbPath when no local database exists yet.
// It reports whether a backup was restored; a missing backup is not an error.
func (m *Manager) Restore(ctx context.Context, dbPath string) (bool, error) {
	if _, err := os.Stat(dbPath); err == nil {
		m.logger.Debug("Local database present, skipping restore", "path", dbPath)
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat database: %w", err)
	}

	err := m.backend.Download(ctx, m.object, dbPath)
	if errors.Is(err, ErrNotFound) {
		m.logger.Info("No ledger backup found, starting empty", "backend", m.backend.Name(), "object", m.object)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to restore backup from %s: %w", m.backend.Name(), err)
	}

	m.logger.Info("Ledger restored from backup", "backend", m.backend.Name(), "object", m.object, "path", dbPath)
	return true, nil
}
