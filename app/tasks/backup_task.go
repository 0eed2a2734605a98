package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/lemmy-mirror/app/backup"
)

type BackupTask struct {
	Task
	manager *backup.Manager
	db      backup.Snapshotter
}

func NewBackupTask(manager *backup.Manager, db backup.Snapshotter) *BackupTask {
	return &BackupTask{
		Task:    NewTask(TaskTypeBackup, BackupKey),
		manager: manager,
		db:      db,
	}
}

func (t *BackupTask) Execute(ctx context.Context) error {
	if err := t.manager.Backup(ctx, t.db); err != nil {
		return err
	}
	slog.Debug("BackupTask completed", "id", t.ID, "backend", t.manager.Backend(), "duration", t.GetDuration())
	return nil
}
