package api

import (
	"github.com/lysyi3m/lemmy-mirror/app/database"
	"github.com/lysyi3m/lemmy-mirror/app/jobs"
	"github.com/lysyi3m/lemmy-mirror/app/tasks"
)

// JobScheduler is the part of the scheduler the handlers use.
type JobScheduler interface {
	RunJob(name string) (string, error)
	History() map[string]tasks.RunRecord
}

var _ JobScheduler = (*tasks.Scheduler)(nil)

type Handler struct {
	configCache *jobs.ConfigCache
	repo        database.MirrorRepository
	scheduler   JobScheduler
}
