package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeMirror TaskType = "mirror"
	TaskTypeBackup TaskType = "backup"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	// GetKey identifies runs that must not overlap.
	GetKey() string
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID        string
	Type      TaskType
	Key       string
	StartedAt *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetKey() string {
	return t.Key
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, key string) Task {
	return Task{
		ID:   uuid.NewString(),
		Type: taskType,
		Key:  key,
	}
}

func MirrorKey(jobName string) string {
	return string(TaskTypeMirror) + ":" + jobName
}

const BackupKey = string(TaskTypeBackup)
