package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/lemmy-mirror/app/backup"
	"github.com/lysyi3m/lemmy-mirror/app/jobs"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var (
	ErrTaskInFlight = errors.New("previous run still in flight")
	ErrJobNotFound  = errors.New("job not found")
)

const defaultTaskTimeout = time.Hour

type SchedulerConfig struct {
	Interval    time.Duration
	WorkerCount int
	// TaskTimeout bounds one run, including the per-post delays.
	TaskTimeout time.Duration
}

// RunRecord describes the last finished run of a task key.
type RunRecord struct {
	TaskID     string        `json:"task_id"`
	Type       TaskType      `json:"type"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Fetched    int           `json:"fetched"`
	Published  int           `json:"published"`
	Error      string        `json:"error,omitempty"`
}

type Scheduler struct {
	configCache *jobs.ConfigCache
	deps        MirrorDeps

	backupManager  *backup.Manager
	backupDB       backup.Snapshotter
	backupInterval time.Duration

	interval    time.Duration
	workerCount int
	taskTimeout time.Duration
	now         func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface

	mu       sync.Mutex
	nextRun  map[string]time.Time
	inFlight map[string]bool
	history  map[string]RunRecord
}

func NewScheduler(configCache *jobs.ConfigCache, deps MirrorDeps, cfg SchedulerConfig) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}

	return &Scheduler{
		configCache: configCache,
		deps:        deps,
		interval:    cfg.Interval,
		workerCount: cfg.WorkerCount,
		taskTimeout: cfg.TaskTimeout,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
		nextRun:     make(map[string]time.Time),
		inFlight:    make(map[string]bool),
		history:     make(map[string]RunRecord),
	}
}

// SetBackup enables periodic ledger backups. The first one runs after interval.
func (s *Scheduler) SetBackup(manager *backup.Manager, db backup.Snapshotter, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.backupManager = manager
	s.backupDB = db
	s.backupInterval = interval
	s.nextRun[BackupKey] = s.now().Add(interval)
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for the workers. A mirror run stops
// before its next candidate. Tasks still queued are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// EnqueueTask queues task unless a task with the same key is queued or running.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	key := task.GetKey()

	s.mu.Lock()
	if s.inFlight[key] {
		s.mu.Unlock()
		return ErrTaskInFlight
	}
	s.inFlight[key] = true
	s.mu.Unlock()

	select {
	case s.taskQueue <- task:
		return nil
	default:
		s.release(key)
		return fmt.Errorf("task queue is full")
	}
}

// RunJob queues an immediate run of a loaded job and returns the task id.
func (s *Scheduler) RunJob(name string) (string, error) {
	jobConfig, err := s.configCache.GetConfig(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	task := NewMirrorTask(jobConfig, s.deps)
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}

	slog.Info("Manual run queued", "job", name, "id", task.GetID())
	return task.GetID(), nil
}

// History returns the last finished run per task key.
func (s *Scheduler) History() map[string]RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	historyCopy := make(map[string]RunRecord, len(s.history))
	for k, v := range s.history {
		historyCopy[k] = v
	}
	return historyCopy
}

func (s *Scheduler) enqueueTasks() {
	now := s.now()

	jobConfigs := s.configCache.GetEnabledConfigs()
	if len(jobConfigs) == 0 {
		slog.Debug("No enabled job configurations found")
	}

	for _, jobConfig := range jobConfigs {
		key := MirrorKey(jobConfig.Name)
		if !s.due(key, now) {
			continue
		}

		if err := s.EnqueueTask(NewMirrorTask(jobConfig, s.deps)); err != nil {
			if errors.Is(err, ErrTaskInFlight) {
				slog.Debug("Previous run still in flight, skipping", "job", jobConfig.Name)
			} else {
				slog.Warn("Failed to enqueue MirrorTask", "job", jobConfig.Name, "error", err)
			}
			continue
		}
		s.schedule(key, now.Add(jobConfig.Interval()))
	}

	s.mu.Lock()
	manager, db, interval := s.backupManager, s.backupDB, s.backupInterval
	s.mu.Unlock()

	if manager != nil && s.due(BackupKey, now) {
		if err := s.EnqueueTask(NewBackupTask(manager, db)); err != nil {
			slog.Warn("Failed to enqueue BackupTask", "error", err)
			return
		}
		s.schedule(BackupKey, now.Add(interval))
	}
}

func (s *Scheduler) due(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.nextRun[key]
	return !ok || !next.After(now)
}

func (s *Scheduler) schedule(key string, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRun[key] = next
}

func (s *Scheduler) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			if s.ctx.Err() != nil {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()
	startedAt := s.now()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)

	record := RunRecord{
		TaskID:     task.GetID(),
		Type:       task.GetType(),
		StartedAt:  startedAt,
		FinishedAt: s.now(),
		Duration:   task.GetDuration(),
	}
	if mt, ok := task.(*MirrorTask); ok {
		result := mt.Result()
		record.Fetched = result.Fetched
		record.Published = result.Published
	}
	if err != nil {
		record.Error = err.Error()
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "key", task.GetKey(), "id", task.GetID(), "error", err)
	} else {
		slog.Debug("Worker task completed", "worker_id", workerID, "type", string(task.GetType()), "key", task.GetKey(), "duration", record.Duration)
	}

	s.mu.Lock()
	s.history[task.GetKey()] = record
	delete(s.inFlight, task.GetKey())
	s.mu.Unlock()
}
