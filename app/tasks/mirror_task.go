package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/lemmy-mirror/app/database"
	"github.com/lysyi3m/lemmy-mirror/app/jobs"
	"github.com/lysyi3m/lemmy-mirror/app/mirror"
)

// MirrorDeps are shared by every mirror run.
type MirrorDeps struct {
	Source      mirror.Source
	Destination mirror.Destination
	Prober      mirror.ImageProber
	Repo        database.MirrorRepository
	Waiter      mirror.Waiter
	Logger      *slog.Logger
}

type MirrorTask struct {
	Task
	JobConfig *jobs.Config
	deps      MirrorDeps
	result    mirror.Result
}

func NewMirrorTask(jobConfig *jobs.Config, deps MirrorDeps) *MirrorTask {
	return &MirrorTask{
		Task:      NewTask(TaskTypeMirror, MirrorKey(jobConfig.Name)),
		JobConfig: jobConfig,
		deps:      deps,
	}
}

func (t *MirrorTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	logger := t.deps.Logger.With("job", t.JobConfig.Name)

	// Custom rules are per job, so each run gets its own classifier.
	classifier := mirror.NewClassifier(t.deps.Prober, logger)
	if err := t.JobConfig.RegisterCustomRules(classifier); err != nil {
		return fmt.Errorf("failed to register custom rules: %w", err)
	}

	pipeline := mirror.NewPipeline(
		mirror.NewFetcher(t.deps.Source, mirror.NewExtractor(classifier, logger), logger),
		mirror.NewPublisher(t.deps.Destination, t.deps.Waiter, logger),
	)

	result, err := pipeline.Run(ctx, t.deps.Repo.Ledger(t.JobConfig.Name), t.JobConfig.Job())
	t.result = result
	if err != nil {
		return err
	}

	logger.Info("Mirror run completed", "subreddit", t.JobConfig.Subreddit, "community", t.JobConfig.Community, "candidates", result.Fetched, "published", result.Published, "duration", result.Duration)
	return nil
}

func (t *MirrorTask) Result() mirror.Result {
	return t.result
}
