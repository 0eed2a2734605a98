package mirror

import (
	"context"
	"fmt"
	"time"
)

type Pipeline struct {
	fetcher   *Fetcher
	publisher *Publisher
}

func NewPipeline(fetcher *Fetcher, publisher *Publisher) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		publisher: publisher,
	}
}

// Run fetches candidates for job and publishes them. It is synchronous; callers
// must not run the same job concurrently against one ledger.
func (p *Pipeline) Run(ctx context.Context, ledger Ledger, job Job) (Result, error) {
	startedAt := time.Now()

	candidates, err := p.fetcher.Fetch(ctx, ledger, job.Feed, job.Limit, job.Sort, job.Rules)
	if err != nil {
		return Result{Duration: time.Since(startedAt)}, fmt.Errorf("failed to fetch %s: %w", job.Feed, err)
	}

	result := Result{Fetched: len(candidates)}

	published, err := p.publisher.Publish(ctx, ledger, candidates, PublishParams{
		Community: job.Community,
		Delay:     job.Delay,
		MaxPosts:  job.MaxPosts,
		NSFW:      job.NSFW,
	})
	result.Published = published
	result.Duration = time.Since(startedAt)
	if err != nil {
		return result, fmt.Errorf("failed to publish to %s: %w", job.Community, err)
	}

	return result, nil
}
