package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lysyi3m/lemmy-mirror/app/mirror"
)

type MockSource struct {
	items []mirror.SourceItem
	err   error
}

func (m *MockSource) ListItems(_ context.Context, _ string, _ mirror.SortMode, _ int) ([]mirror.SourceItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

type MockDestination struct {
	mu    sync.Mutex
	posts []mirror.PostRequest
}

func (m *MockDestination) ResolveCommunity(_ context.Context, name string) (int, error) {
	if name == "" {
		return 0, errors.New("empty community")
	}
	return 1, nil
}

func (m *MockDestination) CreatePost(_ context.Context, req mirror.PostRequest) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, req)
	return len(m.posts), nil
}

func (m *MockDestination) Posts() []mirror.PostRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mirror.PostRequest(nil), m.posts...)
}

type noWait struct{}

func (noWait) Wait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// blockingTask runs until release is closed.
type blockingTask struct {
	Task
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingTask(key string) *blockingTask {
	return &blockingTask{
		Task:    NewTask(TaskTypeMirror, key),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingTask) Execute(ctx context.Context) error {
	close(b.started)
	select {
	case <-b.release:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func selfPost(id string) mirror.SourceItem {
	short := id[3:]
	return mirror.SourceItem{
		ID:        id,
		Title:     "Title " + short,
		Body:      "Body " + short,
		URL:       "https://www.reddit.com/r/golang/comments/" + short + "/title/",
		Permalink: "/r/golang/comments/" + short + "/title/",
	}
}
