package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockProber struct {
	images map[string]bool
	calls  []string
}

func (m *MockProber) IsImage(_ context.Context, rawURL string) bool {
	m.calls = append(m.calls, rawURL)
	return m.images[rawURL]
}

type MockSource struct {
	items     []SourceItem
	err       error
	lastFeed  string
	lastSort  SortMode
	lastLimit int
}

func (m *MockSource) ListItems(_ context.Context, feed string, sort SortMode, limit int) ([]SourceItem, error) {
	m.lastFeed = feed
	m.lastSort = sort
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

type MockDestination struct {
	communityID int
	resolveErr  error
	failTitles  map[string]bool
	resolved    []string
	posts       []PostRequest
	nextID      int
}

func (m *MockDestination) ResolveCommunity(_ context.Context, name string) (int, error) {
	m.resolved = append(m.resolved, name)
	if m.resolveErr != nil {
		return 0, m.resolveErr
	}
	return m.communityID, nil
}

func (m *MockDestination) CreatePost(_ context.Context, req PostRequest) (int, error) {
	if m.failTitles[req.Title] {
		return 0, errors.New("remote rejected post")
	}
	m.posts = append(m.posts, req)
	m.nextID++
	return m.nextID, nil
}

type MockWaiter struct {
	waits []time.Duration
	err   error
}

func (m *MockWaiter) Wait(_ context.Context, d time.Duration) error {
	m.waits = append(m.waits, d)
	return m.err
}

// FailingLedger fails lookups for ids in lookupErr and every insert when insertErr is set.
type FailingLedger struct {
	*MemoryLedger
	lookupErr map[string]bool
	insertErr error
}

func (l *FailingLedger) Contains(ctx context.Context, sourceID string) (bool, error) {
	if l.lookupErr[sourceID] {
		return false, errors.New("ledger unavailable")
	}
	return l.MemoryLedger.Contains(ctx, sourceID)
}

func (l *FailingLedger) Insert(ctx context.Context, record LedgerRecord) error {
	if l.insertErr != nil {
		return l.insertErr
	}
	return l.MemoryLedger.Insert(ctx, record)
}

func seededLedger(ids ...string) *MemoryLedger {
	ledger := NewMemoryLedger()
	for _, id := range ids {
		_ = ledger.Insert(context.Background(), LedgerRecord{Candidate: Candidate{SourceID: id}})
	}
	return ledger
}

func selfPost(id, body string) SourceItem {
	short := id[3:]
	return SourceItem{
		ID:        id,
		Title:     "Title " + short,
		Body:      body,
		URL:       "https://www.reddit.com/r/test/comments/" + short + "/title/",
		Permalink: "/r/test/comments/" + short + "/title/",
	}
}
