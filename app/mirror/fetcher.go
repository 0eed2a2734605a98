package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const MaxFetchLimit = 100

type SortMode string

const (
	SortNew    SortMode = "new"
	SortHot    SortMode = "hot"
	SortRising SortMode = "rising"
)

// ParseSortMode reports false for anything outside new, hot and rising; the
// returned mode is then SortNew.
func ParseSortMode(s string) (SortMode, bool) {
	switch mode := SortMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case SortNew, SortHot, SortRising:
		return mode, true
	default:
		return SortNew, false
	}
}

// Source lists at most limit submissions of a feed, in feed order.
type Source interface {
	ListItems(ctx context.Context, feed string, sort SortMode, limit int) ([]SourceItem, error)
}

type Fetcher struct {
	source    Source
	extractor *Extractor
	logger    *slog.Logger
}

func NewFetcher(source Source, extractor *Extractor, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:    source,
		extractor: extractor,
		logger:    logger,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, ledger Ledger, feed string, limit int, sort string, rules []IgnoreRule) ([]Candidate, error) {
	if limit > MaxFetchLimit {
		f.logger.Info("Fetch limit clamped", "feed", feed, "requested", limit, "limit", MaxFetchLimit)
		limit = MaxFetchLimit
	}
	if limit <= 0 {
		limit = MaxFetchLimit
	}

	mode, ok := ParseSortMode(sort)
	if !ok {
		f.logger.Info("Unknown sort mode, falling back", "feed", feed, "sort", sort, "fallback", string(mode))
	}

	items, err := f.source.ListItems(ctx, feed, mode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	if len(items) > limit {
		items = items[:limit]
	}

	candidates := f.extractor.Extract(ctx, items, ledger, rules)

	f.logger.Debug("Fetched candidates", "feed", feed, "sort", string(mode), "items", len(items), "candidates", len(candidates))

	return candidates, nil
}
