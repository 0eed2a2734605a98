package mirror

import (
	"context"
	"errors"
	"testing"
)

func newTestFetcher(source Source) *Fetcher {
	extractor := NewExtractor(NewClassifier(&MockProber{}, testLogger()), testLogger())
	return NewFetcher(source, extractor, testLogger())
}

func TestFetcherClampsLimit(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{500, 100},
		{101, 100},
		{100, 100},
		{25, 25},
		{0, 100},
		{-3, 100},
	}

	for _, tt := range tests {
		source := &MockSource{}
		fetcher := newTestFetcher(source)

		if _, err := fetcher.Fetch(context.Background(), NewMemoryLedger(), "golang", tt.requested, "new", nil); err != nil {
			t.Fatal(err)
		}
		if source.lastLimit != tt.want {
			t.Errorf("limit %d: source asked for %d, want %d", tt.requested, source.lastLimit, tt.want)
		}
	}
}

func TestFetcherSortModeFallback(t *testing.T) {
	tests := []struct {
		sort string
		want SortMode
	}{
		{"new", SortNew},
		{"hot", SortHot},
		{"Rising", SortRising},
		{"top", SortNew},
		{"", SortNew},
	}

	for _, tt := range tests {
		source := &MockSource{}
		fetcher := newTestFetcher(source)

		if _, err := fetcher.Fetch(context.Background(), NewMemoryLedger(), "golang", 10, tt.sort, nil); err != nil {
			t.Fatalf("sort %q returned error: %v", tt.sort, err)
		}
		if source.lastSort != tt.want {
			t.Errorf("sort %q: got %q, want %q", tt.sort, source.lastSort, tt.want)
		}
	}
}

func TestFetcherPassesItemsThroughExtraction(t *testing.T) {
	source := &MockSource{items: []SourceItem{selfPost("t3_aaa", "a"), selfPost("t3_bbb", "b")}}
	fetcher := newTestFetcher(source)

	got, err := fetcher.Fetch(context.Background(), seededLedger("t3_aaa"), "golang", 10, "new", DefaultIgnoreRules())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SourceID != "t3_bbb" {
		t.Errorf("Expected only t3_bbb, got %v", ids(got))
	}
	if source.lastFeed != "golang" {
		t.Errorf("Expected feed 'golang', got %q", source.lastFeed)
	}
}

func TestFetcherTruncatesOversizedListing(t *testing.T) {
	source := &MockSource{items: []SourceItem{selfPost("t3_aaa", "a"), selfPost("t3_bbb", "b"), selfPost("t3_ccc", "c")}}
	fetcher := newTestFetcher(source)

	got, err := fetcher.Fetch(context.Background(), NewMemoryLedger(), "golang", 2, "new", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 candidates, got %d", len(got))
	}
}

func TestFetcherSourceError(t *testing.T) {
	fetcher := newTestFetcher(&MockSource{err: errors.New("503")})

	if _, err := fetcher.Fetch(context.Background(), NewMemoryLedger(), "golang", 10, "new", nil); err == nil {
		t.Error("Expected source error to propagate")
	}
}
