package mirror

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func textCandidate(id string) Candidate {
	return Candidate{
		SourceID:  id,
		Title:     "Title " + id,
		Body:      "Body " + id,
		Permalink: "https://www.reddit.com/r/test/comments/" + id + "/",
	}
}

func TestPublisherPublishesAndCommits(t *testing.T) {
	dest := &MockDestination{communityID: 7}
	waiter := &MockWaiter{}
	ledger := NewMemoryLedger()
	publisher := NewPublisher(dest, waiter, testLogger())

	count, err := publisher.Publish(context.Background(), ledger, []Candidate{textCandidate("t3_aaa")}, PublishParams{Community: "mirror"})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 published, got %d", count)
	}

	mirrored, _ := ledger.Contains(context.Background(), "t3_aaa")
	if !mirrored {
		t.Error("Expected t3_aaa recorded in ledger")
	}
	if len(dest.posts) != 1 || dest.posts[0].CommunityID != 7 {
		t.Errorf("Unexpected posts: %+v", dest.posts)
	}
}

func TestPublisherIsIdempotentAcrossCalls(t *testing.T) {
	dest := &MockDestination{communityID: 1}
	ledger := NewMemoryLedger()
	publisher := NewPublisher(dest, &MockWaiter{}, testLogger())
	candidates := []Candidate{textCandidate("t3_aaa")}

	first, _ := publisher.Publish(context.Background(), ledger, candidates, PublishParams{Community: "mirror"})
	second, _ := publisher.Publish(context.Background(), ledger, candidates, PublishParams{Community: "mirror"})

	if first != 1 || second != 0 {
		t.Errorf("Expected 1 then 0, got %d then %d", first, second)
	}
	if len(dest.posts) != 1 {
		t.Errorf("Expected exactly one remote post, got %d", len(dest.posts))
	}
}

func TestPublisherSkipsAlreadyMirrored(t *testing.T) {
	dest := &MockDestination{communityID: 1}
	publisher := NewPublisher(dest, &MockWaiter{}, testLogger())
	candidates := []Candidate{textCandidate("t3_dup"), textCandidate("t3_dup")}

	count, err := publisher.Publish(context.Background(), seededLedger("t3_dup"), candidates, PublishParams{Community: "mirror"})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected 0 published, got %d", count)
	}
	if len(dest.posts) != 0 {
		t.Errorf("CreatePost must not be called, got %d posts", len(dest.posts))
	}
}

func TestPublisherResolvesCommunityOnce(t *testing.T) {
	dest := &MockDestination{communityID: 3}
	publisher := NewPublisher(dest, &MockWaiter{}, testLogger())
	candidates := []Candidate{textCandidate("t3_a"), textCandidate("t3_b"), textCandidate("t3_c")}

	if _, err := publisher.Publish(context.Background(), NewMemoryLedger(), candidates, PublishParams{Community: "mirror"}); err != nil {
		t.Fatal(err)
	}
	if len(dest.resolved) != 1 {
		t.Errorf("Expected one community lookup, got %d", len(dest.resolved))
	}
}

func TestPublisherWaitsBeforeEveryCandidate(t *testing.T) {
	waiter := &MockWaiter{}
	publisher := NewPublisher(&MockDestination{}, waiter, testLogger())
	candidates := []Candidate{textCandidate("t3_a"), textCandidate("t3_b")}

	if _, err := publisher.Publish(context.Background(), NewMemoryLedger(), candidates, PublishParams{Community: "mirror", Delay: 30 * time.Second}); err != nil {
		t.Fatal(err)
	}

	want := []time.Duration{30 * time.Second, 30 * time.Second}
	if diff := cmp.Diff(want, waiter.waits); diff != "" {
		t.Errorf("waits mismatch (-want +got):\n%s", diff)
	}
}

func TestPublisherContinuesAfterSubmitFailure(t *testing.T) {
	bad := textCandidate("t3_bad")
	dest := &MockDestination{failTitles: map[string]bool{bad.Title: true}}
	ledger := NewMemoryLedger()
	publisher := NewPublisher(dest, &MockWaiter{}, testLogger())

	count, err := publisher.Publish(context.Background(), ledger, []Candidate{bad, textCandidate("t3_good")}, PublishParams{Community: "mirror"})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 published, got %d", count)
	}
	if mirrored, _ := ledger.Contains(context.Background(), "t3_bad"); mirrored {
		t.Error("Failed candidate must not be recorded")
	}
}

func TestPublisherLedgerWriteFailureStillCounts(t *testing.T) {
	dest := &MockDestination{}
	ledger := &FailingLedger{MemoryLedger: NewMemoryLedger(), insertErr: errors.New("disk full")}
	publisher := NewPublisher(dest, &MockWaiter{}, testLogger())

	count, err := publisher.Publish(context.Background(), ledger, []Candidate{textCandidate("t3_a")}, PublishParams{Community: "mirror"})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 || len(dest.posts) != 1 {
		t.Errorf("Expected the remote post to count, got count=%d posts=%d", count, len(dest.posts))
	}
}

func TestPublisherLedgerLookupFailureSkips(t *testing.T) {
	dest := &MockDestination{}
	ledger := &FailingLedger{MemoryLedger: NewMemoryLedger(), lookupErr: map[string]bool{"t3_a": true}}
	publisher := NewPublisher(dest, &MockWaiter{}, testLogger())

	count, _ := publisher.Publish(context.Background(), ledger, []Candidate{textCandidate("t3_a")}, PublishParams{Community: "mirror"})
	if count != 0 || len(dest.posts) != 0 {
		t.Errorf("Expected no publish on lookup failure, got count=%d posts=%d", count, len(dest.posts))
	}
}

func TestPublisherMaxPosts(t *testing.T) {
	dest := &MockDestination{}
	waiter := &MockWaiter{}
	publisher := NewPublisher(dest, waiter, testLogger())
	candidates := []Candidate{textCandidate("t3_a"), textCandidate("t3_b"), textCandidate("t3_c")}

	count, err := publisher.Publish(context.Background(), NewMemoryLedger(), candidates, PublishParams{Community: "mirror", MaxPosts: 2})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || len(dest.posts) != 2 {
		t.Errorf("Expected cap of 2, got count=%d posts=%d", count, len(dest.posts))
	}
	if len(waiter.waits) != 2 {
		t.Errorf("Expected no wait after cap, got %d waits", len(waiter.waits))
	}
}

func TestPublisherForcesNSFW(t *testing.T) {
	dest := &MockDestination{}
	publisher := NewPublisher(dest, &MockWaiter{}, testLogger())

	_, err := publisher.Publish(context.Background(), NewMemoryLedger(), []Candidate{textCandidate("t3_a")}, PublishParams{Community: "mirror", NSFW: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(dest.posts) != 1 || !dest.posts[0].NSFW {
		t.Errorf("Expected post marked NSFW, got %+v", dest.posts)
	}
}

func TestPublisherResolveFailure(t *testing.T) {
	dest := &MockDestination{resolveErr: errors.New("community not found")}
	publisher := NewPublisher(dest, &MockWaiter{}, testLogger())

	count, err := publisher.Publish(context.Background(), NewMemoryLedger(), []Candidate{textCandidate("t3_a")}, PublishParams{Community: "missing"})
	if err == nil {
		t.Fatal("Expected resolve error")
	}
	if count != 0 || len(dest.posts) != 0 {
		t.Errorf("Expected nothing published, got %d", count)
	}
}

func TestPublisherEmptyBatchSkipsResolve(t *testing.T) {
	dest := &MockDestination{}
	publisher := NewPublisher(dest, &MockWaiter{}, testLogger())

	count, err := publisher.Publish(context.Background(), NewMemoryLedger(), nil, PublishParams{Community: "mirror"})
	if err != nil || count != 0 {
		t.Errorf("Expected 0, nil; got %d, %v", count, err)
	}
	if len(dest.resolved) != 0 {
		t.Error("Expected no community lookup for an empty batch")
	}
}

func TestPublisherStopsBetweenCandidatesOnCancel(t *testing.T) {
	dest := &MockDestination{}
	waiter := &MockWaiter{err: context.Canceled}
	publisher := NewPublisher(dest, waiter, testLogger())

	count, err := publisher.Publish(context.Background(), NewMemoryLedger(), []Candidate{textCandidate("t3_a")}, PublishParams{Community: "mirror"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if count != 0 || len(dest.posts) != 0 {
		t.Errorf("Expected nothing published after cancel, got %d", count)
	}
}

func TestComposePost(t *testing.T) {
	tests := []struct {
		name string
		cand Candidate
		want PostRequest
	}{
		{
			name: "body and flair",
			cand: Candidate{Title: "Hello", Body: "text", Flair: "Meta", Permalink: "https://www.reddit.com/p/1"},
			want: PostRequest{
				CommunityID: 9,
				Title:       "Meta Hello",
				Body:        "text\n\n(This post was mirrored by a bot. [The original post can be found here](https://www.reddit.com/p/1))",
				LanguageID:  LanguageEnglish,
			},
		},
		{
			name: "no body",
			cand: Candidate{Title: "Hello", Permalink: "https://www.reddit.com/p/2", LinkURL: "https://example.com"},
			want: PostRequest{
				CommunityID: 9,
				Title:       "Hello",
				URL:         "https://example.com",
				Body:        "(This post was mirrored by a bot. [The original post can be found here](https://www.reddit.com/p/2))",
				LanguageID:  LanguageEnglish,
			},
		},
		{
			name: "image attachment",
			cand: Candidate{Title: "Cat", Permalink: "p", ImageURL: "https://i.example.com/c.png", Adult: true},
			want: PostRequest{
				CommunityID: 9,
				Title:       "Cat",
				URL:         "https://i.example.com/c.png",
				Body:        Disclaimer("p"),
				NSFW:        true,
				LanguageID:  LanguageEnglish,
			},
		},
		{
			name: "gallery has no attachment",
			cand: Candidate{Title: "Clip", Permalink: "p", RawURL: "https://v.redd.it/abc", IsGallery: true},
			want: PostRequest{
				CommunityID: 9,
				Title:       "Clip",
				Body:        Disclaimer("p"),
				LanguageID:  LanguageEnglish,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ComposePost(tt.cand, 9)); diff != "" {
				t.Errorf("ComposePost mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComposePostTitleNormalization(t *testing.T) {
	decomposed := "Cafe\u0301"
	req := ComposePost(Candidate{Title: decomposed}, 1)
	if req.Title != "Caf\u00e9" {
		t.Errorf("Expected NFC title, got %q", req.Title)
	}

	long := strings.Repeat("é", 250)
	req = ComposePost(Candidate{Title: long}, 1)
	if n := len([]rune(req.Title)); n != maxTitleLength {
		t.Errorf("Expected title truncated to %d runes, got %d", maxTitleLength, n)
	}
}

func TestSleepWaiter(t *testing.T) {
	if err := (SleepWaiter{}).Wait(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (SleepWaiter{}).Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
