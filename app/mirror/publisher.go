package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"
)

// LanguageEnglish is the destination's language id for English.
const LanguageEnglish = 37

const maxTitleLength = 200

type PostRequest struct {
	CommunityID int
	Title       string
	URL         string
	Body        string
	NSFW        bool
	LanguageID  int
}

type Destination interface {
	ResolveCommunity(ctx context.Context, name string) (int, error)
	CreatePost(ctx context.Context, req PostRequest) (int, error)
}

// Waiter blocks for d or until ctx is done.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

type SleepWaiter struct{}

func (SleepWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type PublishParams struct {
	Community string
	Delay     time.Duration
	// MaxPosts caps commits per call; zero means no cap.
	MaxPosts int
	// NSFW marks every post regardless of the source flag.
	NSFW bool
}

type outcome int

const (
	outcomeCommitted outcome = iota
	outcomeSkipped
	outcomeFailed
)

type Publisher struct {
	destination Destination
	waiter      Waiter
	now         func() time.Time
	logger      *slog.Logger
}

func NewPublisher(destination Destination, waiter Waiter, logger *slog.Logger) *Publisher {
	if waiter == nil {
		waiter = SleepWaiter{}
	}
	return &Publisher{
		destination: destination,
		waiter:      waiter,
		now:         time.Now,
		logger:      logger,
	}
}

// Publish posts candidates in order and returns how many reached the ledger
// commit step. The delay is applied before every candidate, the first included.
// Cancellation is observed between candidates only.
func (p *Publisher) Publish(ctx context.Context, ledger Ledger, candidates []Candidate, params PublishParams) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	communityID, err := p.destination.ResolveCommunity(ctx, params.Community)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve community %s: %w", params.Community, err)
	}

	published := 0
	for _, cand := range candidates {
		if params.MaxPosts > 0 && published >= params.MaxPosts {
			p.logger.Info("Publish cap reached", "community", params.Community, "max_posts", params.MaxPosts)
			break
		}

		if err := p.waiter.Wait(ctx, params.Delay); err != nil {
			return published, fmt.Errorf("publish interrupted: %w", err)
		}

		if p.publishOne(ctx, ledger, communityID, cand, params.NSFW) == outcomeCommitted {
			published++
		}
	}

	return published, nil
}

func (p *Publisher) publishOne(ctx context.Context, ledger Ledger, communityID int, cand Candidate, nsfw bool) outcome {
	mirrored, err := ledger.Contains(ctx, cand.SourceID)
	if err != nil {
		p.logger.Error("Ledger lookup failed, skipping item", "source_id", cand.SourceID, "error", err)
		return outcomeFailed
	}
	if mirrored {
		p.logger.Info("Item already mirrored", "source_id", cand.SourceID)
		return outcomeSkipped
	}

	req := ComposePost(cand, communityID)
	req.NSFW = req.NSFW || nsfw
	postID, err := p.destination.CreatePost(ctx, req)
	if err != nil {
		p.logger.Error("Publish failed", "source_id", cand.SourceID, "title", req.Title, "error", err)
		return outcomeFailed
	}

	record := LedgerRecord{Candidate: cand, MirroredAt: p.now().UTC()}
	if err := ledger.Insert(ctx, record); err != nil {
		// The post exists remotely; a later cycle may publish it again.
		p.logger.Error("Ledger write failed after publish", "source_id", cand.SourceID, "post_id", postID, "error", err)
	}

	p.logger.Info("Item published", "source_id", cand.SourceID, "post_id", postID, "title", req.Title)
	return outcomeCommitted
}

func Disclaimer(permalink string) string {
	return fmt.Sprintf("(This post was mirrored by a bot. [The original post can be found here](%s))", permalink)
}

func ComposePost(cand Candidate, communityID int) PostRequest {
	body := Disclaimer(cand.Permalink)
	if cand.Body != "" {
		body = cand.Body + "\n\n" + body
	}

	title := cand.Title
	if cand.Flair != "" {
		title = cand.Flair + " " + title
	}

	return PostRequest{
		CommunityID: communityID,
		Title:       truncateRunes(norm.NFC.String(title), maxTitleLength),
		URL:         cand.Attachment(),
		Body:        body,
		NSFW:        cand.Adult,
		LanguageID:  LanguageEnglish,
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
