package reddit

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lysyi3m/lemmy-mirror/app/mirror"
	"github.com/mmcdole/gofeed"
)

const defaultSiteBase = "https://www.reddit.com"

// The public feed carries no flags or flair.
var atomMissing = []string{"link_flair_text", "stickied", "over_18", "poll_data", "locked", "is_video"}

var _ mirror.Source = (*AtomClient)(nil)

// AtomClient reads the public subreddit Atom feed. It needs no credentials.
type AtomClient struct {
	siteBase   string
	httpClient *http.Client
	userAgent  string
	parser     *gofeed.Parser
	logger     *slog.Logger
}

func NewAtomClient(siteBase, userAgent string, timeout time.Duration, logger *slog.Logger) *AtomClient {
	return &AtomClient{
		siteBase:   strings.TrimRight(cmp.Or(siteBase, defaultSiteBase), "/"),
		httpClient: &http.Client{Timeout: cmp.Or(timeout, 30*time.Second)},
		userAgent:  userAgent,
		parser:     gofeed.NewParser(),
		logger:     logger,
	}
}

func (c *AtomClient) ListItems(ctx context.Context, feed string, sort mirror.SortMode, limit int) ([]mirror.SourceItem, error) {
	endpoint := fmt.Sprintf("%s/r/%s/%s/.rss?limit=%s", c.siteBase, url.PathEscape(feed), sort, strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	parsed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]mirror.SourceItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		items = append(items, c.sourceItem(entry))
	}

	c.logger.Debug("Feed fetched", "feed", feed, "sort", string(sort), "items", len(items))

	return items, nil
}

func (c *AtomClient) sourceItem(entry *gofeed.Item) mirror.SourceItem {
	item := mirror.SourceItem{
		ID:        entry.GUID,
		Title:     entry.Title,
		Permalink: entry.Link,
		Missing:   append([]string(nil), atomMissing...),
	}

	html := cmp.Or(entry.Content, entry.Description)
	if html == "" {
		item.URL = entry.Link
		return item
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.logger.Info("Entry content unreadable", "source_id", entry.GUID, "error", err)
		item.Missing = append(item.Missing, "selftext", "url")
		return item
	}

	item.Body = strings.TrimSpace(doc.Find("div.md").First().Text())

	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != "[link]" {
			return true
		}
		item.URL, _ = s.Attr("href")
		return false
	})
	if item.URL == "" {
		item.URL = entry.Link
	}

	return item
}
