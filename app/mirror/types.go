package mirror

import (
	"strings"
	"time"
)

const sourceSite = "https://www.reddit.com"

// SourceItem is one submission as read from the source feed.
// Missing lists attributes the source could not provide; their fields hold zero values.
type SourceItem struct {
	ID        string
	Title     string
	Body      string
	URL       string
	Permalink string
	Flair     string
	Pinned    bool
	Adult     bool
	Poll      bool
	Locked    bool
	Video     bool
	Missing   []string
}

// ShortID returns the id without its kind prefix (t3_abc123 -> abc123).
func (i SourceItem) ShortID() string {
	if kind, rest, ok := strings.Cut(i.ID, "_"); ok && len(kind) == 2 && kind[0] == 't' {
		return rest
	}
	return i.ID
}

// Candidate is a filtered item awaiting publish.
// At most one of LinkURL and ImageURL is set; IsGallery implies neither is.
type Candidate struct {
	SourceID  string `json:"source_id"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	LinkURL   string `json:"link_url,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	RawURL    string `json:"raw_url,omitempty"`
	Permalink string `json:"permalink"`
	Flair     string `json:"flair,omitempty"`
	Pinned    bool   `json:"pinned"`
	Adult     bool   `json:"adult"`
	Poll      bool   `json:"poll"`
	Locked    bool   `json:"locked"`
	Video     bool   `json:"video"`
	IsGallery bool   `json:"is_gallery"`
}

// Attachment returns the url attached to the destination post, if any.
func (c Candidate) Attachment() string {
	if c.LinkURL != "" {
		return c.LinkURL
	}
	return c.ImageURL
}

type LedgerRecord struct {
	Candidate
	MirroredAt time.Time `json:"mirrored_at"`
}

// Job is one mirror configuration as consumed by a pipeline run.
type Job struct {
	Name      string
	Feed      string
	Community string
	Limit     int
	Sort      string
	Delay     time.Duration
	MaxPosts  int
	NSFW      bool
	Rules     []IgnoreRule
}

type Result struct {
	Fetched   int
	Published int
	Duration  time.Duration
}

func absoluteURL(raw string) string {
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return sourceSite + raw
	}
	return raw
}
