package reddit

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lysyi3m/lemmy-mirror/app/mirror"
	"golang.org/x/oauth2"
)

const (
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	defaultAPIBase  = "https://oauth.reddit.com"
)

var _ mirror.Source = (*Client)(nil)

type Config struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
	TokenURL     string
	APIBase      string
	Timeout      time.Duration
}

// Client reads subreddit listings through the OAuth JSON API.
type Client struct {
	apiBase    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cmp.Or(cfg.Timeout, 30*time.Second)
	base := &userAgentTransport{userAgent: cfg.UserAgent, base: http.DefaultTransport}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cmp.Or(cfg.TokenURL, defaultTokenURL),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	source := oauth2.ReuseTokenSource(nil, &passwordTokenSource{
		config:     oauthCfg,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout, Transport: base},
	})

	return &Client{
		apiBase: cmp.Or(cfg.APIBase, defaultAPIBase),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: source, Base: base},
		},
		logger: logger,
	}
}

func (c *Client) ListItems(ctx context.Context, feed string, sort mirror.SortMode, limit int) ([]mirror.SourceItem, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("raw_json", "1")
	endpoint := fmt.Sprintf("%s/r/%s/%s?%s", c.apiBase, url.PathEscape(feed), sort, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP error: %d %s: %s", resp.StatusCode, resp.Status, body)
	}

	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	items := make([]mirror.SourceItem, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		items = append(items, child.Data.sourceItem())
	}

	c.logger.Debug("Listing fetched", "feed", feed, "sort", string(sort), "items", len(items))

	return items, nil
}

// passwordTokenSource requests a fresh password-grant token each time the
// cached one expires; the grant does not issue refresh tokens.
type passwordTokenSource struct {
	config     *oauth2.Config
	username   string
	password   string
	httpClient *http.Client
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, s.httpClient)
	token, err := s.config.PasswordCredentialsToken(ctx, s.username, s.password)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain reddit token: %w", err)
	}
	return token, nil
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
