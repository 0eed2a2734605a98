package lemmy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/lysyi3m/lemmy-mirror/app/mirror"
)

var _ mirror.Destination = (*Client)(nil)

// APIError is a non-2xx response from the instance.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lemmy API error: %d %s", e.Status, e.Body)
}

// Client is a minimal Lemmy v3 API client: login, community lookup, post creation.
type Client struct {
	instance   string
	username   string
	password   string
	userAgent  string
	httpClient *http.Client
	retryDelay time.Duration
	logger     *slog.Logger

	mu  sync.Mutex
	jwt string
}

func NewClient(instance, username, password, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		instance:   normalizeInstance(instance),
		username:   username,
		password:   password,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryDelay: time.Second,
		logger:     logger,
	}
}

func normalizeInstance(instance string) string {
	instance = strings.TrimRight(strings.TrimSpace(instance), "/")
	if !strings.HasPrefix(instance, "http://") && !strings.HasPrefix(instance, "https://") {
		instance = "https://" + instance
	}
	return instance
}

// Login authenticates and stores the session token.
func (c *Client) Login(ctx context.Context) error {
	body := loginRequest{UsernameOrEmail: c.username, Password: c.password}

	var resp loginResponse
	err := c.withRetry(ctx, "login", func() error {
		return c.do(ctx, http.MethodPost, "/api/v3/user/login", "", body, &resp)
	})
	if err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}
	if resp.JWT == "" {
		return errors.New("failed to login: no token returned (unverified email or pending registration?)")
	}

	c.mu.Lock()
	c.jwt = resp.JWT
	c.mu.Unlock()

	c.logger.Info("Logged in to Lemmy", "instance", c.instance, "username", c.username)
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	jwt := c.jwt
	c.mu.Unlock()
	if jwt != "" {
		return jwt, nil
	}

	if err := c.Login(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jwt, nil
}

// ResolveCommunity looks up a community id. A rejected session is replaced
// once by a fresh login.
func (c *Client) ResolveCommunity(ctx context.Context, name string) (int, error) {
	id, err := c.resolveCommunity(ctx, name)
	if isUnauthorized(err) {
		c.logger.Info("Lemmy session rejected, logging in again", "operation", "resolve_community")
		id, err = c.resolveCommunity(ctx, name)
	}
	return id, err
}

func (c *Client) resolveCommunity(ctx context.Context, name string) (int, error) {
	jwt, err := c.token(ctx)
	if err != nil {
		return 0, err
	}

	var resp communityResponse
	err = c.withRetry(ctx, "resolve_community", func() error {
		return c.do(ctx, http.MethodGet, "/api/v3/community?name="+url.QueryEscape(name), jwt, nil, &resp)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get community %s: %w", name, err)
	}
	if resp.CommunityView.Community.ID == 0 {
		return 0, fmt.Errorf("community %s not found", name)
	}

	return resp.CommunityView.Community.ID, nil
}

// CreatePost makes a single attempt. A 401 drops the session so the next call
// logs in again.
func (c *Client) CreatePost(ctx context.Context, req mirror.PostRequest) (int, error) {
	jwt, err := c.token(ctx)
	if err != nil {
		return 0, err
	}

	body := createPostRequest{
		Name:        req.Title,
		CommunityID: req.CommunityID,
		URL:         req.URL,
		Body:        req.Body,
		NSFW:        req.NSFW,
		LanguageID:  req.LanguageID,
	}

	var resp postResponse
	if err := c.do(ctx, http.MethodPost, "/api/v3/post", jwt, body, &resp); err != nil {
		return 0, fmt.Errorf("failed to create post: %w", err)
	}

	return resp.PostView.Post.ID, nil
}

func (c *Client) withRetry(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(
		func() error {
			err := fn()
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Attempts(3),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(c.retryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying Lemmy request after error", "operation", operation, "attempt", n, "error", err)
		}),
	)
}

func (c *Client) do(ctx context.Context, method, path, jwt string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.instance+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized && jwt != "" {
			c.dropSession(jwt)
		}
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// dropSession forgets jwt unless a newer token already replaced it.
func (c *Client) dropSession(jwt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jwt == jwt {
		c.jwt = ""
	}
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
