package mirror

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type ImageProber interface {
	IsImage(ctx context.Context, rawURL string) bool
}

// HTTPImageProber issues a HEAD request and inspects the Content-Type header.
// Any failure is logged and reported as "not an image".
type HTTPImageProber struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	logger     *slog.Logger
}

func NewHTTPImageProber(httpClient *http.Client, userAgent string, timeout time.Duration, logger *slog.Logger) *HTTPImageProber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPImageProber{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		logger:     logger,
	}
}

func (p *HTTPImageProber) IsImage(ctx context.Context, rawURL string) bool {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		p.logger.Error("Image probe failed", "url", rawURL, "error", err)
		return false
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error("Image probe failed", "url", rawURL, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error("Image probe failed", "url", rawURL, "status", resp.StatusCode)
		return false
	}

	return strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "image")
}
