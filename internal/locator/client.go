package locator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"mfledger/internal/config"
	apperrors "mfledger/internal/errors"
)

// Client performs rate-limited outbound requests with per-call timeouts.
type Client struct {
	http            *http.Client
	limiter         *rate.Limiter
	userAgent       string
	headTimeout     time.Duration
	indexTimeout    time.Duration
	downloadTimeout time.Duration
	maxSize         int64
	logger          *slog.Logger
}

// NewClient creates a Client from the fetch configuration. A nil httpClient
// uses a dedicated client with default transport settings.
func NewClient(cfg config.FetchConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	maxSize := cfg.MaxDocumentSize
	if maxSize <= 0 {
		maxSize = 50 << 20
	}
	return &Client{
		http:            httpClient,
		limiter:         rate.NewLimiter(rate.Limit(cfg.RPS), max(cfg.Burst, 1)),
		userAgent:       cfg.UserAgent,
		headTimeout:     orDefault(cfg.HeadTimeout, 3*time.Second),
		indexTimeout:    orDefault(cfg.IndexTimeout, 10*time.Second),
		downloadTimeout: orDefault(cfg.DownloadTimeout, 30*time.Second),
		maxSize:         maxSize,
		logger:          logger.With("component", "locator_client"),
	}
}

// Exists issues a HEAD request and reports a 200 response.
func (c *Client) Exists(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.headTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		c.logger.DebugContext(ctx, "HEAD probe failed", slog.String("url", url), slog.String("error", err.Error()))
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Page fetches an index page body.
func (c *Client) Page(ctx context.Context, url string) ([]byte, error) {
	return c.get(ctx, url, c.indexTimeout)
}

// Download fetches a spreadsheet document.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	return c.get(ctx, url, c.downloadTimeout)
}

func (c *Client) get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewSourceUnavailableError(
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil).WithContext("url", url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError("read body failed", err).WithContext("url", url)
	}
	if int64(len(body)) > c.maxSize {
		return nil, apperrors.NewSourceUnavailableError(
			fmt.Sprintf("document exceeds %d bytes", c.maxSize), nil).WithContext("url", url)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewSourceUnavailableError("rate limiter wait aborted", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError("invalid request", err).WithContext("url", url)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError("request failed", err).WithContext("url", url)
	}
	return resp, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
