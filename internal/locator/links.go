package locator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	apperrors "mfledger/internal/errors"
)

// LinkCollector lists the hyperlinks of an index page.
type LinkCollector interface {
	Links(ctx context.Context, pageURL string) ([]Link, error)
}

// HTMLCollector parses the static HTML of an index page.
type HTMLCollector struct {
	client *Client
}

// NewHTMLCollector creates a collector using client for the page fetch.
func NewHTMLCollector(client *Client) *HTMLCollector {
	return &HTMLCollector{client: client}
}

func (c *HTMLCollector) Links(ctx context.Context, pageURL string) ([]Link, error) {
	body, err := c.client.Page(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return ParseLinks(body)
}

// ParseLinks extracts every anchor with an href from an HTML document.
func ParseLinks(html []byte) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError("index page is not HTML", err)
	}

	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href = strings.TrimSpace(href); href == "" {
			return
		}
		links = append(links, Link{Href: href, Text: strings.TrimSpace(s.Text())})
	})
	return links, nil
}

const anchorsJS = `Array.from(document.querySelectorAll('a[href]')).map(a => ({href: a.getAttribute('href'), text: (a.innerText || '').trim()}))`

// BrowserCollector renders the page in headless Chrome so links built by
// scripts are visible.
type BrowserCollector struct {
	userAgent string
	timeout   time.Duration
	settle    time.Duration
	logger    *slog.Logger
}

// NewBrowserCollector creates a collector; every call starts its own browser.
func NewBrowserCollector(userAgent string, timeout time.Duration, logger *slog.Logger) *BrowserCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserCollector{
		userAgent: userAgent,
		timeout:   orDefault(timeout, 45*time.Second),
		settle:    2 * time.Second,
		logger:    logger.With("component", "browser"),
	}
}

func (c *BrowserCollector) Links(ctx context.Context, pageURL string) ([]Link, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))
	if c.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, c.timeout)
	defer cancelTimeout()

	var raw []struct {
		Href string `json:"href"`
		Text string `json:"text"`
	}
	start := time.Now()
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.settle),
		chromedp.Evaluate(anchorsJS, &raw),
	)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(fmt.Sprintf("render %s", pageURL), err)
	}

	links := make([]Link, 0, len(raw))
	for _, r := range raw {
		links = append(links, Link{Href: r.Href, Text: r.Text})
	}
	c.logger.DebugContext(ctx, "Rendered index page",
		slog.String("url", pageURL),
		slog.Int("links", len(links)),
		slog.Duration("elapsed", time.Since(start)))
	return links, nil
}
