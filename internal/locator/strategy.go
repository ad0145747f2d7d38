package locator

import (
	"context"
	"log/slog"
	"net/url"

	"mfledger/pkg/contracts/domain"
)

// Document is a downloaded spreadsheet and where it came from.
type Document struct {
	URL      string
	Strategy string
	Body     []byte
}

// Strategy finds a period's document. Failures are reported as a miss.
type Strategy interface {
	Name() string
	Locate(ctx context.Context, p domain.Period) (Document, bool)
}

// TemplateStrategy builds candidate URLs from naming conventions.
type TemplateStrategy struct {
	client    *Client
	templates URLTemplates
	baseURL   string
	probe     bool
	logger    *slog.Logger
}

func (s *TemplateStrategy) Name() string { return "template" }

func (s *TemplateStrategy) Locate(ctx context.Context, p domain.Period) (Document, bool) {
	urls, err := s.templates.Render(NewPeriodView(p, s.baseURL))
	if err != nil {
		s.logger.WarnContext(ctx, "URL template failed", slog.String("error", err.Error()))
		return Document{}, false
	}

	for _, u := range urls {
		if ctx.Err() != nil {
			return Document{}, false
		}
		if s.probe && !s.client.Exists(ctx, u) {
			s.logger.DebugContext(ctx, "Candidate not found", slog.String("url", u))
			continue
		}
		body, err := s.client.Download(ctx, u)
		if err != nil {
			s.logger.DebugContext(ctx, "Candidate download failed", slog.String("url", u), slog.String("error", err.Error()))
			continue
		}
		return Document{URL: u, Strategy: s.Name(), Body: body}, true
	}
	return Document{}, false
}

// IndexStrategy matches hyperlinks collected from a disclosure index page.
type IndexStrategy struct {
	name      string
	client    *Client
	collector LinkCollector
	indexURL  string
	base      *url.URL
	keywords  []string
	linkAnyOf []string
	yearForms []string
	logger    *slog.Logger
}

func (s *IndexStrategy) Name() string { return s.name }

func (s *IndexStrategy) Locate(ctx context.Context, p domain.Period) (Document, bool) {
	links, err := s.collector.Links(ctx, s.indexURL)
	if err != nil {
		s.logger.DebugContext(ctx, "Index page unavailable", slog.String("url", s.indexURL), slog.String("error", err.Error()))
		return Document{}, false
	}

	target, ok := NewMatcher(p, s.keywords, s.linkAnyOf, s.yearForms).First(links, s.base)
	if !ok {
		s.logger.DebugContext(ctx, "No matching link", slog.String("url", s.indexURL), slog.Int("links", len(links)))
		return Document{}, false
	}

	body, err := s.client.Download(ctx, target)
	if err != nil {
		s.logger.DebugContext(ctx, "Linked document download failed", slog.String("url", target), slog.String("error", err.Error()))
		return Document{}, false
	}
	return Document{URL: target, Strategy: s.name, Body: body}, true
}
