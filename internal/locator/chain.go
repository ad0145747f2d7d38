package locator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"mfledger/internal/config"
	"mfledger/pkg/contracts/domain"
)

// AttemptRecorder receives one call per strategy attempt.
type AttemptRecorder interface {
	RecordLocatorAttempt(ctx context.Context, fund, strategy string, found bool)
}

// Deps are the shared collaborators of every chain.
type Deps struct {
	Client *Client
	// Browser backs "rendered" strategies; nil skips them.
	Browser LinkCollector
	Metrics AttemptRecorder
	Logger  *slog.Logger
}

// Chain tries a fund's strategies in order.
type Chain struct {
	fund       string
	strategies []Strategy
	metrics    AttemptRecorder
	logger     *slog.Logger
}

// NewChain builds the strategy chain configured for fund.
func NewChain(fund config.FundConfig, deps Deps) (*Chain, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "locator", "fund", fund.ID)

	c := &Chain{fund: fund.ID, metrics: deps.Metrics, logger: logger}
	for i, sc := range fund.Locator.Strategies {
		s, err := newStrategy(sc, deps, logger)
		if err != nil {
			return nil, fmt.Errorf("fund %s strategy %d: %w", fund.ID, i, err)
		}
		if s != nil {
			c.strategies = append(c.strategies, s)
		}
	}
	return c, nil
}

// NewChainOf wraps explicit strategies.
func NewChainOf(fund string, logger *slog.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{fund: fund, strategies: strategies, logger: logger.With("component", "locator", "fund", fund)}
}

func newStrategy(sc config.StrategyConfig, deps Deps, logger *slog.Logger) (Strategy, error) {
	switch sc.Kind {
	case config.StrategyTemplate:
		ts, err := ParseURLTemplates(sc.Templates)
		if err != nil {
			return nil, err
		}
		return &TemplateStrategy{
			client:    deps.Client,
			templates: ts,
			baseURL:   sc.BaseURL,
			probe:     sc.Probe == "head",
			logger:    logger,
		}, nil

	case config.StrategyIndex, config.StrategyRendered:
		collector := LinkCollector(NewHTMLCollector(deps.Client))
		if sc.Kind == config.StrategyRendered {
			if deps.Browser == nil {
				return nil, nil
			}
			collector = deps.Browser
		}

		baseRaw := sc.BaseURL
		if baseRaw == "" {
			baseRaw = sc.IndexURL
		}
		base, err := url.Parse(baseRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid base url %q: %w", baseRaw, err)
		}

		return &IndexStrategy{
			name:      sc.Kind,
			client:    deps.Client,
			collector: collector,
			indexURL:  sc.IndexURL,
			base:      base,
			keywords:  sc.Keywords,
			linkAnyOf: sc.LinkAnyOf,
			yearForms: sc.YearForms,
			logger:    logger,
		}, nil
	}
	return nil, fmt.Errorf("unknown strategy kind %q", sc.Kind)
}

// Strategies returns the active strategy names in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Locate returns the first document any strategy finds. It never fails: an
// unavailable source is a routine miss.
func (c *Chain) Locate(ctx context.Context, p domain.Period) (Document, bool) {
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			return Document{}, false
		}
		doc, ok := s.Locate(ctx, p)
		if c.metrics != nil {
			c.metrics.RecordLocatorAttempt(ctx, c.fund, s.Name(), ok)
		}
		if ok {
			c.logger.DebugContext(ctx, "Document located",
				slog.String("period", p.Label()),
				slog.String("strategy", s.Name()),
				slog.String("url", doc.URL),
				slog.Int("bytes", len(doc.Body)))
			return doc, true
		}
		c.logger.DebugContext(ctx, "Strategy found nothing",
			slog.String("period", p.Label()),
			slog.String("strategy", s.Name()))
	}
	return Document{}, false
}
