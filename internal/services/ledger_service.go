package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"mfledger/internal/analysis"
	"mfledger/internal/config"
	apperrors "mfledger/internal/errors"
	"mfledger/internal/exporter"
	"mfledger/internal/infrastructure"
	"mfledger/internal/journal"
	"mfledger/internal/ledger"
	"mfledger/pkg/contracts/domain"
)

// LedgerStore loads persisted ledgers.
type LedgerStore interface {
	Load(fund string) (*ledger.Ledger, error)
}

// EventHistory reads journaled fetch events.
type EventHistory interface {
	History(ctx context.Context, fund string, limit int) ([]journal.Entry, error)
}

// FundInfo describes a registered fund and its ledger coverage.
type FundInfo struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	File       string         `json:"file"`
	Strategies []string       `json:"strategies"`
	Periods    int            `json:"periods"`
	Latest     *domain.Period `json:"latest,omitempty"`
}

// LedgerRow is the serialized form of one ledger row.
type LedgerRow struct {
	ISIN  string                         `json:"isin"`
	Name  string                         `json:"name"`
	Cells map[string]decimal.NullDecimal `json:"cells"`
}

// LedgerView is the serialized form of a ledger.
type LedgerView struct {
	Fund    string          `json:"fund"`
	Periods []domain.Period `json:"periods"`
	Columns []string        `json:"columns"`
	Rows    []LedgerRow     `json:"rows"`
}

// SummaryView is a fund summary with its largest positions.
type SummaryView struct {
	*analysis.Summary
	Top []analysis.Position `json:"top"`
}

// LedgerService answers read queries over fund ledgers.
type LedgerService struct {
	funds   *config.FundRegistry
	store   LedgerStore
	history EventHistory
	csv     *exporter.CSVWriter
	logger  *slog.Logger
}

// NewLedgerService wires the read side. history may be nil; a nil csv writes
// exports to the working directory.
func NewLedgerService(funds *config.FundRegistry, store LedgerStore, history EventHistory, csv *exporter.CSVWriter, logger *slog.Logger) *LedgerService {
	if csv == nil {
		csv = exporter.NewCSVWriter(".", logger)
	}
	return &LedgerService{
		funds:   funds,
		store:   store,
		history: history,
		csv:     csv,
		logger:  infrastructure.WithComponent(logger, "ledger_service"),
	}
}

// Resolve maps a fund id or display name to its configuration.
func (s *LedgerService) Resolve(key string) (config.FundConfig, error) {
	f, ok := s.funds.Find(key)
	if !ok {
		return config.FundConfig{}, apperrors.NewNotFoundError("fund " + key)
	}
	return f, nil
}

// Funds lists every registered fund with its ledger coverage.
func (s *LedgerService) Funds(ctx context.Context) ([]FundInfo, error) {
	out := make([]FundInfo, 0, len(s.funds.Funds))
	for _, f := range s.funds.Funds {
		info := FundInfo{ID: f.ID, Name: f.Name, File: f.File, Strategies: make([]string, 0, len(f.Locator.Strategies))}
		for _, st := range f.Locator.Strategies {
			info.Strategies = append(info.Strategies, st.Kind)
		}

		l, err := s.store.Load(f.ID)
		if err != nil {
			return nil, err
		}
		info.Periods = len(l.Periods())
		if p, ok := l.LatestPeriod(); ok {
			info.Latest = &p
		}
		out = append(out, info)
	}
	return out, nil
}

// Ledger loads a fund's ledger.
func (s *LedgerService) Ledger(ctx context.Context, key string) (*ledger.Ledger, error) {
	f, err := s.Resolve(key)
	if err != nil {
		return nil, err
	}
	l, err := s.store.Load(f.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load ledger",
			slog.String("fund", f.ID),
			slog.String("error", err.Error()))
		return nil, err
	}
	return l, nil
}

// LedgerView returns a fund's ledger in serializable form.
func (s *LedgerService) LedgerView(ctx context.Context, key string) (*LedgerView, error) {
	l, err := s.Ledger(ctx, key)
	if err != nil {
		return nil, err
	}
	rows := l.Rows()
	view := &LedgerView{
		Fund:    l.Fund,
		Periods: l.Periods(),
		Columns: l.Columns(),
		Rows:    make([]LedgerRow, 0, len(rows)),
	}
	for _, r := range rows {
		view.Rows = append(view.Rows, LedgerRow{ISIN: r.ISIN, Name: r.Name, Cells: r.Cells})
	}
	return view, nil
}

// Summary summarizes a fund and lists its top positions.
func (s *LedgerService) Summary(ctx context.Context, key string, top int) (*SummaryView, error) {
	l, err := s.Ledger(ctx, key)
	if err != nil {
		return nil, err
	}
	sum, err := analysis.Summarize(l)
	if err != nil {
		return nil, err
	}
	positions := analysis.TopHoldings(l, top)
	if positions == nil {
		positions = []analysis.Position{}
	}
	return &SummaryView{Summary: sum, Top: positions}, nil
}

// Flows reports entries and exits at period against the period stored before
// it. An empty period uses the two newest.
func (s *LedgerService) Flows(ctx context.Context, key, period string) (*analysis.FlowReport, error) {
	l, err := s.Ledger(ctx, key)
	if err != nil {
		return nil, err
	}
	if period == "" {
		return analysis.LatestFlows(l)
	}

	curr, err := domain.ParsePeriod(period)
	if err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}
	prev := curr.Prev()
	for _, p := range l.Periods() {
		if p.Before(curr) {
			prev = p
		}
	}
	return analysis.Flows(l, curr, prev)
}

// Compare computes the overlap between two funds.
func (s *LedgerService) Compare(ctx context.Context, keyA, keyB string) (*analysis.Comparison, error) {
	a, err := s.Ledger(ctx, keyA)
	if err != nil {
		return nil, err
	}
	b, err := s.Ledger(ctx, keyB)
	if err != nil {
		return nil, err
	}
	return analysis.Compare(a, b)
}

// Trend returns one security's quantity across a fund's periods.
func (s *LedgerService) Trend(ctx context.Context, key, isin string) ([]analysis.TrendPoint, error) {
	l, err := s.Ledger(ctx, key)
	if err != nil {
		return nil, err
	}
	return analysis.Trend(l, domain.NormalizeISIN(isin))
}

// History returns a fund's journaled fetch events, newest first.
func (s *LedgerService) History(ctx context.Context, key string, limit int) ([]journal.Entry, error) {
	f, err := s.Resolve(key)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []journal.Entry{}, nil
	}
	entries, err := s.history.History(ctx, f.ID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return entries, nil
}

// ExportLedger writes a fund's ledger as CSV and returns the file path.
func (s *LedgerService) ExportLedger(ctx context.Context, key string) (string, error) {
	l, err := s.Ledger(ctx, key)
	if err != nil {
		return "", err
	}
	return s.csv.ExportLedger(l)
}

// ExportComparison writes the overlap of two funds as CSV.
func (s *LedgerService) ExportComparison(ctx context.Context, keyA, keyB string) (string, error) {
	c, err := s.Compare(ctx, keyA, keyB)
	if err != nil {
		return "", err
	}
	return s.csv.ExportComparison(c)
}

// ExportFlows writes a flow report as CSV.
func (s *LedgerService) ExportFlows(ctx context.Context, key, period string) (string, error) {
	r, err := s.Flows(ctx, key, period)
	if err != nil {
		return "", err
	}
	return s.csv.ExportFlows(r)
}
