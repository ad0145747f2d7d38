package analysis

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	apperrors "mfledger/internal/errors"
	"mfledger/internal/ledger"
	"mfledger/pkg/contracts/domain"
)

var hundred = decimal.NewFromInt(100)

// Summary is the headline view of one fund.
type Summary struct {
	Fund            string          `json:"fund"`
	Latest          domain.Period   `json:"latest"`
	Periods         int             `json:"periods"`
	ActivePositions int             `json:"active_positions"`
	TopHolding      *Position       `json:"top_holding,omitempty"`
	TotalQuantity   decimal.Decimal `json:"total_quantity"`
	// ChangePercent is the month-over-month change of total quantity, rounded
	// to two places. Zero when there is no previous period or its total is zero.
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// Summarize computes the headline figures for the latest period.
func Summarize(l *ledger.Ledger) (*Summary, error) {
	if l == nil {
		return nil, apperrors.NewLedgerInconsistencyError("ledger is nil")
	}
	ps := l.Periods()
	if len(ps) == 0 {
		return nil, apperrors.NewLedgerInconsistencyError("ledger has no quantity column")
	}
	latest := ps[len(ps)-1]

	s := &Summary{Fund: l.Fund, Latest: latest, Periods: len(ps), ChangePercent: decimal.Zero}
	s.ActivePositions = len(l.Snapshot(latest))
	s.TotalQuantity = total(l, latest)
	if top := TopHoldings(l, 1); len(top) == 1 {
		s.TopHolding = &top[0]
	}

	if len(ps) >= 2 {
		prev := total(l, ps[len(ps)-2])
		if prev.IsPositive() {
			s.ChangePercent = s.TotalQuantity.Sub(prev).Div(prev).Mul(hundred).Round(2)
		}
	}
	return s, nil
}

// TopHoldings returns the n largest positions of the latest period, largest
// first. Ties order by name.
func TopHoldings(l *ledger.Ledger, n int) []Position {
	if l == nil || n <= 0 {
		return nil
	}
	p, ok := l.LatestPeriod()
	if !ok {
		return nil
	}

	held := l.Snapshot(p)
	out := make([]Position, 0, len(held))
	for _, h := range held {
		out = append(out, Position{ISIN: h.ISIN, Name: h.SecurityName, Quantity: h.Quantity})
	}
	slices.SortFunc(out, func(a, b Position) int {
		return cmp.Or(b.Quantity.Cmp(a.Quantity), cmp.Compare(a.Name, b.Name))
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// TrendPoint is one period of a security's quantity series.
type TrendPoint struct {
	Period   domain.Period   `json:"period"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Trend returns isin's quantity in every ledger period, oldest first.
func Trend(l *ledger.Ledger, isin string) ([]TrendPoint, error) {
	if l == nil {
		return nil, apperrors.NewLedgerInconsistencyError("ledger is nil")
	}
	if _, ok := l.Row(isin); !ok {
		return nil, apperrors.NewNotFoundError("isin " + isin)
	}
	ps := l.Periods()
	out := make([]TrendPoint, len(ps))
	for i, p := range ps {
		out[i] = TrendPoint{Period: p, Quantity: l.Quantity(isin, p)}
	}
	return out, nil
}

func total(l *ledger.Ledger, p domain.Period) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range l.Rows() {
		sum = sum.Add(l.Quantity(r.ISIN, p))
	}
	return sum
}
