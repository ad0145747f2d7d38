package analysis

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	apperrors "mfledger/internal/errors"
	"mfledger/internal/ledger"
	"mfledger/pkg/contracts/domain"
)

// Position is a security with one quantity.
type Position struct {
	ISIN     string          `json:"isin"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
}

// FlowReport lists securities entered and exited between two periods.
type FlowReport struct {
	Fund     string        `json:"fund"`
	Current  domain.Period `json:"current"`
	Previous domain.Period `json:"previous"`
	// NoPriorPeriod is set when there is nothing to compare against.
	NoPriorPeriod bool       `json:"no_prior_period"`
	Entries       []Position `json:"entries"`
	Exits         []Position `json:"exits"`
}

// Flows compares curr with prev. Entries carry the current quantity, exits the
// previous one.
func Flows(l *ledger.Ledger, curr, prev domain.Period) (*FlowReport, error) {
	if l == nil {
		return nil, apperrors.NewLedgerInconsistencyError("ledger is nil")
	}
	if !l.HasPeriod(curr) {
		return nil, apperrors.NewLedgerInconsistencyError(fmt.Sprintf("period %s not in ledger", curr)).
			WithContext("column", ledger.ColumnName(ledger.FieldQty, curr))
	}
	if !prev.Before(curr) {
		return nil, apperrors.NewLedgerInconsistencyError(fmt.Sprintf("%s does not precede %s", prev, curr))
	}

	report := &FlowReport{Fund: l.Fund, Current: curr, Previous: prev, Entries: []Position{}, Exits: []Position{}}
	if !l.HasPeriod(prev) {
		if first := l.Periods()[0]; prev.Before(first) {
			report.NoPriorPeriod = true
			return report, nil
		}
		return nil, apperrors.NewLedgerInconsistencyError(fmt.Sprintf("period %s missing from ledger history", prev)).
			WithContext("column", ledger.ColumnName(ledger.FieldQty, prev))
	}

	for _, r := range l.Rows() {
		pq, cq := l.Quantity(r.ISIN, prev), l.Quantity(r.ISIN, curr)
		switch {
		case pq.IsZero() && cq.IsPositive():
			report.Entries = append(report.Entries, Position{ISIN: r.ISIN, Name: r.Name, Quantity: cq})
		case pq.IsPositive() && cq.IsZero():
			report.Exits = append(report.Exits, Position{ISIN: r.ISIN, Name: r.Name, Quantity: pq})
		}
	}
	sortPositions(report.Entries)
	sortPositions(report.Exits)
	return report, nil
}

// LatestFlows reports flows between the two newest periods.
func LatestFlows(l *ledger.Ledger) (*FlowReport, error) {
	if l == nil {
		return nil, apperrors.NewLedgerInconsistencyError("ledger is nil")
	}
	ps := l.Periods()
	switch len(ps) {
	case 0:
		return nil, apperrors.NewLedgerInconsistencyError("ledger has no quantity column")
	case 1:
		return &FlowReport{Fund: l.Fund, Current: ps[0], Previous: ps[0].Prev(), NoPriorPeriod: true,
			Entries: []Position{}, Exits: []Position{}}, nil
	}
	return Flows(l, ps[len(ps)-1], ps[len(ps)-2])
}

func sortPositions(ps []Position) {
	slices.SortFunc(ps, func(a, b Position) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ISIN, b.ISIN))
	})
}
