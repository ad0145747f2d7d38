// Package analysis derives read-only views from master ledgers: overlap
// between two funds, period-to-period flows and dashboard summaries.
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

// Class is the overlap classification of one security.
type Class string

const (
	ClassOverlap Class = "Overlap"
	ClassUniqueA Class = "Unique to A"
	ClassUniqueB Class = "Unique to B"
)

var classRank = map[Class]int{ClassOverlap: 0, ClassUniqueA: 1, ClassUniqueB: 2}

// OverlapRow is one security in the joined view.
type OverlapRow struct {
	ISIN  string          `json:"isin"`
	Name  string          `json:"name"`
	QtyA  decimal.Decimal `json:"qty_a"`
	QtyB  decimal.Decimal `json:"qty_b"`
	Class Class           `json:"class"`
}

// Counts tallies rows per class.
type Counts struct {
	Overlap int `json:"overlap"`
	UniqueA int `json:"unique_a"`
	UniqueB int `json:"unique_b"`
}

// Comparison is the overlap of two funds' latest holdings.
type Comparison struct {
	FundA   string        `json:"fund_a"`
	FundB   string        `json:"fund_b"`
	PeriodA domain.Period `json:"period_a"`
	PeriodB domain.Period `json:"period_b"`
	Rows    []OverlapRow  `json:"rows"`
	Counts  Counts        `json:"counts"`
}

// Compare joins the latest positive positions of a and b on ISIN.
func Compare(a, b *ledger.Ledger) (*Comparison, error) {
	pa, err := latest(a, "A")
	if err != nil {
		return nil, err
	}
	pb, err := latest(b, "B")
	if err != nil {
		return nil, err
	}

	rows := make(map[string]*OverlapRow)
	var order []string
	join := func(h domain.Holding, set func(*OverlapRow)) {
		r, ok := rows[h.ISIN]
		if !ok {
			r = &OverlapRow{ISIN: h.ISIN, Name: h.SecurityName, QtyA: decimal.Zero, QtyB: decimal.Zero}
			rows[h.ISIN] = r
			order = append(order, h.ISIN)
		}
		if r.Name == "" {
			r.Name = h.SecurityName
		}
		set(r)
	}
	for _, h := range a.Snapshot(pa) {
		join(h, func(r *OverlapRow) { r.QtyA = h.Quantity })
	}
	for _, h := range b.Snapshot(pb) {
		join(h, func(r *OverlapRow) { r.QtyB = h.Quantity })
	}

	c := &Comparison{FundA: a.Fund, FundB: b.Fund, PeriodA: pa, PeriodB: pb, Rows: make([]OverlapRow, 0, len(order))}
	for _, isin := range order {
		r := rows[isin]
		switch {
		case r.QtyA.IsPositive() && r.QtyB.IsPositive():
			r.Class = ClassOverlap
			c.Counts.Overlap++
		case r.QtyA.IsPositive():
			r.Class = ClassUniqueA
			c.Counts.UniqueA++
		default:
			r.Class = ClassUniqueB
			c.Counts.UniqueB++
		}
		c.Rows = append(c.Rows, *r)
	}

	slices.SortFunc(c.Rows, func(x, y OverlapRow) int {
		return cmp.Or(
			cmp.Compare(classRank[x.Class], classRank[y.Class]),
			cmp.Compare(x.Name, y.Name),
			cmp.Compare(x.ISIN, y.ISIN),
		)
	})
	return c, nil
}

// Filter returns the rows of one class.
func (c *Comparison) Filter(class Class) []OverlapRow {
	var out []OverlapRow
	for _, r := range c.Rows {
		if r.Class == class {
			out = append(out, r)
		}
	}
	return out
}

func latest(l *ledger.Ledger, side string) (domain.Period, error) {
	if l == nil || l.Len() == 0 {
		return domain.Period{}, apperrors.NewLedgerInconsistencyError(fmt.Sprintf("ledger %s has no rows", side))
	}
	p, ok := l.LatestPeriod()
	if !ok {
		return domain.Period{}, apperrors.NewLedgerInconsistencyError(fmt.Sprintf("ledger %s has no quantity column", side))
	}
	return p, nil
}
