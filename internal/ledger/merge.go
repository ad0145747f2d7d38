package ledger

import (
	"mfledger/pkg/contracts/domain"
)

// Merge folds one period's table into l and returns the result. l is never
// mutated. When the period is already present, or the table is empty, l itself
// is returned.
func Merge(l *Ledger, table []domain.Holding, p domain.Period) *Ledger {
	if l == nil {
		l = New("")
	}
	if l.HasPeriod(p) || len(table) == 0 {
		return l
	}

	out := l.Clone()
	qty := ColumnName(FieldQty, p)
	out.addColumn(qty)

	var hasMV, hasNav bool
	for _, h := range table {
		hasMV = hasMV || h.MarketValue.Valid
		hasNav = hasNav || h.NavPercent.Valid
	}
	mv := ColumnName(FieldMarketValue, p)
	nav := ColumnName(FieldNavPct, p)
	if hasMV {
		out.addColumn(mv)
	}
	if hasNav {
		out.addColumn(nav)
	}

	for _, h := range table {
		i := out.ensureRow(h.ISIN, h.SecurityName)
		out.set(i, qty, nullOf(h.Quantity))
		if h.MarketValue.Valid {
			out.set(i, mv, h.MarketValue)
		}
		if h.NavPercent.Valid {
			out.set(i, nav, h.NavPercent)
		}
	}
	return out
}
