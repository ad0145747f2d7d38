// Package ledger holds the per-fund master ledger: one row per ISIN and one
// column per (field, period). Quantities missing from a column read as zero.
package ledger

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"mfledger/pkg/contracts/domain"
)

// Field is the measure stored in a ledger column.
type Field string

const (
	FieldQty         Field = "Qty"
	FieldMarketValue Field = "MarketValue"
	FieldNavPct      Field = "NavPct"
)

var fieldRank = map[Field]int{FieldQty: 0, FieldMarketValue: 1, FieldNavPct: 2}

// ColumnName returns "<Field>_<PeriodLabel>", e.g. "Qty_March_2025".
func ColumnName(f Field, p domain.Period) string {
	return string(f) + "_" + p.Label()
}

// ParseColumn splits a column name into its field and period.
func ParseColumn(name string) (Field, domain.Period, bool) {
	field, label, ok := strings.Cut(name, "_")
	if !ok {
		return "", domain.Period{}, false
	}
	f := Field(field)
	if _, known := fieldRank[f]; !known {
		return "", domain.Period{}, false
	}
	p, err := domain.ParsePeriod(label)
	if err != nil {
		return "", domain.Period{}, false
	}
	return f, p, true
}

// Row is one security across all periods.
type Row struct {
	ISIN  string
	Name  string
	Cells map[string]decimal.NullDecimal
}

// Ledger is a fund's accumulated holdings history.
type Ledger struct {
	Fund    string
	columns []string
	rows    []Row
	index   map[string]int
}

// New returns an empty ledger.
func New(fund string) *Ledger {
	return &Ledger{Fund: fund, index: make(map[string]int)}
}

// Len returns the number of rows.
func (l *Ledger) Len() int { return len(l.rows) }

// Columns returns the period columns in chronological order.
func (l *Ledger) Columns() []string { return slices.Clone(l.columns) }

// Rows returns the rows in insertion order. Cells maps are shared.
func (l *Ledger) Rows() []Row { return slices.Clone(l.rows) }

// Row returns the row for isin.
func (l *Ledger) Row(isin string) (Row, bool) {
	i, ok := l.index[isin]
	if !ok {
		return Row{}, false
	}
	return l.rows[i], true
}

// HasColumn reports whether a column exists.
func (l *Ledger) HasColumn(name string) bool {
	return slices.Contains(l.columns, name)
}

// HasPeriod reports whether the period's quantity column exists.
func (l *Ledger) HasPeriod(p domain.Period) bool {
	return l.HasColumn(ColumnName(FieldQty, p))
}

// Periods returns every period with a quantity column, oldest first.
func (l *Ledger) Periods() []domain.Period {
	var out []domain.Period
	for _, c := range l.columns {
		if f, p, ok := ParseColumn(c); ok && f == FieldQty {
			out = append(out, p)
		}
	}
	domain.SortPeriods(out)
	return out
}

// LatestPeriod returns the newest period with a quantity column.
func (l *Ledger) LatestPeriod() (domain.Period, bool) {
	ps := l.Periods()
	if len(ps) == 0 {
		return domain.Period{}, false
	}
	return ps[len(ps)-1], true
}

// Value returns a raw cell.
func (l *Ledger) Value(isin, column string) decimal.NullDecimal {
	r, ok := l.Row(isin)
	if !ok {
		return decimal.NullDecimal{}
	}
	return r.Cells[column]
}

// Quantity returns the quantity held at p, zero when absent.
func (l *Ledger) Quantity(isin string, p domain.Period) decimal.Decimal {
	v := l.Value(isin, ColumnName(FieldQty, p))
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// Snapshot returns the rows held (quantity > 0) at p as holdings.
func (l *Ledger) Snapshot(p domain.Period) []domain.Holding {
	qty := ColumnName(FieldQty, p)
	mv := ColumnName(FieldMarketValue, p)
	nav := ColumnName(FieldNavPct, p)

	var out []domain.Holding
	for _, r := range l.rows {
		q := r.Cells[qty]
		if !q.Valid || !q.Decimal.IsPositive() {
			continue
		}
		out = append(out, domain.Holding{
			ISIN:         r.ISIN,
			SecurityName: r.Name,
			Quantity:     q.Decimal,
			MarketValue:  r.Cells[mv],
			NavPercent:   r.Cells[nav],
		})
	}
	return out
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		Fund:    l.Fund,
		columns: slices.Clone(l.columns),
		rows:    make([]Row, len(l.rows)),
		index:   make(map[string]int, len(l.rows)),
	}
	for i, r := range l.rows {
		cells := make(map[string]decimal.NullDecimal, len(r.Cells))
		for k, v := range r.Cells {
			cells[k] = v
		}
		out.rows[i] = Row{ISIN: r.ISIN, Name: r.Name, Cells: cells}
		out.index[r.ISIN] = i
	}
	return out
}

// addColumn inserts a column keeping (period, field) order. New quantity
// columns are zero-filled for existing rows.
func (l *Ledger) addColumn(name string) {
	if l.HasColumn(name) {
		return
	}
	l.columns = append(l.columns, name)
	slices.SortStableFunc(l.columns, compareColumns)

	if f, _, ok := ParseColumn(name); ok && f == FieldQty {
		for i := range l.rows {
			if _, set := l.rows[i].Cells[name]; !set {
				l.rows[i].Cells[name] = zeroCell()
			}
		}
	}
}

// ensureRow returns the index of isin's row, creating it with zero quantities.
func (l *Ledger) ensureRow(isin, name string) int {
	if i, ok := l.index[isin]; ok {
		if l.rows[i].Name == "" {
			l.rows[i].Name = name
		}
		return i
	}

	cells := make(map[string]decimal.NullDecimal, len(l.columns))
	for _, c := range l.columns {
		if f, _, ok := ParseColumn(c); ok && f == FieldQty {
			cells[c] = zeroCell()
		}
	}
	l.rows = append(l.rows, Row{ISIN: isin, Name: name, Cells: cells})
	l.index[isin] = len(l.rows) - 1
	return len(l.rows) - 1
}

func (l *Ledger) set(i int, column string, v decimal.NullDecimal) {
	l.rows[i].Cells[column] = v
}

// Put writes one cell, creating the row and column when needed. It is meant
// for loading stored ledgers and building fixtures; updates go through Merge.
func (l *Ledger) Put(isin, name, column string, v decimal.NullDecimal) {
	l.addColumn(column)
	l.set(l.ensureRow(isin, name), column, v)
}

// PutQuantity is Put for a period's quantity column.
func (l *Ledger) PutQuantity(isin, name string, p domain.Period, q decimal.Decimal) {
	l.Put(isin, name, ColumnName(FieldQty, p), nullOf(q))
}

func zeroCell() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.Zero, Valid: true}
}

func nullOf(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// compareColumns orders period columns chronologically, then by field. Columns
// that are not period columns sort last by name.
func compareColumns(a, b string) int {
	fa, pa, oka := ParseColumn(a)
	fb, pb, okb := ParseColumn(b)
	switch {
	case !oka && !okb:
		return strings.Compare(a, b)
	case !oka:
		return 1
	case !okb:
		return -1
	}
	if c := pa.Compare(pb); c != 0 {
		return c
	}
	return fieldRank[fa] - fieldRank[fb]
}
