package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfledger/internal/config"
	apperrors "mfledger/internal/errors"
	"mfledger/internal/testutil"
	"mfledger/pkg/contracts/domain"
)

var (
	jan = domain.MustPeriod(2025, time.January)
	feb = domain.MustPeriod(2025, time.February)
	mar = domain.MustPeriod(2025, time.March)
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func holding(isin, name string, q int64) domain.Holding {
	return domain.Holding{ISIN: isin, SecurityName: name, Quantity: qty(q)}
}

// snapshotOf flattens a ledger for comparison.
func snapshotOf(l *Ledger) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, r := range l.Rows() {
		cells := map[string]string{"name": r.Name}
		for k, v := range r.Cells {
			if v.Valid {
				cells[k] = v.Decimal.String()
			} else {
				cells[k] = "null"
			}
		}
		out[r.ISIN] = cells
	}
	return out
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t, "Qty_March_2025", ColumnName(FieldQty, mar))
	assert.Equal(t, "MarketValue_March_2025", ColumnName(FieldMarketValue, mar))

	tests := []struct {
		in    string
		field Field
		ok    bool
	}{
		{"Qty_March_2025", FieldQty, true},
		{"NavPct_January_2024", FieldNavPct, true},
		{"MarketValue_Feb_2025", FieldMarketValue, true},
		{"Qty_March_2025_new", "", false},
		{"Weight_March_2025", "", false},
		{"Qty", "", false},
		{"Stock Name", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, _, ok := ParseColumn(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.field, f)
		})
	}
}

func TestMerge_RerunLeavesLedgerUnchanged(t *testing.T) {
	l := Merge(New("ppfas"), []domain.Holding{holding("INE000A01011", "Alpha", 100)}, jan)
	l = Merge(l, []domain.Holding{holding("INE000A01011", "Alpha", 120)}, feb)
	before := snapshotOf(l)

	again := Merge(l, []domain.Holding{holding("INE000A01011", "Alpha", 999), holding("INE000B01019", "Beta", 5)}, jan)

	assert.Same(t, l, again)
	assert.Equal(t, []string{"Qty_January_2025", "Qty_February_2025"}, again.Columns())
	assert.Empty(t, cmp.Diff(before, snapshotOf(again)))
}

func TestMerge_Idempotent(t *testing.T) {
	table := []domain.Holding{holding("INE000A01011", "Alpha", 100), holding("INE000B01019", "Beta", 7)}
	once := Merge(New("f"), table, mar)
	twice := Merge(once, table, mar)
	assert.Empty(t, cmp.Diff(snapshotOf(once), snapshotOf(twice)))
}

func TestMerge_OuterJoin(t *testing.T) {
	base := New("f")
	base = Merge(base, []domain.Holding{
		holding("INE000A01011", "Alpha", 100),
		holding("INE000B01019", "", 20),
	}, jan)

	incoming := []domain.Holding{
		{ISIN: "INE000B01019", SecurityName: "Beta Corp", Quantity: qty(25),
			MarketValue: decimal.NewNullDecimal(decimal.RequireFromString("12.5"))},
		holding("INE000C01017", "Gamma", 40),
	}
	out := Merge(base, incoming, feb)

	assert.False(t, base.HasPeriod(feb), "input ledger is not mutated")
	assert.Equal(t, 2, base.Len())

	assert.Equal(t, []string{"Qty_January_2025", "Qty_February_2025", "MarketValue_February_2025"}, out.Columns())
	assert.NotContains(t, out.Columns(), "NavPct_February_2025", "undisclosed fields add no column")

	want := map[string]map[string]string{
		"INE000A01011": {"name": "Alpha", "Qty_January_2025": "100", "Qty_February_2025": "0"},
		"INE000B01019": {"name": "Beta Corp", "Qty_January_2025": "20", "Qty_February_2025": "25", "MarketValue_February_2025": "12.5"},
		"INE000C01017": {"name": "Gamma", "Qty_January_2025": "0", "Qty_February_2025": "40"},
	}
	assert.Empty(t, cmp.Diff(want, snapshotOf(out)))
}

func TestMerge_KeepsExistingName(t *testing.T) {
	l := Merge(New("f"), []domain.Holding{holding("INE000A01011", "Alpha Industries", 1)}, jan)
	l = Merge(l, []domain.Holding{holding("INE000A01011", "ALPHA IND", 2)}, feb)
	r, ok := l.Row("INE000A01011")
	require.True(t, ok)
	assert.Equal(t, "Alpha Industries", r.Name)
}

func TestMerge_EmptyTableSkipped(t *testing.T) {
	l := New("f")
	assert.Same(t, l, Merge(l, nil, jan))
	assert.False(t, l.HasPeriod(jan))

	nl := Merge(nil, []domain.Holding{holding("INE000A01011", "A", 1)}, jan)
	assert.True(t, nl.HasPeriod(jan))
}

func TestMerge_OutOfOrderPeriodsStayChronological(t *testing.T) {
	l := Merge(New("f"), []domain.Holding{holding("INE000A01011", "A", 1)}, mar)
	l = Merge(l, []domain.Holding{holding("INE000A01011", "A", 2)}, jan)
	assert.Equal(t, []string{"Qty_January_2025", "Qty_March_2025"}, l.Columns())
	assert.Equal(t, []domain.Period{jan, mar}, l.Periods())

	latest, ok := l.LatestPeriod()
	require.True(t, ok)
	assert.Equal(t, mar, latest)
}

func TestLedger_QuantityNeverNull(t *testing.T) {
	l := Merge(New("f"), []domain.Holding{holding("INE000A01011", "A", 10)}, jan)
	l = Merge(l, []domain.Holding{holding("INE000B01019", "B", 5)}, feb)

	for _, r := range l.Rows() {
		for _, p := range l.Periods() {
			v, ok := r.Cells[ColumnName(FieldQty, p)]
			require.True(t, ok, "%s %s", r.ISIN, p)
			require.True(t, v.Valid)
			assert.False(t, v.Decimal.IsNegative())
		}
	}
	assert.True(t, l.Quantity("INE000B01019", jan).IsZero())
	assert.True(t, l.Quantity("INE999999999", jan).IsZero())
}

func TestLedger_Snapshot(t *testing.T) {
	l := Merge(New("f"), []domain.Holding{holding("INE000A01011", "A", 10), holding("INE000B01019", "B", 3)}, jan)
	l = Merge(l, []domain.Holding{holding("INE000A01011", "A", 12)}, feb)

	snap := l.Snapshot(feb)
	require.Len(t, snap, 1)
	assert.Equal(t, "INE000A01011", snap[0].ISIN)
	assert.True(t, snap[0].Quantity.Equal(qty(12)))
	assert.Empty(t, l.Snapshot(mar))
}

func TestLedger_CloneIsDeep(t *testing.T) {
	l := Merge(New("f"), []domain.Holding{holding("INE000A01011", "A", 10)}, jan)
	c := l.Clone()
	c.PutQuantity("INE000A01011", "A", jan, qty(99))
	assert.True(t, l.Quantity("INE000A01011", jan).Equal(qty(10)))
}

func TestXLSXStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	funds := &config.FundRegistry{Funds: []config.FundConfig{{ID: "ppfas", File: "PPFCF_Portfolio_Ledger.xlsx"}}}
	store := NewXLSXStore(dir, funds, nil)
	assert.Equal(t, filepath.Join(dir, "PPFCF_Portfolio_Ledger.xlsx"), store.Path("ppfas"))
	assert.Equal(t, filepath.Join(dir, "other.xlsx"), store.Path("other"))

	empty, err := store.Load("ppfas")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, "ppfas", empty.Fund)

	l := New("ppfas")
	l = Merge(l, []domain.Holding{
		{ISIN: "INE000A01011", SecurityName: "Alpha", Quantity: qty(1200),
			MarketValue: decimal.NewNullDecimal(decimal.RequireFromString("1534.2")),
			NavPercent:  decimal.NewNullDecimal(decimal.RequireFromString("1.25"))},
		holding("INE000B01019", "Beta & Co", 300),
	}, jan)
	l = Merge(l, []domain.Holding{holding("INE000B01019", "Beta & Co", 310)}, feb)

	require.NoError(t, store.Save(l))
	loaded, err := store.Load("ppfas")
	require.NoError(t, err)

	assert.Equal(t, l.Columns(), loaded.Columns())
	assert.Empty(t, cmp.Diff(snapshotOf(l), snapshotOf(loaded)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")

	// Saving again replaces the workbook.
	l = Merge(loaded, []domain.Holding{holding("INE000A01011", "Alpha", 5)}, mar)
	require.NoError(t, store.Save(l))
	reloaded, err := store.Load("ppfas")
	require.NoError(t, err)
	assert.True(t, reloaded.HasPeriod(mar))
}

func TestXLSXStore_LoadNormalizes(t *testing.T) {
	dir := t.TempDir()
	doc := testutil.BuildWorkbook(t, testutil.SheetData{Name: SheetName, Rows: [][]any{
		{"ISIN", "Stock Name", "Qty_January_2025", "Notes", "MarketValue_January_2025"},
		{" ine000a01011 ", "Alpha Industries Limited", "1,000", "x", "n/a"},
		{"INE000B01019", "Beta", "-", "", 42.5},
		{"", "Orphan", 5},
	}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.xlsx"), doc, 0644))

	l, err := NewXLSXStore(dir, nil, nil).Load("f")
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []string{"Qty_January_2025", "MarketValue_January_2025"}, l.Columns())

	r, ok := l.Row("INE000A01011")
	require.True(t, ok)
	assert.Equal(t, "Alpha Industries", r.Name)
	assert.True(t, l.Quantity("INE000A01011", jan).Equal(qty(1000)))
	assert.False(t, r.Cells["MarketValue_January_2025"].Valid)

	b := l.Value("INE000B01019", "Qty_January_2025")
	assert.True(t, b.Valid, "non-numeric quantity reads as zero")
	assert.True(t, b.Decimal.IsZero())
	assert.True(t, l.Value("INE000B01019", "MarketValue_January_2025").Decimal.Equal(decimal.RequireFromString("42.5")))
}

func TestXLSXStore_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.xlsx"), []byte("not a workbook"), 0644))
	_, err := NewXLSXStore(dir, nil, nil).Load("broken")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))

	doc := testutil.BuildWorkbook(t, testutil.SheetData{Name: SheetName, Rows: [][]any{{"Name", "Qty_January_2025"}}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noisin.xlsx"), doc, 0644))
	_, err = NewXLSXStore(dir, nil, nil).Load("noisin")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestMergeProperties(t *testing.T) {
	tables := map[domain.Period][]domain.Holding{
		jan: {holding("INE000A01011", "A", 10), holding("INE000B01019", "B", 20)},
		feb: {holding("INE000B01019", "B", 25), holding("INE000C01017", "C", 1)},
		mar: {holding("INE000A01011", "A", 4)},
	}

	l := New("f")
	for _, p := range []domain.Period{jan, feb, mar} {
		l = Merge(l, tables[p], p)
	}

	seen := map[string]bool{}
	for _, r := range l.Rows() {
		assert.False(t, seen[r.ISIN], "duplicate row %s", r.ISIN)
		seen[r.ISIN] = true
	}
	for p, table := range tables {
		for _, h := range table {
			assert.True(t, l.Quantity(h.ISIN, p).Equal(h.Quantity), "%s %s", h.ISIN, p)
		}
	}
	assert.Empty(t, cmp.Diff(l.Snapshot(mar), []domain.Holding{holding("INE000A01011", "A", 4)}, decimalComparer))
}
