package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mfledger/internal/errors"
	"mfledger/internal/ledger"
	"mfledger/pkg/contracts/domain"
)

var (
	jan = domain.MustPeriod(2025, time.January)
	feb = domain.MustPeriod(2025, time.February)
	mar = domain.MustPeriod(2025, time.March)
	apr = domain.MustPeriod(2025, time.April)
)

type cell struct {
	isin, name string
	qty        int64
}

func build(fund string, periods map[domain.Period][]cell) *ledger.Ledger {
	l := ledger.New(fund)
	for p, cells := range periods {
		for _, c := range cells {
			l.PutQuantity(c.isin, c.name, p, decimal.NewFromInt(c.qty))
		}
	}
	return l
}

func isins[T any](rows []T, key func(T) string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, key(r))
	}
	return out
}

func TestCompare_Classification(t *testing.T) {
	a := build("fund-a", map[domain.Period][]cell{
		feb: {{"INE00000000X", "Xeno", 99}},
		mar: {{"INE00000000X", "Xeno", 10}, {"INE00000000Y", "Yak", 0}, {"INE00000000Z", "Zeta", 5}},
	})
	b := build("fund-b", map[domain.Period][]cell{
		apr: {{"INE00000000X", "Xeno", 0}, {"INE00000000Y", "Yak Ltd", 8}, {"INE00000000Z", "", 3}},
	})

	c, err := Compare(a, b)
	require.NoError(t, err)

	assert.Equal(t, mar, c.PeriodA)
	assert.Equal(t, apr, c.PeriodB)
	assert.Equal(t, Counts{Overlap: 1, UniqueA: 1, UniqueB: 1}, c.Counts)

	key := func(r OverlapRow) string { return r.ISIN }
	assert.Equal(t, []string{"INE00000000Z"}, isins(c.Filter(ClassOverlap), key))
	assert.Equal(t, []string{"INE00000000X"}, isins(c.Filter(ClassUniqueA), key))
	assert.Equal(t, []string{"INE00000000Y"}, isins(c.Filter(ClassUniqueB), key))

	z := c.Filter(ClassOverlap)[0]
	assert.Equal(t, "Zeta", z.Name, "name coalesces A then B")
	assert.True(t, z.QtyA.Equal(decimal.NewFromInt(5)))
	assert.True(t, z.QtyB.Equal(decimal.NewFromInt(3)))

	y := c.Filter(ClassUniqueB)[0]
	assert.Equal(t, "Yak Ltd", y.Name)
	assert.True(t, y.QtyA.IsZero())

	assert.Equal(t, []string{"INE00000000Z", "INE00000000X", "INE00000000Y"}, isins(c.Rows, key), "sorted by class")
}

func TestCompare_Partition(t *testing.T) {
	a := build("a", map[domain.Period][]cell{jan: {
		{"INE000000001", "One", 1}, {"INE000000002", "Two", 2}, {"INE000000003", "Three", 0}, {"INE000000004", "Four", 4},
	}})
	b := build("b", map[domain.Period][]cell{jan: {
		{"INE000000002", "Two", 5}, {"INE000000003", "Three", 0}, {"INE000000005", "Five", 7},
	}})

	c, err := Compare(a, b)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range c.Rows {
		assert.False(t, seen[r.ISIN])
		seen[r.ISIN] = true
		assert.True(t, r.QtyA.IsPositive() || r.QtyB.IsPositive(), "both-zero rows are excluded")
	}
	assert.Len(t, c.Rows, 4)
	assert.Equal(t, len(c.Rows), c.Counts.Overlap+c.Counts.UniqueA+c.Counts.UniqueB)
}

func TestCompare_Preconditions(t *testing.T) {
	good := build("g", map[domain.Period][]cell{jan: {{"INE000000001", "One", 1}}})
	noColumns := ledger.New("empty")

	tests := []struct {
		name string
		a, b *ledger.Ledger
	}{
		{"nil a", nil, good},
		{"nil b", good, nil},
		{"no rows", noColumns, good},
		{"no rows b", good, noColumns},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compare(tt.a, tt.b)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLedgerInconsistency), "got %v", err)
		})
	}
}

func scenarioLedger() *ledger.Ledger {
	return build("f", map[domain.Period][]cell{
		mar: {{"INE00000000A", "Alpha", 100}, {"INE00000000B", "Beta", 0}, {"INE00000000C", "Gamma", 50}},
		apr: {{"INE00000000A", "Alpha", 100}, {"INE00000000B", "Beta", 20}, {"INE00000000C", "Gamma", 0}},
	})
}

func TestFlows_EntriesAndExits(t *testing.T) {
	r, err := Flows(scenarioLedger(), apr, mar)
	require.NoError(t, err)
	assert.False(t, r.NoPriorPeriod)

	require.Len(t, r.Entries, 1)
	assert.Equal(t, "INE00000000B", r.Entries[0].ISIN)
	assert.True(t, r.Entries[0].Quantity.Equal(decimal.NewFromInt(20)))

	require.Len(t, r.Exits, 1)
	assert.Equal(t, "INE00000000C", r.Exits[0].ISIN)
	assert.True(t, r.Exits[0].Quantity.Equal(decimal.NewFromInt(50)), "exit carries the previous quantity")
}

func TestFlows_Complementary(t *testing.T) {
	l := scenarioLedger()
	forward, err := Flows(l, apr, mar)
	require.NoError(t, err)

	// Same data with the two columns swapped.
	swapped := build("f", map[domain.Period][]cell{
		mar: {{"INE00000000A", "Alpha", 100}, {"INE00000000B", "Beta", 20}, {"INE00000000C", "Gamma", 0}},
		apr: {{"INE00000000A", "Alpha", 100}, {"INE00000000B", "Beta", 0}, {"INE00000000C", "Gamma", 50}},
	})
	backward, err := Flows(swapped, apr, mar)
	require.NoError(t, err)

	key := func(p Position) string { return p.ISIN }
	assert.Equal(t, isins(forward.Entries, key), isins(backward.Exits, key))
	assert.Equal(t, isins(forward.Exits, key), isins(backward.Entries, key))
}

func TestFlows_Errors(t *testing.T) {
	l := build("f", map[domain.Period][]cell{
		jan: {{"INE00000000A", "Alpha", 1}},
		mar: {{"INE00000000A", "Alpha", 1}},
	})

	t.Run("prev before history", func(t *testing.T) {
		r, err := Flows(l, jan, jan.Prev())
		require.NoError(t, err)
		assert.True(t, r.NoPriorPeriod)
		assert.Empty(t, r.Entries)
		assert.Empty(t, r.Exits)
	})

	tests := []struct {
		name       string
		curr, prev domain.Period
	}{
		{"curr missing", apr, mar},
		{"gap inside history", mar, feb},
		{"prev after curr", jan, mar},
		{"same period", mar, mar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Flows(l, tt.curr, tt.prev)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLedgerInconsistency), "got %v", err)
		})
	}

	_, err := Flows(nil, jan, jan.Prev())
	assert.Error(t, err)
}

func TestLatestFlows(t *testing.T) {
	r, err := LatestFlows(scenarioLedger())
	require.NoError(t, err)
	assert.Equal(t, apr, r.Current)
	assert.Equal(t, mar, r.Previous)
	assert.Len(t, r.Entries, 1)

	single := build("f", map[domain.Period][]cell{jan: {{"INE00000000A", "Alpha", 1}}})
	r, err = LatestFlows(single)
	require.NoError(t, err)
	assert.True(t, r.NoPriorPeriod)

	_, err = LatestFlows(ledger.New("empty"))
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	l := build("f", map[domain.Period][]cell{
		feb: {{"INE00000000A", "Alpha", 100}, {"INE00000000B", "Beta", 100}},
		mar: {{"INE00000000A", "Alpha", 150}, {"INE00000000B", "Beta", 0}, {"INE00000000C", "Gamma", 90}},
	})

	s, err := Summarize(l)
	require.NoError(t, err)
	assert.Equal(t, mar, s.Latest)
	assert.Equal(t, 2, s.Periods)
	assert.Equal(t, 2, s.ActivePositions)
	require.NotNil(t, s.TopHolding)
	assert.Equal(t, "Alpha", s.TopHolding.Name)
	assert.True(t, s.TotalQuantity.Equal(decimal.NewFromInt(240)))
	assert.Equal(t, "20", s.ChangePercent.String())

	one, err := Summarize(build("f", map[domain.Period][]cell{jan: {{"INE00000000A", "Alpha", 5}}}))
	require.NoError(t, err)
	assert.True(t, one.ChangePercent.IsZero())

	fromZero, err := Summarize(build("f", map[domain.Period][]cell{
		jan: {{"INE00000000A", "Alpha", 0}},
		feb: {{"INE00000000A", "Alpha", 5}},
	}))
	require.NoError(t, err)
	assert.True(t, fromZero.ChangePercent.IsZero())

	_, err = Summarize(ledger.New("empty"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLedgerInconsistency))
}

func TestTopHoldingsAndTrend(t *testing.T) {
	l := build("f", map[domain.Period][]cell{
		jan: {{"INE00000000A", "Alpha", 10}},
		feb: {{"INE00000000A", "Alpha", 30}, {"INE00000000B", "Beta", 30}, {"INE00000000C", "Gamma", 50}, {"INE00000000D", "Delta", 0}},
	})

	top := TopHoldings(l, 3)
	key := func(p Position) string { return p.Name }
	assert.Equal(t, []string{"Gamma", "Alpha", "Beta"}, isins(top, key))
	assert.Len(t, TopHoldings(l, 10), 3, "zero positions are not holdings")
	assert.Nil(t, TopHoldings(l, 0))

	trend, err := Trend(l, "INE00000000B")
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, jan, trend[0].Period)
	assert.True(t, trend[0].Quantity.IsZero())
	assert.True(t, trend[1].Quantity.Equal(decimal.NewFromInt(30)))

	_, err = Trend(l, "INE999999999")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}
