package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mfledger/internal/errors"
	"mfledger/internal/testutil"
)

var header = []any{"Name of the Instrument", "ISIN", "Industry", "Quantity", "Market/Fair Value", "% to NAV"}

func TestResolve_ByName(t *testing.T) {
	doc := testutil.BuildWorkbook(t,
		testutil.SheetData{Name: "Index", Rows: [][]any{{"Scheme codes"}}},
		testutil.HoldingsSheet("sc", 4, header,
			[]any{"Alpha Ltd", "INE000A01011", "Banks", 100, 2500.5, "1.2%"},
		),
	)

	sheet, err := NewResolver(nil).Resolve(doc, Selector{Names: []string{"SC"}}, []string{"name of the instrument"})
	require.NoError(t, err)

	assert.Equal(t, "sc", sheet.Name)
	assert.Equal(t, 4, sheet.HeaderRow)
	assert.Equal(t, "ISIN", sheet.Header()[1])
	require.Len(t, sheet.DataRows(), 1)
	assert.Equal(t, "INE000A01011", sheet.DataRows()[0][1])
}

func TestResolve_KeywordProbe(t *testing.T) {
	doc := testutil.BuildWorkbook(t,
		testutil.SheetData{Name: "HDFCMID", Rows: [][]any{{"HDFC Mid Cap Fund"}, {"ISIN", "Name", "Quantity"}}},
		testutil.SheetData{Name: "HDFCN50", Rows: [][]any{
			{"HDFC Nifty 50 Index Fund"},
			{"Portfolio as on March 31, 2025"},
			{"Name Of the Instrument", "ISIN", "Quantity"},
			{"Beta Limited", "INE111B01022", "42"},
		}},
	)

	sel := Selector{Keyword: "Nifty 50 Index Fund", ProbeRows: 5}
	sheet, err := NewResolver(nil).Resolve(doc, sel, []string{"isin", "name", "quantity"})
	require.NoError(t, err)
	assert.Equal(t, "HDFCN50", sheet.Name)
	assert.Equal(t, 2, sheet.HeaderRow)
}

func TestResolve_KeywordOutsideProbeWindow(t *testing.T) {
	rows := [][]any{{"x"}, {"x"}, {"x"}, {"Fund: target"}, {"ISIN"}}
	doc := testutil.BuildWorkbook(t, testutil.SheetData{Name: "S1", Rows: rows})

	_, err := NewResolver(nil).Resolve(doc, Selector{Keyword: "target", ProbeRows: 3}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLayoutNotRecognized))
}

func TestResolve_AllSheets(t *testing.T) {
	doc := testutil.BuildWorkbook(t,
		testutil.SheetData{Name: "A", Rows: [][]any{{"one"}, {"two"}}},
		testutil.SheetData{Name: "B", Rows: [][]any{{"three"}}},
	)

	sheet, err := NewResolver(nil).Resolve(doc, Selector{AllSheets: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, NoHeader, sheet.HeaderRow)
	assert.Nil(t, sheet.Header())
	require.Len(t, sheet.DataRows(), 3)
	assert.Equal(t, "three", sheet.DataRows()[2][0])
}

func TestResolve_Failures(t *testing.T) {
	noISIN := testutil.BuildWorkbook(t, testutil.SheetData{
		Name: "SC",
		Rows: [][]any{{"Name of the Instrument", "Quantity"}, {"Alpha", 1}},
	})

	tests := []struct {
		name    string
		doc     []byte
		sel     Selector
		markers []string
	}{
		{"unreadable bytes", []byte("\xd0\xcf\x11\xe0 legacy xls"), Selector{Names: []string{"SC"}}, nil},
		{"truncated compound file", append(append([]byte{}, compoundFileSignature...), make([]byte, 64)...), Selector{AllSheets: true}, nil},
		{"missing sheet", noISIN, Selector{Names: []string{"LC"}}, nil},
		{"isin marker always required", noISIN, Selector{Names: []string{"SC"}}, []string{"name of the instrument"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, err := NewResolver(nil).Resolve(tt.doc, tt.sel, tt.markers)
			assert.Nil(t, sheet)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrTypeLayoutNotRecognized, apperrors.TypeOf(err))
		})
	}
}

func legacyFixture(t *testing.T) []byte {
	t.Helper()
	doc, err := os.ReadFile(filepath.Join("testdata", "legacy.xls"))
	require.NoError(t, err)
	return doc
}

func TestResolve_LegacyXLS(t *testing.T) {
	doc := legacyFixture(t)

	sheet, err := NewResolver(nil).Resolve(doc, Selector{AllSheets: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Test sheet 1+Test sheet 2+Sheet3", sheet.Name)
	require.NotEmpty(t, sheet.DataRows())
	assert.Equal(t, []string{"Test1", "Lorem", "Ipsum"}, sheet.DataRows()[0])

	text := joinLower(sheet.DataRows())
	assert.Contains(t, text, "avocado")
	assert.Contains(t, text, "test2")
}

func TestResolve_LegacyXLSSelectsSheet(t *testing.T) {
	doc := legacyFixture(t)

	// The keyword picks the sheet; the header search then fails on it.
	_, err := NewResolver(nil).Resolve(doc, Selector{Keyword: "avocado", ProbeRows: 3}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeLayoutNotRecognized, apperrors.TypeOf(err))
	assert.Contains(t, err.Error(), "no header row matched")

	_, err = NewResolver(nil).Resolve(doc, Selector{Names: []string{"test sheet 2"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row matched")
}

func TestFindHeader(t *testing.T) {
	rows := [][]string{
		{"Disclaimer: ISIN codes are indicative"},
		{},
		{"Name", "ISIN", "Qty"},
		{"Name", "ISIN", "Quantity"},
	}

	assert.Equal(t, 0, FindHeader(rows, []string{"isin"}))
	assert.Equal(t, 3, FindHeader(rows, []string{"ISIN", "quantity"}))
	assert.Equal(t, -1, FindHeader(rows, []string{"isin", "market value"}))
}
