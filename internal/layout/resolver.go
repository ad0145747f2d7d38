package layout

import (
	"fmt"
	"log/slog"
	"strings"

	"mfledger/internal/config"
	apperrors "mfledger/internal/errors"
)

// NoHeader marks a sheet resolved without header detection (anchor mode).
const NoHeader = -1

const defaultProbeRows = 5

// Selector identifies the sheet holding equity positions.
type Selector struct {
	Names     []string
	Keyword   string
	ProbeRows int
	AllSheets bool
}

// SelectorFrom builds a selector from a fund's layout configuration.
func SelectorFrom(cfg config.LayoutConfig) Selector {
	return Selector{
		Names:     cfg.Sheets,
		Keyword:   cfg.Keyword,
		ProbeRows: cfg.ProbeRows,
		AllSheets: cfg.AllSheets,
	}
}

func (s Selector) String() string {
	switch {
	case s.AllSheets:
		return "all sheets"
	case len(s.Names) > 0:
		return "sheets " + strings.Join(s.Names, ",")
	default:
		return fmt.Sprintf("keyword %q", s.Keyword)
	}
}

// Sheet is the resolved table. Rows hold formatted cell text; HeaderRow is the
// index of the header row or NoHeader.
type Sheet struct {
	Name      string
	Rows      [][]string
	HeaderRow int
}

// Header returns the header row labels, or nil when there is none.
func (s *Sheet) Header() []string {
	if s == nil || s.HeaderRow < 0 || s.HeaderRow >= len(s.Rows) {
		return nil
	}
	return s.Rows[s.HeaderRow]
}

// DataRows returns the rows below the header, or every row in anchor mode.
func (s *Sheet) DataRows() [][]string {
	if s == nil {
		return nil
	}
	if s.HeaderRow < 0 {
		return s.Rows
	}
	return s.Rows[s.HeaderRow+1:]
}

// Resolver locates the holdings sheet and header row inside a workbook.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger.With("component", "layout")}
}

// Resolve opens doc (xlsx, or legacy .xls) and applies the selector and header
// markers. Every failure is a LAYOUT_NOT_RECOGNIZED error.
func (r *Resolver) Resolve(doc []byte, sel Selector, markers []string) (*Sheet, error) {
	f, err := openWorkbook(doc)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet, err := r.selectSheet(f, sel)
	if err != nil {
		return nil, err
	}

	if sel.AllSheets {
		sheet.HeaderRow = NoHeader
		return sheet, nil
	}

	markers = withISINMarker(markers)
	header := FindHeader(sheet.Rows, markers)
	if header < 0 {
		return nil, apperrors.NewLayoutError("no header row matched", nil).
			WithContext("sheet", sheet.Name).
			WithContext("markers", strings.Join(markers, ","))
	}
	sheet.HeaderRow = header

	r.logger.Debug("Resolved holdings sheet",
		slog.String("sheet", sheet.Name),
		slog.Int("header_row", header),
		slog.Int("rows", len(sheet.Rows)))
	return sheet, nil
}

func (r *Resolver) selectSheet(f workbook, sel Selector) (*Sheet, error) {
	sheets := f.SheetList()

	if sel.AllSheets {
		var all [][]string
		for _, name := range sheets {
			rows, err := f.Rows(name)
			if err != nil {
				continue
			}
			all = append(all, rows...)
		}
		if len(all) == 0 {
			return nil, apperrors.NewLayoutError("workbook has no rows", nil)
		}
		return &Sheet{Name: strings.Join(sheets, "+"), Rows: all}, nil
	}

	for _, want := range sel.Names {
		for _, name := range sheets {
			if !strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(want)) {
				continue
			}
			rows, err := f.Rows(name)
			if err != nil {
				return nil, apperrors.NewLayoutError("sheet could not be read", err).WithContext("sheet", name)
			}
			return &Sheet{Name: name, Rows: rows}, nil
		}
	}

	if sel.Keyword != "" {
		keyword := strings.ToLower(sel.Keyword)
		window := sel.ProbeRows
		if window <= 0 {
			window = defaultProbeRows
		}
		for _, name := range sheets {
			rows, err := f.Rows(name)
			if err != nil {
				continue
			}
			if strings.Contains(joinLower(rows[:min(window, len(rows))]), keyword) {
				return &Sheet{Name: name, Rows: rows}, nil
			}
		}
	}

	return nil, apperrors.NewLayoutError("no sheet matched selector", nil).
		WithContext("selector", sel.String()).
		WithContext("sheets", strings.Join(sheets, ","))
}

// FindHeader returns the first row whose lower-cased text contains every
// marker, or -1.
func FindHeader(rows [][]string, markers []string) int {
	for i, row := range rows {
		text := RowText(row)
		if text == "" {
			continue
		}
		matched := true
		for _, m := range markers {
			if !strings.Contains(text, strings.ToLower(strings.TrimSpace(m))) {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

// RowText joins a row's cells with spaces and lower-cases the result.
func RowText(row []string) string {
	return strings.ToLower(strings.TrimSpace(strings.Join(row, " ")))
}

func joinLower(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(RowText(row))
		b.WriteByte(' ')
	}
	return b.String()
}

func withISINMarker(markers []string) []string {
	for _, m := range markers {
		if strings.EqualFold(strings.TrimSpace(m), "isin") {
			return markers
		}
	}
	return append([]string{"isin"}, markers...)
}
