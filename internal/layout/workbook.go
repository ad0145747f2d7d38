package layout

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	apperrors "mfledger/internal/errors"
)

// compoundFileSignature starts every OLE2 document, including BIFF .xls workbooks.
var compoundFileSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// workbook is the read-only view the resolver needs from either format.
type workbook interface {
	SheetList() []string
	Rows(sheet string) ([][]string, error)
	Close() error
}

// openWorkbook reads doc as xlsx, falling back to the legacy .xls reader for
// compound documents excelize rejects.
func openWorkbook(doc []byte) (workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(doc))
	if err == nil {
		return xlsxWorkbook{f}, nil
	}
	if !bytes.HasPrefix(doc, compoundFileSignature) {
		return nil, apperrors.NewLayoutError("workbook could not be opened", err)
	}
	wb, lerr := openLegacy(doc)
	if lerr != nil {
		return nil, apperrors.NewLayoutError("workbook could not be opened", lerr).
			WithContext("format", "xls")
	}
	return wb, nil
}

type xlsxWorkbook struct{ f *excelize.File }

func (w xlsxWorkbook) SheetList() []string { return w.f.GetSheetList() }

func (w xlsxWorkbook) Rows(sheet string) ([][]string, error) { return w.f.GetRows(sheet) }

func (w xlsxWorkbook) Close() error { return w.f.Close() }

// legacyWorkbook holds every sheet of a BIFF workbook, read eagerly.
type legacyWorkbook struct {
	names []string
	rows  map[string][][]string
}

func openLegacy(doc []byte) (wb *legacyWorkbook, err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			wb, err = nil, fmt.Errorf("malformed xls workbook: %v", rvr)
		}
	}()

	book, err := xls.OpenReader(bytes.NewReader(doc), "utf-8")
	if err != nil {
		return nil, err
	}

	wb = &legacyWorkbook{rows: make(map[string][][]string)}
	for i := 0; i < book.NumSheets(); i++ {
		sheet := book.GetSheet(i)
		if sheet == nil {
			continue
		}
		wb.names = append(wb.names, sheet.Name)
		wb.rows[sheet.Name] = legacyRows(sheet)
	}
	if len(wb.names) == 0 {
		return nil, fmt.Errorf("xls workbook has no sheets")
	}
	return wb, nil
}

// legacyRows matches excelize's GetRows shape: trailing empty cells and rows
// are dropped, interior gaps are kept.
func legacyRows(sheet *xls.WorkSheet) [][]string {
	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			if j < row.FirstCol() {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, strings.TrimRight(row.Col(j), "\x00"))
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		rows = append(rows, cells)
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func (w *legacyWorkbook) SheetList() []string { return w.names }

func (w *legacyWorkbook) Rows(sheet string) ([][]string, error) {
	rows, ok := w.rows[sheet]
	if !ok {
		return nil, fmt.Errorf("sheet %s does not exist", sheet)
	}
	return rows, nil
}

func (w *legacyWorkbook) Close() error { return nil }
