package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"
)

// SheetData is one named sheet of a generated workbook.
type SheetData struct {
	Name string
	Rows [][]any
}

// BuildWorkbook renders sheets into xlsx bytes, in order.
func BuildWorkbook(t *testing.T, sheets ...SheetData) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("new sheet %s: %v", s.Name, err)
		}

		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			values := row
			if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
				t.Fatalf("write row %d: %v", r+1, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.Clone(buf.Bytes())
}

// HoldingsSheet builds a disclosure-style sheet: title rows, a header row, and
// data rows.
func HoldingsSheet(name string, preamble int, header []any, rows ...[]any) SheetData {
	data := make([][]any, 0, preamble+1+len(rows))
	for i := 0; i < preamble; i++ {
		data = append(data, []any{"Portfolio statement as on month end"})
	}
	data = append(data, header)
	data = append(data, rows...)
	return SheetData{Name: name, Rows: data}
}

// CapturingHandler is a slog handler that keeps records for assertions.
type CapturingHandler struct {
	mu      sync.Mutex
	Records []slog.Record
}

// NewCapturingLogger returns a logger backed by a CapturingHandler.
func NewCapturingLogger() (*slog.Logger, *CapturingHandler) {
	h := &CapturingHandler{}
	return slog.New(h), h
}

func (h *CapturingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *CapturingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Records = append(h.Records, r.Clone())
	return nil
}

func (h *CapturingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *CapturingHandler) WithGroup(string) slog.Handler      { return h }

// Messages returns the captured messages at or above level.
func (h *CapturingHandler) Messages(level slog.Level) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.Records {
		if r.Level >= level {
			out = append(out, r.Message)
		}
	}
	return out
}
