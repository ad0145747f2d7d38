package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"mfledger/internal/config"
	apperrors "mfledger/internal/errors"
	"mfledger/pkg/contracts/domain"
)

const (
	// SheetName is the worksheet holding a persisted ledger.
	SheetName = "Ledger"

	headerISIN = "ISIN"
	headerName = "Stock Name"
)

// XLSXStore persists one workbook per fund.
type XLSXStore struct {
	dir    string
	files  map[string]string
	logger *slog.Logger
}

// NewXLSXStore stores ledgers under dir, using each fund's configured file
// name. Funds without one use "<id>.xlsx".
func NewXLSXStore(dir string, funds *config.FundRegistry, logger *slog.Logger) *XLSXStore {
	if logger == nil {
		logger = slog.Default()
	}
	files := make(map[string]string)
	if funds != nil {
		for _, f := range funds.Funds {
			if f.File != "" {
				files[f.ID] = f.File
			}
		}
	}
	return &XLSXStore{dir: dir, files: files, logger: logger.With("component", "ledger_store")}
}

// Path returns the workbook path for fund.
func (s *XLSXStore) Path(fund string) string {
	file, ok := s.files[fund]
	if !ok {
		file = fund + ".xlsx"
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(s.dir, file)
}

// Load reads a fund's ledger. A missing workbook is an empty ledger.
func (s *XLSXStore) Load(fund string) (*Ledger, error) {
	path := s.Path(fund)
	f, err := excelize.OpenFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("No stored ledger", slog.String("fund", fund), slog.String("path", path))
		return New(fund), nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("open ledger workbook", err).WithContext("path", path)
	}
	defer f.Close()

	sheet := SheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewStorageError("read ledger sheet", err).WithContext("path", path)
	}

	l, err := decodeRows(fund, rows)
	if err != nil {
		return nil, apperrors.NewStorageError(err.Error(), nil).WithContext("path", path)
	}
	s.logger.Debug("Ledger loaded",
		slog.String("fund", fund),
		slog.Int("rows", l.Len()),
		slog.Int("periods", len(l.Periods())))
	return l, nil
}

func decodeRows(fund string, rows [][]string) (*Ledger, error) {
	l := New(fund)
	if len(rows) == 0 {
		return l, nil
	}

	isinCol, nameCol := -1, -1
	columns := make(map[int]string)
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		switch {
		case strings.EqualFold(h, headerISIN):
			isinCol = i
		case strings.EqualFold(h, headerName):
			nameCol = i
		default:
			if _, _, ok := ParseColumn(h); ok {
				columns[i] = h
			}
		}
	}
	if isinCol < 0 {
		return nil, fmt.Errorf("ledger header has no %s column", headerISIN)
	}
	for _, c := range columns {
		l.addColumn(c)
	}

	for _, row := range rows[1:] {
		isin := domain.NormalizeISIN(cellAt(row, isinCol))
		if isin == "" {
			continue
		}
		i := l.ensureRow(isin, domain.NormalizeName(cellAt(row, nameCol)))
		for col, name := range columns {
			v, ok := parseCell(cellAt(row, col))
			f, _, _ := ParseColumn(name)
			switch {
			case ok:
				l.set(i, name, nullOf(v))
			case f == FieldQty:
				l.set(i, name, zeroCell())
			}
		}
	}
	return l, nil
}

// Save writes l atomically: a temp file in the same directory is renamed over
// the previous workbook.
func (s *XLSXStore) Save(l *Ledger) error {
	path := s.Path(l.Fund)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("create ledger directory", err).WithContext("path", path)
	}

	f, err := encode(l)
	if err != nil {
		return apperrors.NewStorageError("encode ledger", err).WithContext("fund", l.Fund)
	}
	defer f.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ledger-*.xlsx")
	if err != nil {
		return apperrors.NewStorageError("create temp file", err).WithContext("path", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return apperrors.NewStorageError("write ledger", err).WithContext("path", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageError("close ledger", err).WithContext("path", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperrors.NewStorageError("replace ledger", err).WithContext("path", path)
	}

	s.logger.Info("Ledger saved",
		slog.String("fund", l.Fund),
		slog.String("path", path),
		slog.Int("rows", l.Len()),
		slog.Int("columns", len(l.columns)))
	return nil
}

func encode(l *Ledger) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, err
	}

	header := make([]any, 0, len(l.columns)+2)
	header = append(header, headerISIN, headerName)
	for _, c := range l.columns {
		header = append(header, c)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}

	for i, r := range l.rows {
		values := make([]any, 0, len(header))
		values = append(values, r.ISIN, r.Name)
		for _, c := range l.columns {
			v, ok := r.Cells[c]
			if !ok || !v.Valid {
				values = append(values, nil)
				continue
			}
			values = append(values, v.Decimal.InexactFloat64())
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseCell(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
