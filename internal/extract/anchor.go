package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"mfledger/internal/layout"
	"mfledger/pkg/contracts/domain"
)

var (
	anchorISIN = regexp.MustCompile(`\b(INE|INF)[A-Z0-9]{9}\b`)
	alphaCell  = regexp.MustCompile(`^\p{L}[\p{L} &\-.()]*$`)
	hundred    = decimal.NewFromInt(100)
)

// Anchor reads sources without a usable header row. Each row carrying an ISIN
// anywhere is read heuristically:
//   - name is the longest purely alphabetic cell, first on ties;
//   - a "%" cell in (0, 100] is NAV%;
//   - of the remaining positive numbers, in order, the first integer-valued one
//     is the quantity and the next one is the market value;
//   - without a "%" cell, a third number in (0, 100] after the quantity is NAV%,
//     taken as written.
//
// A row with both an integer market value and a fractional quantity is read
// wrongly. That is a known accuracy limit of this mode.
func Anchor(sheet *layout.Sheet, opts Options) ([]domain.Holding, Stats) {
	opts = opts.withDefaults()
	s := &scanner{opts: opts}

	for _, row := range sheet.DataRows() {
		s.stats.Scanned++

		text := layout.RowText(row)
		if stop, skip := s.footer(text); stop {
			break
		} else if skip {
			s.reject()
			continue
		}

		isin := anchorISIN.FindString(strings.ToUpper(text))
		if isin == "" {
			continue
		}
		if !s.acceptISIN(isin) {
			s.reject()
			continue
		}

		h, ok := readAnchorRow(row, isin)
		if !ok || s.rejectName(h.SecurityName) {
			s.reject()
			continue
		}
		s.accept(h)
	}

	return s.result()
}

func readAnchorRow(row []string, isin string) (domain.Holding, bool) {
	h := domain.Holding{ISIN: isin}

	var (
		name    string
		numbers []decimal.Decimal
	)
	for _, raw := range row {
		c := strings.TrimSpace(raw)
		if c == "" || strings.Contains(strings.ToUpper(c), isin) {
			continue
		}

		if alphaCell.MatchString(c) {
			if len(c) > len(name) {
				name = c
			}
			continue
		}

		if strings.HasSuffix(c, "%") {
			if v, _, ok := ParsePercent(c); ok && v.IsPositive() && v.LessThanOrEqual(hundred) && !h.NavPercent.Valid {
				h.NavPercent = decimal.NewNullDecimal(v)
			}
			continue
		}

		if v, ok := ParseNumber(c); ok && v.IsPositive() {
			numbers = append(numbers, v)
		}
	}

	qtyAt := -1
	for i, v := range numbers {
		if v.IsInteger() {
			qtyAt = i
			break
		}
	}
	if qtyAt < 0 {
		return h, false
	}
	h.Quantity = numbers[qtyAt]
	if qtyAt+1 < len(numbers) {
		h.MarketValue = decimal.NewNullDecimal(numbers[qtyAt+1])
	}
	if !h.NavPercent.Valid && qtyAt+2 < len(numbers) && numbers[qtyAt+2].LessThanOrEqual(hundred) {
		h.NavPercent = decimal.NewNullDecimal(numbers[qtyAt+2])
	}
	h.SecurityName = domain.NormalizeName(name)
	return h, true
}
