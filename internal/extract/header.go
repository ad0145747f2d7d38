package extract

import (
	"mfledger/internal/layout"
	"mfledger/pkg/contracts/domain"
)

// Header reads rows below the sheet's header row using the column table. A
// header lacking an ISIN, name or quantity column yields nothing.
func Header(sheet *layout.Sheet, opts Options) ([]domain.Holding, Stats) {
	opts = opts.withDefaults()
	s := &scanner{opts: opts}

	cols := MapColumns(sheet.Header(), opts.Overrides)
	if !cols.Has(FieldISIN, FieldName, FieldQuantity) {
		return s.result()
	}
	mvCol, hasMV := cols[FieldMarketValue]
	navCol, hasNAV := cols[FieldNavPercent]

	for _, row := range sheet.DataRows() {
		s.stats.Scanned++

		if stop, skip := s.footer(layout.RowText(row)); stop {
			break
		} else if skip {
			s.reject()
			continue
		}

		isin := domain.NormalizeISIN(cell(row, cols[FieldISIN]))
		if !s.acceptISIN(isin) {
			s.reject()
			continue
		}

		rawName := cell(row, cols[FieldName])
		if s.rejectName(rawName) {
			s.reject()
			continue
		}

		qty, ok := ParseNumber(cell(row, cols[FieldQuantity]))
		if !ok || !qty.IsPositive() {
			s.reject()
			continue
		}

		h := domain.Holding{
			ISIN:         isin,
			SecurityName: domain.NormalizeName(rawName),
			Quantity:     qty,
		}
		if hasMV {
			h.MarketValue = optionalValue(cell(row, mvCol), false)
		}
		if hasNAV {
			h.NavPercent = optionalValue(cell(row, navCol), true)
		}
		s.accept(h)
	}

	return s.result()
}
