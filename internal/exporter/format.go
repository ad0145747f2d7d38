package exporter

import "github.com/shopspring/decimal"

// formatCell renders a ledger cell; absent values are empty.
func formatCell(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.String()
}
