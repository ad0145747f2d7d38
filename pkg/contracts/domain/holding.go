package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	isinPattern = regexp.MustCompile(`^IN[EF][A-Z0-9]{9}$`)

	nameDisallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s\-&]`)
	nameSpaces     = regexp.MustCompile(`\s+`)
	nameSuffix     = regexp.MustCompile(`(?i)\s+(limited|ltd\.?)$`)
)

// Holding is one security in one fund's disclosure for one period.
type Holding struct {
	ISIN         string              `json:"isin" validate:"required,len=12"`
	SecurityName string              `json:"security_name"`
	Quantity     decimal.Decimal     `json:"quantity"`
	MarketValue  decimal.NullDecimal `json:"market_value"`
	NavPercent   decimal.NullDecimal `json:"nav_percent"`
}

// IsHeld reports a strictly positive quantity.
func (h Holding) IsHeld() bool {
	return h.Quantity.IsPositive()
}

// NormalizeISIN upper-cases and trims an identifier.
func NormalizeISIN(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidISIN reports whether s is an Indian equity/debt style ISIN.
func ValidISIN(s string) bool {
	return isinPattern.MatchString(s)
}

// NormalizeName strips disallowed punctuation, collapses whitespace and drops a
// trailing "Limited"/"Ltd." suffix. Case is preserved.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	s = nameDisallowed.ReplaceAllString(s, "")
	s = nameSpaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if trimmed := nameSuffix.ReplaceAllString(s, ""); trimmed != "" {
		s = trimmed
	}
	return s
}

// Aggregate merges duplicate ISINs within one period: quantities and market
// values are summed, name and NAV% keep the first non-empty value. Order of first
// appearance is preserved.
func Aggregate(records []Holding) []Holding {
	out := make([]Holding, 0, len(records))
	index := make(map[string]int, len(records))

	for _, r := range records {
		i, seen := index[r.ISIN]
		if !seen {
			index[r.ISIN] = len(out)
			out = append(out, r)
			continue
		}

		agg := &out[i]
		agg.Quantity = agg.Quantity.Add(r.Quantity)
		if r.MarketValue.Valid {
			if agg.MarketValue.Valid {
				agg.MarketValue.Decimal = agg.MarketValue.Decimal.Add(r.MarketValue.Decimal)
			} else {
				agg.MarketValue = r.MarketValue
			}
		}
		if agg.SecurityName == "" {
			agg.SecurityName = r.SecurityName
		}
		if !agg.NavPercent.Valid {
			agg.NavPercent = r.NavPercent
		}
	}
	return out
}
