package extract

import (
	"strings"

	"github.com/shopspring/decimal"
)

var numberNoise = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "\t", "")

// ParseNumber parses a spreadsheet cell as a decimal. Thousands separators and
// whitespace are ignored and "(123)" reads as -123.
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = numberNoise.Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// ParsePercent parses "7.12%" or "7.12". The second result reports whether a
// percent sign was present.
func ParsePercent(s string) (d decimal.Decimal, hadSign bool, ok bool) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		hadSign = true
		s = strings.TrimSuffix(s, "%")
	}
	d, ok = ParseNumber(s)
	return d, hadSign, ok
}

// optionalValue parses best-effort: a failure yields a disclosed zero.
func optionalValue(s string, percent bool) decimal.NullDecimal {
	var (
		d  decimal.Decimal
		ok bool
	)
	if percent {
		d, _, ok = ParsePercent(s)
	} else {
		d, ok = ParseNumber(s)
	}
	if !ok {
		d = decimal.Zero
	}
	return decimal.NewNullDecimal(d)
}
