package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	minPeriodYear = 1990
	maxPeriodYear = 2200
)

// Period is one calendar month of disclosed holdings.
// Periods are ordered by (Year, Month); never compare labels lexically.
type Period struct {
	Year  int        `json:"year" validate:"min=1990,max=2200"`
	Month time.Month `json:"month" validate:"min=1,max=12"`
}

// NewPeriod validates and builds a Period.
func NewPeriod(year int, month time.Month) (Period, error) {
	if month < time.January || month > time.December {
		return Period{}, fmt.Errorf("invalid month %d", month)
	}
	if year < minPeriodYear || year > maxPeriodYear {
		return Period{}, fmt.Errorf("invalid year %d", year)
	}
	return Period{Year: year, Month: month}, nil
}

// MustPeriod is NewPeriod for literals in tests and defaults.
func MustPeriod(year int, month time.Month) Period {
	p, err := NewPeriod(year, month)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePeriod accepts "March_2025", "March 2025", "Mar-2025" and "2025-03".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Period{}, fmt.Errorf("empty period")
	}

	if t, err := time.Parse("2006-01", s); err == nil {
		return NewPeriod(t.Year(), t.Month())
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-' || r == '/'
	})
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("unrecognized period %q", s)
	}

	month, ok := ParseMonth(parts[0])
	if !ok {
		return Period{}, fmt.Errorf("unrecognized month in period %q", s)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("unrecognized year in period %q", s)
	}
	return NewPeriod(year, month)
}

// ParseMonth resolves a full or three-letter English month name.
func ParseMonth(s string) (time.Month, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if s == full || s == full[:3] {
			return m, true
		}
	}
	return 0, false
}

// Label is the column suffix form, e.g. "March_2025".
func (p Period) Label() string {
	return fmt.Sprintf("%s_%d", p.Month.String(), p.Year)
}

func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.Month.String(), p.Year)
}

// MonthName returns the full English month name.
func (p Period) MonthName() string { return p.Month.String() }

// ShortMonth returns the three-letter month abbreviation.
func (p Period) ShortMonth() string { return p.Month.String()[:3] }

// ShortYear returns the two-digit year.
func (p Period) ShortYear() string { return fmt.Sprintf("%02d", p.Year%100) }

// LastDay returns the last calendar day of the month.
func (p Period) LastDay() int {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Compare returns -1, 0 or 1.
func (p Period) Compare(other Period) int {
	switch {
	case p.Year < other.Year:
		return -1
	case p.Year > other.Year:
		return 1
	case p.Month < other.Month:
		return -1
	case p.Month > other.Month:
		return 1
	default:
		return 0
	}
}

// Before reports whether p precedes other.
func (p Period) Before(other Period) bool { return p.Compare(other) < 0 }

// Next returns the following calendar month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Prev returns the preceding calendar month.
func (p Period) Prev() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Range returns every period from start through end inclusive, in order.
func Range(start, end Period) []Period {
	var out []Period
	for p := start; !end.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}

// SortPeriods sorts in place by calendar order.
func SortPeriods(ps []Period) {
	slices.SortFunc(ps, Period.Compare)
}
