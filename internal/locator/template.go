package locator

import (
	"fmt"
	"strings"
	"text/template"

	"mfledger/pkg/contracts/domain"
)

// PeriodView is the data exposed to URL templates.
type PeriodView struct {
	BaseURL    string
	Year       int
	Month      int
	MonthName  string
	ShortMonth string
	ShortYear  string
	LastDay    int
	// Folder and NextFolder are "YYYY-MM" for the period and the month after.
	Folder     string
	NextFolder string
}

// NewPeriodView builds the template data for p.
func NewPeriodView(p domain.Period, baseURL string) PeriodView {
	next := p.Next()
	return PeriodView{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Year:       p.Year,
		Month:      int(p.Month),
		MonthName:  p.MonthName(),
		ShortMonth: p.ShortMonth(),
		ShortYear:  p.ShortYear(),
		LastDay:    p.LastDay(),
		Folder:     fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)),
		NextFolder: fmt.Sprintf("%04d-%02d", next.Year, int(next.Month)),
	}
}

// URLTemplates is a parsed list of URL templates.
type URLTemplates []*template.Template

// ParseURLTemplates compiles the given templates.
func ParseURLTemplates(raw []string) (URLTemplates, error) {
	out := make(URLTemplates, 0, len(raw))
	for i, r := range raw {
		t, err := template.New(fmt.Sprintf("url%d", i)).Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parse url template %q: %w", r, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Render expands every template for view. Spaces are percent-encoded.
func (ts URLTemplates) Render(view PeriodView) ([]string, error) {
	urls := make([]string, 0, len(ts))
	for _, t := range ts {
		var b strings.Builder
		if err := t.Execute(&b, view); err != nil {
			return nil, fmt.Errorf("render url template %s: %w", t.Name(), err)
		}
		urls = append(urls, strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "%20"))
	}
	return urls, nil
}
