package locator

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"mfledger/pkg/contracts/domain"
)

var spreadsheetLink = regexp.MustCompile(`(?i)\.xlsx?($|\?)`)

// Link is one hyperlink found on an index page.
type Link struct {
	Href string
	Text string
}

// Matcher decides whether a hyperlink points at a period's disclosure.
type Matcher struct {
	months    []string
	years     []string
	keywords  []string
	linkAnyOf []string
}

// NewMatcher builds a matcher for p. yearForms selects "full" and/or "short"
// year tokens; empty means both.
func NewMatcher(p domain.Period, keywords, linkAnyOf, yearForms []string) Matcher {
	m := Matcher{
		months:    []string{strings.ToLower(p.ShortMonth()), strings.ToLower(p.MonthName())},
		keywords:  lowerTokens(keywords),
		linkAnyOf: lowerTokens(linkAnyOf),
	}

	full, short := len(yearForms) == 0, len(yearForms) == 0
	for _, f := range yearForms {
		switch f {
		case "full":
			full = true
		case "short":
			short = true
		}
	}
	if full {
		m.years = append(m.years, strconv.Itoa(p.Year))
	}
	if short {
		m.years = append(m.years, p.ShortYear())
	}
	return m
}

// Match reports whether l satisfies every token group and ends in a
// spreadsheet extension.
func (m Matcher) Match(l Link) bool {
	if !spreadsheetLink.MatchString(l.Href) {
		return false
	}
	text := strings.ToLower(l.Href + l.Text)

	if !containsAny(text, m.months) || !containsAny(text, m.years) {
		return false
	}
	for _, k := range m.keywords {
		if !strings.Contains(text, k) {
			return false
		}
	}
	if len(m.linkAnyOf) > 0 && !containsAny(text, m.linkAnyOf) {
		return false
	}
	return true
}

// First returns the first matching link resolved against base.
func (m Matcher) First(links []Link, base *url.URL) (string, bool) {
	for _, l := range links {
		if !m.Match(l) {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(l.Href))
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		return ref.String(), true
	}
	return "", false
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func lowerTokens(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
