package extract

import (
	"strings"

	"mfledger/internal/config"
)

// Field is a canonical holdings field a column can map to.
type Field string

const (
	FieldISIN        Field = "isin"
	FieldName        Field = "name"
	FieldQuantity    Field = "quantity"
	FieldMarketValue Field = "market_value"
	FieldNavPercent  Field = "nav_percent"
)

// Rule maps a lower-cased column label to a field. A label matches when it
// contains every AllOf token, at least one AnyOf token (if any are given) and
// no NoneOf token.
type Rule struct {
	Field  Field
	AllOf  []string
	AnyOf  []string
	NoneOf []string
}

// SharedRules is the ordered column table used by every source.
var SharedRules = []Rule{
	{Field: FieldISIN, AllOf: []string{"isin"}},
	{Field: FieldName, AllOf: []string{"name"}, AnyOf: []string{"instrument", "security"}},
	{Field: FieldQuantity, AnyOf: []string{"quantity", "qty"}},
	{Field: FieldMarketValue, AllOf: []string{"market", "value"}},
	{Field: FieldNavPercent, AnyOf: []string{"nav", "net assets", "% to"}, NoneOf: []string{"quantity"}},
}

// Match reports whether label satisfies the rule.
func (r Rule) Match(label string) bool {
	for _, tok := range r.AllOf {
		if !strings.Contains(label, tok) {
			return false
		}
	}
	for _, tok := range r.NoneOf {
		if strings.Contains(label, tok) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return len(r.AllOf) > 0
	}
	for _, tok := range r.AnyOf {
		if strings.Contains(label, tok) {
			return true
		}
	}
	return false
}

// RulesFrom converts configured override rules.
func RulesFrom(cfgs []config.RuleConfig) []Rule {
	rules := make([]Rule, 0, len(cfgs))
	for _, c := range cfgs {
		rules = append(rules, Rule{
			Field:  Field(c.Field),
			AllOf:  lowerAll(c.AllOf),
			AnyOf:  lowerAll(c.AnyOf),
			NoneOf: lowerAll(c.NoneOf),
		})
	}
	return rules
}

// ColumnMap is the field to column index assignment for one header row.
type ColumnMap map[Field]int

// Has reports whether every given field is mapped.
func (m ColumnMap) Has(fields ...Field) bool {
	for _, f := range fields {
		if _, ok := m[f]; !ok {
			return false
		}
	}
	return true
}

// MapColumns assigns header labels to fields. Overrides are tried before the
// shared table; the first matching rule wins per column and the first column
// wins per field.
func MapColumns(header []string, overrides []Rule) ColumnMap {
	rules := make([]Rule, 0, len(overrides)+len(SharedRules))
	rules = append(rules, overrides...)
	rules = append(rules, SharedRules...)

	cols := make(ColumnMap)
	for j, raw := range header {
		label := normalizeLabel(raw)
		if label == "" {
			continue
		}
		for _, r := range rules {
			if !r.Match(label) {
				continue
			}
			if _, taken := cols[r.Field]; !taken {
				cols[r.Field] = j
			}
			break
		}
	}
	return cols
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
