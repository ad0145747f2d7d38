package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

//go:embed funds.yaml
var defaultFundsYAML []byte

// Strategy kinds understood by the locator.
const (
	StrategyTemplate = "template"
	StrategyIndex    = "index"
	StrategyRendered = "rendered"
)

// Extraction modes.
const (
	ModeHeader = "header"
	ModeAnchor = "anchor"
)

// FundRegistry is the parsed registry file.
type FundRegistry struct {
	Funds []FundConfig `yaml:"funds" validate:"required,min=1,dive"`
}

// FundConfig describes one fund's disclosure source.
type FundConfig struct {
	ID      string        `yaml:"id" validate:"required,fundid"`
	Name    string        `yaml:"name" validate:"required"`
	File    string        `yaml:"file" validate:"required"`
	Locator LocatorConfig `yaml:"locator"`
	Layout  LayoutConfig  `yaml:"layout"`
	Extract ExtractConfig `yaml:"extract"`
}

// LocatorConfig lists strategies in the order they are tried.
type LocatorConfig struct {
	Strategies []StrategyConfig `yaml:"strategies" validate:"required,min=1,dive"`
}

// StrategyConfig configures one locator strategy.
type StrategyConfig struct {
	Kind      string   `yaml:"kind" validate:"required,oneof=template index rendered"`
	Templates []string `yaml:"templates" validate:"dive,required"`
	Probe     string   `yaml:"probe" validate:"omitempty,oneof=head get"`
	IndexURL  string   `yaml:"index_url" validate:"omitempty,url"`
	BaseURL   string   `yaml:"base_url" validate:"omitempty,url"`
	Keywords  []string `yaml:"keywords" validate:"dive,required"`
	LinkAnyOf []string `yaml:"link_any_of" validate:"dive,required"`
	YearForms []string `yaml:"year_forms" validate:"dive,oneof=full short"`
}

// LayoutConfig selects the holdings sheet and its header row.
type LayoutConfig struct {
	Sheets        []string `yaml:"sheets" validate:"dive,required"`
	Keyword       string   `yaml:"keyword"`
	ProbeRows     int      `yaml:"probe_rows" validate:"omitempty,min=1,max=100"`
	AllSheets     bool     `yaml:"all_sheets"`
	HeaderMarkers []string `yaml:"header_markers" validate:"dive,required"`
}

// ExtractConfig tunes row extraction for one source.
type ExtractConfig struct {
	Mode              string       `yaml:"mode" validate:"omitempty,oneof=header anchor"`
	ISINPrefix        string       `yaml:"isin_prefix" validate:"omitempty,isinprefix"`
	RejectNameMarkers []string     `yaml:"reject_name_markers"`
	FooterMarkers     []string     `yaml:"footer_markers"`
	Rules             []RuleConfig `yaml:"rules" validate:"dive"`
}

// RuleConfig is a per-source column rule evaluated before the shared table.
type RuleConfig struct {
	Field  string   `yaml:"field" validate:"required,oneof=isin name quantity market_value nav_percent"`
	AllOf  []string `yaml:"all_of"`
	AnyOf  []string `yaml:"any_of"`
	NoneOf []string `yaml:"none_of"`
}

var (
	fundIDPattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	isinPrefixPattern = regexp.MustCompile(`^IN[EF]?$`)
)

func newRegistryValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("fundid", func(fl validator.FieldLevel) bool {
		return fundIDPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("isinprefix", func(fl validator.FieldLevel) bool {
		return isinPrefixPattern.MatchString(fl.Field().String())
	})
	v.RegisterStructValidation(validateStrategy, StrategyConfig{})
	v.RegisterStructValidation(validateLayout, LayoutConfig{})
	v.RegisterStructValidation(validateRule, RuleConfig{})
	return v
}

func validateStrategy(sl validator.StructLevel) {
	s := sl.Current().Interface().(StrategyConfig)
	switch s.Kind {
	case StrategyTemplate:
		if len(s.Templates) == 0 {
			sl.ReportError(s.Templates, "Templates", "templates", "required_for_template", "")
		}
	case StrategyIndex, StrategyRendered:
		if s.IndexURL == "" {
			sl.ReportError(s.IndexURL, "IndexURL", "index_url", "required_for_index", "")
		}
	}
}

func validateLayout(sl validator.StructLevel) {
	l := sl.Current().Interface().(LayoutConfig)
	if !l.AllSheets && len(l.Sheets) == 0 && l.Keyword == "" {
		sl.ReportError(l.Sheets, "Sheets", "sheets", "sheet_selector_required", "")
	}
}

func validateRule(sl validator.StructLevel) {
	r := sl.Current().Interface().(RuleConfig)
	if len(r.AllOf) == 0 && len(r.AnyOf) == 0 {
		sl.ReportError(r.AllOf, "AllOf", "all_of", "rule_predicate_required", "")
	}
}

// ParseFunds decodes and validates a registry document.
func ParseFunds(data []byte) (*FundRegistry, error) {
	var reg FundRegistry
	if err := yaml.UnmarshalStrict(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse fund registry: %w", err)
	}

	for i := range reg.Funds {
		reg.Funds[i].applyDefaults()
	}

	if err := newRegistryValidator().Struct(&reg); err != nil {
		return nil, fmt.Errorf("invalid fund registry: %w", err)
	}

	seen := make(map[string]bool, len(reg.Funds))
	for _, f := range reg.Funds {
		if seen[f.ID] {
			return nil, fmt.Errorf("invalid fund registry: duplicate fund id %q", f.ID)
		}
		seen[f.ID] = true
	}

	return &reg, nil
}

// DefaultFunds returns the built-in registry.
func DefaultFunds() *FundRegistry {
	reg, err := ParseFunds(defaultFundsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded fund registry is invalid: %v", err))
	}
	return reg
}

// LoadFunds reads a registry file, falling back to the built-in registry when
// path is empty.
func LoadFunds(path string) (*FundRegistry, error) {
	if path == "" {
		return DefaultFunds(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fund registry %s: %w", path, err)
	}
	return ParseFunds(data)
}

// Find returns the fund with the given id or display name (case-insensitive).
func (r *FundRegistry) Find(key string) (FundConfig, bool) {
	key = strings.TrimSpace(key)
	for _, f := range r.Funds {
		if f.ID == key || strings.EqualFold(f.Name, key) {
			return f, true
		}
	}
	return FundConfig{}, false
}

// IDs returns fund ids in registry order.
func (r *FundRegistry) IDs() []string {
	ids := make([]string, len(r.Funds))
	for i, f := range r.Funds {
		ids[i] = f.ID
	}
	return ids
}

func (f *FundConfig) applyDefaults() {
	if f.Extract.Mode == "" {
		f.Extract.Mode = ModeHeader
	}
	if f.Extract.ISINPrefix == "" {
		f.Extract.ISINPrefix = "INE"
	}
	if f.Layout.ProbeRows == 0 {
		f.Layout.ProbeRows = 5
	}
	if f.Extract.Mode == ModeAnchor {
		f.Layout.AllSheets = true
	}
	if !containsFold(f.Layout.HeaderMarkers, "isin") {
		f.Layout.HeaderMarkers = append([]string{"isin"}, f.Layout.HeaderMarkers...)
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
