package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFunds(t *testing.T) {
	reg := DefaultFunds()
	require.Len(t, reg.Funds, 3)
	assert.Equal(t, []string{"ppfas-flexi-cap", "nippon-small-cap", "hdfc-nifty50-index"}, reg.IDs())

	ppfas, ok := reg.Find("ppfas-flexi-cap")
	require.True(t, ok)
	assert.Equal(t, ModeAnchor, ppfas.Extract.Mode)
	assert.True(t, ppfas.Layout.AllSheets)
	assert.Equal(t, "INE", ppfas.Extract.ISINPrefix)

	nippon, ok := reg.Find("Nippon India Small Cap")
	require.True(t, ok)
	assert.Equal(t, []string{"SC"}, nippon.Layout.Sheets)
	assert.Equal(t, StrategyTemplate, nippon.Locator.Strategies[0].Kind)
	assert.Equal(t, StrategyIndex, nippon.Locator.Strategies[1].Kind)

	hdfc, ok := reg.Find("hdfc-nifty50-index")
	require.True(t, ok)
	assert.Equal(t, "nifty 50 index fund", hdfc.Layout.Keyword)
	assert.Equal(t, 5, hdfc.Layout.ProbeRows)

	_, ok = reg.Find("unknown")
	assert.False(t, ok)
}

func TestParseFunds(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(*testing.T, *FundRegistry)
	}{
		{
			name: "minimal fund gets defaults",
			yaml: `
funds:
  - id: demo
    name: Demo
    file: Demo.xlsx
    locator:
      strategies:
        - kind: template
          templates: ["http://example.com/{{.Year}}.xlsx"]
    layout:
      sheets: [Equity]
`,
			check: func(t *testing.T, reg *FundRegistry) {
				f := reg.Funds[0]
				assert.Equal(t, ModeHeader, f.Extract.Mode)
				assert.Equal(t, "INE", f.Extract.ISINPrefix)
				assert.Equal(t, []string{"isin"}, f.Layout.HeaderMarkers)
			},
		},
		{
			name: "invalid fund id",
			yaml: `
funds:
  - id: Bad_ID
    name: Demo
    file: Demo.xlsx
    locator: {strategies: [{kind: template, templates: ["x"]}]}
    layout: {sheets: [A]}
`,
			wantErr: true,
		},
		{
			name: "template strategy without templates",
			yaml: `
funds:
  - id: demo
    name: Demo
    file: Demo.xlsx
    locator: {strategies: [{kind: template}]}
    layout: {sheets: [A]}
`,
			wantErr: true,
		},
		{
			name: "index strategy without url",
			yaml: `
funds:
  - id: demo
    name: Demo
    file: Demo.xlsx
    locator: {strategies: [{kind: index, keywords: [x]}]}
    layout: {sheets: [A]}
`,
			wantErr: true,
		},
		{
			name: "no sheet selector",
			yaml: `
funds:
  - id: demo
    name: Demo
    file: Demo.xlsx
    locator: {strategies: [{kind: template, templates: ["x"]}]}
`,
			wantErr: true,
		},
		{
			name: "bad isin prefix",
			yaml: `
funds:
  - id: demo
    name: Demo
    file: Demo.xlsx
    locator: {strategies: [{kind: template, templates: ["x"]}]}
    layout: {sheets: [A]}
    extract: {isin_prefix: US}
`,
			wantErr: true,
		},
		{
			name: "rule without predicate",
			yaml: `
funds:
  - id: demo
    name: Demo
    file: Demo.xlsx
    locator: {strategies: [{kind: template, templates: ["x"]}]}
    layout: {sheets: [A]}
    extract: {rules: [{field: quantity}]}
`,
			wantErr: true,
		},
		{
			name: "duplicate ids",
			yaml: `
funds:
  - id: demo
    name: Demo
    file: Demo.xlsx
    locator: {strategies: [{kind: template, templates: ["x"]}]}
    layout: {sheets: [A]}
  - id: demo
    name: Demo 2
    file: Demo2.xlsx
    locator: {strategies: [{kind: template, templates: ["x"]}]}
    layout: {sheets: [A]}
`,
			wantErr: true,
		},
		{
			name:    "unknown key",
			yaml:    "funds:\n  - id: demo\n    colour: red\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := ParseFunds([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, reg)
			}
		})
	}
}

func TestLoadFunds(t *testing.T) {
	reg, err := LoadFunds("")
	require.NoError(t, err)
	assert.Len(t, reg.Funds, 3)

	path := writeFile(t, "funds.yaml", `
funds:
  - id: only
    name: Only
    file: Only.xlsx
    locator: {strategies: [{kind: template, templates: ["x"]}]}
    layout: {all_sheets: true}
    extract: {mode: anchor}
`)
	reg, err = LoadFunds(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, reg.IDs())

	_, err = LoadFunds(path + ".missing")
	assert.Error(t, err)
}
