package locator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfledger/internal/config"
	"mfledger/pkg/contracts/domain"
)

func testFetchConfig() config.FetchConfig {
	return config.FetchConfig{
		UserAgent:       "mfledger-test",
		HeadTimeout:     time.Second,
		IndexTimeout:    time.Second,
		DownloadTimeout: time.Second,
		MaxDocumentSize: 1 << 20,
		RPS:             1000,
		Burst:           100,
	}
}

type recorder struct {
	mu       sync.Mutex
	attempts []string
}

func (r *recorder) RecordLocatorAttempt(_ context.Context, fund, strategy string, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, fmt.Sprintf("%s/%s/%v", fund, strategy, found))
}

func TestPeriodView(t *testing.T) {
	v := NewPeriodView(domain.MustPeriod(2024, time.December), "https://files.example.com/")
	assert.Equal(t, "https://files.example.com", v.BaseURL)
	assert.Equal(t, "December", v.MonthName)
	assert.Equal(t, "Dec", v.ShortMonth)
	assert.Equal(t, "24", v.ShortYear)
	assert.Equal(t, 31, v.LastDay)
	assert.Equal(t, "2024-12", v.Folder)
	assert.Equal(t, "2025-01", v.NextFolder)
}

func TestURLTemplates_Render(t *testing.T) {
	ts, err := ParseURLTemplates([]string{
		"{{.BaseURL}}/{{.NextFolder}}/Monthly HDFC Nifty 50 Index Fund - {{.LastDay}} {{.MonthName}} {{.Year}}.xlsx",
		"{{.BaseURL}}/NIMF-MONTHLY-PORTFOLIO-{{.ShortMonth}}-{{.ShortYear}}.xls",
	})
	require.NoError(t, err)

	urls, err := ts.Render(NewPeriodView(domain.MustPeriod(2025, time.February), "https://h"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://h/2025-03/Monthly%20HDFC%20Nifty%2050%20Index%20Fund%20-%2028%20February%202025.xlsx",
		"https://h/NIMF-MONTHLY-PORTFOLIO-Feb-25.xls",
	}, urls)

	_, err = ParseURLTemplates([]string{"{{.Year"})
	assert.Error(t, err)

	bad, err := ParseURLTemplates([]string{"{{.Quarter}}"})
	require.NoError(t, err)
	_, err = bad.Render(PeriodView{})
	assert.Error(t, err)
}

func TestMatcher(t *testing.T) {
	march := domain.MustPeriod(2025, time.March)

	tests := []struct {
		name      string
		link      Link
		keywords  []string
		anyOf     []string
		yearForms []string
		want      bool
	}{
		{"ppfas full match", Link{Href: "/docs/PPFCF_PPFAS_Monthly_Portfolio_Report_March_31_2025.xls"}, []string{"ppfcf"}, nil, []string{"full"}, true},
		{"month in text", Link{Href: "/d/ppfcf-2025.xlsx?v=2", Text: "Mar"}, []string{"ppfcf"}, nil, []string{"full"}, true},
		{"wrong year", Link{Href: "/ppfcf_March_2024.xls"}, []string{"ppfcf"}, nil, []string{"full"}, false},
		{"short year rejected when full only", Link{Href: "/ppfcf_Mar_25.xls"}, []string{"ppfcf"}, nil, []string{"full"}, false},
		{"short year accepted by default", Link{Href: "/ppfcf_Mar_25.xls"}, []string{"ppfcf"}, nil, nil, true},
		{"missing keyword", Link{Href: "/ppltvf_March_2025.xls"}, []string{"ppfcf"}, nil, nil, false},
		{"not a spreadsheet", Link{Href: "/ppfcf_March_2025.pdf"}, []string{"ppfcf"}, nil, nil, false},
		{"any-of group", Link{Href: "/NIMF-MONTHLY-PORTFOLIO-March-2025.xlsx"}, nil, []string{"monthly", "portfolio"}, nil, true},
		{"any-of group missing", Link{Href: "/NIMF-FACTSHEET-March-2025.xlsx"}, nil, []string{"monthly", "portfolio"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(march, tt.keywords, tt.anyOf, tt.yearForms)
			assert.Equal(t, tt.want, m.Match(tt.link))
		})
	}
}

func TestMatcher_FirstResolvesRelative(t *testing.T) {
	base, _ := url.Parse("https://amc.example.com/downloads/portfolio-disclosure/")
	m := NewMatcher(domain.MustPeriod(2025, time.March), []string{"ppfcf"}, nil, nil)

	got, ok := m.First([]Link{
		{Href: "/x/ppfcf_feb_2025.xls"},
		{Href: "/x/ppfcf_mar_2025.xls"},
		{Href: "https://cdn.example.com/ppfcf_mar_2025.xlsx"},
	}, base)
	require.True(t, ok)
	assert.Equal(t, "https://amc.example.com/x/ppfcf_mar_2025.xls", got)
}

func TestParseLinks(t *testing.T) {
	html := `<html><body>
		<a href="/a.xls"> March 2025 </a>
		<a>no href</a>
		<a href="  ">blank</a>
		<div><a href="https://x/b.xlsx">Feb</a></div>
	</body></html>`

	links, err := ParseLinks([]byte(html))
	require.NoError(t, err)
	assert.Equal(t, []Link{{Href: "/a.xls", Text: "March 2025"}, {Href: "https://x/b.xlsx", Text: "Feb"}}, links)
}

func newSourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/NIMF-MONTHLY-PORTFOLIO-March-2025.xls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mfledger-test", r.Header.Get("User-Agent"))
		if r.Method == http.MethodHead {
			return
		}
		w.Write([]byte("direct-march"))
	})
	mux.HandleFunc("/index", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/files/monthly-portfolio-april-2025.xlsx">April 2025</a>
			<a href="/files/monthly-portfolio-may-2025.xlsx">May 2025</a>`)
	})
	mux.HandleFunc("/files/monthly-portfolio-april-2025.xlsx", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("indexed-april"))
	})
	mux.HandleFunc("/big.xlsx", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2<<20)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func nipponLikeFund(srv *httptest.Server) config.FundConfig {
	return config.FundConfig{
		ID: "nippon-small-cap",
		Locator: config.LocatorConfig{Strategies: []config.StrategyConfig{
			{
				Kind:      config.StrategyTemplate,
				Probe:     "head",
				BaseURL:   srv.URL,
				Templates: []string{"{{.BaseURL}}/docs/NIMF-MONTHLY-PORTFOLIO-{{.ShortMonth}}-{{.ShortYear}}.xls", "{{.BaseURL}}/docs/NIMF-MONTHLY-PORTFOLIO-{{.MonthName}}-{{.Year}}.xls"},
			},
			{Kind: config.StrategyIndex, IndexURL: srv.URL + "/index", LinkAnyOf: []string{"monthly", "portfolio"}},
			{Kind: config.StrategyRendered, IndexURL: srv.URL + "/index"},
		}},
	}
}

func TestChain_Locate(t *testing.T) {
	srv := newSourceServer(t)
	rec := &recorder{}
	chain, err := NewChain(nipponLikeFund(srv), Deps{
		Client:  NewClient(testFetchConfig(), srv.Client(), nil),
		Metrics: rec,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"template", "index"}, chain.Strategies(), "rendered is skipped without a browser")

	ctx := context.Background()

	doc, ok := chain.Locate(ctx, domain.MustPeriod(2025, time.March))
	require.True(t, ok)
	assert.Equal(t, "template", doc.Strategy)
	assert.Equal(t, "direct-march", string(doc.Body))

	doc, ok = chain.Locate(ctx, domain.MustPeriod(2025, time.April))
	require.True(t, ok)
	assert.Equal(t, "index", doc.Strategy)
	assert.Equal(t, srv.URL+"/files/monthly-portfolio-april-2025.xlsx", doc.URL)
	assert.Equal(t, "indexed-april", string(doc.Body))

	_, ok = chain.Locate(ctx, domain.MustPeriod(2025, time.May))
	assert.False(t, ok, "linked file returns 404")

	_, ok = chain.Locate(ctx, domain.MustPeriod(2025, time.June))
	assert.False(t, ok)

	assert.Equal(t, []string{
		"nippon-small-cap/template/true",
		"nippon-small-cap/template/false", "nippon-small-cap/index/true",
		"nippon-small-cap/template/false", "nippon-small-cap/index/false",
		"nippon-small-cap/template/false", "nippon-small-cap/index/false",
	}, rec.attempts)
}

type stubCollector struct{ links []Link }

func (s stubCollector) Links(context.Context, string) ([]Link, error) { return s.links, nil }

func TestChain_RenderedUsesBrowser(t *testing.T) {
	srv := newSourceServer(t)
	fund := config.FundConfig{ID: "ppfas", Locator: config.LocatorConfig{Strategies: []config.StrategyConfig{
		{Kind: config.StrategyRendered, IndexURL: srv.URL + "/js-index", Keywords: []string{"monthly"}},
	}}}

	chain, err := NewChain(fund, Deps{
		Client:  NewClient(testFetchConfig(), srv.Client(), nil),
		Browser: stubCollector{links: []Link{{Href: "/files/monthly-portfolio-april-2025.xlsx"}}},
	})
	require.NoError(t, err)

	doc, ok := chain.Locate(context.Background(), domain.MustPeriod(2025, time.April))
	require.True(t, ok)
	assert.Equal(t, "rendered", doc.Strategy)
}

func TestChain_CancelledContext(t *testing.T) {
	srv := newSourceServer(t)
	chain, err := NewChain(nipponLikeFund(srv), Deps{Client: NewClient(testFetchConfig(), srv.Client(), nil)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := chain.Locate(ctx, domain.MustPeriod(2025, time.March))
	assert.False(t, ok)
}

func TestClient_Limits(t *testing.T) {
	srv := newSourceServer(t)
	c := NewClient(testFetchConfig(), srv.Client(), nil)
	ctx := context.Background()

	_, err := c.Download(ctx, srv.URL+"/big.xlsx")
	assert.Error(t, err)

	_, err = c.Download(ctx, srv.URL+"/missing.xlsx")
	assert.Error(t, err)

	assert.False(t, c.Exists(ctx, srv.URL+"/missing.xls"))
	assert.True(t, c.Exists(ctx, srv.URL+"/docs/NIMF-MONTHLY-PORTFOLIO-March-2025.xls"))

	_, err = c.Download(ctx, "http://127.0.0.1:1/unreachable.xls")
	assert.Error(t, err)
}

func TestNewChain_InvalidTemplate(t *testing.T) {
	_, err := NewChain(config.FundConfig{ID: "x", Locator: config.LocatorConfig{Strategies: []config.StrategyConfig{
		{Kind: config.StrategyTemplate, Templates: []string{"{{"}},
	}}}, Deps{})
	assert.Error(t, err)
}
