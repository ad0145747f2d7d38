package extract

import (
	"log/slog"
	"strings"

	"mfledger/internal/config"
	"mfledger/internal/layout"
	"mfledger/pkg/contracts/domain"
)

// Mode selects how rows are read.
type Mode string

const (
	ModeHeader Mode = config.ModeHeader
	ModeAnchor Mode = config.ModeAnchor
)

var (
	defaultRejectMarkers = []string{"total"}
	defaultFooterMarkers = []string{"grand total", "arbitrage"}
)

// Options tunes extraction for one source.
type Options struct {
	Mode              Mode
	ISINPrefix        string
	RejectNameMarkers []string
	FooterMarkers     []string
	Overrides         []Rule
}

// OptionsFrom builds options from a fund's extract configuration.
func OptionsFrom(cfg config.ExtractConfig) Options {
	return Options{
		Mode:              Mode(cfg.Mode),
		ISINPrefix:        cfg.ISINPrefix,
		RejectNameMarkers: lowerAll(cfg.RejectNameMarkers),
		FooterMarkers:     lowerAll(cfg.FooterMarkers),
		Overrides:         RulesFrom(cfg.Rules),
	}
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeHeader
	}
	if o.ISINPrefix == "" {
		o.ISINPrefix = "INE"
	}
	if o.RejectNameMarkers == nil {
		o.RejectNameMarkers = defaultRejectMarkers
	}
	if o.FooterMarkers == nil {
		o.FooterMarkers = defaultFooterMarkers
	}
	return o
}

// Stats summarizes one extraction pass.
type Stats struct {
	Scanned  int
	Accepted int
	Rejected int
	Footer   bool
}

// Extractor dispatches to the header or anchor reader and logs the outcome.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "extract")}
}

// Extract reads holdings from a resolved sheet. The result has unique ISINs
// and strictly positive quantities.
func (e *Extractor) Extract(sheet *layout.Sheet, opts Options) []domain.Holding {
	opts = opts.withDefaults()

	var (
		out   []domain.Holding
		stats Stats
	)
	if opts.Mode == ModeAnchor {
		out, stats = Anchor(sheet, opts)
	} else {
		out, stats = Header(sheet, opts)
	}

	e.logger.Debug("Extracted holdings",
		slog.String("mode", string(opts.Mode)),
		slog.Int("scanned", stats.Scanned),
		slog.Int("accepted", stats.Accepted),
		slog.Int("rejected", stats.Rejected),
		slog.Int("unique", len(out)),
		slog.Bool("footer_stop", stats.Footer))
	return out
}

// scanner carries the per-pass state shared by both modes.
type scanner struct {
	opts    Options
	records []domain.Holding
	stats   Stats
}

// footer reports whether row ends the scan. A footer marker before any
// accepted record only skips the row.
func (s *scanner) footer(rowText string) (stop, skip bool) {
	for _, m := range s.opts.FooterMarkers {
		if m != "" && strings.Contains(rowText, m) {
			if len(s.records) > 0 {
				s.stats.Footer = true
				return true, false
			}
			return false, true
		}
	}
	return false, false
}

func (s *scanner) rejectName(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range s.opts.RejectNameMarkers {
		if m != "" && strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func (s *scanner) acceptISIN(isin string) bool {
	return domain.ValidISIN(isin) && strings.HasPrefix(isin, s.opts.ISINPrefix)
}

func (s *scanner) accept(h domain.Holding) {
	s.records = append(s.records, h)
	s.stats.Accepted++
}

func (s *scanner) reject() {
	s.stats.Rejected++
}

func (s *scanner) result() ([]domain.Holding, Stats) {
	return domain.Aggregate(s.records), s.stats
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
