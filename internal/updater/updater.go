// Package updater drives the per-fund period loop: load the ledger, fetch and
// merge every missing period in order, then save.
package updater

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"mfledger/internal/infrastructure"
	"mfledger/internal/ledger"
	"mfledger/pkg/contracts/domain"
)

// Fetcher returns a period's holdings; an empty table means no data.
type Fetcher interface {
	FetchPeriod(ctx context.Context, fundID string, p domain.Period) ([]domain.Holding, error)
}

// Store loads and persists ledgers.
type Store interface {
	Load(fund string) (*ledger.Ledger, error)
	Save(l *ledger.Ledger) error
}

// Status is the outcome of one period in a run.
type Status string

const (
	StatusAdded   Status = "added"
	StatusSkipped Status = "skipped"
	StatusEmpty   Status = "empty"
)

// Progress is reported after each period.
type Progress struct {
	Fund   string        `json:"fund"`
	Period domain.Period `json:"period"`
	Index  int           `json:"index"`
	Total  int           `json:"total"`
	Status Status        `json:"status"`
	Rows   int           `json:"rows,omitempty"`
}

// ProgressFunc receives progress; it may be called from several goroutines.
type ProgressFunc func(ctx context.Context, p Progress)

// Result is the outcome of one fund's run.
type Result struct {
	Fund      string          `json:"fund"`
	Added     []domain.Period `json:"added"`
	Skipped   []domain.Period `json:"skipped"`
	Failed    []domain.Period `json:"failed"`
	Cancelled bool            `json:"cancelled"`
	Err       error           `json:"-"`
}

// Options configures a Runner.
type Options struct {
	// Concurrency bounds how many funds run at once; <= 0 means 1.
	Concurrency int
	Progress    ProgressFunc
	Metrics     *infrastructure.IngestMetrics
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// Runner executes update runs.
type Runner struct {
	fetcher     Fetcher
	store       Store
	concurrency int
	progress    ProgressFunc
	metrics     *infrastructure.IngestMetrics
	tracer      trace.Tracer
	logger      *slog.Logger

	// One run per fund at a time; ledgers are not safe for concurrent update.
	fundLocks sync.Map
}

// NewRunner creates a Runner.
func NewRunner(fetcher Fetcher, store Store, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(infrastructure.ServiceName)
	}
	return &Runner{
		fetcher:     fetcher,
		store:       store,
		concurrency: opts.Concurrency,
		progress:    opts.Progress,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		logger:      infrastructure.WithComponent(opts.Logger, "updater"),
	}
}

// Run updates every fund over periods. Funds run concurrently up to the
// configured limit; a fund's error does not stop the others. The returned
// error joins every fund error and the context error on cancellation.
func (r *Runner) Run(ctx context.Context, fundIDs []string, periods []domain.Period) ([]Result, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := r.tracer.Start(ctx, "updater.Run", trace.WithAttributes(
		attribute.StringSlice("funds", fundIDs),
		attribute.Int("periods", len(periods)),
	))
	defer span.End()

	ordered := slices.Clone(periods)
	domain.SortPeriods(ordered)
	ordered = slices.Compact(ordered)

	start := time.Now()
	r.logger.InfoContext(ctx, "Update run started",
		slog.Any("funds", fundIDs),
		slog.Int("periods", len(ordered)),
		slog.Int("concurrency", r.concurrency))

	results := make([]Result, len(fundIDs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, fund := range fundIDs {
		g.Go(func() error {
			results[i] = r.RunFund(ctx, fund, ordered)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	err := errors.Join(errs...)
	infrastructure.RecordError(ctx, err)

	r.logger.InfoContext(ctx, "Update run finished",
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", err == nil))
	return results, err
}

// RunFund updates one fund. periods must be in chronological order.
func (r *Runner) RunFund(ctx context.Context, fund string, periods []domain.Period) Result {
	lock, _ := r.fundLocks.LoadOrStore(fund, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	res := Result{Fund: fund, Added: []domain.Period{}, Skipped: []domain.Period{}, Failed: []domain.Period{}}
	logger := infrastructure.WithFund(r.logger, fund, "")

	l, err := r.store.Load(fund)
	if err != nil {
		res.Err = err
		logger.ErrorContext(ctx, "Failed to load ledger", slog.String("error", err.Error()))
		return res
	}
	original := l

loop:
	for i, p := range periods {
		if ctx.Err() != nil {
			res.Cancelled = true
			logger.WarnContext(ctx, "Run cancelled", slog.String("next_period", p.Label()))
			break
		}

		progress := Progress{Fund: fund, Period: p, Index: i + 1, Total: len(periods)}
		switch {
		case l.HasPeriod(p):
			progress.Status = StatusSkipped
			res.Skipped = append(res.Skipped, p)

		default:
			table, err := r.fetcher.FetchPeriod(ctx, fund, p)
			if err != nil {
				res.Err = err
				logger.ErrorContext(ctx, "Fetch aborted", slog.String("error", err.Error()))
				return res
			}
			if len(table) == 0 && ctx.Err() != nil {
				res.Cancelled = true
				break loop
			}
			if len(table) == 0 {
				progress.Status = StatusEmpty
				res.Failed = append(res.Failed, p)
				break
			}
			l = ledger.Merge(l, table, p)
			r.metrics.RecordMerge(ctx, fund)
			progress.Status = StatusAdded
			progress.Rows = len(table)
			res.Added = append(res.Added, p)
		}

		if r.progress != nil {
			r.progress(ctx, progress)
		}
	}

	if l != original {
		if err := r.store.Save(l); err != nil {
			res.Err = err
			logger.ErrorContext(ctx, "Failed to save ledger", slog.String("error", err.Error()))
			return res
		}
	}

	logger.InfoContext(ctx, "Fund updated",
		slog.Int("added", len(res.Added)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("failed", len(res.Failed)),
		slog.Bool("cancelled", res.Cancelled))
	return res
}

// YearPeriods returns January through the given month of year.
func YearPeriods(year int, through time.Month) []domain.Period {
	through = min(max(through, time.January), time.December)
	out := make([]domain.Period, 0, int(through))
	for m := time.January; m <= through; m++ {
		out = append(out, domain.Period{Year: year, Month: m})
	}
	return out
}

// DefaultPeriods returns the periods of year that can have been published by
// now: through the current month for the current year, all twelve for past
// years, none for future years.
func DefaultPeriods(year int, now time.Time) []domain.Period {
	switch {
	case year < now.Year():
		return YearPeriods(year, time.December)
	case year == now.Year():
		return YearPeriods(year, now.Month())
	default:
		return nil
	}
}
