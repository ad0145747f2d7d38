// Package fetcher turns a (fund, period) pair into a holdings table. Every
// source or layout failure is absorbed here: the caller sees an empty table
// and subscribers see a failed event with the reason.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "mfledger/internal/errors"
	"mfledger/internal/extract"
	"mfledger/internal/infrastructure"
	"mfledger/internal/layout"
	"mfledger/internal/locator"
	"mfledger/pkg/contracts/domain"
)

// Options configures a Fetcher. Zero values are usable.
type Options struct {
	Sink    Sink
	Metrics *infrastructure.IngestMetrics
	Tracer  trace.Tracer
	Logger  *slog.Logger
	Now     func() time.Time
}

// Fetcher runs locate, resolve and extract for registered sources.
type Fetcher struct {
	registry  *Registry
	resolver  *layout.Resolver
	extractor *extract.Extractor
	sink      Sink
	metrics   *infrastructure.IngestMetrics
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Fetcher over registry.
func New(registry *Registry, opts Options) *Fetcher {
	base := opts.Logger
	if base == nil {
		base = infrastructure.GetLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(infrastructure.ServiceName)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{
		registry:  registry,
		resolver:  layout.NewResolver(base),
		extractor: extract.New(base),
		sink:      opts.Sink,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		logger:    infrastructure.WithComponent(base, "fetcher"),
		now:       opts.Now,
	}
}

// Registry returns the source registry.
func (f *Fetcher) Registry() *Registry { return f.registry }

// FetchPeriod returns the holdings disclosed by fundID for p. An empty table
// means no data for the period; the only error is an unknown fund. A panic
// while reading the document is reported as an unrecognized layout.
func (f *Fetcher) FetchPeriod(ctx context.Context, fundID string, p domain.Period) (holdings []domain.Holding, err error) {
	src, err := f.registry.Get(fundID)
	if err != nil {
		return nil, err
	}

	ctx, span := f.tracer.Start(ctx, "fetcher.FetchPeriod", trace.WithAttributes(
		attribute.String("fund", fundID),
		attribute.String("period", p.Label()),
	))
	defer span.End()

	ctx = infrastructure.EnsureTraceID(ctx)
	logger := infrastructure.WithFund(f.logger, fundID, p.Label())
	start := f.now()
	f.emit(ctx, Event{Fund: fundID, Period: p, Kind: EventStarted})

	var doc locator.Document
	defer func() {
		if rvr := recover(); rvr != nil {
			logger.ErrorContext(ctx, "panic while reading document",
				slog.Any("panic", rvr),
				slog.String("stack", string(debug.Stack())))
			perr := apperrors.NewLayoutError("document could not be read", fmt.Errorf("panic: %v", rvr))
			holdings, err = f.fail(ctx, logger, src, p, start, perr, Event{Strategy: doc.Strategy, URL: doc.URL}), nil
		}
	}()

	doc, ok := src.Locator.Locate(ctx, p)
	if !ok {
		err := apperrors.NewSourceUnavailableError("no document located", ctx.Err())
		return f.fail(ctx, logger, src, p, start, err, Event{}), nil
	}

	sheet, err := f.resolver.Resolve(doc.Body, src.Selector, src.Markers)
	if err != nil {
		logger.WarnContext(ctx, "Layout not recognized",
			slog.String("url", doc.URL),
			slog.String("selector", src.Selector.String()),
			slog.String("error", err.Error()))
		return f.fail(ctx, logger, src, p, start, err, Event{Strategy: doc.Strategy, URL: doc.URL}), nil
	}

	holdings = f.extractor.Extract(sheet, src.Options)
	if len(holdings) == 0 {
		err := apperrors.NewLayoutError("no holdings extracted", nil).WithContext("sheet", sheet.Name)
		return f.fail(ctx, logger, src, p, start, err, Event{Strategy: doc.Strategy, URL: doc.URL}), nil
	}

	elapsed := f.now().Sub(start)
	f.metrics.RecordFetch(ctx, fundID, string(EventSucceeded), len(holdings), elapsed)
	span.SetAttributes(attribute.Int("rows", len(holdings)), attribute.String("strategy", doc.Strategy))
	logger.InfoContext(ctx, "Period fetched",
		slog.Int("rows", len(holdings)),
		slog.String("strategy", doc.Strategy),
		slog.String("sheet", sheet.Name),
		slog.Duration("elapsed", elapsed))

	f.emit(ctx, Event{
		Fund:     fundID,
		Period:   p,
		Kind:     EventSucceeded,
		Rows:     len(holdings),
		Strategy: doc.Strategy,
		URL:      doc.URL,
	})
	return holdings, nil
}

func (f *Fetcher) fail(ctx context.Context, logger *slog.Logger, src *Source, p domain.Period, start time.Time, err error, e Event) []domain.Holding {
	infrastructure.RecordError(ctx, err)
	f.metrics.RecordFetch(ctx, src.ID(), string(EventFailed), 0, f.now().Sub(start))
	logger.InfoContext(ctx, "No data for period", slog.String("reason", err.Error()))

	e.Fund = src.ID()
	e.Period = p
	e.Kind = EventFailed
	e.Reason = err.Error()
	e.ErrorType = string(apperrors.TypeOf(err))
	f.emit(ctx, e)
	return nil
}

func (f *Fetcher) emit(ctx context.Context, e Event) {
	if f.sink == nil {
		return
	}
	e.TraceID = infrastructure.GetTraceID(ctx)
	e.Time = f.now()
	f.sink.HandleEvent(ctx, e)
}
