package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "mfledger/internal/errors"
	"mfledger/internal/exporter"
	"mfledger/internal/middleware"
	"mfledger/pkg/contracts/domain"
)

type fundKey struct{}

// FundHandler serves per-fund ledger views.
type FundHandler struct {
	service      LedgerServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewFundHandler creates a new fund handler
func NewFundHandler(service LedgerServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *FundHandler {
	return &FundHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "fund_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the fund routes.
func (h *FundHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListFunds)

	r.Route("/{fund}", func(r chi.Router) {
		r.Use(h.FundCtx)
		r.Get("/ledger", h.GetLedger)
		r.Get("/summary", h.GetSummary)
		r.Get("/flows", h.GetFlows)
		r.Get("/history", h.GetHistory)
		r.Get("/trend/{isin}", h.GetTrend)
	})
	return r
}

// FundCtx validates the fund path parameter and stores it in the context.
func (h *FundHandler) FundCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fund := strings.TrimSpace(chi.URLParam(r, "fund"))
		if fund == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("fund", "fund is required"))
			return
		}
		ctx := context.WithValue(r.Context(), fundKey{}, fund)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func fundFrom(ctx context.Context) string {
	fund, _ := ctx.Value(fundKey{}).(string)
	return fund
}

// ListFunds handles GET /api/funds
func (h *FundHandler) ListFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.service.Funds(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"funds": funds, "count": len(funds)})
}

// GetLedger handles GET /api/funds/{fund}/ledger. ?format=csv downloads the
// ledger in its CSV export form.
func (h *FundHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fund := fundFrom(ctx)

	if wantsCSV(r) {
		l, err := h.service.Ledger(ctx, fund)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		writeCSV(w, r, h.logger, l.Fund+"_ledger.csv", exporter.LedgerRecords(l))
		return
	}

	view, err := h.service.LedgerView(ctx, fund)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// GetSummary handles GET /api/funds/{fund}/summary?top=
func (h *FundHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	top, err := middleware.QueryInt(r, "top", 1, 100, 10)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	sum, err := h.service.Summary(r.Context(), fundFrom(r.Context()), top)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, sum)
}

// GetFlows handles GET /api/funds/{fund}/flows?period=&format=
func (h *FundHandler) GetFlows(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Flows(r.Context(), fundFrom(r.Context()), r.URL.Query().Get("period"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if wantsCSV(r) {
		writeCSV(w, r, h.logger, fmt.Sprintf("%s_flows_%s.csv", report.Fund, report.Current.Label()), exporter.FlowRecords(report))
		return
	}
	render.JSON(w, r, report)
}

// GetHistory handles GET /api/funds/{fund}/history?limit=
func (h *FundHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := middleware.QueryInt(r, "limit", 1, 1000, 50)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	entries, err := h.service.History(r.Context(), fundFrom(r.Context()), limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"events": entries, "count": len(entries)})
}

// GetTrend handles GET /api/funds/{fund}/trend/{isin}
func (h *FundHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	isin := chi.URLParam(r, "isin")
	points, err := h.service.Trend(r.Context(), fundFrom(r.Context()), isin)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"isin": domain.NormalizeISIN(isin), "points": points})
}

func wantsCSV(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "csv")
}

// writeCSV streams opts as an attachment. Headers are already sent when
// encoding fails, so the failure is only logged.
func writeCSV(w http.ResponseWriter, r *http.Request, logger *slog.Logger, filename string, opts exporter.WriteOptions) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := exporter.Encode(w, opts); err != nil {
		logger.ErrorContext(r.Context(), "Failed to stream CSV",
			slog.String("file", filename),
			slog.String("error", err.Error()))
	}
}
