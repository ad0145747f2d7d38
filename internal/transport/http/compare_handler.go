package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"mfledger/internal/analysis"
	apierrors "mfledger/internal/errors"
	"mfledger/internal/exporter"
	"mfledger/internal/middleware"
)

var classParams = map[string]analysis.Class{
	"overlap":  analysis.ClassOverlap,
	"unique_a": analysis.ClassUniqueA,
	"unique_b": analysis.ClassUniqueB,
}

// CompareHandler serves fund overlap.
type CompareHandler struct {
	service      LedgerServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewCompareHandler creates a new compare handler
func NewCompareHandler(service LedgerServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CompareHandler {
	return &CompareHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "compare_handler")),
		errorHandler: errorHandler,
	}
}

// Compare handles GET /api/compare?a=&b=&class=&format=. class narrows the
// rows to overlap, unique_a or unique_b; counts always cover every row.
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	a, err := middleware.QueryRequired(r, "a")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	b, err := middleware.QueryRequired(r, "b")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var class analysis.Class
	if raw := r.URL.Query().Get("class"); raw != "" {
		c, ok := classParams[raw]
		if !ok {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("class", "class must be one of: overlap, unique_a, unique_b"))
			return
		}
		class = c
	}

	cmp, err := h.service.Compare(r.Context(), a, b)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if class != "" {
		filtered := *cmp
		filtered.Rows = cmp.Filter(class)
		cmp = &filtered
	}

	if wantsCSV(r) {
		name := fmt.Sprintf("%s_vs_%s_%s.csv", cmp.FundA, cmp.FundB, cmp.PeriodA.Label())
		writeCSV(w, r, h.logger, name, exporter.ComparisonRecords(cmp))
		return
	}
	render.JSON(w, r, cmp)
}
