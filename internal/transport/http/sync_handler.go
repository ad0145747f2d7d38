package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "mfledger/internal/errors"
	"mfledger/internal/middleware"
	"mfledger/internal/services"
)

// SyncHandler starts background syncs and reports their state. Progress is
// pushed over the websocket; these routes are for polling.
type SyncHandler struct {
	service      SyncServiceInterface
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service SyncServiceInterface, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SyncHandler {
	return &SyncHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "sync_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the sync routes.
func (h *SyncHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.StartSync)
	r.Get("/", h.ListJobs)
	r.Get("/{id}", h.GetJob)
	return r
}

// StartSync handles POST /api/sync. An empty body syncs every fund for the
// months published so far this year.
func (h *SyncHandler) StartSync(w http.ResponseWriter, r *http.Request) {
	var req services.SyncRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	job, err := h.service.Start(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Sync job accepted",
		slog.String("job_id", job.ID),
		slog.Int("funds", len(job.Funds)),
		slog.Int("periods", len(job.Periods)))

	w.Header().Set("Location", "/api/sync/"+job.ID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, job)
}

// ListJobs handles GET /api/sync
func (h *SyncHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.service.Jobs()
	render.JSON(w, r, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// GetJob handles GET /api/sync/{id}
func (h *SyncHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Job(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, job)
}
