package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "agmipx/internal/errors"
	"agmipx/internal/exporter"
	"agmipx/internal/middleware"
	"agmipx/internal/services"
	api "agmipx/pkg/contracts/api/v1"
)

// ExplorerHandler handles the dataset, search, pivot and export routes
type ExplorerHandler struct {
	service   *services.ExplorerService
	validator *middleware.Validator
	errors    *apierrors.ErrorHandler
	logger    *slog.Logger
}

// NewExplorerHandler creates a new explorer handler
func NewExplorerHandler(service *services.ExplorerService, validator *middleware.Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *ExplorerHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = middleware.NewValidator()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}

	return &ExplorerHandler{
		service:   service,
		validator: validator,
		errors:    errorHandler,
		logger:    logger.With(slog.String("handler", "explorer")),
	}
}

// Routes returns a router with the explorer routes
func (h *ExplorerHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/dataset", h.GetDataset)
	r.Get("/uniques", h.GetUniques)
	r.Get("/presets", h.GetPresets)
	r.Post("/search", h.Search)
	r.Get("/results", h.GetResults)

	r.Route("/pivot", func(r chi.Router) {
		r.Post("/", h.Pivot)
		r.Get("/", h.GetOutput)
		r.Delete("/", h.CancelPivot)
	})

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.ResetSession)
	})

	r.Get("/export/{target}/{format}", h.Export)

	return r
}

// GetDataset handles GET /api/dataset
func (h *ExplorerHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.DatasetInfo()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// GetUniques handles GET /api/uniques?field=Scenario&model=M1&model=M2
func (h *ExplorerHandler) GetUniques(w http.ResponseWriter, r *http.Request) {
	req := api.UniquesRequest{
		Field:  r.URL.Query().Get("field"),
		Models: r.URL.Query()["model"],
	}
	if err := h.validator.Struct(&req); err != nil {
		h.fail(w, r, err)
		return
	}

	resp, err := h.service.Uniques(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// GetPresets handles GET /api/presets
func (h *ExplorerHandler) GetPresets(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Presets())
}

// Search handles POST /api/search
func (h *ExplorerHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, h.service.RejectSearch(r.Context(), err))
		return
	}

	resp, err := h.service.Search(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "search served",
		slog.String("criteria", resp.Criteria),
		slog.Int("total", resp.Total))
	render.JSON(w, r, resp)
}

// GetResults handles GET /api/results?limit=50. limit=all returns every record.
func (h *ExplorerHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.fail(w, r, apierrors.ErrValidation("limit", err.Error()))
		return
	}

	resp, err := h.service.Results(limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

func parseLimit(s string) (int, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "all":
		return -1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative number or \"all\"")
	}
	return n, nil
}

// Pivot handles POST /api/pivot. The run is bound to the request context, so
// a client that disconnects cancels it at the next step boundary.
func (h *ExplorerHandler) Pivot(w http.ResponseWriter, r *http.Request) {
	var req api.PivotRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	resp, err := h.service.Pivot(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// GetOutput handles GET /api/pivot
func (h *ExplorerHandler) GetOutput(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Output()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// CancelPivot handles DELETE /api/pivot
func (h *ExplorerHandler) CancelPivot(w http.ResponseWriter, r *http.Request) {
	cancelled := h.service.Cancel()
	if cancelled {
		h.logger.InfoContext(r.Context(), "pipeline run cancelled by client")
	}
	render.JSON(w, r, map[string]bool{"cancelled": cancelled})
}

// GetSession handles GET /api/session
func (h *ExplorerHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Status())
}

// ResetSession handles DELETE /api/session
func (h *ExplorerHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(); err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, h.service.Status())
}

// Export handles GET /api/export/{target}/{format}. The file is rendered in
// memory first so a failure can still be reported as a problem response.
func (h *ExplorerHandler) Export(w http.ResponseWriter, r *http.Request) {
	req := api.ExportRequest{
		Target: chi.URLParam(r, "target"),
		Format: chi.URLParam(r, "format"),
	}
	if err := h.validator.Struct(&req); err != nil {
		h.fail(w, r, err)
		return
	}
	format, err := exporter.ParseFormat(req.Format)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if _, err := h.service.Export(r.Context(), &buf, req.Target, format); err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.service.FileName(format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export download interrupted",
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
	}
}

// fail maps the service sentinels onto API errors before rendering
func (h *ExplorerHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrDatasetNotLoaded):
		err = apierrors.ErrDatasetNotLoaded
	case errors.Is(err, services.ErrNoOutput):
		err = apierrors.ErrNoOutput
	case errors.Is(err, services.ErrUnknownTarget):
		err = apierrors.NotFoundError("export target")
	}
	h.errors.HandleError(w, r, err)
}
