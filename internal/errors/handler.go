package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"agmipx/internal/dataset"
	"agmipx/internal/exporter"
	"agmipx/internal/operations"
	"agmipx/internal/query"
	"agmipx/internal/reshape"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details. Domain
// errors are found anywhere in the wrap chain.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	var (
		apiErr       *APIError
		queryErr     *query.QueryError
		pivotErr     *reshape.PivotConfigError
		insufficient *reshape.InsufficientDataError
		opErr        *operations.OperationError
		maxBytes     *http.MaxBytesError
	)

	switch {
	case errors.As(err, &apiErr):
		return h.apiErrorToProblem(apiErr, r)

	case errors.Is(err, operations.ErrOperationRunning):
		return NewProblemDetails(http.StatusConflict, TypeOperationRunning,
			"Operation Already Running", err.Error(), path)

	case errors.Is(err, operations.ErrNoResults):
		return NewProblemDetails(http.StatusConflict, TypeInvalidState,
			"No Search Results", "Run a search before reshaping", path)

	case errors.As(err, &queryErr):
		return NewProblemDetails(http.StatusBadRequest, TypeQuery,
			"Invalid Query", queryErr.Error(), path).
			WithExtension("field", queryErr.Field)

	case errors.As(err, &insufficient):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeInsufficientData,
			"Insufficient Data", insufficient.Error(), path).
			WithExtension("column", insufficient.Column).
			WithExtension("method", string(insufficient.Method)).
			WithExtension("have", insufficient.Have).
			WithExtension("need", insufficient.Need).
			WithExtension("step", operations.StepOf(err))

	case errors.As(err, &pivotErr):
		return NewProblemDetails(http.StatusBadRequest, TypePivotConfig,
			"Invalid Pivot Configuration", pivotErr.Error(), path).
			WithExtension("field", pivotErr.Field).
			WithExtension("step", operations.StepOf(err))

	case errors.Is(err, exporter.ErrUnsupportedFormat), errors.Is(err, dataset.ErrUnsupportedFormat):
		return NewProblemDetails(http.StatusBadRequest, TypeUnsupportedFormat,
			"Unsupported Format", err.Error(), path)

	case errors.As(err, &maxBytes):
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge,
			"Payload Too Large", "The request body exceeds the maximum allowed size", path).
			WithExtension("limit", maxBytes.Limit)

	case operations.GetErrorType(err) == operations.ErrorTypeCancellation && errors.As(err, &opErr):
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		return NewProblemDetails(status, TypeOperationCanceled,
			"Operation Cancelled", err.Error(), path).
			WithExtension("step", opErr.Step)

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout,
			"Request Timeout", "The request took too long to process and was cancelled", path)

	case errors.As(err, &opErr) && opErr.Type == operations.ErrorTypeValidation:
		return NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Validation Failed", opErr.Error(), path).
			WithExtension("step", opErr.Step)

	case errors.As(err, &opErr):
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
			"Pipeline Failed", opErr.Error(), path).
			WithExtension("step", opErr.Step)
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred while processing your request", path)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "MISSING_PARAMETER", "INVALID_JSON":
		problemType = TypeValidation
	case "NOT_FOUND", "NO_OUTPUT":
		problemType = TypeNotFound
	case "CONFLICT":
		problemType = TypeConflict
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "DATASET_NOT_LOADED":
		problemType = TypeDatasetNotLoaded
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
