package errors

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agmipx/internal/exporter"
	"agmipx/internal/operations"
	"agmipx/internal/query"
	"agmipx/internal/reshape"
)

func TestErrorToProblem(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantStep   string
	}{
		{
			name:       "query error",
			err:        &query.QueryError{Field: "Country", Reason: "unknown field"},
			wantStatus: http.StatusBadRequest,
			wantType:   TypeQuery,
		},
		{
			name:       "pivot config wrapped by a step",
			err:        operations.NewValidationError(operations.StepIDPivot, &reshape.PivotConfigError{Field: "Value", Reason: "bad"}),
			wantStatus: http.StatusBadRequest,
			wantType:   TypePivotConfig,
			wantStep:   operations.StepIDPivot,
		},
		{
			name: "insufficient data",
			err: operations.WrapError(&reshape.InsufficientDataError{
				Column: "M3", Method: reshape.FillSpline, Have: 2, Need: 4,
			}, operations.StepIDFill),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeInsufficientData,
			wantStep:   operations.StepIDFill,
		},
		{
			name:       "busy session",
			err:        operations.ErrOperationRunning,
			wantStatus: http.StatusConflict,
			wantType:   TypeOperationRunning,
		},
		{
			name:       "run before search",
			err:        operations.ErrNoResults,
			wantStatus: http.StatusConflict,
			wantType:   TypeInvalidState,
		},
		{
			name:       "cancelled run",
			err:        operations.NewCancellationError(operations.StepIDIndex, context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeOperationCanceled,
			wantStep:   operations.StepIDIndex,
		},
		{
			name:       "unsupported export format",
			err:        fmt.Errorf("export: %w", exporter.ErrUnsupportedFormat),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeUnsupportedFormat,
		},
		{
			name:       "api error",
			err:        ErrNoOutput,
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	h := NewErrorHandler(nil, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/pivot", nil)
			p := h.ErrorToProblem(tt.err, r)

			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, "/api/pivot", p.Instance)
			if tt.wantStep != "" {
				assert.Equal(t, tt.wantStep, p.Extensions["step"])
			}
		})
	}
}

func TestHandleErrorWritesProblemJSON(t *testing.T) {
	h := NewErrorHandler(nil, false)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/search", nil)

	h.HandleError(w, r, &query.QueryError{Field: "Country", Reason: "unknown field"})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, TypeQuery, body["type"])
	assert.Equal(t, "Country", body["field"])
	assert.Contains(t, body, "trace_id")
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewErrorHandler(nil, true)
	handler := RecoveryMiddleware(h)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dataset", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "boom")
}

func TestErrorMiddlewareRecovers(t *testing.T) {
	h := NewErrorHandler(nil, false)
	mw := NewErrorMiddleware(h, nil)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dataset", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
