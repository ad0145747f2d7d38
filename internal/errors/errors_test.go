package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name:        "error without cause",
			appError:    NewLedgerInconsistencyError("ledger has no quantity columns"),
			wantMessage: "[LEDGER_INCONSISTENCY] ledger has no quantity columns",
		},
		{
			name:        "error with cause",
			appError:    NewSourceUnavailableError("download failed", fmt.Errorf("status 404")),
			wantMessage: "[SOURCE_UNAVAILABLE] download failed: status 404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_UnwrapAndType(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("saving ledger: %w", NewStorageError("write failed", cause))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrTypeStorage, TypeOf(err))
	assert.True(t, IsType(err, ErrTypeStorage))
	assert.False(t, IsType(err, ErrTypeConfig))
	assert.True(t, errors.Is(err, &AppError{Type: ErrTypeStorage}))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewLayoutError("no header row", nil).
		WithContext("fund", "hdfc-nifty50").
		WithContext("period", "March_2025")

	assert.Equal(t, "hdfc-nifty50", err.Context["fund"])
	assert.Len(t, err.Context, 2)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"inconsistency", NewLedgerInconsistencyError("x"), http.StatusUnprocessableEntity, "LEDGER_INCONSISTENCY"},
		{"not found", NewNotFoundError("fund"), http.StatusNotFound, "NOT_FOUND"},
		{"validation", NewAppValidationError("bad period"), http.StatusBadRequest, "VALIDATION"},
		{"storage", NewStorageError("x", nil), http.StatusInternalServerError, "STORAGE"},
		{"api error passthrough", ErrValidation("a", "required"), http.StatusBadRequest, "VALIDATION"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantCode, got.ErrorCode)
		})
	}
}

func TestErrorHandler_HandleError(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := NewErrorHandler(logger, func(context.Context) string { return "trace-1" })

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/compare", nil)
	handler.HandleError(w, r, NewLedgerInconsistencyError("fund a has no periods"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "LEDGER_INCONSISTENCY", body.ErrorCode)
	assert.Equal(t, "trace-1", body.TraceID)
	assert.Contains(t, body.Message, "fund a has no periods")
}
