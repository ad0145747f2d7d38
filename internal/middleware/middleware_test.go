package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "mfledger/internal/errors"
	"mfledger/internal/infrastructure"
	"mfledger/internal/testutil"
)

func TestRequestID(t *testing.T) {
	var seen, trace string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		trace = infrastructure.GetTraceID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, trace)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestRecoverer(t *testing.T) {
	logger, capture := testutil.NewCapturingLogger()
	h := RequestID(Recoverer(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body apierrors.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body.ErrorCode)
	assert.Equal(t, "req-1", body.TraceID)
	assert.Contains(t, capture.Messages(slog.LevelError), "panic recovered")
}

func TestStructuredLoggerAndOTel(t *testing.T) {
	logger, capture := testutil.NewCapturingLogger()
	r := chi.NewRouter()
	r.Use(RequestID, NewOTelMiddleware(nil, nil).Handler, StructuredLogger(logger))
	r.Get("/funds/{fund}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/funds/ppfas", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, capture.Messages(slog.LevelInfo), "request completed")
}

type syncBody struct {
	Funds []string `json:"funds" validate:"required,min=1,unique,dive,required"`
	Year  int      `json:"year" validate:"min=1990,max=2200"`
}

func TestValidator_DecodeJSON(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid", `{"funds":["ppfas"],"year":2025}`, ""},
		{"missing funds", `{"year":2025}`, "funds"},
		{"year out of range", `{"funds":["a"],"year":1800}`, "year"},
		{"duplicate funds", `{"funds":["a","a"],"year":2025}`, "funds"},
		{"bad json", `{"funds":`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst syncBody
			err := v.DecodeJSON(req, &dst)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, []string{"ppfas"}, dst.Funds)
				return
			}
			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, tt.wantField, apiErr.Details.(apierrors.ValidationError).Field)
		})
	}
}

func TestQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&big=500&a=%20ppfas%20", nil)

	n, err := QueryInt(req, "limit", 1, 100, 20)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = QueryInt(req, "missing", 1, 100, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, err = QueryInt(req, "bad", 1, 100, 20)
	assert.Error(t, err)
	_, err = QueryInt(req, "big", 1, 100, 20)
	assert.Error(t, err)

	a, err := QueryRequired(req, "a")
	require.NoError(t, err)
	assert.Equal(t, "ppfas", a)
	_, err = QueryRequired(req, "b")
	assert.Error(t, err)
}
