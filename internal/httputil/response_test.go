package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/smartpreach/smartpreach-server/internal/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{"missing id", apperrors.MissingRequired("sessionId"), http.StatusBadRequest, apperrors.ErrCodeMissingRequired},
		{"invalid input", apperrors.InvalidInput("font_size", "out of range"), http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"not found", apperrors.NotFound("Live session"), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"conflict", apperrors.Conflict("stale"), http.StatusConflict, apperrors.ErrCodeConflict},
		{"rate limit", apperrors.RateLimitExceeded(), http.StatusTooManyRequests, apperrors.ErrCodeRateLimitExceeded},
		{"store down", apperrors.StoreUnavailable(errors.New("dial tcp")), http.StatusInternalServerError, apperrors.ErrCodeStoreUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.wantCode, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestWriteError_DoesNotLeakCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperrors.StoreUnavailable(errors.New("password authentication failed for user")))

	assert.NotContains(t, rec.Body.String(), "password")
}
