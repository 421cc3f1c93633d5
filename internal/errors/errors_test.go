package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Live session not found")
		assert.Equal(t, "NOT_FOUND: Live session not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := StoreUnavailable(cause)
		assert.Contains(t, err.Error(), "STORE_UNAVAILABLE")
		assert.Contains(t, err.Error(), "Session store unavailable")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "font_size", "reason": "out of range"}
		err := InvalidRequest("Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"NotFound", func() *AppError { return NotFound("Live session") }, ErrCodeNotFound},
		{"Conflict", func() *AppError { return Conflict("test") }, ErrCodeConflict},
		{"InvalidRequest", func() *AppError { return InvalidRequest("test") }, ErrCodeInvalidRequest},
		{"InvalidInput", func() *AppError { return InvalidInput("font_size", "too big") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("sessionId") }, ErrCodeMissingRequired},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"StoreUnavailable", func() *AppError { return StoreUnavailable(errors.New("x")) }, ErrCodeStoreUnavailable},
		{"External", func() *AppError { return External("bible api", errors.New("x")) }, ErrCodeExternal},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, StoreUnavailable(errors.New("down")).Retryable())
	assert.True(t, RateLimitExceeded().Retryable())
	assert.False(t, NotFound("Live session").Retryable())
	assert.False(t, MissingRequired("sessionId").Retryable())
	assert.False(t, InvalidInput("font_size", "out of range").Retryable())
}

func TestIsAppError(t *testing.T) {
	t.Run("returns true for AppError", func(t *testing.T) {
		assert.True(t, IsAppError(New(ErrCodeNotFound, "test")))
	})

	t.Run("returns false for standard error", func(t *testing.T) {
		assert.False(t, IsAppError(errors.New("standard error")))
	})

	t.Run("returns true for fmt-wrapped AppError", func(t *testing.T) {
		wrapped := fmt.Errorf("get session: %w", NotFound("Live session"))
		assert.True(t, IsAppError(wrapped))
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError", func(t *testing.T) {
		original := NotFound("Live session")
		extracted, ok := AsAppError(original)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		extracted, ok := AsAppError(errors.New("standard error"))
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, GetCode(NotFound("Live session")))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("standard error")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("Live session")))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", NotFound("Live session"))))
	assert.False(t, IsNotFound(StoreUnavailable(errors.New("down"))))
	assert.False(t, IsNotFound(nil))
}

func TestMissingRequiredMessage(t *testing.T) {
	err := MissingRequired("sessionId")
	assert.Equal(t, "sessionId is required", err.Message)
}
