package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestQRHandler(t *testing.T) {
	env := setupTestEnv(t)
	session, err := env.service.Create(context.Background(), nil)
	require.NoError(t, err)

	handler := NewQRHandler(env.service, "https://smartpreach.example/")

	t.Run("renders a png", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/qr?sessionId="+session.ID+"&size=200", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), pngSignature))
	})

	t.Run("rejects an out of range size", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/qr?sessionId="+session.ID+"&size=5000", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns 404 for an unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/qr?sessionId=abcDEF123456", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestQRHandler_remoteURL(t *testing.T) {
	t.Run("uses the configured base url", func(t *testing.T) {
		h := NewQRHandler(nil, "https://smartpreach.example/")
		req := httptest.NewRequest(http.MethodGet, "/qr", nil)

		assert.Equal(t, "https://smartpreach.example/remote/abcDEF123456", h.remoteURL(req, "abcDEF123456"))
	})

	t.Run("falls back to the request host", func(t *testing.T) {
		h := NewQRHandler(nil, "")
		req := httptest.NewRequest(http.MethodGet, "http://10.0.0.5:8080/qr", nil)

		assert.Equal(t, "http://10.0.0.5:8080/remote/abcDEF123456", h.remoteURL(req, "abcDEF123456"))
	})
}
