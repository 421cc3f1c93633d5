package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpreach/smartpreach-server/internal/config"
	"github.com/smartpreach/smartpreach-server/internal/database"
	"github.com/smartpreach/smartpreach-server/internal/handler"
	"github.com/smartpreach/smartpreach-server/internal/repository"
	"github.com/smartpreach/smartpreach-server/internal/service"
	"github.com/smartpreach/smartpreach-server/internal/sse"
)

// newTestServer runs the real session API over an in-memory store.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := database.Connect(config.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	broker := sse.NewBroker(nil)
	t.Cleanup(broker.Close)

	svc := service.NewLiveSessionService(repository.NewLiveSessionRepository(db.DB), broker)

	r := chi.NewRouter()
	r.Mount("/api/live-session", handler.NewLiveSessionHandler(svc, handler.LiveSessionHandlerConfig{}).Routes())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestClient_Lifecycle(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL + "/")
	ctx := context.Background()

	presentationID := int64(3)
	created, err := client.Create(ctx, &presentationID)
	require.NoError(t, err)
	assert.Equal(t, 100, created.FontSize)
	require.NotNil(t, created.PresentationID)
	assert.Equal(t, int64(3), *created.PresentationID)

	got, err := client.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	updated, err := client.Update(ctx, created.ID, Updates{"current_reference": "John 3:16", "font_size": 130}, nil)
	require.NoError(t, err)
	assert.Equal(t, "John 3:16", updated.Reference())
	assert.Equal(t, 130, updated.FontSize)

	t.Run("stale precondition surfaces as a 409", func(t *testing.T) {
		_, err := client.Update(ctx, created.ID, Updates{"is_blackout": true}, &created.UpdatedAt)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusConflict, apiErr.Status)
		assert.Equal(t, "CONFLICT", apiErr.Code)
		assert.False(t, apiErr.Retryable())
	})

	t.Run("null clears the reference", func(t *testing.T) {
		cleared, err := client.Update(ctx, created.ID, Updates{"current_reference": nil}, nil)
		require.NoError(t, err)
		assert.Nil(t, cleared.CurrentReference)
	})

	require.NoError(t, client.Delete(ctx, created.ID))

	_, err = client.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, client.Delete(ctx, created.ID))

	_, err = client.Update(ctx, created.ID, Updates{"font_size": 120}, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClient_URLs(t *testing.T) {
	client := NewClient("https://smartpreach.example/")

	assert.Equal(t, "https://smartpreach.example/remote/abcDEF123456", client.RemoteURL("abcDEF123456"))
	assert.Equal(t, "https://smartpreach.example/api/live-session/qr?sessionId=abcDEF123456", client.QRURL("abcDEF123456"))
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":"Session store unavailable","code":"STORE_UNAVAILABLE"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Get(context.Background(), "abcDEF123456")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "STORE_UNAVAILABLE", apiErr.Code)
	assert.True(t, apiErr.Retryable())
}
