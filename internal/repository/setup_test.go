package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smartpreach/smartpreach-server/internal/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}
