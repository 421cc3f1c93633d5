package handler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smartpreach/smartpreach-server/internal/config"
	"github.com/smartpreach/smartpreach-server/internal/database"
	"github.com/smartpreach/smartpreach-server/internal/model"
	"github.com/smartpreach/smartpreach-server/internal/repository"
	"github.com/smartpreach/smartpreach-server/internal/service"
	"github.com/smartpreach/smartpreach-server/internal/sse"
)

type testEnv struct {
	db      *database.DB
	broker  *sse.Broker
	service *service.LiveSessionService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Connect(config.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	broker := sse.NewBroker(nil)
	t.Cleanup(broker.Close)

	return &testEnv{
		db:      db,
		broker:  broker,
		service: service.NewLiveSessionService(repository.NewLiveSessionRepository(db.DB), broker),
	}
}

// racingRepo runs afterFind once, right after the next successful FindByID,
// so a test can commit a change between a stream's initial read and its
// first event.
type racingRepo struct {
	repository.LiveSessionRepository
	afterFind atomic.Pointer[func()]
}

func (r *racingRepo) FindByID(ctx context.Context, id string) (*model.LiveSession, error) {
	session, err := r.LiveSessionRepository.FindByID(ctx, id)
	if err == nil && session != nil {
		if fn := r.afterFind.Swap(nil); fn != nil {
			(*fn)()
		}
	}
	return session, err
}

// setupRacingEnv is setupTestEnv with a racingRepo behind the service.
func setupRacingEnv(t *testing.T) (*testEnv, *racingRepo) {
	t.Helper()

	env := setupTestEnv(t)
	repo := &racingRepo{LiveSessionRepository: repository.NewLiveSessionRepository(env.db.DB)}
	env.service = service.NewLiveSessionService(repo, env.broker)
	return env, repo
}
