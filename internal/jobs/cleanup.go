package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const cleanupTimeout = 30 * time.Second

// SessionSweeper removes sessions past their maximum age.
type SessionSweeper interface {
	CleanupExpired(ctx context.Context, maxAge time.Duration) (int64, error)
}

// CleanupJob sweeps expired live sessions on a fixed interval, once at
// start and then on every tick.
type CleanupJob struct {
	sweeper  SessionSweeper
	maxAge   time.Duration
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewCleanupJob(sweeper SessionSweeper, maxAge, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sweeper:  sweeper,
		maxAge:   maxAge,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().
		Dur("interval", j.interval).
		Dur("maxAge", j.maxAge).
		Msg("cleanup job started")
}

// Stop waits for an in-flight sweep to finish. It is safe to call twice.
func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		<-j.stopped
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	count, err := j.sweeper.CleanupExpired(ctx, j.maxAge)
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup expired live sessions")
		return
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up expired live sessions")
	}
}
