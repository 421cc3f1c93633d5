package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client wraps go-redis for the session event fan-out and the creation rate
// limiter. It is optional: without REDIS_URL both stay in process.
type Client struct {
	*redis.Client
}

// NewClient connects and pings once so a bad REDIS_URL fails at startup
// instead of on the first published event.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

const sessionChannelPrefix = "live_session:"

// SessionChannel is the pub/sub channel carrying one session's events.
func SessionChannel(sessionID string) string {
	return sessionChannelPrefix + sessionID
}
