package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"queue-ticket-backend/config"
)

// NewRedis parses cfg.URL (redis:// or rediss://) and returns a client that
// has answered a PING.
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout > 0 {
		opt.ReadTimeout = timeout
		opt.WriteTimeout = timeout
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
