package startup

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parley/internal/logger"
)

// ConnectRedisWithRetry parses redisURL and pings the server.
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration, logPrefix string) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Errorf("%sredis url: %v", logPrefix, err)
		os.Exit(1)
	}
	client := redis.NewClient(opts)
	mustRetry("redis ping", maxWait, logPrefix, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	})
	return client
}
