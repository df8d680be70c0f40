package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher mirrors events onto Redis PUBLISH so out-of-process consumers
// (gateways, bots, audit) can follow the chat channels.
type RedisPublisher struct {
	cli    *redis.Client
	prefix string
}

// NewRedisPublisher publishes on "<prefix><channel>"; prefix may be empty.
func NewRedisPublisher(cli *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{cli: cli, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis publish marshal: %w", err)
	}
	if err := p.cli.Publish(ctx, p.prefix+channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}
