package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parley/internal/push"
)

const (
	redisKeyPrefix  = "push:subs:"
	maxSubsPerUser  = 10
	subscriptionTTL = 30 * 24 * time.Hour
)

// subscriptionStore keeps the newest subscriptions of each username.
type subscriptionStore interface {
	Add(ctx context.Context, username string, sub push.PushSubscription) error
	List(ctx context.Context, username string) ([]push.PushSubscription, error)
	Remove(ctx context.Context, username, endpoint string) error
}

// redisSubscriptions stores one capped list per user, refreshed on every write.
type redisSubscriptions struct {
	rdb *redis.Client
}

func (s redisSubscriptions) Add(ctx context.Context, username string, sub push.PushSubscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	key := redisKeyPrefix + username
	pipe := s.rdb.TxPipeline()
	pipe.LRem(ctx, key, 0, string(raw))
	pipe.RPush(ctx, key, string(raw))
	pipe.LTrim(ctx, key, -maxSubsPerUser, -1)
	pipe.Expire(ctx, key, subscriptionTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s redisSubscriptions) List(ctx context.Context, username string) ([]push.PushSubscription, error) {
	items, err := s.rdb.LRange(ctx, redisKeyPrefix+username, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	subs := make([]push.PushSubscription, 0, len(items))
	for _, item := range items {
		var sub push.PushSubscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != "" {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (s redisSubscriptions) Remove(ctx context.Context, username, endpoint string) error {
	key := redisKeyPrefix + username
	items, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	for _, item := range items {
		var sub push.PushSubscription
		if json.Unmarshal([]byte(item), &sub) != nil || sub.Endpoint == endpoint {
			pipe.LRem(ctx, key, 0, item)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}
