package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GregMSThompson/insight-portal/internal/errs"
)

// redisKV backs sessions and filter toggles with Redis.
type redisKV struct {
	client *redis.Client
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisKV(client *redis.Client) *redisKV {
	return &redisKV{client: client}
}

// Set stores value under key. A zero ttl keeps the key until deleted.
func (s *redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errs.NewNotFoundError("key not found")
	}
	return v, err
}

func (s *redisKV) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisKV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
