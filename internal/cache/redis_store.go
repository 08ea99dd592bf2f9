package cache

import (
	"context"
	"time"

	"ai-accelerator-be/internal/apperror"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperror.New(apperror.KindCacheKeyNotFound, "cache key not found: "+key)
		}
		return nil, apperror.Wrap(apperror.KindServiceUnavailable, "cache read failed", err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	// SETNX gives the create-only guarantee without a client-side lock.
	ok, err := s.client.SetNX(ctx, key, value, s.ttl).Result()
	if err != nil {
		return apperror.Wrap(apperror.KindServiceUnavailable, "cache write failed", err)
	}
	if !ok {
		return apperror.New(apperror.KindCacheKeyExists, "cache key already exists: "+key)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, apperror.Wrap(apperror.KindServiceUnavailable, "cache lookup failed", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return apperror.Wrap(apperror.KindServiceUnavailable, "cache delete failed", err)
	}
	if n == 0 {
		return apperror.New(apperror.KindCacheKeyNotFound, "cache key not found: "+key)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
