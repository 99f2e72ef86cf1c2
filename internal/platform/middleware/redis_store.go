package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisCacheStore shares cached responses between server replicas.
type RedisCacheStore struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisCacheStore connects to url (redis://[:password@]host:port/db).
func NewRedisCacheStore(url, prefix string, logger zerolog.Logger) (*RedisCacheStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisCacheStoreFromClient(redis.NewClient(opts), prefix, logger), nil
}

func NewRedisCacheStoreFromClient(client *redis.Client, prefix string, logger zerolog.Logger) *RedisCacheStore {
	return &RedisCacheStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisCacheStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisCacheStore) Close() error {
	return s.client.Close()
}

func (s *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return nil, false
	}
	return val, true
}

func (s *RedisCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (s *RedisCacheStore) Delete(ctx context.Context, key string) {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}
