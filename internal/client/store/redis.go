package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis compartilha o estado entre máquinas do mesmo operador.
// Chaves ficam em "betref:{namespace}:{key}", sem TTL.
type Redis struct {
	R  *redis.Client
	ns string
}

func NewRedis(r *redis.Client, namespace string) *Redis { return &Redis{R: r, ns: namespace} }

func (s *Redis) key(k string) string { return "betref:" + s.ns + ":" + k }

func (s *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := s.R.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (s *Redis) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, s.key(key), b, 0).Err()
}

func (s *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.R.Del(ctx, full...).Err()
}

func (s *Redis) Ping(ctx context.Context) error { return s.R.Ping(ctx).Err() }

func (s *Redis) Close() error { return s.R.Close() }
