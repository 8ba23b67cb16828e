package otp

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const codePrefix = "otp:v1:"

// ErrNoCode indicates no outstanding code exists for the phone, either
// because none was requested or because it expired.
var ErrNoCode = errors.New("no outstanding code")

// CodeStore holds hashed verification codes until they expire or are
// consumed. Only the bcrypt hash is ever stored.
type CodeStore interface {
	Save(ctx context.Context, phone string, hash []byte, ttl time.Duration) error
	Get(ctx context.Context, phone string) ([]byte, error)
	Delete(ctx context.Context, phone string) error
}

// RedisStore keeps hashed codes in Redis with a TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed code store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, phone string, hash []byte, ttl time.Duration) error {
	return s.client.Set(ctx, codePrefix+phone, hash, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, phone string) ([]byte, error) {
	hash, err := s.client.Get(ctx, codePrefix+phone).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoCode
		}
		return nil, err
	}
	return hash, nil
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	return s.client.Del(ctx, codePrefix+phone).Err()
}
