package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const formKeyPrefix = "referral:form:"

// RedisRepository caches forms as JSON values that expire after ttl.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository creates a store. A zero ttl keeps entries forever.
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	if client == nil {
		panic("intake: redis client required")
	}
	return &RedisRepository{client: client, ttl: ttl}
}

func (r *RedisRepository) key(id string) string {
	return formKeyPrefix + id
}

// Save writes the form and resets its expiry.
func (r *RedisRepository) Save(ctx context.Context, form *StartForm) (string, error) {
	id, data, err := encodeForm(form)
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, r.key(id), data, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("intake: redis set: %w", err)
	}
	return id, nil
}

// Get reads a form by id.
func (r *RedisRepository) Get(ctx context.Context, id string) (*StartForm, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("intake: redis get: %w", err)
	}
	return decodeForm(data)
}
