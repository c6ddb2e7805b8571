package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// volatileKeys is the closed set of keys the volatile partition may hold.
// Clear deletes exactly this set so an unrelated tenant sharing the same
// Redis is never touched.
var volatileKeys = []string{KeyAuth, KeyOTPRequest, KeyUserProfile, KeyFlowState}

// RedisPartition backs the volatile tier with Redis. Entries carry no TTL of
// their own; session-scoped lifetime comes from the deployment running a
// dedicated (often embedded, in-memory) instance per browser session.
type RedisPartition struct {
	client *redis.Client
	prefix string
}

// NewRedisPartition wraps an existing client. All keys are namespaced under
// prefix to keep the partition self-contained.
func NewRedisPartition(client *redis.Client, prefix string) *RedisPartition {
	if prefix == "" {
		prefix = "passless:volatile:"
	}
	return &RedisPartition{client: client, prefix: prefix}
}

func (p *RedisPartition) key(k string) string {
	return p.prefix + k
}

// Get returns the stored value, or (nil, false, nil) when the key is absent.
func (p *RedisPartition) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := p.client.Get(ctx, p.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return data, true, nil
}

func (p *RedisPartition) Set(ctx context.Context, key string, value []byte) error {
	if err := p.client.Set(ctx, p.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (p *RedisPartition) Remove(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, p.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Clear removes every key in the fixed volatile set.
func (p *RedisPartition) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(volatileKeys))
	for _, k := range volatileKeys {
		keys = append(keys, p.key(k))
	}
	if err := p.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrUnavailable, err)
	}
	return nil
}
