package throttle

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is the multi-instance Throttle. INCR is atomic server-side, so the
// check-and-increment holds across replicas; the key TTL set on the first
// failure implements the sliding window.
type Redis struct {
	client redis.UniversalClient
	cfg    Config
}

func NewRedis(client redis.UniversalClient, cfg Config) *Redis {
	return &Redis{client: client, cfg: cfg.withDefaults()}
}

func (r *Redis) key(k string) string { return "authtl:" + k }

func (r *Redis) RecordFailure(ctx context.Context, key string) (bool, error) {
	// INCR and EXPIRE go through MULTI/EXEC so the key can never be left
	// without a TTL; NX keeps the window anchored at the first failure.
	var count *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, r.key(key))
		pipe.ExpireNX(ctx, r.key(key), r.cfg.Window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return count.Val() >= int64(r.cfg.MaxAttempts), nil
}

func (r *Redis) IsLocked(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Get(ctx, r.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count >= int64(r.cfg.MaxAttempts), nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
