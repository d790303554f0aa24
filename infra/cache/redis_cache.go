package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// RedisCache implements cache.Cache on Redis. Expiry is native; the
// permanent flag is tracked in a companion set.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewRedisCacheWithOptions creates a new RedisCache from redis.Options.
func NewRedisCacheWithOptions(
	opt *redis.Options,
	prefix string,
	logger *slog.Logger,
) *RedisCache {
	return NewRedisCache(redis.NewClient(opt), prefix, logger)
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, prefix string, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, logger: logger.With("cache", "redis")}
}

func (r *RedisCache) key(key string) string {
	return r.prefix + key
}

func (r *RedisCache) permanentSet() string {
	return r.prefix + "__permanent"
}

func (r *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		r.logger.Debug("Redis cache miss", "key", key)
		return false, nil
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "key", key, "error", err)
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		r.logger.Error("Redis cache unmarshal error", "key", key, "error", err)
		return false, err
	}
	r.hits.Add(1)
	r.logger.Debug("Redis cache hit", "key", key)
	return true, nil
}

func (r *RedisCache) Set(
	ctx context.Context,
	key string,
	value any,
	ttl time.Duration,
	permanent bool,
) error {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Error("Redis cache marshal error", "key", key, "error", err)
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(key), data, ttl)
	if permanent {
		pipe.SAdd(ctx, r.permanentSet(), key)
	} else {
		pipe.SRem(ctx, r.permanentSet(), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Redis cache set error", "key", key, "error", err)
		return err
	}
	r.logger.Debug("Redis cache set", "key", key, "ttl", ttl, "permanent", permanent)
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(key))
	pipe.SRem(ctx, r.permanentSet(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Redis cache delete error", "key", key, "error", err)
		return err
	}
	r.logger.Debug("Redis cache delete", "key", key)
	return nil
}

func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	return r.deleteMatching(ctx, r.key(pattern), func(string) bool { return true })
}

// ClearExpired is a no-op: Redis expires keys itself.
func (r *RedisCache) ClearExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (r *RedisCache) ClearTemporary(ctx context.Context) (int, error) {
	permanent, err := r.client.SMembers(ctx, r.permanentSet()).Result()
	if err != nil {
		return 0, err
	}
	keep := make(map[string]struct{}, len(permanent))
	for _, k := range permanent {
		keep[k] = struct{}{}
	}
	return r.deleteMatching(ctx, r.key("*"), func(key string) bool {
		_, ok := keep[key]
		return !ok
	})
}

func (r *RedisCache) ClearAll(ctx context.Context) error {
	_, err := r.deleteMatching(ctx, r.key("*"), func(string) bool { return true })
	if err != nil {
		return err
	}
	return r.client.Del(ctx, r.permanentSet()).Err()
}

func (r *RedisCache) Stats(ctx context.Context) (cache.Stats, error) {
	st := cache.Stats{Backend: "redis", Hits: r.hits.Load(), Misses: r.misses.Load()}
	err := r.scan(ctx, r.key("*"), func(keys []string) error {
		for _, k := range keys {
			if k != r.permanentSet() {
				st.Entries++
			}
		}
		return nil
	})
	if err != nil {
		return st, err
	}
	n, err := r.client.SCard(ctx, r.permanentSet()).Result()
	if err != nil {
		return st, err
	}
	st.Permanent = int(n)
	return st, nil
}

// Ping checks that the server is reachable.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) deleteMatching(ctx context.Context, match string, keep func(string) bool) (int, error) {
	removed := 0
	err := r.scan(ctx, match, func(keys []string) error {
		batch := make([]string, 0, len(keys))
		plain := make([]any, 0, len(keys))
		for _, k := range keys {
			if k == r.permanentSet() {
				continue
			}
			short := strings.TrimPrefix(k, r.prefix)
			if !keep(short) {
				continue
			}
			batch = append(batch, k)
			plain = append(plain, short)
		}
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		return r.client.SRem(ctx, r.permanentSet(), plain...).Err()
	})
	if err != nil {
		r.logger.Error("Redis cache pattern delete error", "match", match, "error", err)
	}
	return removed, err
}

func (r *RedisCache) scan(ctx context.Context, match string, fn func([]string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return err
		}
		if err := fn(keys); err != nil {
			return err
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

var _ cache.Cache = (*RedisCache)(nil)
