package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/pickupslots/config"
	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client          *redis.Client
	availabilityTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, availabilityTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), availabilityTTL)
}

func NewRedisCacheWithClient(client *redis.Client, availabilityTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:          client,
		availabilityTTL: availabilityTTL,
	}
}

// GetAvailability returns the cached entry and the cache version it was read
// at. A miss returns nil slots; the version is still valid for SetAvailability.
func (c *RedisCache) GetAvailability(ctx context.Context, from, to time.Time, category string) ([]domain.SlotAvailability, int64, error) {
	version, err := c.version(ctx)
	if err != nil {
		return nil, 0, err
	}

	data, err := c.client.Get(ctx, availabilityKey(version, from, to, category)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, version, nil
		}
		return nil, 0, err
	}

	var slots []domain.SlotAvailability
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, 0, err
	}
	return slots, version, nil
}

// SetAvailability stores slots under the version they were loaded at. An
// entry written after an invalidation lands under the old version and is
// never read.
func (c *RedisCache) SetAvailability(ctx context.Context, version int64, from, to time.Time, category string, slots []domain.SlotAvailability) error {
	payload, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, availabilityKey(version, from, to, category), payload, c.availabilityTTL).Err()
}

// InvalidateAvailability bumps the cache generation; stale entries age out by TTL.
func (c *RedisCache) InvalidateAvailability(ctx context.Context) error {
	return c.client.Incr(ctx, versionKey()).Err()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock takes a named lock that expires after ttl. The returned token
// identifies this holder to ReleaseLock.
func (c *RedisCache) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseLock deletes the lock only while it still carries token.
func (c *RedisCache) ReleaseLock(ctx context.Context, name, token string) error {
	return releaseScript.Run(ctx, c.client, []string{lockKey(name)}, token).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) version(ctx context.Context) (int64, error) {
	version, err := c.client.Get(ctx, versionKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return version, nil
}

func availabilityKey(version int64, from, to time.Time, category string) string {
	return fmt.Sprintf("cache:availability:v%d:%s:%s:%s", version, from.Format(domain.DateLayout), to.Format(domain.DateLayout), category)
}

func versionKey() string {
	return "cache:availability:version"
}

func lockKey(name string) string {
	return "lock:" + name
}
