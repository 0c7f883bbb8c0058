// Package cache keeps effective permission keys per user between requests.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/model"
)

const (
	keyPrefix  = "rbac:perms:"
	genAllKey  = "rbac:permgen:all"
	genUserKey = "rbac:permgen:user:"
)

var _ model.PermissionCache = (*Redis)(nil)

// Redis stores permission keys under rbac:perms:<user id> as JSON stamped
// with the generation counters kept under rbac:permgen:.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

type redisEntry struct {
	Stamp model.CacheStamp `json:"stamp"`
	Keys  []string         `json:"keys"`
}

// NewRedis parses url, applies password when set and checks connectivity.
func NewRedis(ctx context.Context, url, password string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func userKey(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

func userGenKey(userID uuid.UUID) string {
	return genUserKey + userID.String()
}

// Get reads the entry and both counters in one MGET.
func (c *Redis) Get(ctx context.Context, userID uuid.UUID) ([]string, model.CacheStamp, bool, error) {
	vals, err := c.client.MGet(ctx, userKey(userID), genAllKey, userGenKey(userID)).Result()
	if err != nil {
		return nil, model.CacheStamp{}, false, fmt.Errorf("redis mget failed: %w", err)
	}

	var stamp model.CacheStamp
	if stamp.All, err = parseGen(vals[1]); err != nil {
		return nil, model.CacheStamp{}, false, err
	}
	if stamp.User, err = parseGen(vals[2]); err != nil {
		return nil, model.CacheStamp{}, false, err
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, stamp, false, nil
	}
	var e redisEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		c.client.Del(ctx, userKey(userID))
		return nil, model.CacheStamp{}, false, fmt.Errorf("failed to unmarshal permission keys: %w", err)
	}
	if e.Stamp != stamp {
		return nil, stamp, false, nil
	}
	if e.Keys == nil {
		e.Keys = []string{}
	}
	return e.Keys, stamp, true, nil
}

func (c *Redis) Set(ctx context.Context, userID uuid.UUID, stamp model.CacheStamp, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.Marshal(redisEntry{Stamp: stamp, Keys: keys})
	if err != nil {
		return fmt.Errorf("failed to marshal permission keys: %w", err)
	}
	return c.client.Set(ctx, userKey(userID), data, c.ttl).Err()
}

// Invalidate bumps the user's counter before dropping the entry. Counters
// carry no TTL so a stamp can never become current again.
func (c *Redis) Invalidate(ctx context.Context, userID uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, userGenKey(userID))
		pipe.Del(ctx, userKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate user: %w", err)
	}
	return nil
}

// InvalidateAll bumps the global counter, then removes every cached entry
// under the prefix.
func (c *Redis) InvalidateAll(ctx context.Context) error {
	if err := c.client.Incr(ctx, genAllKey).Err(); err != nil {
		return fmt.Errorf("failed to bump generation: %w", err)
	}
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

func parseGen(v any) (uint64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid generation %q: %w", s, err)
	}
	return n, nil
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}
