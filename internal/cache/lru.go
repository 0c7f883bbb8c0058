package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dtroode/rbac-server/internal/model"
)

var _ model.PermissionCache = (*LRU)(nil)

type lruEntry struct {
	stamp model.CacheStamp
	keys  []string
}

// LRU is a size-bounded in-process cache whose entries expire after ttl.
type LRU struct {
	cache *lru.LRU[uuid.UUID, lruEntry]

	mu    sync.Mutex
	all   uint64
	users map[uuid.UUID]uint64
}

func NewLRU(size int, ttl time.Duration) *LRU {
	if size < 1 {
		size = 1
	}
	return &LRU{
		cache: lru.NewLRU[uuid.UUID, lruEntry](size, nil, ttl),
		users: make(map[uuid.UUID]uint64),
	}
}

func (c *LRU) stamp(userID uuid.UUID) model.CacheStamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CacheStamp{All: c.all, User: c.users[userID]}
}

func (c *LRU) Get(_ context.Context, userID uuid.UUID) ([]string, model.CacheStamp, bool, error) {
	stamp := c.stamp(userID)
	e, ok := c.cache.Get(userID)
	if !ok || e.stamp != stamp {
		return nil, stamp, false, nil
	}
	return append([]string(nil), e.keys...), stamp, true, nil
}

func (c *LRU) Set(_ context.Context, userID uuid.UUID, stamp model.CacheStamp, keys []string) error {
	c.cache.Add(userID, lruEntry{stamp: stamp, keys: append([]string{}, keys...)})
	return nil
}

func (c *LRU) Invalidate(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	c.users[userID]++
	c.mu.Unlock()
	c.cache.Remove(userID)
	return nil
}

// InvalidateAll starts a new generation, so per-user counters can restart.
func (c *LRU) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	c.all++
	c.users = make(map[uuid.UUID]uint64)
	c.mu.Unlock()
	c.cache.Purge()
	return nil
}

// Len reports the number of live entries.
func (c *LRU) Len() int {
	return c.cache.Len()
}
