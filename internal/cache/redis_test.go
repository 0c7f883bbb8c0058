package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/rbac-server/internal/model"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedis(context.Background(), "redis://"+mr.Addr(), "", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewRedis_InvalidURL(t *testing.T) {
	t.Parallel()
	_, err := NewRedis(context.Background(), "invalid://url", "", time.Minute)
	assert.Error(t, err)
}

func TestRedis_SetGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := setupRedis(t)
	userID := uuid.New()

	_, stamp, ok, err := c.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, userID, stamp, []string{"users:read", "users:update"}))
	keys, _, ok, err := c.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"users:read", "users:update"}, keys)
	assert.Equal(t, time.Minute, mr.TTL(userKey(userID)))

	mr.FastForward(2 * time.Minute)
	_, _, ok, err = c.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_EmptySetIsAHit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := setupRedis(t)
	userID := uuid.New()

	require.NoError(t, c.Set(ctx, userID, model.CacheStamp{}, nil))
	keys, _, ok, err := c.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, keys)
}

func TestRedis_CorruptEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := setupRedis(t)
	userID := uuid.New()

	require.NoError(t, mr.Set(userKey(userID), "not json"))
	_, _, ok, err := c.Get(ctx, userID)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(userKey(userID)))
}

func TestRedis_CorruptGeneration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := setupRedis(t)

	require.NoError(t, mr.Set(genAllKey, "nan"))
	_, _, ok, err := c.Get(ctx, uuid.New())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedis_Invalidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := setupRedis(t)
	a, b := uuid.New(), uuid.New()

	require.NoError(t, c.Set(ctx, a, model.CacheStamp{}, []string{"x"}))
	require.NoError(t, c.Set(ctx, b, model.CacheStamp{}, []string{"y"}))
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, c.Invalidate(ctx, a))
	_, _, ok, err := c.Get(ctx, a)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.InvalidateAll(ctx))
	_, _, ok, err = c.Get(ctx, b)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("unrelated"))
}

func TestRedis_StaleFillIsNotServed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name       string
		invalidate func(c *Redis, id uuid.UUID) error
	}{
		{
			name: "user invalidated",
			invalidate: func(c *Redis, id uuid.UUID) error {
				return c.Invalidate(ctx, id)
			},
		},
		{
			name: "all invalidated",
			invalidate: func(c *Redis, _ uuid.UUID) error {
				return c.InvalidateAll(ctx)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, _ := setupRedis(t)
			id := uuid.New()

			_, stamp, ok, err := c.Get(ctx, id)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, tt.invalidate(c, id))
			require.NoError(t, c.Set(ctx, id, stamp, []string{"revoked:key"}))

			_, fresh, ok, err := c.Get(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.NotEqual(t, stamp, fresh)

			require.NoError(t, c.Set(ctx, id, fresh, []string{"current:key"}))
			keys, _, ok, err := c.Get(ctx, id)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []string{"current:key"}, keys)
		})
	}
}
