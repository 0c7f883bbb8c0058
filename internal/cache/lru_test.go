package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewLRU(2, time.Minute)
	a, b, d := uuid.New(), uuid.New(), uuid.New()

	_, stampA, _, _ := c.Get(ctx, a)
	_, stampB, _, _ := c.Get(ctx, b)
	require.NoError(t, c.Set(ctx, a, stampA, []string{"a"}))
	require.NoError(t, c.Set(ctx, b, stampB, []string{"b"}))

	keys, _, ok, err := c.Get(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, keys)

	// b is now least recently used
	_, stampD, _, _ := c.Get(ctx, d)
	require.NoError(t, c.Set(ctx, d, stampD, []string{"d"}))
	_, _, ok, _ = c.Get(ctx, b)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Invalidate(ctx, a))
	_, _, ok, _ = c.Get(ctx, a)
	assert.False(t, ok)

	require.NoError(t, c.InvalidateAll(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestLRU_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewLRU(4, time.Minute)
	id := uuid.New()

	in := []string{"users:read"}
	_, stamp, _, _ := c.Get(ctx, id)
	require.NoError(t, c.Set(ctx, id, stamp, in))
	in[0] = "mutated"

	keys, _, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	keys[0] = "also mutated"

	again, _, _, _ := c.Get(ctx, id)
	assert.Equal(t, []string{"users:read"}, again)
}

func TestLRU_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewLRU(4, 20*time.Millisecond)
	id := uuid.New()

	_, stamp, _, _ := c.Get(ctx, id)
	require.NoError(t, c.Set(ctx, id, stamp, []string{"x"}))
	assert.Eventually(t, func() bool {
		_, _, ok, _ := c.Get(ctx, id)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestLRU_StaleFillIsNotServed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name       string
		invalidate func(c *LRU, id uuid.UUID) error
	}{
		{
			name: "user invalidated",
			invalidate: func(c *LRU, id uuid.UUID) error {
				return c.Invalidate(ctx, id)
			},
		},
		{
			name: "all invalidated",
			invalidate: func(c *LRU, _ uuid.UUID) error {
				return c.InvalidateAll(ctx)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewLRU(4, time.Minute)
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
