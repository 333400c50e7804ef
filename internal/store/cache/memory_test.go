package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "models:p1", []string{"gpt-4", "gpt-4o"}, 0))

	var got []string
	require.NoError(t, c.Get(ctx, "models:p1", &got))
	assert.Equal(t, []string{"gpt-4", "gpt-4o"}, got)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	var got []string
	assert.ErrorIs(t, c.Get(ctx, "nope", &got), ErrCacheMiss)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(ctx, "k", []string{}, time.Minute))

	now = now.Add(2 * time.Minute)
	err := c.Get(ctx, "k", &got)
	assert.ErrorIs(t, err, ErrExpired)
	assert.True(t, IsMiss(err))

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}
