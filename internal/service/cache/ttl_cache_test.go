package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetBytes(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, "forever", []byte("2"), 0))

	b, ok, err := c.GetBytes(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), b)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.GetBytes(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = c.GetBytes(ctx, "forever")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())

	_, ok, err = c.GetBytes(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLCacheCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	v := []byte("abc")
	require.NoError(t, c.SetBytes(ctx, "k", v, 0))
	v[0] = 'z'
	got, _, _ := c.GetBytes(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
}
