package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClientRoundTrip(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Delete(ctx, "k1"))
	_, err = c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClientExpiry(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), -time.Second))

	_, err := c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClientDeleteByPrefix(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "s:a:1", []byte("x"), time.Minute))
	require.NoError(t, c.Set(ctx, "s:a:2", []byte("y"), time.Minute))
	require.NoError(t, c.Set(ctx, "s:b:1", []byte("z"), time.Minute))

	require.NoError(t, c.DeleteByPrefix(ctx, "s:a:"))

	_, err := c.Get(ctx, "s:a:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "s:b:1")
	assert.NoError(t, err)
}

func TestMemoryClientCloseStopsCleanup(t *testing.T) {
	c := NewMemoryClient(10)

	require.NoError(t, c.Close())

	select {
	case <-c.done:
	default:
		t.Fatal("done channel should be closed after Close")
	}

	// A second Close must not panic.
	require.NoError(t, c.Close())
}

func TestSearchKeyScopesBySession(t *testing.T) {
	a := SearchKey("sess-a", "search", "abcd")
	b := SearchKey("sess-b", "search", "abcd")

	assert.NotEqual(t, a, b)
	assert.Equal(t, "s:sess-a:search:abcd", a)
}
