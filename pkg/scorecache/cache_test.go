package scorecache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, ok, err := c.Get(ctx, "doc", 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "doc", 1, 2, 0.75))
	require.NoError(t, c.Put(ctx, "other", 1, 2, 0.1))

	v, ok, err := c.Get(ctx, "doc", 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.75, v)

	_, ok, _ = c.Get(ctx, "doc", 2, 1)
	assert.False(t, ok, "pairs are ordered")
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Invalidate(ctx, "doc"))
	_, ok, _ = c.Get(ctx, "doc", 1, 2)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.Put(ctx, "doc", i, j, float64(j))
				_, _, _ = c.Get(ctx, "doc", i, j)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 400, c.Len())
}

func TestRedisCache_Key(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	assert.Equal(t, "coref:scores:doc-1", NewRedisCache(client, RedisConfig{}).key("doc-1"))
	assert.Equal(t, "coref:scores:v2:doc-1", NewRedisCache(client, RedisConfig{Namespace: "v2"}).key("doc-1"))
	assert.Equal(t, "3:7", pairField(3, 7))
}

func TestRedisCache_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewRedisCache(client, RedisConfig{})

	_, ok, err := c.Get(context.Background(), "doc", 1, 2)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Put(context.Background(), "doc", 1, 2, 0.5))
}
