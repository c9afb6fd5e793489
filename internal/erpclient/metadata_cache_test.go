package erpclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetadataCache_CachesWithinTTL(t *testing.T) {
	cache, err := NewMetadataCache(time.Hour)
	require.NoError(t, err)

	var calls int32
	load := func(ctx context.Context) (map[string]interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]interface{}{"name": "res.partner"}, nil
	}

	v1, err := cache.Get(context.Background(), "default", "res.partner", load)
	require.NoError(t, err)
	v2, err := cache.Get(context.Background(), "default", "res.partner", load)
	require.NoError(t, err)

	require.Equal(t, v1, v2)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestMetadataCache_ExpiresAfterTTL(t *testing.T) {
	cache, err := NewMetadataCache(10 * time.Millisecond)
	require.NoError(t, err)

	var calls int32
	load := func(ctx context.Context) (map[string]interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]interface{}{"n": calls}, nil
	}

	_, err = cache.Get(context.Background(), "default", "res.partner", load)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = cache.Get(context.Background(), "default", "res.partner", load)
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestMetadataCache_ConcurrentMissesCollapseIntoOneLoad(t *testing.T) {
	cache, err := NewMetadataCache(time.Hour)
	require.NoError(t, err)

	var calls int32
	load := func(ctx context.Context) (map[string]interface{}, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return map[string]interface{}{"name": "res.partner"}, nil
	}

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background(), "default", "res.partner", load)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestMetadataCache_InvalidateForcesReload(t *testing.T) {
	cache, err := NewMetadataCache(time.Hour)
	require.NoError(t, err)

	var calls int32
	load := func(ctx context.Context) (map[string]interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]interface{}{}, nil
	}

	_, err = cache.Get(context.Background(), "default", "res.partner", load)
	require.NoError(t, err)
	cache.Invalidate("default", "res.partner")
	_, err = cache.Get(context.Background(), "default", "res.partner", load)
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
