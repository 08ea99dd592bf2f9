package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSetIsCreateOnly(t *testing.T) {
	store := NewLocalStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v1")))

	err := store.Set(ctx, "k", []byte("v2"))
	require.Error(t, err)
	assert.Equal(t, apperror.KindCacheKeyExists, apperror.KindOf(err))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got, "losing writer must not overwrite")
}

func TestLocalStoreSingleWriterUnderContention(t *testing.T) {
	store := NewLocalStore(time.Minute)
	ctx := context.Background()

	const writers = 32
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Set(ctx, "contended", []byte(fmt.Sprintf("writer-%d", i))); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins, "exactly one Set must win")
}

func TestLocalStoreGetMissing(t *testing.T) {
	store := NewLocalStore(time.Minute)

	_, err := store.Get(context.Background(), "absent")
	require.Error(t, err)
	assert.Equal(t, apperror.KindCacheKeyNotFound, apperror.KindOf(err))
}

func TestLocalStoreDeleteThenReuse(t *testing.T) {
	store := NewLocalStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v1")))
	require.NoError(t, store.Delete(ctx, "k"))

	err := store.Delete(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, apperror.KindCacheKeyNotFound, apperror.KindOf(err))

	// The key is writable again after deletion.
	require.NoError(t, store.Set(ctx, "k", []byte("v2")))

	exists, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)
}

type countingFetcher struct {
	mu    sync.Mutex
	calls int
	body  []byte
	err   error
}

func (f *countingFetcher) GetConfigBody(context.Context, string, string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.body, f.err
}

func TestCachingConfigClientFetchesOnce(t *testing.T) {
	fetcher := &countingFetcher{body: []byte(`{"locale":"en"}`)}
	client := NewCachingConfigClient(NewLocalStore(time.Minute), fetcher, logger.NopLogger{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		body, err := client.GetConfigBody(ctx, "system", "system_20250101_000001")
		require.NoError(t, err)
		assert.Equal(t, fetcher.body, body)
	}
	assert.Equal(t, 1, fetcher.calls, "registry hit only on the first read")
}

func TestCachingConfigClientPropagatesFetchErrors(t *testing.T) {
	fetcher := &countingFetcher{err: apperror.New(apperror.KindNotFound, "config not found")}
	client := NewCachingConfigClient(NewLocalStore(time.Minute), fetcher, logger.NopLogger{})

	_, err := client.GetConfigBody(context.Background(), "system", "missing")
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestCachingConfigClientInvalidate(t *testing.T) {
	fetcher := &countingFetcher{body: []byte(`{}`)}
	client := NewCachingConfigClient(NewLocalStore(time.Minute), fetcher, logger.NopLogger{})
	ctx := context.Background()

	_, err := client.GetConfigBody(ctx, "agent", "v1")
	require.NoError(t, err)
	require.NoError(t, client.Invalidate(ctx, "agent", "v1"))

	_, err = client.GetConfigBody(ctx, "agent", "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}
