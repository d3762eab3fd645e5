package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(parts ...string) Key { return Key(parts) }

func TestCache_FetchCachesResult(t *testing.T) {
	cache := NewCache(0)
	var calls int32

	fn := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "page-1", nil
	}

	key := testKey("s1", "jobs", "list", "1")
	for i := 0; i < 3; i++ {
		data, err := cache.Fetch(context.Background(), key, fn)
		require.NoError(t, err)
		assert.Equal(t, "page-1", data)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_ConcurrentFetchesShareOneCall(t *testing.T) {
	cache := NewCache(0)
	var calls int32
	release := make(chan struct{})

	fn := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 99, nil
	}

	key := testKey("s1", "jobs", "list", "1")
	const workers = 10
	var wg sync.WaitGroup
	results := make([]interface{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := cache.Fetch(context.Background(), key, fn)
			require.NoError(t, err)
			results[i] = data
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, data := range results {
		assert.Equal(t, 99, data)
	}
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	cache := NewCache(0)
	var calls int32

	fn := func(ctx context.Context) (interface{}, error) {
		return fmt.Sprintf("v%d", atomic.AddInt32(&calls, 1)), nil
	}

	key := testKey("s1", "jobs", "list", "1")
	data, err := cache.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, "v1", data)

	cache.Invalidate(testKey("s1", "jobs"))

	data, err = cache.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, "v2", data)
}

func TestCache_InvalidateIsPrefixScoped(t *testing.T) {
	cache := NewCache(0)
	var jobCalls, settingsCalls, otherSession int32

	jobsKey := testKey("s1", "jobs", "list", "1")
	settingsKey := testKey("s1", "settings")
	otherKey := testKey("s2", "jobs", "list", "1")

	fetch := func(counter *int32) FetchFunc {
		return func(ctx context.Context) (interface{}, error) {
			return atomic.AddInt32(counter, 1), nil
		}
	}

	ctx := context.Background()
	_, _ = cache.Fetch(ctx, jobsKey, fetch(&jobCalls))
	_, _ = cache.Fetch(ctx, settingsKey, fetch(&settingsCalls))
	_, _ = cache.Fetch(ctx, otherKey, fetch(&otherSession))

	cache.Invalidate(testKey("s1", "jobs"))

	_, _ = cache.Fetch(ctx, jobsKey, fetch(&jobCalls))
	_, _ = cache.Fetch(ctx, settingsKey, fetch(&settingsCalls))
	_, _ = cache.Fetch(ctx, otherKey, fetch(&otherSession))

	assert.Equal(t, int32(2), atomic.LoadInt32(&jobCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&settingsCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&otherSession))
}

func TestCache_FetchErrorIsNotCached(t *testing.T) {
	cache := NewCache(0)
	var calls int32

	fn := func(ctx context.Context) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("backend down")
		}
		return "recovered", nil
	}

	key := testKey("s1", "jobs", "list", "1")
	_, err := cache.Fetch(context.Background(), key, fn)
	require.Error(t, err)

	// The error is observable but a later read retries.
	assert.Error(t, cache.Peek(key).Err)

	data, err := cache.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, "recovered", data)
}

func TestCache_CancelledFetchNeverMutates(t *testing.T) {
	cache := NewCache(0)
	key := testKey("s1", "jobs", "list", "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn := func(ctx context.Context) (interface{}, error) {
		return nil, fmt.Errorf("request: %w", context.Canceled)
	}

	_, err := cache.Fetch(ctx, key, fn)
	require.Error(t, err)

	result := cache.Peek(key)
	assert.False(t, result.HasData)
	assert.NoError(t, result.Err)
}

func TestCache_SupersededResponseIsDiscarded(t *testing.T) {
	cache := NewCache(0)
	key := testKey("s1", "jobs", "list", "1")

	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) (interface{}, error) {
		close(started)
		<-release
		return "outdated", nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.Fetch(context.Background(), key, fn)
	}()

	<-started
	// The entry moves on while the response is still in flight.
	cache.Invalidate(testKey("s1", "jobs"))
	close(release)
	<-done

	// The in-flight caller still got its answer, but the cache must not
	// serve the superseded value to anyone else.
	result := cache.Peek(key)
	assert.True(t, !result.HasData || result.Stale)

	var calls int32
	data, err := cache.Fetch(context.Background(), key, func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", data)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_ReadAfterInvalidateDoesNotJoinOldFetch(t *testing.T) {
	cache := NewCache(0)
	key := testKey("s1", "jobs", "list", "1")

	started := make(chan struct{})
	release := make(chan struct{})

	oldDone := make(chan struct{})
	go func() {
		defer close(oldDone)
		_, _ = cache.Fetch(context.Background(), key, func(ctx context.Context) (interface{}, error) {
			close(started)
			<-release
			return "pre-mutation", nil
		})
	}()
	<-started

	// The mutation lands while the old fetch is still in flight. A read
	// issued after it must see post-mutation data, not join the old
	// call.
	cache.Invalidate(testKey("s1", "jobs"))

	data, err := cache.Fetch(context.Background(), key, func(ctx context.Context) (interface{}, error) {
		return "post-mutation", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "post-mutation", data)

	close(release)
	<-oldDone

	// The old result resolved for its own waiter but never reached the
	// cache.
	assert.Equal(t, "post-mutation", cache.Peek(key).Data)
}

func TestCache_JoinerRetriesWhenInitiatorCancels(t *testing.T) {
	cache := NewCache(0)
	key := testKey("s1", "jobs", "list", "1")

	initiatorCtx, cancelInitiator := context.WithCancel(context.Background())
	firstStarted := make(chan struct{})
	var calls int32

	fn := func(ctx context.Context) (interface{}, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			close(firstStarted)
			<-ctx.Done()
			return nil, fmt.Errorf("request: %w", ctx.Err())
		}
		return "page", nil
	}

	go func() {
		_, _ = cache.Fetch(initiatorCtx, key, fn)
	}()
	<-firstStarted

	joinerDone := make(chan struct{})
	var joinerData interface{}
	var joinerErr error
	go func() {
		defer close(joinerDone)
		joinerData, joinerErr = cache.Fetch(context.Background(), key, fn)
	}()

	time.Sleep(20 * time.Millisecond)
	cancelInitiator()
	<-joinerDone

	// The joiner never asked to cancel; it gets data, not the
	// initiator's cancellation.
	require.NoError(t, joinerErr)
	assert.Equal(t, "page", joinerData)
}

func TestCache_WaiterCancellationLeavesCacheIntact(t *testing.T) {
	cache := NewCache(0)
	key := testKey("s1", "jobs", "list", "1")

	release := make(chan struct{})
	fn := func(ctx context.Context) (interface{}, error) {
		<-release
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := cache.Fetch(ctx, key, fn)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)

	// The abandoned fetch still completes and commits for future readers.
	close(release)
	require.Eventually(t, func() bool {
		return cache.Peek(key).HasData
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "late", cache.Peek(key).Data)
}

func TestCache_Placeholder(t *testing.T) {
	cache := NewCache(0)
	ctx := context.Background()

	_, _ = cache.Fetch(ctx, testKey("s1", "jobs", "list", "1"), func(ctx context.Context) (interface{}, error) {
		return "page-1", nil
	})
	time.Sleep(5 * time.Millisecond)
	_, _ = cache.Fetch(ctx, testKey("s1", "jobs", "list", "2"), func(ctx context.Context) (interface{}, error) {
		return "page-2", nil
	})

	// Newest data under the list prefix stands in for page 3 while it
	// loads.
	data, ok := cache.Placeholder(testKey("s1", "jobs", "list"))
	require.True(t, ok)
	assert.Equal(t, "page-2", data)

	_, ok = cache.Placeholder(testKey("s1", "settings"))
	assert.False(t, ok)
}

func TestCache_TTLExpiresEntries(t *testing.T) {
	cache := NewCache(20 * time.Millisecond)
	key := testKey("s1", "jobs", "list", "1")

	var calls int32
	fn := func(ctx context.Context) (interface{}, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	_, err := cache.Fetch(context.Background(), key, fn)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	assert.True(t, cache.Peek(key).Stale)

	_, err = cache.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
