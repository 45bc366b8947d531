package endpoints

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresEndpoints(t *testing.T) {
	_, err := New(nil, 0)
	require.Error(t, err)
}

func TestNext_RoundRobinFairness(t *testing.T) {
	ctx := context.Background()
	urls := []string{"https://a", "https://b", "https://c"}
	pool, err := New(urls, 0)
	require.NoError(t, err)

	// 10 calls over 3 endpoints: each endpoint must be handed out
	// floor(10/3)=3 or ceil(10/3)=4 times.
	counts := make(map[string]int)
	for i := 0; i < 10; i++ {
		ep, err := pool.Next(ctx)
		require.NoError(t, err)
		counts[ep.URL]++
	}

	for _, u := range urls {
		assert.GreaterOrEqual(t, counts[u], 3, "endpoint %s under-served", u)
		assert.LessOrEqual(t, counts[u], 4, "endpoint %s over-served", u)
	}
}

func TestNext_RotationOrder(t *testing.T) {
	ctx := context.Background()
	pool, err := New([]string{"https://a", "https://b"}, 0)
	require.NoError(t, err)

	var got []string
	for i := 0; i < 4; i++ {
		ep, err := pool.Next(ctx)
		require.NoError(t, err)
		got = append(got, ep.URL)
	}
	assert.Equal(t, []string{"https://a", "https://b", "https://a", "https://b"}, got)
}

func TestNext_PacesSameEndpoint(t *testing.T) {
	ctx := context.Background()
	const interval = 50 * time.Millisecond
	pool, err := New([]string{"https://only"}, interval)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := pool.Next(ctx)
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// First call is free, the next two each wait one interval.
	assert.GreaterOrEqual(t, elapsed, 2*interval)
}

func TestNext_CancelDuringWait(t *testing.T) {
	pool, err := New([]string{"https://only"}, time.Minute)
	require.NoError(t, err)

	_, err = pool.Next(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = pool.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	pool, err := New([]string{"https://a", "https://b"}, 0)
	require.NoError(t, err)

	ep1, err := pool.Next(ctx)
	require.NoError(t, err)
	pool.RecordSuccess(ep1)

	ep2, err := pool.Next(ctx)
	require.NoError(t, err)
	pool.RecordFailure(ep2)
	pool.RecordFailure(ep2)

	stats := pool.Snapshot()
	require.Len(t, stats, 2)
	assert.Equal(t, "https://a", stats[0].URL)
	assert.Equal(t, 1, stats[0].Requests)
	assert.Equal(t, 1, stats[0].Successes)
	assert.Equal(t, 0, stats[0].Failures)
	assert.Equal(t, 1, stats[1].Requests)
	assert.Equal(t, 0, stats[1].Successes)
	assert.Equal(t, 2, stats[1].Failures)
}
