package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(limit int, window time.Duration) (*FixedWindow, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := NewFixedWindow(limit, window)
	limiter.now = clock.Now
	return limiter, clock
}

func TestFixedWindow_Admit(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(3, time.Minute)

	for i, wantRemaining := range []int{2, 1, 0} {
		got, err := limiter.Admit(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, got.Allowed, "admission %d", i+1)
		assert.Equal(t, wantRemaining, got.Remaining)
	}

	clock.Advance(20 * time.Second)
	got, err := limiter.Admit(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, got.Allowed)
	assert.Equal(t, 40*time.Second, got.RetryAfter)

	other, err := limiter.Admit(ctx, "ip:10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "identities do not share a quota")

	clock.Advance(40 * time.Second)
	got, err = limiter.Admit(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, got.Allowed, "window elapsed")
	assert.Equal(t, 2, got.Remaining)
}

func TestFixedWindow_Admit_Concurrent(t *testing.T) {
	limiter, _ := newTestLimiter(3, time.Minute)

	const callers = 50
	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// half the callers share one identity, the rest are distinct
			identity := "token:shared"
			if i%2 == 1 {
				identity = fmt.Sprintf("ip:10.0.0.%d", i)
			}
			got, err := limiter.Admit(context.Background(), identity)
			assert.NoError(t, err)
			if got.Allowed && identity == "token:shared" {
				allowed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(3), allowed.Load())
}

func TestFixedWindow_Sweep(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(1, time.Minute)

	_, err := limiter.Admit(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	_, err = limiter.Admit(ctx, "ip:10.0.0.2")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	assert.Equal(t, 1, limiter.Sweep(clock.Now()))

	_, ok := limiter.buckets.Load("ip:10.0.0.1")
	assert.False(t, ok)
	_, ok = limiter.buckets.Load("ip:10.0.0.2")
	assert.True(t, ok)

	got, err := limiter.Admit(ctx, "ip:10.0.0.2")
	require.NoError(t, err)
	assert.False(t, got.Allowed, "sweep keeps live windows")

	got, err = limiter.Admit(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, got.Allowed)
}

func TestFixedWindow_RunSweeper(t *testing.T) {
	limiter := NewFixedWindow(1, time.Millisecond)
	_, err := limiter.Admit(context.Background(), "ip:10.0.0.1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		limiter.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, ok := limiter.buckets.Load("ip:10.0.0.1")
		return !ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		remoteAddr    string
		want          string
	}{
		{name: "remote address host", remoteAddr: "10.0.0.1:52341", want: "ip:10.0.0.1"},
		{name: "ipv6 remote address", remoteAddr: "[::1]:52341", want: "ip:::1"},
		{name: "remote address without port", remoteAddr: "10.0.0.1", want: "ip:10.0.0.1"},
		{name: "malformed scheme falls back to address", authorization: "Basic abc", remoteAddr: "10.0.0.1:1", want: "ip:10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identity(tt.authorization, tt.remoteAddr))
		})
	}

	t.Run("bearer token wins over address", func(t *testing.T) {
		a := Identity("Bearer s3cret", "10.0.0.1:1")
		b := Identity("Bearer s3cret", "10.0.0.2:1")
		assert.Equal(t, a, b)
		assert.Contains(t, a, "token:")
		assert.NotContains(t, a, "s3cret")
		assert.NotEqual(t, a, Identity("Bearer other", "10.0.0.1:1"))
	})
}
