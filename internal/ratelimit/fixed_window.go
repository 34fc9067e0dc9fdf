package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FixedWindow admits up to limit requests per identity in each window. The
// window starts at an identity's first admission and resets once it elapses.
// Buckets are independent: each has its own mutex and there is no global lock.
type FixedWindow struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets sync.Map // identity -> *bucket
}

type bucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	// dead is set when Sweep has removed the bucket from the map.
	dead bool
}

func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *FixedWindow) Admit(_ context.Context, identity string) (Decision, error) {
	for {
		value, _ := l.buckets.LoadOrStore(identity, &bucket{})
		b := value.(*bucket)

		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		decision := l.admitLocked(b)
		b.mu.Unlock()
		return decision, nil
	}
}

func (l *FixedWindow) admitLocked(b *bucket) Decision {
	now := l.now()
	if b.count == 0 || now.Sub(b.windowStart) >= l.window {
		b.windowStart = now
		b.count = 0
	}
	if b.count >= l.limit {
		return Decision{RetryAfter: b.windowStart.Add(l.window).Sub(now)}
	}
	b.count++
	return Decision{Allowed: true, Remaining: l.limit - b.count}
}

// Sweep removes buckets whose window has elapsed at now and returns how many
// were removed. Removed identities start a fresh window on their next request.
func (l *FixedWindow) Sweep(now time.Time) int {
	removed := 0
	l.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if now.Sub(b.windowStart) >= l.window {
			b.dead = true
			l.buckets.CompareAndDelete(key, b)
			removed++
		}
		b.mu.Unlock()
		return true
	})
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *FixedWindow) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(l.now()); removed > 0 {
				slog.Default().Debug("Swept rate limit buckets", "removed", removed)
			}
		}
	}
}

var _ Limiter = (*FixedWindow)(nil)
