package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/at-ishikawa/surveygen/internal/valkey"
)

// KEYS[1] is the counter, ARGV[1] the window in milliseconds.
// Returns {count, remaining ttl in milliseconds}.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// ValkeyLimiter is a fixed window limiter whose counters live in Valkey, so
// every server process sharing the instance enforces one quota per identity.
type ValkeyLimiter struct {
	client *valkey.Client
	limit  int
	window time.Duration
}

func NewValkeyLimiter(client *valkey.Client, limit int, window time.Duration) *ValkeyLimiter {
	return &ValkeyLimiter{client: client, limit: limit, window: window}
}

func (l *ValkeyLimiter) Admit(ctx context.Context, identity string) (Decision, error) {
	inner := l.client.Inner()
	cmd := inner.B().Eval().
		Script(fixedWindowScript).
		Numkeys(1).
		Key(l.client.Key("ratelimit", identity)).
		Arg(strconv.FormatInt(l.window.Milliseconds(), 10)).
		Build()

	values, err := inner.Do(ctx, cmd).AsIntSlice()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to update rate limit counter: %w", err)
	}
	if len(values) != 2 {
		return Decision{}, fmt.Errorf("unexpected rate limit script reply: %v", values)
	}

	count, ttl := int(values[0]), time.Duration(values[1])*time.Millisecond
	if count > l.limit {
		return Decision{RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - count}, nil
}

var _ Limiter = (*ValkeyLimiter)(nil)
