// Package ratelimit bounds how many generation requests one identity may make
// within a fixed window.
//
// FixedWindow keeps its counters in process memory, so the quota holds per
// process only. Deployments running more than one server process must use the
// Valkey limiter, which keeps the counters in a shared store.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
	"time"

	"github.com/at-ishikawa/surveygen/internal/auth"
)

//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit/mock_limiter.go -package=mock_ratelimit

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allowed bool
	// Remaining is the number of admissions left in the current window.
	Remaining int
	// RetryAfter is set on denial to the time until the window resets.
	RetryAfter time.Duration
}

type Limiter interface {
	Admit(ctx context.Context, identity string) (Decision, error)
}

// Identity derives the rate-limiting subject for a request: the bearer token
// when one is presented, otherwise the host part of the remote address.
// Tokens are hashed so that credentials never end up in limiter keys.
func Identity(authorization, remoteAddr string) string {
	if token, ok := auth.BearerToken(authorization); ok {
		sum := sha256.Sum256([]byte(token))
		return "token:" + hex.EncodeToString(sum[:8])
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return "ip:" + strings.TrimSpace(host)
}
