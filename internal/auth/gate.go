// Package auth checks the shared bearer secret that guards generation.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrUnauthorized is the single failure signal for a missing, malformed or
// wrong credential.
var ErrUnauthorized = errors.New("unauthorized")

const bearerPrefix = "Bearer "

type Gate struct {
	secret []byte
}

// NewGate returns a gate for the configured secret. A gate with an empty secret
// rejects every credential.
func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// Authenticate accepts an Authorization header value of the form
// "Bearer <token>" whose token equals the configured secret byte for byte.
func (g *Gate) Authenticate(authorization string) error {
	token, ok := BearerToken(authorization)
	if !ok || len(g.secret) == 0 {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), g.secret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authorization string) (string, bool) {
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return "", false
	}
	token := authorization[len(bearerPrefix):]
	if token == "" {
		return "", false
	}
	return token, true
}
