package orchestrator

import (
	"fmt"
	"time"
)

// Kind is the failure category reported to callers.
type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindRateLimited
	KindInvalidInput
	KindInvalidOutput
	KindTransport
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidOutput:
		return "invalid_output"
	case KindTransport:
		return "transport"
	case KindStore:
		return "store_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrUnauthorized  = &Error{Kind: KindUnauthorized}
	ErrRateLimited   = &Error{Kind: KindRateLimited}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput}
	ErrInvalidOutput = &Error{Kind: KindInvalidOutput}
	ErrTransport     = &Error{Kind: KindTransport}
	ErrStore         = &Error{Kind: KindStore}
)

type Error struct {
	Kind Kind
	Err  error
	// Raw is the generator output for KindInvalidOutput.
	Raw string
	// RetryAfter is set for KindRateLimited.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
