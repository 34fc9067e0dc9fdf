// Package generation turns a prompt into a survey document using an external model.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/at-ishikawa/surveygen/internal/survey"
)

//go:generate mockgen -source=interface.go -destination=../mocks/generation/mock_generator.go -package=mock_generation

// Generator produces a survey document for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (survey.Document, error)
}

// Kind classifies generation failures.
type Kind int

const (
	// KindTransport means the generator could not be reached or timed out.
	KindTransport Kind = iota + 1
	// KindInvalidOutput means the generator answered with something that is not a survey.
	KindInvalidOutput
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindInvalidOutput:
		return "invalid_output"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by Generator implementations.
// Raw holds the generator's content for KindInvalidOutput.
type Error struct {
	Kind Kind
	Raw  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation %s", e.Kind)
	}
	return fmt.Sprintf("generation %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func TransportError(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

func InvalidOutputError(raw string, err error) *Error {
	return &Error{Kind: KindInvalidOutput, Raw: raw, Err: err}
}

// KindOf returns the kind of a generation error. Errors that did not come from a
// Generator, such as an expired context, count as transport failures.
func KindOf(err error) Kind {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return KindTransport
}
