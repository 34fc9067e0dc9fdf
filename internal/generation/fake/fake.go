// Package fake provides a deterministic Generator for tests and local development.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/at-ishikawa/surveygen/internal/generation"
	"github.com/at-ishikawa/surveygen/internal/survey"
)

// Generator returns a fixed three-question survey whose title carries the prompt
// and the call sequence number, so tests can tell which call produced a document.
type Generator struct {
	calls atomic.Int64

	mu      sync.Mutex
	failure *generation.Error
	barrier *barrier
}

type barrier struct {
	need    int
	arrived int
	release chan struct{}
}

func New() *Generator {
	return &Generator{}
}

// Calls returns how many times Generate has been invoked.
func (g *Generator) Calls() int {
	return int(g.calls.Load())
}

// FailWith makes every following call fail with the given kind. raw is reported
// as the generator output for KindInvalidOutput.
func (g *Generator) FailWith(kind generation.Kind, raw string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failure = &generation.Error{Kind: kind, Raw: raw, Err: errors.New("fake failure")}
}

// Barrier makes Generate block until n calls are in flight at once, or until the
// caller's context is done.
func (g *Generator) Barrier(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.barrier = &barrier{need: n, release: make(chan struct{})}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (survey.Document, error) {
	seq := g.calls.Add(1)

	g.mu.Lock()
	failure := g.failure
	var release chan struct{}
	if b := g.barrier; b != nil {
		b.arrived++
		if b.arrived >= b.need {
			close(b.release)
			g.barrier = nil
		}
		release = b.release
	}
	g.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return survey.Document{}, generation.TransportError(ctx.Err())
		}
	}
	if failure != nil {
		return survey.Document{}, failure
	}

	doc, err := survey.NewDocument(fmt.Sprintf("%s (#%d)", prompt, seq), []survey.Question{
		{
			Type:    survey.QuestionMultipleChoice,
			Text:    "How often do you think about " + prompt + "?",
			Options: []string{"Daily", "Weekly", "Rarely", "Never"},
		},
		{Type: survey.QuestionRating, Text: "How satisfied are you overall?", Scale: 5},
		{Type: survey.QuestionOpenText, Text: "Anything else you would like to share?"},
	})
	if err != nil {
		return survey.Document{}, generation.InvalidOutputError("", err)
	}
	return doc, nil
}

var _ generation.Generator = (*Generator)(nil)
