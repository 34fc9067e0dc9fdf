// Package orchestrator runs one survey request through authentication, rate
// limiting, prompt validation, the cache and, on a miss, the generator.
//
// A miss is resolved without holding any lock across generation. Every racing
// caller may generate; the cache's unique key admits exactly one insert and the
// losers re-read the winner's entry, which they return as a cache hit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/at-ishikawa/surveygen/internal/cache"
	"github.com/at-ishikawa/surveygen/internal/generation"
	"github.com/at-ishikawa/surveygen/internal/ratelimit"
	"github.com/at-ishikawa/surveygen/internal/survey"
)

const DefaultTimeout = 30 * time.Second

// Authenticator is satisfied by *auth.Gate.
type Authenticator interface {
	Authenticate(authorization string) error
}

// Request is one inbound generation request. Prompt is nil when the caller did
// not send a textual prompt.
type Request struct {
	Authorization string
	RemoteAddr    string
	Prompt        *string
}

// Source tells whether a result came from the cache or was generated for this request.
type Source string

const (
	SourceCache     Source = "cache"
	SourceGenerated Source = "generated"
)

type Result struct {
	Document survey.Document
	Source   Source
}

func (r Result) Cached() bool {
	return r.Source == SourceCache
}

type Orchestrator struct {
	gate      Authenticator
	limiter   ratelimit.Limiter
	store     cache.Store
	generator generation.Generator

	timeout         time.Duration
	strictQuestions bool
}

type Option func(*Orchestrator)

// WithTimeout bounds each generator call.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = timeout
	}
}

// WithStrictQuestions rejects generated documents whose questions break their
// variant constraints, in addition to the title/questions shape check.
func WithStrictQuestions(strict bool) Option {
	return func(o *Orchestrator) {
		o.strictQuestions = strict
	}
}

func New(gate Authenticator, limiter ratelimit.Limiter, store cache.Store, generator generation.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gate:      gate,
		limiter:   limiter,
		store:     store,
		generator: generator,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate returns the survey for req. Errors are always *Error.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (Result, error) {
	if err := o.gate.Authenticate(req.Authorization); err != nil {
		return Result{}, newError(KindUnauthorized, err)
	}

	identity := ratelimit.Identity(req.Authorization, req.RemoteAddr)
	decision, err := o.limiter.Admit(ctx, identity)
	if err != nil {
		return Result{}, newError(KindStore, fmt.Errorf("rate limiter: %w", err))
	}
	if !decision.Allowed {
		slog.Default().Info("Rate limited", "identity", identity, "retryAfter", decision.RetryAfter)
		return Result{}, &Error{Kind: KindRateLimited, RetryAfter: decision.RetryAfter}
	}

	if req.Prompt == nil {
		return Result{}, newError(KindInvalidInput, errors.New("prompt must be a string"))
	}
	prompt, err := survey.ValidatePrompt(*req.Prompt)
	if err != nil {
		return Result{}, newError(KindInvalidInput, err)
	}
	key := survey.NormalizePrompt(prompt)

	entry, err := o.store.Lookup(ctx, key)
	switch {
	case err == nil:
		slog.Default().Debug("Cache hit", "normalized", key, "id", entry.ID)
		return Result{Document: entry.Document, Source: SourceCache}, nil
	case !errors.Is(err, cache.ErrNotFound):
		return Result{}, newError(KindStore, err)
	}

	doc, err := o.generate(ctx, prompt)
	if err != nil {
		return Result{}, err
	}

	inserted, err := o.store.InsertIfAbsent(ctx, prompt, key, doc)
	if err != nil {
		return Result{}, newError(KindStore, err)
	}
	if !inserted.Conflict {
		slog.Default().Info("Cached generated survey", "normalized", key, "id", inserted.Inserted.ID)
		return Result{Document: doc, Source: SourceGenerated}, nil
	}

	winner, err := o.store.Lookup(ctx, key)
	if err != nil {
		return Result{}, newError(KindStore, fmt.Errorf("reread after conflict: %w", err))
	}
	slog.Default().Info("Lost insert race, returning cached survey", "normalized", key, "id", winner.ID)
	return Result{Document: winner.Document, Source: SourceCache}, nil
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) (survey.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	doc, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		var genErr *generation.Error
		if errors.As(err, &genErr) && genErr.Kind == generation.KindInvalidOutput {
			return survey.Document{}, &Error{Kind: KindInvalidOutput, Err: err, Raw: genErr.Raw}
		}
		slog.Default().Warn("Generation failed", "error", err, "elapsed", time.Since(start))
		return survey.Document{}, newError(KindTransport, err)
	}
	if doc.IsZero() {
		return survey.Document{}, newError(KindInvalidOutput, errors.New("generator returned an empty document"))
	}
	if o.strictQuestions {
		if err := doc.Validate(); err != nil {
			return survey.Document{}, &Error{Kind: KindInvalidOutput, Err: err, Raw: string(doc.Raw())}
		}
	}
	slog.Default().Debug("Generated survey", "questions", len(doc.Questions), "elapsed", time.Since(start))
	return doc, nil
}
