package generation

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"github.com/at-ishikawa/surveygen/internal/survey"
)

type retryingGenerator struct {
	next     Generator
	attempts uint
	delay    time.Duration
}

// WithRetry wraps next so that transport failures are retried up to attempts
// extra times with exponential backoff. Invalid output is never retried.
// With attempts == 0 the generator is returned unchanged.
func WithRetry(next Generator, attempts uint, delay time.Duration) Generator {
	if attempts == 0 {
		return next
	}
	return &retryingGenerator{next: next, attempts: attempts, delay: delay}
}

func (g *retryingGenerator) Generate(ctx context.Context, prompt string) (survey.Document, error) {
	var doc survey.Document
	err := retry.Do(
		func() error {
			result, err := g.next.Generate(ctx, prompt)
			if err != nil {
				if KindOf(err) != KindTransport {
					return retry.Unrecoverable(err)
				}
				return err
			}
			doc = result
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts+1),
		retry.Delay(g.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Default().Info("Retrying survey generation",
				"attempt", n+1,
				"error", err)
		}),
	)
	if err != nil {
		return survey.Document{}, err
	}
	return doc, nil
}
