// Package cache stores generated surveys keyed by normalized prompt.
//
// Entries are permanent: each normalized key is written once by the first
// successful generation and never updated or removed. Concurrent writers for the
// same key are resolved by the store's unique constraint, which turns the losing
// insert into a reported conflict instead of a duplicate row.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/at-ishikawa/surveygen/internal/survey"
)

//go:generate mockgen -source=store.go -destination=../mocks/cache/mock_store.go -package=mock_cache

// ErrNotFound is returned by Lookup when no entry exists for the key.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one cached survey.
type Entry struct {
	ID            int64           `db:"id" json:"id"`
	RawInput      string          `db:"prompt_raw" json:"prompt_raw"`
	NormalizedKey string          `db:"prompt_normalized" json:"prompt_normalized"`
	Document      survey.Document `db:"survey_json" json:"survey"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// InsertResult is the outcome of InsertIfAbsent: either the new entry, or a
// conflict meaning another caller already stored the key.
type InsertResult struct {
	Inserted *Entry
	Conflict bool
}

// Store is the cache used on the request path.
type Store interface {
	// Lookup returns the entry for key, or ErrNotFound.
	Lookup(ctx context.Context, key string) (*Entry, error)
	// InsertIfAbsent creates an entry unless one already exists for key.
	// After a conflict, Lookup(key) is guaranteed to find the winning entry.
	InsertIfAbsent(ctx context.Context, rawInput, key string, doc survey.Document) (InsertResult, error)
}

// Catalog exposes read-only listing for operators.
type Catalog interface {
	List(ctx context.Context, limit, offset int) ([]Entry, error)
	Stats(ctx context.Context) (Stats, error)
}

// Stats reports cache size and this process's lookup counters.
type Stats struct {
	Entries   int64 `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Conflicts int64 `json:"conflicts"`
}
