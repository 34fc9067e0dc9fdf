package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/surveygen/internal/database"
	"github.com/at-ishikawa/surveygen/internal/survey"
)

type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	conflicts atomic.Int64
}

func (c *counters) stats(entries int64) Stats {
	return Stats{
		Entries:   entries,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Conflicts: c.conflicts.Load(),
	}
}

// DBStore implements Store on the surveys table for MySQL and SQLite.
type DBStore struct {
	db       *sqlx.DB
	now      func() time.Time
	counters counters
}

// NewDBStore creates a DBStore. The schema must already exist (see database.Migrate).
func NewDBStore(db *sqlx.DB) *DBStore {
	return &DBStore{
		db:  db,
		now: time.Now,
	}
}

// Lookup returns the entry stored for key.
func (s *DBStore) Lookup(ctx context.Context, key string) (*Entry, error) {
	var entry Entry
	err := s.db.GetContext(ctx, &entry,
		"SELECT id, prompt_raw, prompt_normalized, survey_json, created_at FROM surveys WHERE prompt_normalized = ?",
		key,
	)
	if errors.Is(err, sql.ErrNoRows) {
		s.counters.misses.Add(1)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup survey: %w", err)
	}
	s.counters.hits.Add(1)
	return &entry, nil
}

// InsertIfAbsent inserts a new entry. The unique index on prompt_normalized decides
// the winner: MySQL reports ER_DUP_ENTRY, SQLite skips the row via ON CONFLICT.
func (s *DBStore) InsertIfAbsent(ctx context.Context, rawInput, key string, doc survey.Document) (InsertResult, error) {
	createdAt := s.now().UTC().Truncate(time.Second)

	var query string
	switch s.db.DriverName() {
	case database.DriverSQLite:
		query = "INSERT INTO surveys (prompt_raw, prompt_normalized, survey_json, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (prompt_normalized) DO NOTHING"
	default:
		query = "INSERT INTO surveys (prompt_raw, prompt_normalized, survey_json, created_at) VALUES (?, ?, ?, ?)"
	}

	result, err := s.db.ExecContext(ctx, query, rawInput, key, doc, createdAt)
	if database.IsDuplicateEntry(err) {
		return s.conflict(key), nil
	}
	if err != nil {
		return InsertResult{}, fmt.Errorf("insert survey: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return InsertResult{}, fmt.Errorf("insert survey: rows affected: %w", err)
	}
	if affected == 0 {
		return s.conflict(key), nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return InsertResult{}, fmt.Errorf("insert survey: last insert id: %w", err)
	}

	return InsertResult{
		Inserted: &Entry{
			ID:            id,
			RawInput:      rawInput,
			NormalizedKey: key,
			Document:      doc,
			CreatedAt:     createdAt,
		},
	}, nil
}

func (s *DBStore) conflict(key string) InsertResult {
	s.counters.conflicts.Add(1)
	slog.Default().Debug("survey insert lost the race", "normalized", key)
	return InsertResult{Conflict: true}
}

// List returns entries newest first.
func (s *DBStore) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	var entries []Entry
	if err := s.db.SelectContext(ctx, &entries,
		"SELECT id, prompt_raw, prompt_normalized, survey_json, created_at FROM surveys ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset,
	); err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	return entries, nil
}

// Stats returns the number of stored entries and this process's counters.
func (s *DBStore) Stats(ctx context.Context) (Stats, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM surveys"); err != nil {
		return Stats{}, fmt.Errorf("count surveys: %w", err)
	}
	return s.counters.stats(count), nil
}

// PingContext checks the database connection.
func (s *DBStore) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var (
	_ Store   = (*DBStore)(nil)
	_ Catalog = (*DBStore)(nil)
)
