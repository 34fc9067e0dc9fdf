package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/surveygen/schemas"
)

// Migrate creates the surveys table and its unique index when they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements, err := schemas.Statements(db.DriverName())
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return RunInTx(ctx, db, func(ctx context.Context, tx *sqlx.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}
