// Package database provides database connection management.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/at-ishikawa/surveygen/internal/config"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// mysqlErrDupEntry is ER_DUP_ENTRY, raised when a unique index rejects a row.
const mysqlErrDupEntry = 1062

// Open opens a connection for the configured driver.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case DriverMySQL:
		return openMySQL(cfg)
	case DriverSQLite:
		return openSQLite(cfg)
	default:
		return nil, fmt.Errorf("open database connection: unsupported driver %q", cfg.Driver)
	}
}

func openMySQL(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	mysqlCfg := mysql.NewConfig()
	mysqlCfg.User = cfg.Username
	mysqlCfg.Passwd = cfg.Password
	mysqlCfg.Net = "tcp"
	mysqlCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mysqlCfg.DBName = cfg.Database
	mysqlCfg.ParseTime = true
	if cfg.TLS {
		mysqlCfg.TLSConfig = "true"
	}
	if len(cfg.Params) > 0 {
		mysqlCfg.Params = cfg.Params
	}

	db, err := sqlx.Open(DriverMySQL, mysqlCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}
	applyPool(db, cfg)
	return db, nil
}

// openSQLite opens a file database. Writers are serialized by SQLite itself, so
// the pool is pinned to a single connection to avoid SQLITE_BUSY under load.
func openSQLite(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func applyPool(db *sqlx.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
}

// IsDuplicateEntry reports whether err is a MySQL unique-key violation.
func IsDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDupEntry
}

// RunInTx runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back; otherwise, it is committed.
func RunInTx(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback transaction: %w (original error: %v)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
