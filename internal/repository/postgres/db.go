// Package postgres implements the repository interfaces against Postgres
// using sqlx, following the same constructor-returns-interface convention
// used throughout the platform's other services.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/DimaJoyti/analytics-engine/internal/config"
)

// Database wraps a pooled sqlx connection and the transaction helper every
// repository in this package is built on.
type Database struct {
	db *sqlx.DB
}

// NewDatabase opens and pings a Postgres connection pool configured per cfg.
func NewDatabase(cfg config.DatabaseConfig) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{db: db}, nil
}

// GetDB returns the underlying sqlx connection pool.
func (d *Database) GetDB() *sqlx.DB { return d.db }

// Close closes the connection pool.
func (d *Database) Close() error { return d.db.Close() }

// Health pings the database.
func (d *Database) Health(ctx context.Context) error { return d.db.PingContext(ctx) }

// Transaction runs fn inside a transaction, committing on success and
// rolling back on error or panic.
func (d *Database) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}
