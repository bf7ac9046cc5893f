// Package db opens the Postgres pool behind the durable key-value store.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns = 5
	defaultMinConns = 1
)

// DB owns the pool shared by every namespace of the store.
type DB struct {
	pool *pgxpool.Pool
}

type Config struct {
	DSN string
	// Standups write a handful of small documents per user, so a few connections do.
	MaxConns int32
	MinConns int32
}

// New connects and pings; a store that cannot be reached fails startup.
func New(ctx context.Context, cfg Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = orDefault(cfg.MaxConns, defaultMaxConns)
	poolCfg.MinConns = orDefault(cfg.MinConns, defaultMinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{pool: pool}, nil
}

func orDefault(v, def int32) int32 {
	if v > 0 {
		return v
	}
	return def
}

func (db *DB) Close() {
	db.pool.Close()
}

// Pool serves the single-statement reads and merges of the KV store.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// WithTx runs fn in one transaction, used to replace a whole namespace atomically.
// fn's error rolls it back.
func (db *DB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
