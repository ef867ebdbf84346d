package kv

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key           TEXT PRIMARY KEY,
	value         JSONB NOT NULL,
	updated_at_ms BIGINT NOT NULL
)`

// Postgres is a Store backed by a PostgreSQL table, for desktop deployments that
// keep their local state in a shared database.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a connection pool and ensures the kv table exists.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Msg("postgres kv store opened")

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &Error{Op: "get", Key: key, Err: err}
	}
	return value, true, nil
}

const postgresUpsert = `
INSERT INTO kv (key, value, updated_at_ms) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at_ms = EXCLUDED.updated_at_ms`

func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	if _, err := p.pool.Exec(ctx, postgresUpsert, key, value, time.Now().UnixMilli()); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	return nil
}

// Update serialises writers of the same key with a transaction-scoped advisory
// lock, which also covers keys that do not exist yet.
func (p *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return &Error{Op: "update", Key: key, Err: err}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return &Error{Op: "update", Key: key, Err: err}
	}

	var cur []byte
	ok := true
	err = tx.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		ok = false
	} else if err != nil {
		return &Error{Op: "update", Key: key, Err: err}
	}

	next, err := fn(cur, ok)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, postgresUpsert, key, next, time.Now().UnixMilli()); err != nil {
		return &Error{Op: "update", Key: key, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &Error{Op: "update", Key: key, Err: err}
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
