// Package database opens the pgx pool that backs internal/source/pgsource,
// the engine's Postgres-backed ProblemSource/SubmissionSource/
// ContestMetadataSource implementation. It only ever reads: the engine
// replays already-judged submissions, it never writes to this pool.
package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the connection pool pgsource reads submissions, problems, and
// hacks through.
type DB struct {
	Pool *pgxpool.Pool
}

// NewConnection opens a pool against DATABASE_URL, sized by DB_MAX_CONNS /
// DB_MIN_CONNS (read-heavy replay workloads want more idle readers than a
// typical write path, hence the higher default than the teacher's judge
// service uses).
func NewConnection() (*DB, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = envInt32("DB_MAX_CONNS", 16)
	poolConfig.MinConns = envInt32("DB_MIN_CONNS", 2)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("submission source: database connection established")

	return &DB{Pool: pool}, nil
}

func envInt32(key string, def int32) int32 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return int32(n)
}

// Close drains and closes the pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("submission source: database connection closed")
	}
}

// GetConnection acquires a single connection from the pool, for callers that
// need to pin a session (e.g. a multi-statement read within one snapshot).
func (db *DB) GetConnection(ctx context.Context) (*pgxpool.Conn, error) {
	return db.Pool.Acquire(ctx)
}

// BeginTx starts a transaction, for multi-statement reads that must observe
// a single consistent snapshot of the submission stream.
func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return db.Pool.Begin(ctx)
}

// Health reports whether the pool can still reach Postgres.
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}