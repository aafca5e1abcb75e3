// Package postgres implements the PostgreSQL record store for student records,
// company profiles and user accounts, plus the listener that turns committed
// student row changes into record-changed notifications.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPoolClosed is returned by every call made after Close.
var ErrPoolClosed = errors.New("postgres: pool is closed")

// Config holds the database URL and the pool overrides applied on top of it.
// Zero values keep the pgxpool defaults or the URL's own parameters.
type Config struct {
	URL string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	HealthCheck     time.Duration
}

// DefaultConfig sizes the pool for one portal instance.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		HealthCheck:     time.Minute,
	}
}

func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database URL: %w", err)
	}

	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}
	if c.HealthCheck > 0 {
		pc.HealthCheckPeriod = c.HealthCheck
	}
	return pc, nil
}

// Connection is the shared pool every repository and the change listener use.
type Connection struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// NewConnection opens the pool and fails fast if the database is unreachable.
func NewConnection(ctx context.Context, cfg Config) (*Connection, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Connection{pool: pool}, nil
}

// Close releases every pooled connection. Later calls are no-ops.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.pool.Close()
	}
}

func (c *Connection) open() (*pgxpool.Pool, error) {
	if c.closed.Load() {
		return nil, ErrPoolClosed
	}
	return c.pool, nil
}

// Ping checks the database is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	pool, err := c.open()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Acquire takes a dedicated connection out of the pool. The caller must
// Release it.
func (c *Connection) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	pool, err := c.open()
	if err != nil {
		return nil, err
	}
	return pool.Acquire(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Readiness
// ─────────────────────────────────────────────────────────────────────────────

// PoolStats is the readiness view of the pool.
type PoolStats struct {
	Ping     time.Duration
	Total    int32
	Acquired int32
	Idle     int32
	Max      int32
}

// String renders the stats for the readiness report.
func (s PoolStats) String() string {
	return fmt.Sprintf("ping %s, %d/%d conns (%d acquired, %d idle)",
		s.Ping.Round(time.Millisecond), s.Total, s.Max, s.Acquired, s.Idle)
}

// Health pings the database and reports pool occupancy. The change listener
// holds one connection for as long as it runs, so Acquired is at least 1 in a
// running portal.
func (c *Connection) Health(ctx context.Context) (PoolStats, error) {
	pool, err := c.open()
	if err != nil {
		return PoolStats{}, err
	}

	start := time.Now()
	if err := pool.Ping(ctx); err != nil {
		return PoolStats{}, err
	}

	st := pool.Stat()
	return PoolStats{
		Ping:     time.Since(start),
		Total:    st.TotalConns(),
		Acquired: st.AcquiredConns(),
		Idle:     st.IdleConns(),
		Max:      st.MaxConns(),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries and transactions
// ─────────────────────────────────────────────────────────────────────────────

// Querier is satisfied by the pool and by a transaction, so row helpers work
// inside and outside one.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Exec runs a statement on the pool.
func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	pool, err := c.open()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return pool.Exec(ctx, sql, args...)
}

// Query runs a row-returning statement on the pool.
func (c *Connection) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	pool, err := c.open()
	if err != nil {
		return nil, err
	}
	return pool.Query(ctx, sql, args...)
}

// QueryRow runs a single-row statement on the pool. A closed pool surfaces as
// the row's Scan error.
func (c *Connection) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	pool, err := c.open()
	if err != nil {
		return errRow{err}
	}
	return pool.QueryRow(ctx, sql, args...)
}

// InTx runs fn in a read-committed transaction, committing when fn returns
// nil and rolling back otherwise.
func (c *Connection) InTx(ctx context.Context, fn func(pgx.Tx) error) error {
	pool, err := c.open()
	if err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// ─────────────────────────────────────────────────────────────────────────────
// Error classification
// ─────────────────────────────────────────────────────────────────────────────

// IsUniqueViolation reports a duplicate key.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsCheckViolation reports a row rejected by a CHECK constraint.
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}

// IsNoRows reports an empty single-row result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
