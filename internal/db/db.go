// Package db opens the PostgreSQL pool used by the climatology store. Stores
// accept the DBTX interface, satisfied by both *pgxpool.Pool and pgx.Tx.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"skyrisk/internal/config"
	"skyrisk/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Stores accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig translates DatabaseConfig into a pgxpool configuration.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	if cfg.URL.Unmask() == "" {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "DATABASE_URL is not set", nil)
	}
	pc, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		// The parse error may echo the DSN, so it is not wrapped.
		return nil, types.NewAppError(types.ErrCodeInternalDB, "invalid DATABASE_URL", nil)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pc.MinConns = int32(min(cfg.MinConns, int(pc.MaxConns)))
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	if cfg.AcquireTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	return pc, nil
}

// NewPool opens a pool and verifies connectivity with a ping.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create database pool", err)
	}

	pingCtx := ctx
	if cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.AcquireTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, types.NewAppError(types.ErrCodeInternalDB, fmt.Sprintf("failed to reach database at %s", pc.ConnConfig.Host), err)
	}
	return pool, nil
}
