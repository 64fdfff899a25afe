// Package pg implementa los repositorios de dominio sobre PostgreSQL (pgx).
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implementa UserRepository y TwoFactorRepository sobre un pool pgx.
type Store struct{ pool *pgxpool.Pool }

// Tuning opcional del pool.
type Tuning struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

// New abre el pool y hace ping.
func New(ctx context.Context, dsn string, t Tuning) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if t.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(t.MaxOpenConns)
	}
	// MaxIdleConns se mapea a MinConns (pgxpool no tiene idle explícito)
	if t.MaxIdleConns > 0 {
		pcfg.MinConns = int32(t.MaxIdleConns)
	}
	if t.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(t.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 10
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (métricas/migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Ping verifica la conexión (health checks).
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
