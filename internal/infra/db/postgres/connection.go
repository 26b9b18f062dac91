package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"finiq-ai-pipeline/internal/infra/metrics"
)

// NewPgxPool connects with a bounded pool and verifies the connection before
// anything depends on it.
func NewPgxPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(dialCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	go reportPoolStats(ctx, pool)
	return pool, nil
}

// reportPoolStats feeds the connection gauges until ctx is cancelled.
func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := pool.Stat()
			metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		}
	}
}
