package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// execer is the part of pgxpool.Pool the publisher needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGNotifyPublisher announces events with pg_notify so listeners on the
// channel see table changes as they commit.
type PGNotifyPublisher struct {
	db      execer
	pool    *pgxpool.Pool
	channel string
}

// ConnectPGNotify opens a pool and verifies the connection.
func ConnectPGNotify(ctx context.Context, dsn, channel string) (*PGNotifyPublisher, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PGNotifyPublisher{db: pool, pool: pool, channel: channel}, nil
}

func (p *PGNotifyPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.db.Exec(ctx, "SELECT pg_notify($1, $2)", p.channel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", p.channel, err)
	}
	return nil
}

// Pool exposes the connection pool for listeners sharing it.
func (p *PGNotifyPublisher) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *PGNotifyPublisher) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
