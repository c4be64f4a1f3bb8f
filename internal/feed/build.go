package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"plate-order-backend/config"
	"plate-order-backend/internal/events"
	"plate-order-backend/internal/pending"
	"plate-order-backend/internal/store"
)

// Deps are the sources a feed transport may read from.
type Deps struct {
	Store           store.Store
	Orders          store.OrderRepository // where order snapshots are read; Store when nil
	Pending         *pending.Store
	Hub             *events.Hub
	Pool            *pgxpool.Pool // optional; opened from the pg_notify DSN when nil
	Events          config.EventsConfig
	ListLimit       int
	DeliveredWindow time.Duration
	Logger          *slog.Logger
	Metrics         Recorder
}

func (d Deps) orders() store.OrderRepository {
	if d.Orders != nil {
		return d.Orders
	}
	if d.Store != nil {
		return d.Store
	}
	return nil
}

// New builds the feed selected by cfg.Transport. The returned close func
// releases anything New opened.
func New(ctx context.Context, cfg config.FeedConfig, d Deps) (Feed, func(), error) {
	noop := func() {}
	switch cfg.Transport {
	case "", "poll":
		if d.orders() == nil {
			return nil, noop, fmt.Errorf("poll feed needs an order repository")
		}
		return &PollFeed{
			Transport: "poll",
			Load:      StoreLoader(d.orders(), d.ListLimit, d.DeliveredWindow),
			Interval:  cfg.Interval(),
			Nudge:     d.Hub,
			Logger:    d.Logger,
			Metrics:   d.Metrics,
		}, noop, nil
	case "storage":
		if d.Pending == nil {
			return nil, noop, fmt.Errorf("storage feed needs a pending store")
		}
		f := NewStorageFeed(d.Pending, cfg.Interval(), d.Logger, d.Metrics)
		f.Nudge = d.Hub
		return f, noop, nil
	case "amqp":
		return &AMQPFeed{
			URL:         d.Events.AMQP.URL,
			Exchange:    d.Events.AMQP.Exchange,
			QueuePrefix: cfg.Queue,
			Load:        StoreLoader(d.orders(), d.ListLimit, d.DeliveredWindow),
			Logger:      d.Logger,
			Metrics:     d.Metrics,
		}, noop, nil
	case "pgnotify":
		pool, closeFn := d.Pool, noop
		if pool == nil {
			p, err := pgxpool.New(ctx, d.Events.PGNotify.DSN)
			if err != nil {
				return nil, noop, fmt.Errorf("open pgx pool: %w", err)
			}
			pool, closeFn = p, p.Close
		}
		return &PGNotifyFeed{
			Pool:    pool,
			Channel: d.Events.PGNotify.Channel,
			Load:    StoreLoader(d.orders(), d.ListLimit, d.DeliveredWindow),
			Logger:  d.Logger,
			Metrics: d.Metrics,
		}, closeFn, nil
	}
	return nil, noop, unknownTransport(cfg.Transport)
}
